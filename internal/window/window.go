// Package window maps instants onto a fixed time-of-day grid so that
// nearby-but-not-identical daily times aggregate into the same bucket.
//
// The grid is anchored to the top of the hour, not to any record's own
// minute. This keeps bucketing O(1) per record and unambiguous; the accepted
// cost is that a pattern straddling a grid line (say, consistently at
// :29/:31) splits across two buckets.
package window

import (
	"fmt"
	"time"
)

// DefaultWidthMinutes is the default bucket width.
const DefaultWidthMinutes = 30

// Label returns the grid window containing t as its start time formatted
// "HH:MM". The instant's own wall clock is used, so records keep the
// timezone their timestamps carried.
func Label(t time.Time, widthMinutes int) string {
	bucket := (t.Minute() / widthMinutes) * widthMinutes
	return fmt.Sprintf("%02d:%02d", t.Hour(), bucket)
}

// Bounds returns the inclusive [start, end] times of the window with the
// given label, both formatted "HH:MM". Malformed labels yield the first
// window of the day.
func Bounds(label string, widthMinutes int) (string, string) {
	hour, minute, ok := parseLabel(label)
	if !ok {
		hour, minute = 0, 0
	}
	endMinute := minute + widthMinutes - 1
	endHour := hour
	if endMinute >= 60 {
		endMinute -= 60
		endHour = (hour + 1) % 24
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), fmt.Sprintf("%02d:%02d", endHour, endMinute)
}

// SuggestedTime returns a trigger time for the window, the window start
// floored to the nearest quarter hour. For the default 30-minute grid this
// is the window start itself.
func SuggestedTime(label string) string {
	hour, minute, ok := parseLabel(label)
	if !ok {
		return "00:00"
	}
	return fmt.Sprintf("%02d:%02d", hour, (minute/15)*15)
}

// HourRange formats the span of observed hours as "HH:00" or "HH:00-HH:59".
func HourRange(hours []int) string {
	if len(hours) == 0 {
		return "unknown"
	}
	minHour, maxHour := hours[0], hours[0]
	for _, h := range hours[1:] {
		if h < minHour {
			minHour = h
		}
		if h > maxHour {
			maxHour = h
		}
	}
	if minHour == maxHour {
		return fmt.Sprintf("%02d:00", minHour)
	}
	return fmt.Sprintf("%02d:00-%02d:59", minHour, maxHour)
}

func parseLabel(label string) (hour, minute int, ok bool) {
	if _, err := fmt.Sscanf(label, "%02d:%02d", &hour, &minute); err != nil {
		return 0, 0, false
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}
