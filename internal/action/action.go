// Package action derives normalized action verbs from entity domains and
// states, and renders verbs for display. Both mappings are total: every
// input produces a string.
package action

import "strings"

// Extract maps a record's entity domain and new state to a normalized action
// verb. Unrecognized domains fall back to the raw state, or "unknown" when
// there is no state either.
func Extract(domain, state string) string {
	switch domain {
	case "scene":
		return "activated"
	case "script":
		if state == "on" {
			return "executed"
		}
		return fallback(state)
	case "light", "switch", "input_boolean":
		switch state {
		case "on":
			return "turn_on"
		case "off":
			return "turn_off"
		}
		return fallback(state)
	case "cover":
		switch state {
		case "open", "opening":
			return "open"
		case "closed", "closing":
			return "close"
		case "on":
			return "turn_on"
		case "off":
			return "turn_off"
		}
		return fallback(state)
	case "climate":
		if state != "" {
			return "set_" + state
		}
		return "changed"
	case "input_button":
		return "pressed"
	case "input_number", "input_select", "input_datetime":
		return "changed"
	}
	return fallback(state)
}

func fallback(state string) string {
	if state == "" {
		return "unknown"
	}
	return state
}

// displayVerbs maps normalized verbs to their human-readable form. Hosts can
// extend the map before first use instead of patching format logic.
var displayVerbs = map[string]string{
	"turn_on":   "Turn on",
	"turn_off":  "Turn off",
	"open":      "Open",
	"close":     "Close",
	"activated": "Activate",
	"executed":  "Execute",
	"pressed":   "Press",
	"changed":   "Change",
}

// Display renders an action verb for humans: "turn_on" becomes "Turn on",
// "set_heat" becomes "Set to heat", anything else is title-cased with
// underscores replaced.
func Display(verb string) string {
	if display, ok := displayVerbs[verb]; ok {
		return display
	}
	if rest, ok := strings.CutPrefix(verb, "set_"); ok && rest != "" {
		return "Set to " + rest
	}
	words := strings.ReplaceAll(verb, "_", " ")
	if words == "" {
		return ""
	}
	return strings.ToUpper(words[:1]) + words[1:]
}

// DomainEmoji maps entity domains to notification emoji.
var DomainEmoji = map[string]string{
	"light":          "💡",
	"switch":         "🔌",
	"cover":          "🪟",
	"climate":        "🌡️",
	"scene":          "🎬",
	"script":         "📜",
	"input_number":   "🔢",
	"input_boolean":  "🔘",
	"input_select":   "📋",
	"input_datetime": "📅",
	"input_button":   "🔳",
}

// DefaultEmoji is used for domains without an entry in DomainEmoji.
const DefaultEmoji = "⚙️"

// Emoji returns the notification emoji for an entity domain.
func Emoji(domain string) string {
	if e, ok := DomainEmoji[domain]; ok {
		return e
	}
	return DefaultEmoji
}
