package daemon

import (
	"fmt"
	"sort"
	"strings"

	"github.com/runger/habitd/internal/action"
	"github.com/runger/habitd/internal/suggestion"
)

// Digest composes the persistent-notification title and markdown body for a
// run's suggestions, grouped by entity domain (largest group first) with the
// domain emoji table. Pure so the formatting is testable without a daemon.
func Digest(suggestions []suggestion.Suggestion) (title, message string) {
	byDomain := make(map[string][]suggestion.Suggestion)
	var domains []string
	for _, s := range suggestions {
		i := strings.IndexByte(s.EntityID, '.')
		if i <= 0 {
			continue
		}
		domain := s.EntityID[:i]
		if _, seen := byDomain[domain]; !seen {
			domains = append(domains, domain)
		}
		byDomain[domain] = append(byDomain[domain], s)
	}

	sort.SliceStable(domains, func(i, j int) bool {
		a, b := domains[i], domains[j]
		if len(byDomain[a]) != len(byDomain[b]) {
			return len(byDomain[a]) > len(byDomain[b])
		}
		return a < b
	})

	var sections []string
	for _, domain := range domains {
		group := byDomain[domain]
		header := fmt.Sprintf("## %s %s (%d)", action.Emoji(domain), domainLabel(domain), len(group))

		bullets := make([]string, 0, len(group))
		for _, s := range group {
			name := s.FriendlyName
			if name == "" {
				name = s.EntityID
			}
			bullets = append(bullets, fmt.Sprintf(
				"• %s %s around %s\n  %d%% consistent, seen %d times",
				action.Display(s.Action), name, s.SuggestedTime,
				int(s.ConsistencyScore*100), s.OccurrenceCount))
		}
		sections = append(sections, header+"\n"+strings.Join(bullets, "\n"))
	}

	message = "Based on your recent activity:\n\n" +
		strings.Join(sections, "\n\n") +
		"\n\nTo create these automations, go to Settings > Automations & Scenes."
	return "Automation Suggestions Found", message
}

// domainLabel turns "input_boolean" into "Input Boolean".
func domainLabel(domain string) string {
	words := strings.Split(domain, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
