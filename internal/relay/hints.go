package relay

import (
	"strings"

	"github.com/goalnest/goalnest/internal/sharing"
	"golang.org/x/text/cases"
)

type hintRule struct {
	keywords []string
	hints    []sharing.HintPayload
}

// catalog maps words found in a goal title to sub-goal suggestions.
var catalog = []hintRule{
	{
		keywords: []string{"run", "5k", "marathon", "jog"},
		hints: []sharing.HintPayload{
			{Title: "Buy running shoes", Duration: "1h"},
			{Title: "Plan a weekly route", Duration: "30m"},
			{Title: "Run three times a week", Duration: "3h"},
		},
	},
	{
		keywords: []string{"learn", "study", "course", "language"},
		hints: []sharing.HintPayload{
			{Title: "Pick a course", Duration: "1h"},
			{Title: "Study 30 minutes a day", Duration: "30m"},
			{Title: "Review progress weekly", Duration: "15m"},
		},
	},
	{
		keywords: []string{"read", "book"},
		hints: []sharing.HintPayload{
			{Title: "Make a reading list", Duration: "30m"},
			{Title: "Read 20 pages a day", Duration: "45m"},
		},
	},
	{
		keywords: []string{"save", "money", "budget"},
		hints: []sharing.HintPayload{
			{Title: "Track expenses for a month", Duration: "10m"},
			{Title: "Set up an automatic transfer", Duration: "20m"},
		},
	},
}

var fallbackHints = []sharing.HintPayload{
	{Title: "Break it into smaller steps", Duration: "30m"},
	{Title: "Set a deadline", Duration: "5m"},
}

// suggest returns the catalog hints whose keywords appear in title, or the
// fallback list when none do. Each hint names title as its parent.
func suggest(title string) []sharing.HintPayload {
	words := strings.FieldsFunc(cases.Fold().String(title), func(r rune) bool {
		return r == ' ' || r == '-' || r == ',' || r == '.'
	})

	var out []sharing.HintPayload
	for _, rule := range catalog {
		if matches(words, rule.keywords) {
			out = append(out, rule.hints...)
		}
	}
	if len(out) == 0 {
		out = append(out, fallbackHints...)
	}

	for i := range out {
		out[i].ParentTitle = title
	}
	return out
}

func matches(words, keywords []string) bool {
	for _, word := range words {
		for _, keyword := range keywords {
			if word == keyword {
				return true
			}
		}
	}
	return false
}
