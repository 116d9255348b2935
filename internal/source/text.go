package source

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// titleCase normalizes the SHOUTING facility and site names government
// registries favor. A cases.Caser is stateful and not safe for concurrent
// use, so each call builds its own; callers run in parallel fan-out and
// build workers.
func titleCase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return cases.Title(language.AmericanEnglish).String(strings.ToLower(s))
}
