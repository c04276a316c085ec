// Package rules evaluates extracted event signals against the configured
// forwarding rule set.
package rules

import (
	"strings"

	"github.com/droprelay/droprelay/internal/extractor"
	"github.com/droprelay/droprelay/internal/models"
)

// Match returns the rules whose destination should receive the event, in
// configured list order. Pure and deterministic: the outcome for one rule
// never depends on another. Rules without a destination are skipped here;
// Validate reports them as configuration warnings.
func Match(sig extractor.Signals, ruleset []*models.Rule) []*models.Rule {
	var matched []*models.Rule
	for _, r := range ruleset {
		if r.Destination == "" {
			continue
		}
		if matches(sig, r) {
			matched = append(matched, r)
		}
	}
	return matched
}

// matches applies the three-part predicate: keyword OR-substring match,
// minimum value, and level set membership.
func matches(sig extractor.Signals, r *models.Rule) bool {
	if !keywordsMatch(sig.SearchText, r.Keywords) {
		return false
	}
	if sig.TotalValue < r.MinValue {
		return false
	}
	if r.SpecificLevels != nil {
		// A configured level set requires an extracted level; keyword and
		// value matches alone are not enough.
		if sig.Level == nil {
			return false
		}
		if !containsLevel(r.SpecificLevels, *sig.Level) {
			return false
		}
	}
	return true
}

// keywordsMatch reports whether any keyword occurs in the searchable text.
// An empty keyword set matches everything.
func keywordsMatch(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func containsLevel(levels []int, level int) bool {
	for _, l := range levels {
		if l == level {
			return true
		}
	}
	return false
}

// Validate returns one human-readable warning per misconfigured rule.
// Warnings never block evaluation of the remaining rules.
func Validate(ruleset []*models.Rule) []string {
	var warnings []string
	for _, r := range ruleset {
		if r.Destination == "" {
			warnings = append(warnings, "rule '"+r.Name+"' has no destination channel configured; skipping")
		}
	}
	return warnings
}
