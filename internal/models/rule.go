package models

import (
	"strings"
	"time"
)

// Rule is one independent forwarding predicate bound to a destination
// channel. Rules are evaluated independently; an event may match zero,
// one, or many rules and is forwarded once per matching rule.
type Rule struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Destination string    `json:"destination" yaml:"destination"`
	Keywords    []string  `json:"keywords" yaml:"keywords"`
	MinValue    int64     `json:"min_value" yaml:"min_value"`
	// SpecificLevels restricts the rule to events whose extracted level is
	// a member of the set. nil means any level (including none).
	SpecificLevels []int     `json:"specific_levels,omitempty" yaml:"specific_levels,omitempty"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
}

// Normalize lowercases the keyword set and trims empty entries. Rule names
// are compared case-insensitively but stored as given.
func (r *Rule) Normalize() {
	kws := make([]string, 0, len(r.Keywords))
	for _, kw := range r.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			kws = append(kws, kw)
		}
	}
	r.Keywords = kws
}

// KeywordsOverlap reports whether the two rules share at least one keyword.
func (r *Rule) KeywordsOverlap(other *Rule) bool {
	for _, a := range r.Keywords {
		for _, b := range other.Keywords {
			if a == b {
				return true
			}
		}
	}
	return false
}

// CreateRuleRequest is the API request for creating a forwarding rule.
type CreateRuleRequest struct {
	Name           string   `json:"name"`
	Destination    string   `json:"destination"`
	Keywords       []string `json:"keywords"`
	MinValue       int64    `json:"min_value"`
	SpecificLevels []int    `json:"specific_levels,omitempty"`
}

// ListRulesResponse contains the configured rule list in evaluation order.
type ListRulesResponse struct {
	Rules []*Rule `json:"rules"`
	Total int     `json:"total"`
}
