// Package extractor derives normalized matching signals from raw event
// payloads. Extraction is pure and total: absent or malformed data yields
// default values, never an error.
package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/droprelay/droprelay/internal/models"
)

// Signals holds the normalized view of an event used by the rule engine.
// Derived fresh per event, never persisted.
type Signals struct {
	// SearchText is the lowercase concatenation of title, description,
	// each field's name and value, and body, in that fixed order.
	SearchText string

	// TotalValue is the parsed "total value" amount, 0 if absent.
	TotalValue int64

	// Level is the extracted level, nil when not derivable.
	Level *int
}

const levelTrigger = "has levelled"

var (
	levelPattern = regexp.MustCompile(`(?i)to (\d+)`)

	// Numeric token with optional thousands separators and decimal point,
	// optional magnitude suffix, optional currency token.
	valuePattern = regexp.MustCompile(`(?i)([\d,.]+)\s*([kmbt])?\s*(gp)?`)
)

// Extract builds Signals from ev. Deterministic and side-effect free.
func Extract(ev models.Event) Signals {
	var b strings.Builder
	b.WriteString(strings.ToLower(ev.Title))
	b.WriteString(strings.ToLower(ev.Description))
	for _, f := range ev.Fields {
		b.WriteString(strings.ToLower(f.Name))
		b.WriteString(strings.ToLower(f.Value))
	}
	b.WriteString(strings.ToLower(ev.Body))
	text := b.String()

	sig := Signals{SearchText: text}
	sig.Level = extractLevel(text)

	// Scan fields whose name mentions "total value". When several qualify,
	// the last successful parse wins; a parse failure leaves the
	// accumulated value untouched.
	for _, f := range ev.Fields {
		if !strings.Contains(strings.ToLower(f.Name), "total value") {
			continue
		}
		if v, ok := parseValue(f.Value); ok {
			sig.TotalValue = v
		}
	}

	return sig
}

// extractLevel returns the level announced by a "has levelled ... to N"
// message, or nil when the trigger phrase or a numeric match is absent.
func extractLevel(text string) *int {
	if !strings.Contains(text, levelTrigger) {
		return nil
	}
	m := levelPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	lvl, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &lvl
}

// parseValue parses amounts like "1,234.5k gp", "2m", or "500". The
// magnitude suffix multiplies by k=1e3, m=1e6, b=1e9, t=1e12; the result
// is truncated to an integer.
func parseValue(s string) (int64, bool) {
	m := valuePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	num := strings.ReplaceAll(m[1], ",", "")
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "k":
		v *= 1_000
	case "m":
		v *= 1_000_000
	case "b":
		v *= 1_000_000_000
	case "t":
		v *= 1_000_000_000_000
	}
	return int64(v), true
}
