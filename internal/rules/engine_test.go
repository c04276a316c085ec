package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/droprelay/droprelay/internal/extractor"
	"github.com/droprelay/droprelay/internal/models"
)

func intPtr(v int) *int { return &v }

func TestMatch_KeywordAndValue(t *testing.T) {
	rule := &models.Rule{
		Name:        "vorkath-drops",
		Destination: "big-drops",
		Keywords:    []string{"vorkath"},
		MinValue:    1_000_000,
	}
	sig := extractor.Signals{
		SearchText: "new drop!vorkath has been slaintotal value2.5m",
		TotalValue: 2_500_000,
	}

	matched := Match(sig, []*models.Rule{rule})

	require.Len(t, matched, 1)
	assert.Equal(t, "vorkath-drops", matched[0].Name)
}

func TestMatch_ValueBelowMinimum(t *testing.T) {
	rule := &models.Rule{
		Name:        "vorkath-drops",
		Destination: "big-drops",
		Keywords:    []string{"vorkath"},
		MinValue:    1_000_000,
	}
	sig := extractor.Signals{SearchText: "vorkath loot", TotalValue: 900_000}

	assert.Empty(t, Match(sig, []*models.Rule{rule}))
}

func TestMatch_EmptyKeywordsMatchAll(t *testing.T) {
	rule := &models.Rule{Name: "everything", Destination: "firehose"}
	sig := extractor.Signals{SearchText: "anything at all"}

	assert.Len(t, Match(sig, []*models.Rule{rule}), 1)
}

func TestMatch_KeywordsAreOrMatched(t *testing.T) {
	rule := &models.Rule{
		Name:        "bosses",
		Destination: "boss-drops",
		Keywords:    []string{"zulrah", "vorkath", "hydra"},
	}
	sig := extractor.Signals{SearchText: "a hydra drop appeared"}

	assert.Len(t, Match(sig, []*models.Rule{rule}), 1)
}

func TestMatch_LevelGateRequiresExtractedLevel(t *testing.T) {
	rule := &models.Rule{
		Name:           "maxed",
		Destination:    "milestones",
		Keywords:       []string{"levelled"},
		SpecificLevels: []int{99, 120},
	}

	// Keywords and value match, but no level was extracted: the level
	// constraint must fail the rule.
	sig := extractor.Signals{SearchText: "someone has levelled up"}
	assert.Empty(t, Match(sig, []*models.Rule{rule}))

	sig.Level = intPtr(99)
	assert.Len(t, Match(sig, []*models.Rule{rule}), 1)

	sig.Level = intPtr(80)
	assert.Empty(t, Match(sig, []*models.Rule{rule}))
}

func TestMatch_NilLevelSetMatchesWithoutLevel(t *testing.T) {
	rule := &models.Rule{Name: "drops", Destination: "all-drops", Keywords: []string{"drop"}}
	sig := extractor.Signals{SearchText: "new drop"}

	assert.Len(t, Match(sig, []*models.Rule{rule}), 1)
}

func TestMatch_MultipleRulesIndependent(t *testing.T) {
	ruleset := []*models.Rule{
		{Name: "a", Destination: "chan-a", Keywords: []string{"vorkath"}},
		{Name: "b", Destination: "chan-b", MinValue: 1_000},
		{Name: "c", Destination: "chan-c", Keywords: []string{"zulrah"}},
	}
	sig := extractor.Signals{SearchText: "vorkath drop", TotalValue: 5_000}

	matched := Match(sig, ruleset)

	require.Len(t, matched, 2)
	// Output order follows the configured list order.
	assert.Equal(t, "a", matched[0].Name)
	assert.Equal(t, "b", matched[1].Name)
}

func TestMatch_SkipsRuleWithoutDestination(t *testing.T) {
	ruleset := []*models.Rule{
		{Name: "broken", Keywords: []string{"drop"}},
		{Name: "ok", Destination: "chan", Keywords: []string{"drop"}},
	}
	sig := extractor.Signals{SearchText: "a drop"}

	matched := Match(sig, ruleset)

	require.Len(t, matched, 1)
	assert.Equal(t, "ok", matched[0].Name)
}

func TestValidate_WarnsOnMissingDestination(t *testing.T) {
	warnings := Validate([]*models.Rule{
		{Name: "broken"},
		{Name: "ok", Destination: "chan"},
	})

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "broken")
}

type stubStore struct {
	rules []*models.Rule
	err   error
}

func (s *stubStore) ListRules(context.Context) ([]*models.Rule, error) {
	return s.rules, s.err
}

func TestProvider_ReloadReplacesSet(t *testing.T) {
	store := &stubStore{rules: []*models.Rule{{Name: "a", Destination: "chan", Keywords: []string{" Vorkath "}}}}
	p := NewProvider(store)

	warnings, err := p.Reload(context.Background())
	require.NoError(t, err)
	assert.Empty(t, warnings)

	current := p.Current()
	require.Len(t, current, 1)
	// Reload normalizes keywords.
	assert.Equal(t, []string{"vorkath"}, current[0].Keywords)
}

func TestProvider_ReloadFailureKeepsPreviousSet(t *testing.T) {
	store := &stubStore{rules: []*models.Rule{{Name: "a", Destination: "chan"}}}
	p := NewProvider(store)

	_, err := p.Reload(context.Background())
	require.NoError(t, err)

	store.err = errors.New("store offline")
	_, err = p.Reload(context.Background())
	require.Error(t, err)
	assert.Len(t, p.Current(), 1)
}
