// Package repository persists the forwarding rule list and the watermark.
// Three backends are provided: Postgres for deployments, a file store
// mirroring the flat-file layout the bot historically used, and an
// in-memory store for tests.
package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/droprelay/droprelay/internal/models"
)

var (
	ErrRuleNotFound = errors.New("forwarding rule not found")
	ErrRuleExists   = errors.New("a rule with that name already exists")
	// ErrRuleConflict is returned when a new rule targets the same
	// destination as an existing rule with overlapping keywords.
	ErrRuleConflict = errors.New("a rule with that destination and overlapping keywords already exists")
)

// Repository is the config-store contract: rule CRUD plus the persisted
// watermark value. The forward-only watermark invariant is enforced by
// watermark.Tracker, not by the store.
type Repository interface {
	AddRule(ctx context.Context, rule *models.Rule) error
	RemoveRule(ctx context.Context, name string) error
	ListRules(ctx context.Context) ([]*models.Rule, error)

	GetWatermark(ctx context.Context) (uint64, error)
	SetWatermark(ctx context.Context, id uint64) error

	Close() error
}

// checkRuleConflicts applies the duplicate-add policy shared by all
// backends: names are unique case-insensitively, and two rules may not
// point the same destination at overlapping keywords.
func checkRuleConflicts(existing []*models.Rule, rule *models.Rule) error {
	for _, r := range existing {
		if strings.EqualFold(r.Name, rule.Name) {
			return ErrRuleExists
		}
		if r.Destination == rule.Destination && r.KeywordsOverlap(rule) {
			return ErrRuleConflict
		}
	}
	return nil
}
