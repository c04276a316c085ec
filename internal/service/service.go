// Package service implements the admin operations over forwarding rules,
// the watermark, and the record lookup.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/droprelay/droprelay/internal/lookup"
	"github.com/droprelay/droprelay/internal/models"
	"github.com/droprelay/droprelay/internal/repository"
	"github.com/droprelay/droprelay/internal/rules"
	"github.com/droprelay/droprelay/internal/watermark"
)

var (
	ErrInvalidRule = errors.New("invalid rule")
)

type Service struct {
	repo     repository.Repository
	provider *rules.Provider
	tracker  *watermark.Tracker
	lookup   *lookup.Cache
}

func NewService(repo repository.Repository, provider *rules.Provider, tracker *watermark.Tracker, lookupCache *lookup.Cache) *Service {
	return &Service{
		repo:     repo,
		provider: provider,
		tracker:  tracker,
		lookup:   lookupCache,
	}
}

// CreateRule validates and stores a new forwarding rule, then reloads the
// active rule set so the dispatcher picks it up.
func (s *Service) CreateRule(ctx context.Context, req *models.CreateRuleRequest) (*models.Rule, error) {
	idUUID, _ := uuid.NewV7()
	rule := &models.Rule{
		ID:             idUUID.String(),
		Name:           strings.TrimSpace(req.Name),
		Destination:    strings.TrimSpace(req.Destination),
		Keywords:       req.Keywords,
		MinValue:       req.MinValue,
		SpecificLevels: req.SpecificLevels,
	}
	rule.Normalize()

	if err := validateRule(rule); err != nil {
		return nil, err
	}

	if err := s.repo.AddRule(ctx, rule); err != nil {
		return nil, err
	}

	if _, err := s.provider.Reload(ctx); err != nil {
		return nil, fmt.Errorf("rule stored but reload failed: %w", err)
	}
	return rule, nil
}

// DeleteRule removes a rule by name and reloads the active rule set.
func (s *Service) DeleteRule(ctx context.Context, name string) error {
	if err := s.repo.RemoveRule(ctx, strings.TrimSpace(name)); err != nil {
		return err
	}
	_, err := s.provider.Reload(ctx)
	return err
}

// ListRules returns all stored rules.
func (s *Service) ListRules(ctx context.Context) (*models.ListRulesResponse, error) {
	ruleList, err := s.repo.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	return &models.ListRulesResponse{Rules: ruleList, Total: len(ruleList)}, nil
}

// ReloadRules re-reads the rule store into the active set and returns any
// configuration warnings.
func (s *Service) ReloadRules(ctx context.Context) ([]string, error) {
	return s.provider.Reload(ctx)
}

// Watermark reports the current high-water mark.
func (s *Service) Watermark() uint64 {
	return s.tracker.Current()
}

// Lookup resolves query against the subject's record table.
func (s *Service) Lookup(ctx context.Context, query, subjectKey string) (lookup.Match, error) {
	if s.lookup == nil {
		return lookup.Match{}, errors.New("lookup is not configured")
	}
	return s.lookup.Resolve(ctx, query, subjectKey)
}

func validateRule(rule *models.Rule) error {
	if rule.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if rule.Destination == "" {
		return fmt.Errorf("%w: destination is required", ErrInvalidRule)
	}
	if len(rule.Keywords) == 0 {
		return fmt.Errorf("%w: at least one keyword is required", ErrInvalidRule)
	}
	if rule.MinValue < 0 {
		return fmt.Errorf("%w: min_value must not be negative", ErrInvalidRule)
	}
	for _, lvl := range rule.SpecificLevels {
		if lvl <= 0 {
			return fmt.Errorf("%w: levels must be positive", ErrInvalidRule)
		}
	}
	return nil
}
