package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/droprelay/droprelay/internal/models"
)

// InMemoryRepository keeps rules and the watermark in process memory.
// Used by tests and as a fallback when no persistence is configured.
type InMemoryRepository struct {
	mu        sync.RWMutex
	rules     []*models.Rule
	watermark uint64
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

func (r *InMemoryRepository) AddRule(_ context.Context, rule *models.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := checkRuleConflicts(r.rules, rule); err != nil {
		return err
	}
	r.rules = append(r.rules, rule)
	return nil
}

func (r *InMemoryRepository) RemoveRule(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, rule := range r.rules {
		if strings.EqualFold(rule.Name, name) {
			r.rules = append(r.rules[:i], r.rules[i+1:]...)
			return nil
		}
	}
	return ErrRuleNotFound
}

func (r *InMemoryRepository) ListRules(context.Context) ([]*models.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Rule, len(r.rules))
	copy(out, r.rules)
	return out, nil
}

func (r *InMemoryRepository) GetWatermark(context.Context) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.watermark, nil
}

func (r *InMemoryRepository) SetWatermark(_ context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watermark = id
	return nil
}

func (r *InMemoryRepository) Close() error { return nil }
