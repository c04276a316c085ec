package rules

import (
	"context"
	"fmt"
	"sync"

	"github.com/droprelay/droprelay/internal/models"
)

// Store is the slice of the config store the provider needs.
type Store interface {
	ListRules(ctx context.Context) ([]*models.Rule, error)
}

// Provider caches the rule list in memory and reloads it from the config
// store on demand. The dispatcher reads the current set at call time so a
// reload takes effect on the next event without restart.
type Provider struct {
	mu    sync.RWMutex
	store Store
	rules []*models.Rule
}

// NewProvider creates a Provider backed by store. Call Reload before the
// first Current to populate the set.
func NewProvider(store Store) *Provider {
	return &Provider{store: store}
}

// Current returns the cached rule list in configured order. The returned
// slice must not be mutated by callers.
func (p *Provider) Current() []*models.Rule {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rules
}

// Reload replaces the cached set from the config store. On failure the
// previous set stays in effect.
func (p *Provider) Reload(ctx context.Context) ([]string, error) {
	loaded, err := p.store.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("reload rules: %w", err)
	}
	for _, r := range loaded {
		r.Normalize()
	}
	warnings := Validate(loaded)

	p.mu.Lock()
	p.rules = loaded
	p.mu.Unlock()

	return warnings, nil
}
