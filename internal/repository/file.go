package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/droprelay/droprelay/internal/models"
)

const (
	rulesFileName     = "rules.yaml"
	watermarkFileName = "watermark"
)

// FileRepository persists rules as a YAML list and the watermark as a
// plain integer file inside a single directory. This mirrors the flat-file
// layout the bot used before the Postgres backend existed.
type FileRepository struct {
	mu  sync.Mutex
	dir string
}

// NewFileRepository opens (and creates if needed) the state directory.
func NewFileRepository(dir string) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &FileRepository{dir: dir}, nil
}

func (r *FileRepository) rulesPath() string     { return filepath.Join(r.dir, rulesFileName) }
func (r *FileRepository) watermarkPath() string { return filepath.Join(r.dir, watermarkFileName) }

func (r *FileRepository) AddRule(ctx context.Context, rule *models.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rules, err := r.loadRules()
	if err != nil {
		return err
	}
	if err := checkRuleConflicts(rules, rule); err != nil {
		return err
	}
	return r.saveRules(append(rules, rule))
}

func (r *FileRepository) RemoveRule(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rules, err := r.loadRules()
	if err != nil {
		return err
	}
	kept := rules[:0]
	for _, rule := range rules {
		if !strings.EqualFold(rule.Name, name) {
			kept = append(kept, rule)
		}
	}
	if len(kept) == len(rules) {
		return ErrRuleNotFound
	}
	return r.saveRules(kept)
}

func (r *FileRepository) ListRules(context.Context) ([]*models.Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadRules()
}

func (r *FileRepository) GetWatermark(context.Context) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.watermarkPath())
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read watermark file: %w", err)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse watermark file: %w", err)
	}
	return id, nil
}

func (r *FileRepository) SetWatermark(_ context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tmp := r.watermarkPath() + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.FormatUint(id, 10)), 0o644); err != nil {
		return fmt.Errorf("write watermark file: %w", err)
	}
	if err := os.Rename(tmp, r.watermarkPath()); err != nil {
		return fmt.Errorf("replace watermark file: %w", err)
	}
	return nil
}

func (r *FileRepository) Close() error { return nil }

func (r *FileRepository) loadRules() ([]*models.Rule, error) {
	data, err := os.ReadFile(r.rulesPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var rules []*models.Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	return rules, nil
}

func (r *FileRepository) saveRules(rules []*models.Rule) error {
	data, err := yaml.Marshal(rules)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}
	tmp := r.rulesPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write rules file: %w", err)
	}
	if err := os.Rename(tmp, r.rulesPath()); err != nil {
		return fmt.Errorf("replace rules file: %w", err)
	}
	return nil
}
