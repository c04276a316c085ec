// Package seeder generates synthetic chat events for development and load
// testing. It publishes drop announcements and level-up messages shaped
// like the ones the game integration posts, so a local relay can be
// exercised end to end without a live chat server.
package seeder

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/droprelay/droprelay/internal/models"
)

// Publisher posts an event body to a channel. The delivery sender
// satisfies this with the gateway's subject prefix.
type Publisher interface {
	Send(ctx context.Context, destination string, ev models.Event) error
}

// Config controls what the seeder generates.
type Config struct {
	Channel string
	Count   int
	// Interval between events. Zero publishes as fast as the broker accepts.
	Interval time.Duration
	// LevelRatio is the fraction of events that are level-ups instead of
	// drops, in [0, 1].
	LevelRatio float64
	Seed       int64
}

type Seeder struct {
	pub Publisher
	cfg Config
	rng *rand.Rand
}

var dropSources = []string{
	"Vorkath", "Zulrah", "Commander Zilyana", "General Graardor",
	"Corporeal Beast", "Chambers of Xeric", "Theatre of Blood",
	"Alchemical Hydra", "Nex", "The Nightmare",
}

var dropItems = []string{
	"Dragon claws", "Twisted bow", "Scythe of vitur", "Draconic visage",
	"Elysian sigil", "Tanzanite fang", "Armadyl hilt", "Bandos chestplate",
	"Hydra leather", "Nihil horn",
}

var skills = []string{
	"Attack", "Strength", "Defence", "Ranged", "Magic", "Slayer",
	"Herblore", "Agility", "Construction", "Farming",
}

func New(pub Publisher, cfg Config) *Seeder {
	if cfg.Count <= 0 {
		cfg.Count = 100
	}
	if cfg.LevelRatio < 0 || cfg.LevelRatio > 1 {
		cfg.LevelRatio = 0.2
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)
	return &Seeder{pub: pub, cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// Run publishes the configured number of events, pacing by Interval.
func (s *Seeder) Run(ctx context.Context) (int, error) {
	published := 0
	for i := 0; i < s.cfg.Count; i++ {
		ev := s.nextEvent()
		if err := s.pub.Send(ctx, s.cfg.Channel, ev); err != nil {
			return published, fmt.Errorf("publish seed event %d: %w", i, err)
		}
		published++

		if s.cfg.Interval > 0 {
			select {
			case <-ctx.Done():
				return published, ctx.Err()
			case <-time.After(s.cfg.Interval):
			}
		}
	}
	return published, nil
}

func (s *Seeder) nextEvent() models.Event {
	if s.rng.Float64() < s.cfg.LevelRatio {
		return s.levelEvent()
	}
	return s.dropEvent()
}

func (s *Seeder) dropEvent() models.Event {
	player := gofakeit.Username()
	source := dropSources[s.rng.Intn(len(dropSources))]
	item := dropItems[s.rng.Intn(len(dropItems))]
	value := s.randomValue()

	return models.Event{
		Author: "drop-watcher",
		Title:  fmt.Sprintf("%s received a drop", player),
		Description: fmt.Sprintf("%s just received %s from %s!",
			player, item, source),
		Fields: []models.Field{
			{Name: "Source", Value: source},
			{Name: "Total Value", Value: formatValue(value)},
		},
	}
}

func (s *Seeder) levelEvent() models.Event {
	player := gofakeit.Username()
	skill := skills[s.rng.Intn(len(skills))]
	level := 2 + s.rng.Intn(98)

	return models.Event{
		Author:      "drop-watcher",
		Title:       fmt.Sprintf("%s levelled up", player),
		Description: fmt.Sprintf("%s has levelled %s to %d.", player, skill, level),
	}
}

// randomValue skews low: most drops are small, a few are huge.
func (s *Seeder) randomValue() int64 {
	switch s.rng.Intn(10) {
	case 0:
		return int64(s.rng.Intn(500)+1) * 1_000_000
	case 1, 2:
		return int64(s.rng.Intn(900)+100) * 10_000
	default:
		return int64(s.rng.Intn(100_000) + 1)
	}
}

func formatValue(v int64) string {
	switch {
	case v >= 1_000_000_000:
		return fmt.Sprintf("%.1fb gp", float64(v)/1_000_000_000)
	case v >= 1_000_000:
		return fmt.Sprintf("%.1fm gp", float64(v)/1_000_000)
	case v >= 10_000:
		return fmt.Sprintf("%.1fk gp", float64(v)/1_000)
	default:
		return fmt.Sprintf("%d gp", v)
	}
}
