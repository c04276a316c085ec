package cli

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"

	"github.com/droprelay/droprelay/internal/delivery"
	"github.com/droprelay/droprelay/internal/seeder"
)

var (
	seedChannel  string
	seedCount    int
	seedInterval time.Duration
	seedLevels   float64
	seedSeed     int64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Publish synthetic chat events",
	Long: `Generate drop and level-up events shaped like real chat traffic and
publish them to the event stream, for local development and load tests.

Examples:
  droprelay seed --channel drops --count 500
  droprelay seed --channel drops --count 50 --interval 200ms --levels 0.5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		nc, err := nats.Connect(cfg.Gateway.URL, nats.Timeout(cfg.Gateway.ConnectTimeout))
		if err != nil {
			return fmt.Errorf("connect to gateway: %w", err)
		}
		defer nc.Close()

		js, err := jetstream.New(nc)
		if err != nil {
			return fmt.Errorf("open jetstream: %w", err)
		}

		channel := seedChannel
		if channel == "" {
			channel = cfg.Gateway.MonitoredChannel
		}
		if channel == "" {
			return fmt.Errorf("no channel: set --channel or gateway.monitored_channel")
		}

		// Seed events go to the event subjects, not the posting subjects
		pub := delivery.NewNATSSender(js, cfg.Gateway.SubjectPrefix)
		s := seeder.New(pub, seeder.Config{
			Channel:    channel,
			Count:      seedCount,
			Interval:   seedInterval,
			LevelRatio: seedLevels,
			Seed:       seedSeed,
		})

		n, err := s.Run(cmd.Context())
		if err != nil {
			return fmt.Errorf("seeding stopped after %d events: %w", n, err)
		}
		fmt.Printf("Published %d events to %s\n", n, channel)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedChannel, "channel", "", "channel to publish into (default: monitored channel)")
	seedCmd.Flags().IntVar(&seedCount, "count", 100, "number of events")
	seedCmd.Flags().DurationVar(&seedInterval, "interval", 0, "delay between events")
	seedCmd.Flags().Float64Var(&seedLevels, "levels", 0.2, "fraction of level-up events")
	seedCmd.Flags().Int64Var(&seedSeed, "seed", 0, "RNG seed (0 = time-based)")

	rootCmd.AddCommand(seedCmd)
}
