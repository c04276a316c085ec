package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/droprelay/droprelay/internal/config"
	"github.com/droprelay/droprelay/internal/delivery"
	"github.com/droprelay/droprelay/internal/dispatcher"
	"github.com/droprelay/droprelay/internal/gateway"
	"github.com/droprelay/droprelay/internal/handlers"
	"github.com/droprelay/droprelay/internal/logging"
	"github.com/droprelay/droprelay/internal/lookup"
	"github.com/droprelay/droprelay/internal/middleware"
	"github.com/droprelay/droprelay/internal/replay"
	"github.com/droprelay/droprelay/internal/repository"
	"github.com/droprelay/droprelay/internal/rules"
	"github.com/droprelay/droprelay/internal/server"
	"github.com/droprelay/droprelay/internal/service"
	"github.com/droprelay/droprelay/internal/watermark"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay",
	Long: `Starts the relay: replays events missed while offline, then follows
the live stream, and serves the admin API.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(logger)
	ctx := context.Background()

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	provider := rules.NewProvider(repo)
	warnings, err := provider.Reload(ctx)
	if err != nil {
		return fmt.Errorf("load forwarding rules: %w", err)
	}
	for _, w := range warnings {
		logger.WarnContext(ctx, "rule configuration warning", "warning", w)
	}
	logger.InfoContext(ctx, "forwarding rules loaded", "count", len(provider.Current()))

	tracker := watermark.NewTracker(repo)
	if err := tracker.Load(ctx); err != nil {
		return err
	}
	logger.InfoContext(ctx, "watermark loaded", "watermark", tracker.Current())

	nc, err := nats.Connect(cfg.Gateway.URL, nats.Timeout(cfg.Gateway.ConnectTimeout))
	if err != nil {
		return fmt.Errorf("connect to gateway: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("open jetstream: %w", err)
	}

	source, err := gateway.NewNATSSource(ctx, js, gateway.Config{
		Stream:        cfg.Gateway.Stream,
		SubjectPrefix: cfg.Gateway.SubjectPrefix,
		BotUser:       cfg.Gateway.BotUser,
	}, logger)
	if err != nil {
		return err
	}

	sender := delivery.NewNATSSender(js, cfg.Forwarding.SubjectPrefix)
	disp := dispatcher.New(dispatcher.Config{
		MonitoredChannel: cfg.Gateway.MonitoredChannel,
		SendDelay:        cfg.Forwarding.SendDelay,
		DeleteOnForward:  cfg.Forwarding.DeleteOnForward,
	}, provider, tracker, sender, source, logger)

	// Catch-up runs to completion before the live subscription starts, so
	// the watermark has a single writer at any time.
	replayer := replay.New(source, disp, tracker, cfg.Gateway.MonitoredChannel, logger)
	if err := replayer.Run(ctx); err != nil {
		return fmt.Errorf("catch-up replay: %w", err)
	}

	stopLive := func() {}
	if cfg.Gateway.MonitoredChannel != "" {
		stopLive, err = source.Subscribe(ctx, tracker.Current(), disp.Process)
		if err != nil {
			return fmt.Errorf("subscribe to live events: %w", err)
		}
		logger.InfoContext(ctx, "following live events",
			"channel", cfg.Gateway.MonitoredChannel, "after_id", tracker.Current())
	}

	svc := service.NewService(repo, provider, tracker, buildLookup(cfg))
	handler := handlers.NewHandler(svc, logger)
	router := server.NewRouter(handler, middleware.NewAuthMiddleware(cfg.Auth.JWTSecret))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.InfoContext(ctx, "admin API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorContext(ctx, "admin server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.InfoContext(ctx, "shutting down")
	stopLive()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown admin server: %w", err)
	}

	logger.InfoContext(ctx, "stopped", "watermark", tracker.Current())
	return nil
}

// openRepository builds the configured store, running migrations first for
// Postgres.
func openRepository(ctx context.Context, cfg *config.Config) (repository.Repository, error) {
	switch cfg.Database.Type {
	case "postgres":
		connString := cfg.Database.Postgres.ConnString()

		m, err := migrate.New("file://migrations", connString)
		if err != nil {
			return nil, fmt.Errorf("initialize migrations: %w", err)
		}
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			return nil, fmt.Errorf("run migrations: %w", err)
		}

		return repository.NewPostgresRepository(ctx, connString)
	case "file", "":
		return repository.NewFileRepository(cfg.Database.StateDir)
	case "memory":
		return repository.NewInMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unknown database type %q", cfg.Database.Type)
	}
}

// buildLookup assembles the record lookup cache, or returns nil when no
// record source is configured.
func buildLookup(cfg *config.Config) *lookup.Cache {
	if cfg.Lookup.RecordSourceURL == "" {
		return nil
	}

	src := lookup.NewHTTPRecordSource(cfg.Lookup.RecordSourceURL, cfg.Lookup.Timeout)

	var store lookup.SnapshotStore = lookup.NewMemoryStore()
	if cfg.Lookup.CacheBackend == "redis" && cfg.Redis.URL != "" {
		if opts, err := redis.ParseURL(cfg.Redis.URL); err == nil {
			store = lookup.NewRedisStore(redis.NewClient(opts), cfg.Redis.KeyPrefix)
		}
	}

	return lookup.NewCache(src, store, cfg.Lookup.CacheTTL)
}
