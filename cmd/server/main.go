package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/playperu/geohunt/internal/admin"
	"github.com/playperu/geohunt/internal/catalog"
	"github.com/playperu/geohunt/internal/clock"
	"github.com/playperu/geohunt/internal/config"
	"github.com/playperu/geohunt/internal/database"
	"github.com/playperu/geohunt/internal/events"
	"github.com/playperu/geohunt/internal/handler/health"
	"github.com/playperu/geohunt/internal/hunt"
	"github.com/playperu/geohunt/internal/metrics"
	"github.com/playperu/geohunt/internal/migrations"
	"github.com/playperu/geohunt/internal/progression"
	"github.com/playperu/geohunt/internal/server"
	"github.com/playperu/geohunt/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- Datasets ---
	reg, err := catalog.LoadBuiltin(cfg.ShuffleChallenges)
	if err != nil {
		return fmt.Errorf("loading datasets: %w", err)
	}
	if err := reg.Validate(catalog.Limits{
		Total:    cfg.TotalChallenges,
		Pictures: cfg.PictureChallenges,
		Riddles:  cfg.RiddleChallenges,
	}); err != nil {
		return fmt.Errorf("validating datasets: %w", err)
	}
	if _, err := reg.Get(cfg.DefaultDataset); err != nil {
		return fmt.Errorf("default dataset: %w", err)
	}
	logger.Info("datasets loaded", "ids", reg.IDs(), "shuffle", cfg.ShuffleChallenges)

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	st := store.New(db)
	clk := clock.System{}
	if err := seed(ctx, st, cfg, clk, logger); err != nil {
		return err
	}

	// --- Events ---
	broker := events.NewBroker()
	var (
		publisher events.Publisher = broker
		relay     *events.RedisRelay
		rdb       *redis.Client
	)
	if cfg.RedisURL != "" {
		rdb, err = openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		relay = events.NewRedisRelay(rdb, events.DefaultChannel, broker, logger)
		publisher = relay
		logger.Info("connected to redis")
	}

	// --- Services ---
	collector := metrics.New(prometheus.DefaultRegisterer)
	engine := progression.New(st, reg, progression.Config{
		MaxSkips:    cfg.MaxSkips,
		SkipPenalty: cfg.SkipPenalty,
		Cooldown:    cfg.Cooldown,
		MaxRetries:  cfg.CASMaxRetries,
	}, logger, progression.WithMetrics(collector), progression.WithPublisher(publisher))
	svc := admin.New(st, reg, admin.Config{
		PreservedTeams: cfg.PreservedTeams,
		MaxRetries:     cfg.CASMaxRetries,
	}, logger, admin.WithMetrics(collector), admin.WithPublisher(publisher))

	checks := map[string]health.Checker{"sqlite": health.CheckFunc(st.Ping)}
	if rdb != nil {
		checks["redis"] = health.CheckFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, server.Deps{
		Logger:     logger,
		Store:      st,
		Engine:     engine,
		Admin:      svc,
		Broker:     broker,
		Clock:      clk,
		Metrics:    collector,
		Gatherer:   prometheus.DefaultGatherer,
		SPADir:     cfg.SPADir,
		LoginRate:  rate.Limit(cfg.LoginRate),
		LoginBurst: cfg.LoginBurst,
	}, func(r chi.Router) {
		r.Mount("/healthz", health.NewHandler(logger, checks).Routes())
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	if relay != nil {
		g.Go(func() error {
			return relay.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

// seed creates the settings document and the admin account on first start.
func seed(ctx context.Context, st *store.Store, cfg *config.Config, clk clock.Source, logger *slog.Logger) error {
	settings, err := st.EnsureSettings(ctx, hunt.Settings{
		DatasetID: cfg.DefaultDataset,
		Clock: clock.Settings{
			StartAt:  clk.Now(),
			Duration: cfg.DefaultGameDuration,
			Active:   true,
		},
	})
	if err != nil {
		return fmt.Errorf("seeding settings: %w", err)
	}
	logger.Info("game settings", "dataset", settings.DatasetID,
		"start", settings.Clock.StartAt, "duration", settings.Clock.Duration, "paused", settings.Clock.Paused)

	if cfg.AdminPasswordHash == "" {
		logger.Warn("ADMIN_PASSWORD_HASH not set, admin account not seeded")
		return nil
	}
	created, err := st.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPasswordHash)
	if err != nil {
		return fmt.Errorf("seeding admin: %w", err)
	}
	if created {
		logger.Info("admin account created", "email", cfg.AdminEmail)
	}
	return nil
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}
