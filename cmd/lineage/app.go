package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/alem-hub/lineage/config"
	"github.com/alem-hub/lineage/internal/application/eventhandler"
	"github.com/alem-hub/lineage/internal/application/scenario"
	"github.com/alem-hub/lineage/internal/domain/shared"
	"github.com/alem-hub/lineage/internal/infrastructure/messaging"
	"github.com/alem-hub/lineage/internal/infrastructure/output"
	"github.com/alem-hub/lineage/internal/infrastructure/persistence/postgres"
	redisstore "github.com/alem-hub/lineage/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/lineage/internal/interface/console"
	"github.com/alem-hub/lineage/pkg/circuitbreaker"
	"github.com/alem-hub/lineage/pkg/logger"
	"github.com/alem-hub/lineage/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION
// ══════════════════════════════════════════════════════════════════════════════

// app связывает прогон с инфраструктурой: консолью, шиной событий
// и необязательными хранилищами.
type app struct {
	cfg   *config.Config
	runID string

	log  *logger.Logger
	slog *slog.Logger

	console    *console.Console
	bus        eventBus
	dispatcher *messaging.Dispatcher
	stats      *eventhandler.ProgressStats
	guards     []*output.Guarded

	// Необязательные хранилища; nil, если выключены или недоступны.
	redis     *goredis.Client
	summaries *redisstore.RunSummaries
	db        *postgres.Connection
	runs      *postgres.RunRepository
}

// eventBus - общая часть InMemoryEventBus и RedisEventBus.
type eventBus interface {
	shared.EventBus
	Close() error
	Metrics() *messaging.EventBusMetrics
}

func newApp(ctx context.Context, cfg *config.Config, w io.Writer) (*app, error) {
	a := &app{
		cfg:   cfg,
		runID: uuid.NewString(),
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	a.log = logger.New(logger.Options{
		Output: os.Stderr,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
		Format: logger.ParseFormat(cfg.Observability.LogFormat),
	}).WithRunID(a.runID)
	a.slog = newSlog(cfg.Observability).With(logger.RunIDKey, a.runID)

	a.console = console.New(w, console.WithPlain(!cfg.Features.StyledOutput()))

	// ─────────────────────────────────────────────────────────────────────────
	// 2. REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Features.NeedsRedis() {
		client, err := redisstore.NewClient(ctx, redisConfig(cfg.Redis))
		if err != nil {
			// Без Redis прогон всё равно возможен.
			a.log.Warn("redis unavailable, continuing without it", logger.Err(err))
		} else {
			a.redis = client
			a.summaries = redisstore.NewRunSummaries(client)
			a.log.Info("redis connected", logger.String("addr", cfg.Redis.Host))
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. POSTGRESQL (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Features.PostgresTranscript() {
		conn, err := connectDatabase(ctx, cfg.Database)
		if err == nil {
			err = postgres.NewMigrator(conn).Migrate(ctx)
			if err != nil {
				conn.Close()
			}
		}
		if err != nil {
			a.log.Warn("database unavailable, continuing without it", logger.Err(err))
		} else {
			a.db = conn
			a.runs = postgres.NewRunRepository(conn)
			a.log.Info("database connected")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ШИНА СОБЫТИЙ
	// ─────────────────────────────────────────────────────────────────────────
	local := messaging.DefaultInMemoryEventBusConfig()
	local.Logger = a.slog

	if cfg.Features.RedisEvents() && a.redis != nil {
		bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         a.redis,
			ChannelName:    cfg.Redis.EventsChannel,
			RunID:          a.runID,
			LocalBusConfig: local,
			Logger:         a.slog,
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("event bus: %w", err)
		}
		a.bus = bus
	} else {
		a.bus = messaging.NewInMemoryEventBus(local)
	}

	a.stats = eventhandler.NewProgressStats(a.slog)
	if err := a.stats.Register(a.bus); err != nil {
		a.close()
		return nil, fmt.Errorf("register stats: %w", err)
	}

	// Запись событий в БД идёт через диспетчер: повторы и очередь отказов.
	if a.db != nil {
		dcfg := messaging.DefaultDispatcherConfig()
		dcfg.Logger = a.slog
		a.dispatcher = messaging.NewDispatcher(dcfg)
		a.dispatcher.Use(messaging.RecoveryMiddleware(a.slog))
		a.dispatcher.Use(messaging.LoggingMiddleware(a.slog))

		err := a.dispatcher.Register("", "postgres_event_store", postgres.NewEventStore(a.db, a.runID).Handle)
		if err == nil {
			err = a.dispatcher.Attach(a.bus)
		}
		if err != nil {
			a.close()
			return nil, fmt.Errorf("register event store: %w", err)
		}
	}

	return a, nil
}

// sink собирает вывод: консоль плюс защищённые удалённые хранилища.
func (a *app) sink() (shared.Sink, error) {
	sinks := output.Fanout{a.console}

	onState := func(name string, from, to circuitbreaker.State) {
		a.log.Warn("transcript store state changed",
			logger.Component(name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	}
	onRetry := func(attempt int, err error, delay time.Duration) {
		a.log.Debug("retrying transcript write", logger.Int("attempt", attempt), logger.Err(err), logger.Duration("delay", delay))
	}

	if a.redis != nil && a.cfg.Features.RedisTranscript() {
		stream, err := redisstore.NewTranscriptStream(a.redis, a.runID)
		if err != nil {
			return nil, err
		}
		g := output.NewGuarded("redis_transcript", stream,
			circuitbreaker.StoreBreaker("redis_transcript", onState),
			retry.RedisRetrier(onRetry), a.log)
		a.guards = append(a.guards, g)
		sinks = append(sinks, g)
	}

	if a.db != nil {
		repo := postgres.NewTranscriptRepository(a.db, a.runID)
		g := output.NewGuarded("postgres_transcript", repo,
			circuitbreaker.StoreBreaker("postgres_transcript", onState),
			retry.DatabaseRetrier(onRetry), a.log)
		a.guards = append(a.guards, g)
		sinks = append(sinks, g)
	}

	return sinks, nil
}

// play проигрывает сценарий и записывает итог в хранилища.
func (a *app) play(ctx context.Context, file *scenario.File) (*scenario.Report, error) {
	out, err := a.sink()
	if err != nil {
		return nil, err
	}

	sim, err := scenario.Build(file, scenario.Deps{
		Out:               out,
		Publisher:         a.bus,
		Logger:            a.log,
		StrictMentorRanks: a.cfg.Features.StrictMentorRanks(),
	})
	if err != nil {
		return nil, err
	}

	if a.runs != nil {
		if err := a.runs.Start(ctx, a.runID, file.Name, sim.Seed()); err != nil {
			a.log.Warn("failed to record run start", logger.Err(err))
		}
	}

	rep, runErr := sim.Run(ctx)

	a.finish(rep, runErr)
	return rep, runErr
}

// finish пишет итог прогона. Контекст прогона мог быть отменён,
// поэтому используется отдельный с таймаутом.
func (a *app) finish(rep *scenario.Report, runErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.App.ShutdownTimeout)
	defer cancel()

	status := postgres.RunCompleted
	if runErr != nil {
		status = postgres.RunFailed
	}

	if a.runs != nil {
		if err := a.runs.Finish(ctx, a.runID, status, rep.Steps, rep.Declined()); err != nil {
			a.log.Warn("failed to record run finish", logger.Err(err))
		}
	}
	if a.summaries != nil {
		err := a.summaries.Save(ctx, a.runID, redisstore.RunSummary{
			Scenario: rep.Scenario,
			Seed:     rep.Seed,
			Steps:    rep.Steps,
			Declined: rep.Declined(),
			Status:   string(status),
		})
		if err != nil {
			a.log.Warn("failed to save run summary", logger.Err(err))
		}
	}

	for _, g := range a.guards {
		if n := g.Dropped(); n > 0 {
			a.log.Warn("transcript lines dropped", logger.Component(g.String()), logger.Int("dropped", n))
		}
	}

	if a.dispatcher != nil {
		if n := a.dispatcher.DeadLetterQueue().Size(); n > 0 {
			a.log.Warn("events not stored", logger.Int("dead_letters", n))
		}
	}

	a.stats.LogSummary()
	if m := a.bus.Metrics(); m != nil {
		snap := m.Snapshot()
		a.log.Debug("event bus metrics", logger.Any("metrics", snap))
	}
	a.log.Info("run stored",
		logger.String("scenario", rep.Scenario),
		logger.Seed(rep.Seed),
		logger.String("status", string(status)),
	)
}

func (a *app) close() {
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.log.Warn("failed to close event bus", logger.Err(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// REPLAY
// ══════════════════════════════════════════════════════════════════════════════

func replay(cmd *cobra.Command, cfg *config.Config, from, runID string) error {
	ctx := cmd.Context()
	out := console.New(cmd.OutOrStdout(), console.WithPlain(!cfg.Features.StyledOutput()))

	var lines []shared.Line
	switch strings.ToLower(from) {
	case "redis":
		client, err := redisstore.NewClient(ctx, redisConfig(cfg.Redis))
		if err != nil {
			return err
		}
		defer client.Close()

		streamed, err := redisstore.Replay(ctx, client, runID)
		if err != nil {
			return err
		}
		for _, l := range streamed {
			lines = append(lines, shared.Line{Kind: shared.LineKind(l.Kind), Subject: l.Subject, Text: l.Text})
		}
	case "postgres":
		conn, err := connectDatabase(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer conn.Close()

		lines, err = postgres.NewTranscriptRepository(conn, runID).Lines(ctx, runID)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown transcript store %q", from)
	}

	if len(lines) == 0 {
		return errors.New("no transcript stored for run " + runID)
	}
	for _, l := range lines {
		if err := out.Emit(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func redisConfig(c config.RedisConfig) redisstore.Config {
	rc := redisstore.DefaultConfig()
	rc.Host = c.Host
	rc.Port = c.Port
	rc.Password = c.Password
	rc.DB = c.DB
	rc.PoolSize = c.PoolSize
	rc.DialTimeout = c.DialTimeout
	return rc
}

func connectDatabase(ctx context.Context, c config.DatabaseConfig) (*postgres.Connection, error) {
	if c.URL != "" {
		return postgres.NewConnectionFromURL(ctx, c.URL)
	}
	pc := postgres.DefaultConfig()
	pc.Host = c.Host
	pc.Port = c.Port
	pc.User = c.User
	pc.Password = c.Password
	pc.Database = c.Name
	pc.SSLMode = c.SSLMode
	pc.MaxConns = c.MaxConns
	pc.ConnectTimeout = c.QueryTimeout
	return postgres.NewConnection(ctx, pc)
}

func newSlog(c config.ObservabilityConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	case "off":
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	default:
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
