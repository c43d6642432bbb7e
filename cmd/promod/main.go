package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"promostaking/archive"
	"promostaking/config"
	"promostaking/core"
	"promostaking/core/events"
	"promostaking/core/state"
	"promostaking/core/tick"
	"promostaking/observability/logging"
	"promostaking/observability/otel"
	"promostaking/rpc"
	"promostaking/storage"

	bolt "go.etcd.io/bbolt"
)

const (
	serviceName       = "promod"
	clockSaveInterval = time.Second
)

func main() {
	configFile := flag.String("config", "./promod.toml", "Path to the configuration file (.toml, .yaml or .yml)")
	allowMigrateFlag := flag.Bool("allow-migrate", false, "Allow starting with a mismatched state schema (manual migrations only)")
	exportEvents := flag.String("export-events", "", "Write the event archive to this Parquet file and exit")
	flag.Parse()

	if *exportEvents != "" {
		if err := exportArchive(*configFile, *exportEvents); err != nil {
			slog.Error("event export failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}
	if err := run(*configFile, *allowMigrateFlag); err != nil {
		slog.Error("promod exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configFile string, allowMigrate bool) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env := strings.TrimSpace(os.Getenv("PROMO_ENV"))
	if env == "" {
		env = cfg.Logging.Env
	}
	logger, logCloser := logging.SetupWithOptions(logging.Options{
		Service:    serviceName,
		Env:        env,
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := otel.Init(ctx, otel.Config{
		ServiceName: serviceName,
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     otel.ParseHeaders(cfg.Telemetry.Headers),
		Traces:      cfg.Telemetry.Traces,
		Metrics:     cfg.Telemetry.Metrics,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	manager := state.NewManager(db)
	if err := state.EnsureStateVersion(manager, allowMigrate || cfg.AllowMigrate); err != nil {
		return err
	}

	initializer, err := cfg.Engine.InitializerAddress()
	if err != nil {
		return fmt.Errorf("engine initializer: %w", err)
	}
	custody := cfg.Engine.CustodyAddress()

	floor, err := persistedTick(manager)
	if err != nil {
		return fmt.Errorf("read persisted tick: %w", err)
	}
	saveTick := func(height uint64) {
		if err := state.SaveTickHeight(manager, height); err != nil {
			logger.Warn("persist tick height failed", slog.Uint64("tick", height), slog.Any("error", err))
		}
	}
	ticks, runTicks, err := buildTickSource(cfg.Ticks, floor, time.Now, saveTick)
	if err != nil {
		return fmt.Errorf("tick source: %w", err)
	}

	feed := events.NewFeed()
	var emitter events.Emitter = feed
	var history rpc.HistoryStore
	if cfg.Archive.Driver != "" {
		arch, err := openArchive(cfg, logger)
		if err != nil {
			return err
		}
		defer arch.Close()
		emitter = events.MultiEmitter{feed, arch}
		history = arch
	}
	node, err := core.NewNode(core.Options{
		DB:          db,
		Ticks:       ticks,
		Custody:     custody.Raw(),
		Initializer: initializer.Raw(),
		Emitter:     emitter,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}

	genesis, err := genesisFromConfig(cfg, initializer.Raw())
	if err != nil {
		return fmt.Errorf("genesis: %w", err)
	}
	boot, err := node.Bootstrap(ctx, genesis)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if len(boot.Registered) > 0 || boot.Program != nil {
		logger.Info("genesis applied", slog.Any("tokens", boot.Registered), slog.Bool("programInitialized", boot.Program != nil))
	}

	secret := ""
	if name := strings.TrimSpace(cfg.RPC.JWTSecretEnv); name != "" {
		secret = os.Getenv(name)
	}
	if secret == "" {
		logger.Warn("admin RPC methods disabled; JWT secret not set", slog.String("env", cfg.RPC.JWTSecretEnv))
	} else {
		logger.Info("admin RPC methods enabled",
			slog.String("env", cfg.RPC.JWTSecretEnv),
			logging.MaskField("jwt_secret", secret))
	}
	maxCallAge, readTimeout, writeTimeout := cfg.RPC.Durations()
	server := rpc.NewServer(node, feed, rpc.ServerConfig{
		RateLimitPerSecond: cfg.RPC.RateLimitPerSecond,
		RateLimitBurst:     cfg.RPC.RateLimitBurst,
		MaxBodyBytes:       cfg.RPC.MaxBodyBytes,
		MaxCallAge:         maxCallAge,
		ReadTimeout:        readTimeout,
		WriteTimeout:       writeTimeout,
		Auth: rpc.AuthConfig{
			HMACSecret: secret,
			Issuer:     cfg.RPC.JWTIssuer,
			Audience:   append([]string{}, cfg.RPC.JWTAudience...),
		},
		History: history,
	}, logger)

	go runTicks(ctx)

	logger.Info("promo ledger running",
		slog.String("listen", cfg.ListenAddress),
		slog.String("custody", custody.String()),
		slog.String("initializer", initializer.String()),
		slog.String("ticks", cfg.Ticks.Source),
		slog.Uint64("tick", node.CurrentTick()))

	if err := server.Serve(ctx, cfg.ListenAddress); err != nil {
		return fmt.Errorf("rpc server: %w", err)
	}
	logger.Info("promo ledger stopped")
	return nil
}

func openArchive(cfg *config.Config, logger *slog.Logger) (*archive.Archive, error) {
	if cfg.Archive.Driver == "sqlite" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := archive.Open(cfg.Archive.Driver, cfg.ArchiveDSN())
	if err != nil {
		return nil, fmt.Errorf("open event archive: %w", err)
	}
	return archive.New(db, logger)
}

// exportArchive dumps the configured event archive without starting the node.
func exportArchive(configFile, out string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Archive.Driver == "" {
		return errors.New("event archive is not configured")
	}
	arch, err := openArchive(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer arch.Close()
	written, err := arch.ExportParquet(context.Background(), out, archive.Query{})
	if err != nil {
		return err
	}
	slog.Info("event archive exported", slog.String("path", out), slog.Int("rows", written))
	return nil
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.Database.Backend {
	case "memory":
		return storage.NewMemDB(), nil
	case "bolt":
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(cfg.DatabasePath(), &bolt.Options{Timeout: time.Second})
	case "leveldb":
		return storage.NewLevelDB(cfg.DatabasePath())
	default:
		return nil, fmt.Errorf("unsupported database backend %q", cfg.Database.Backend)
	}
}

// persistedTick returns the highest tick the node is known to have served:
// the stored tick height, or the program's last settled tick once emission
// has begun. Before the start LastRewardTick only mirrors StartTick.
func persistedTick(manager *state.Manager) (uint64, error) {
	var last uint64
	err := manager.View(func(tx *state.Tx) error {
		height, ok, err := tx.TickHeight()
		if err != nil {
			return err
		}
		if ok {
			last = height
		}
		program, ok, err := tx.PromoProgramGet()
		if err != nil || !ok {
			return err
		}
		if program.LastRewardTick > program.StartTick && program.LastRewardTick > last {
			last = program.LastRewardTick
		}
		return nil
	})
	return last, err
}

// buildTickSource returns the configured source and the loop that keeps it
// running. The loop hands every new tick to save so a restart resumes from it.
func buildTickSource(cfg config.Ticks, floor uint64, now func() time.Time, save func(uint64)) (tick.Source, func(context.Context), error) {
	if save == nil {
		save = func(uint64) {}
	}
	switch cfg.Source {
	case "clock":
		source := tick.NewMonotonic(tick.NewClock(now), floor)
		return source, tickLoop(clockSaveInterval, func() { save(source.Current()) }), nil
	case "block":
		interval, err := cfg.Interval()
		if err != nil {
			return nil, nil, err
		}
		if interval <= 0 {
			return nil, nil, errors.New("block interval must be positive")
		}
		start := cfg.StartHeight
		if floor > start {
			start = floor
		}
		counter := tick.NewCounter(start)
		return counter, tickLoop(interval, func() { save(counter.Advance(1)) }), nil
	default:
		return nil, nil, fmt.Errorf("unsupported tick source %q", cfg.Source)
	}
}

func tickLoop(interval time.Duration, step func()) func(context.Context) {
	return func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				step()
			}
		}
	}
}
