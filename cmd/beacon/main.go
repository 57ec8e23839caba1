package main

//	@title			Beacon API
//	@version		0.1.0
//	@description	Uptime and host monitoring with notification delivery.
//	@BasePath		/api/v1

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/HerbHall/beacon/internal/agent"
	"github.com/HerbHall/beacon/internal/config"
	"github.com/HerbHall/beacon/internal/event"
	"github.com/HerbHall/beacon/internal/notify"
	"github.com/HerbHall/beacon/internal/registry"
	"github.com/HerbHall/beacon/internal/schedule"
	"github.com/HerbHall/beacon/internal/server"
	"github.com/HerbHall/beacon/internal/store"
	"github.com/HerbHall/beacon/internal/uptime"
	"github.com/HerbHall/beacon/internal/version"
	"github.com/HerbHall/beacon/internal/ws"
	"github.com/HerbHall/beacon/pkg/plugin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Println(version.Info())
		return
	}

	configPath := flag.String("config", "", "path to configuration file")
	envFile := flag.String("env-file", ".env", "optional dotenv file loaded before configuration")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Existing environment variables win over the dotenv file.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	// Load configuration (before logger, so log level/format can be configured).
	viperCfg, err := server.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := config.New(viperCfg)

	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Beacon server starting", zap.String("version", version.Short()))

	if f := viperCfg.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded",
			zap.String("component", "config"),
			zap.String("source", f),
		)
	} else {
		logger.Warn("no configuration file found, using defaults",
			zap.String("component", "config"),
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open database
	dbPath := viperCfg.GetString("database.path")
	db, err := store.New(dbPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := db.CheckVersion(ctx, version.Short()); err != nil {
		logger.Fatal("database version check failed", zap.Error(err))
	}
	logger.Info("database initialized",
		zap.String("component", "database"),
		zap.String("path", dbPath),
	)

	bus := event.NewBus(logger.Named("event"))
	reg := registry.New(logger.Named("registry"))

	// Register all plugins (compile-time composition)
	notifyMod := notify.New()
	uptimeMod := uptime.New()
	agentMod := agent.New()
	for _, m := range []plugin.Plugin{notifyMod, uptimeMod, agentMod} {
		if err := reg.Register(m); err != nil {
			logger.Fatal("failed to register plugin", zap.Error(err))
		}
	}

	if err := reg.Validate(); err != nil {
		logger.Fatal("plugin validation failed", zap.Error(err))
	}

	if err := reg.InitAll(ctx, func(name string) plugin.Dependencies {
		return plugin.Dependencies{
			Config:  cfg.Sub("plugins." + name),
			Logger:  logger.Named(name),
			Store:   db,
			Bus:     bus,
			Plugins: reg,
		}
	}); err != nil {
		logger.Fatal("failed to initialize plugins", zap.Error(err))
	}
	if err := reg.StartAll(ctx); err != nil {
		logger.Fatal("failed to start plugins", zap.Error(err))
	}

	// Periodic triggers. The tick endpoints remain available when disabled.
	schedCfg := schedule.DefaultConfig()
	if err := cfg.Sub("schedule").Unmarshal(&schedCfg); err != nil {
		logger.Fatal("invalid schedule configuration", zap.Error(err))
	}
	var sched *schedule.Scheduler
	if schedCfg.Enabled {
		sched = schedule.New(schedCfg, logger.Named("schedule"))
		for _, job := range schedule.Jobs(schedCfg, activeUptime(reg, uptimeMod), activeAgent(reg, agentMod)) {
			if err := sched.Add(job); err != nil {
				logger.Fatal("failed to schedule job", zap.Error(err))
			}
		}
		sched.Start(ctx)
	} else {
		logger.Info("scheduler disabled, ticks run only via the API", zap.String("component", "schedule"))
	}

	wsHandler := ws.NewHandler(bus, logger.Named("ws"))
	defer wsHandler.Close()

	var srvCfg server.Config
	if err := cfg.Sub("server").Unmarshal(&srvCfg); err != nil {
		logger.Fatal("invalid server configuration", zap.Error(err))
	}
	readyCheck := server.ReadinessChecker(func(ctx context.Context) error {
		return db.Ping(ctx)
	})
	srv := server.New(srvCfg, reg, logger, readyCheck, wsHandler)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("Beacon server ready", zap.String("addr", srvCfg.Addr()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	reg.StopAll(shutdownCtx)

	logger.Info("Beacon server stopped")
}

// activeUptime returns m unless the registry disabled it during Init.
func activeUptime(reg *registry.Registry, m *uptime.Module) *uptime.Module {
	if reg.IsDisabled(m.Info().Name) {
		return nil
	}
	return m
}

func activeAgent(reg *registry.Registry, m *agent.Module) *agent.Module {
	if reg.IsDisabled(m.Info().Name) {
		return nil
	}
	return m
}
