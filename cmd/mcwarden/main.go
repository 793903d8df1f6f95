// MCWarden - Minecraft Server Manager & Chat Bridge
//
// MCWarden administers a Minecraft server over the RCON wire protocol
// on behalf of a conversational agent, mirrors in-game chat back through
// a companion log-tailing process (mclogd), exposes a REST API for
// remote management, and publishes real-time telemetry via MQTT.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcwarden-project/mcwarden/internal/api"
	"github.com/mcwarden-project/mcwarden/internal/cli"
	"github.com/mcwarden-project/mcwarden/internal/command"
	"github.com/mcwarden-project/mcwarden/internal/config"
	"github.com/mcwarden-project/mcwarden/internal/db"
	"github.com/mcwarden-project/mcwarden/internal/events"
	"github.com/mcwarden-project/mcwarden/internal/gateway"
	"github.com/mcwarden-project/mcwarden/internal/health"
	"github.com/mcwarden-project/mcwarden/internal/logmon"
	"github.com/mcwarden-project/mcwarden/internal/permission"
	"github.com/mcwarden-project/mcwarden/internal/rcon"
	"github.com/mcwarden-project/mcwarden/internal/telemetry"
	"github.com/mcwarden-project/mcwarden/internal/util"
)

const (
	AppName    = "MCWarden"
	AppVersion = "1.0.0"
	Banner     = `
  __  __  _____ _    _               _
 |  \/  |/ ____| |  | |             | |
 | \  / | |    | |  | | __ _ _ __ __| | ___ _ __
 | |\/| | |    | |/\| |/ _' | '__/ _' |/ _ \ '_ \
 | |  | | |____|  /\  | (_| | | | (_| |  __/ | | |
 |_|  |_|\_____|_/  \_|\__,_|_|  \__,_|\___|_| |_|
                                              v%s
 Minecraft Server Manager & Chat Bridge
`
)

func main() {
	// Print banner
	fmt.Printf(Banner, AppVersion)
	fmt.Println()

	// Initialize logger with defaults first (will be reconfigured after config load)
	if err := util.InitLogger(util.DefaultLogConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info().
		Str("version", AppVersion).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Int("cpus", runtime.NumCPU()).
		Msg("starting MCWarden")

	// Load configuration
	cfg, err := config.Load(config.DefaultConfigDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Re-initialize logger with config-based settings
	logCfg := util.LogConfig{
		Level:      cfg.GetApplicationData().Logging.Level,
		Directory:  cfg.GetApplicationData().Logging.Directory,
		MaxSizeMB:  cfg.GetApplicationData().Logging.MaxSizeMB,
		MaxBackups: cfg.GetApplicationData().Logging.MaxBackups,
		Console:    true,
	}
	if err := util.InitLogger(logCfg); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}

	// Validate configuration
	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}

		if cfg.IsFirstRun() {
			log.Info().Msg("first run detected, launching setup wizard")
			if err := config.RunSetupWizard(cfg); err != nil {
				log.Fatal().Err(err).Msg("setup wizard failed")
			}
		} else {
			log.Fatal().Msg("configuration validation failed, please fix the errors above")
		}
	}

	// Log system info
	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Str("cpu", sysInfo.CPUModel).
		Int("cores", sysInfo.CPUCores).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("system information")

	// Create root context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize core components
	eventBus := events.NewEventBus()
	mc := cfg.GetMinecraft()
	appData := cfg.GetApplicationData()

	session := rcon.NewSession(mc.RconHost, mc.RconPort, mc.RconPassword, eventBus, rcon.Options{
		ExecTimeout: time.Duration(mc.ExecTimeoutSec) * time.Second,
		GraceRead:   time.Duration(mc.GraceReadMillis) * time.Millisecond,
	})
	dispatcher := command.NewDispatcher(session, eventBus)
	gate := permission.NewAllowList(mc.ChatAdminIDs, mc.MinecraftAdminIDs)

	// Audit trail
	var audit *db.AuditStore
	if appData.Audit.Enabled {
		audit, err = db.NewAuditStore(appData.Audit.DatabasePath)
		if err != nil {
			log.Warn().Err(err).Msg("failed to open audit database, audit disabled")
		} else {
			audit.Attach(eventBus)
			defer audit.Close()
		}
	}

	// Log monitor bridge
	var bridge *logmon.Bridge
	if mc.EnableLogMonitor {
		bridge = logmon.NewBridge(logmon.Options{
			Host:              mc.LogServerHost,
			Port:              mc.LogServerPort,
			WakeWords:         mc.WakeWords,
			BotNickname:       mc.BotNickname,
			ChatResponse:      mc.EnableChatResponse,
			DangerousCommands: mc.EnableDangerousCommands,
		}, dispatcher, eventBus)
	}

	// Inbound message boundary. The natural-language resolver is an
	// external collaborator; until one is attached, in-game requests get
	// a clear "no resolver" failure rather than a silent drop.
	gw := gateway.New(cfg, gate, nil, dispatcher)

	// REST API
	var apiServer *api.Server
	if appData.API.Enabled {
		apiServer = api.NewServer(cfg, eventBus, api.Deps{
			Session:    session,
			Dispatcher: dispatcher,
			Bridge:     bridge,
			Gate:       gate,
			Audit:      audit,
		})
	}

	// Health check manager
	healthMgr := health.NewManager(cfg, eventBus, session, bridge, audit)

	// MQTT telemetry
	var mqttHandler *telemetry.MQTTHandler
	if appData.MQTT.Enabled {
		mqttHandler, err = telemetry.NewMQTTHandler(cfg, eventBus)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		}
	}

	// Interactive CLI
	cliHandler := cli.NewCLI(cfg, eventBus, session, dispatcher, bridge, gate)

	// ---------------------------------------------------------------
	// Launch all concurrent tasks
	// ---------------------------------------------------------------
	var wg sync.WaitGroup
	errCh := make(chan error, 10)

	// Task 1: Establish the RCON link. Non-fatal: the session reconnects
	// transparently on the next command if this fails.
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Str("addr", session.Addr()).Msg("connecting to RCON")
		if err := session.Connect(ctx); err != nil {
			log.Warn().Err(err).Msg("initial RCON connection failed (will retry on next command)")
		}
	}()

	// Task 2: Log monitor bridge + chat command loop
	if bridge != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bridge.Run(ctx)
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			gw.RunBridgeLoop(ctx, bridge)
		}()
	}

	// Task 3: REST API server
	if apiServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Int("port", appData.API.Port).Msg("starting REST API server")
			if err := apiServer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("API server failed")
				errCh <- fmt.Errorf("api server: %w", err)
			}
		}()
	}

	// Task 4: Health check manager
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("starting health check manager")
		healthMgr.Start(ctx)
	}()

	// Task 5: MQTT telemetry
	if mqttHandler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Msg("starting MQTT telemetry")
			if err := mqttHandler.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("MQTT telemetry failed")
			}
		}()
	}

	// Task 6: Interactive CLI
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("starting interactive CLI")
		cliHandler.Start(ctx)
	}()

	// ---------------------------------------------------------------
	// Graceful shutdown handling
	// ---------------------------------------------------------------
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// The CLI's quit command requests shutdown through the event bus.
	shutdownCh := make(chan struct{})
	var shutdownOnce sync.Once
	eventBus.Subscribe(events.EventShutdown, "main.shutdown", func(ctx context.Context, e events.Event) error {
		if e.Source != "main" {
			shutdownOnce.Do(func() { close(shutdownCh) })
		}
		return nil
	})

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-errCh:
		log.Error().Err(err).Msg("critical error, initiating shutdown")
	case <-shutdownCh:
		log.Info().Msg("shutdown requested")
	}

	log.Info().Msg("initiating graceful shutdown...")

	// Cancel the root context to signal all goroutines
	cancel()

	// Emit shutdown event
	eventBus.Emit(context.Background(), events.Event{
		Type:   events.EventShutdown,
		Source: "main",
	})

	// Wait for all goroutines with timeout
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(30 * time.Second):
		log.Warn().Msg("shutdown timed out after 30 seconds, forcing exit")
	}

	session.Close()
	eventBus.Stop()

	log.Info().Msg("MCWarden stopped")
}
