// mclogd - MCWarden companion log server.
//
// mclogd runs next to the Minecraft server process, tails its
// logs/latest.log and streams every appended line over TCP to connected
// MCWarden bridges. It exists because the bot usually runs on a
// different host than the game server and has no filesystem access to
// the log directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcwarden-project/mcwarden/internal/config"
	"github.com/mcwarden-project/mcwarden/internal/logserve"
	"github.com/mcwarden-project/mcwarden/internal/util"
)

func main() {
	var (
		logPath = flag.String("log", "", "path to the Minecraft server log file (e.g. /srv/minecraft/logs/latest.log)")
		host    = flag.String("host", "127.0.0.1", "listen address (0.0.0.0 to allow remote bridges)")
		port    = flag.Int("port", config.DefaultLogServerPort, "listen port")
		debug   = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	if *logPath == "" {
		fmt.Fprintln(os.Stderr, "usage: mclogd -log <path to latest.log> [-host addr] [-port n]")
		os.Exit(2)
	}

	logCfg := util.DefaultLogConfig()
	if *debug {
		logCfg.Level = zerolog.LevelDebugValue
	}
	if err := util.InitLogger(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if !util.FileExists(*logPath) {
		log.Fatal().Str("file", *logPath).Msg("log file does not exist")
	}

	if *host == "0.0.0.0" {
		// Tell the operator which address remote bridges should dial.
		if ip, err := util.GetLocalIP(); err == nil {
			log.Info().Str("reachable_at", fmt.Sprintf("%s:%d", ip, *port)).Msg("listening on all interfaces")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	srv := logserve.NewServer(*host, *port, logserve.NewTailer(*logPath))
	if err := srv.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("log server failed")
	}

	log.Info().Msg("mclogd stopped")
}
