package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"podradio/internal/buildinfo"
	"podradio/internal/config"
	"podradio/internal/control"
	"podradio/internal/diagnostics"
	"podradio/internal/discovery"
	"podradio/internal/feeds"
	"podradio/internal/lifecycle"
	"podradio/internal/logging"
	"podradio/internal/player"
	"podradio/internal/remote"
	"podradio/internal/storage"
	"podradio/internal/store"
)

type selfTestOutput struct {
	Server struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"server"`
	Wiring struct {
		StorageBackend  string `json:"storage_backend"`
		AdvertiserWired bool   `json:"advertiser_wired"`
		FeedLoaderWired bool   `json:"feed_loader_wired"`
		PlaybackBackend string `json:"playback_backend"`
	} `json:"wiring"`
	Dependencies diagnostics.DependencyReport `json:"dependencies"`
}

func main() {
	configPath := flag.String("config", defaultConfigPath(), "path to the configuration file")
	selfTest := flag.Bool("self-test", false, "run dependency and wiring diagnostics then exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	diag := diagnostics.DetectDependencies()

	if *selfTest {
		out := selfTestOutput{Dependencies: diag}
		out.Server.Name = cfg.ServiceName
		out.Server.Version = buildinfo.Version
		out.Wiring.StorageBackend = cfg.StorageBackend
		out.Wiring.AdvertiserWired = true
		out.Wiring.FeedLoaderWired = true
		out.Wiring.PlaybackBackend = playbackBackend(cfg, diag)

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(out); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFile)
	if err := config.EnsureFile(*configPath); err != nil {
		logger.Warn("config_write_failed", slog.String("error", err.Error()))
	}
	logger.Info(
		"server_start",
		slog.String("service", cfg.ServiceName),
		slog.String("version", buildinfo.Version),
		slog.String("listen_addr", cfg.ListenAddr),
		slog.String("storage_backend", cfg.StorageBackend),
	)

	subStorage, closeStorage, err := openStorage(cfg)
	if err != nil {
		logger.Error("storage_open_failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeStorage()

	subStore, err := store.New(subStorage, logger)
	if err != nil {
		logger.Error("store_load_failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	playback := buildPlayback(cfg, logger)
	loader := feeds.NewLoader("podradio/" + buildinfo.Version)

	registry := remote.NewRegistry()
	dispatcher := control.NewDispatcher(subStore, playback, loader, registry, logger)

	srv := remote.New(remote.Config{
		ListenAddr:         cfg.ListenAddr,
		ServiceName:        cfg.ServiceName,
		ServiceDescription: cfg.ServiceDescription,
		ReapInterval:       cfg.ReapInterval,
		MaxLineBytes:       cfg.MaxLineBytes,
		Handler:            dispatcher,
		Registry:           registry,
		Advertiser:         discovery.NewMDNSAdvertiser(),
		Observer:           logObserver{logger: logger},
		Logger:             logger,
	})

	if err := srv.Start(); err != nil {
		logger.Error("server_start_failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	runCtx, stopSignals := signal.NotifyContext(context.Background(), lifecycle.TerminationSignals()...)
	defer stopSignals()
	<-runCtx.Done()

	logger.Info("server_stopping", slog.String("reason", "signal"))
	srv.Stop()
	_ = playback.Stop()
}

func defaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".podradio", "config.yaml")
}

func openStorage(cfg config.Config) (store.Storage, func(), error) {
	switch cfg.StorageBackend {
	case "sqlite":
		db, err := storage.OpenSQLite(cfg.StoragePath)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil
	default:
		return storage.NewJSONFile(cfg.StoragePath), func() {}, nil
	}
}

func buildPlayback(cfg config.Config, logger *slog.Logger) control.Playback {
	p, err := player.New(cfg.PlayerBinary, logger)
	if err != nil {
		logger.Warn("player_unavailable", slog.String("error", err.Error()))
		return player.Unavailable{Reason: err.Error()}
	}
	return p
}

func playbackBackend(cfg config.Config, diag diagnostics.DependencyReport) string {
	if cfg.PlayerBinary != "" {
		return cfg.PlayerBinary
	}
	if diag.MPV.Found {
		return "mpv"
	}
	if diag.FFplay.Found {
		return "ffplay"
	}
	return "none"
}

// logObserver mirrors connection events into the structured log; it stands
// in for the console callbacks a frontend would register.
type logObserver struct {
	logger *slog.Logger
}

func (o logObserver) ClientConnected(addr string) {
	o.logger.Info("observer_client_connected", slog.String("peer", addr))
}

func (o logObserver) ClientDisconnected(addr string) {
	o.logger.Info("observer_client_disconnected", slog.String("peer", addr))
}

func (o logObserver) CommandReceived(addr, line string) {
	o.logger.Debug("observer_command_received",
		slog.String("peer", addr),
		slog.String("command", strings.TrimSpace(line)),
	)
}
