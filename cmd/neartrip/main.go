// Neartrip - a location-aware NTRIP proxy.
//
// A GNSS rover connects to neartrip as if it were an ordinary NTRIP
// caster. The proxy watches the rover's GPGGA position reports, selects
// the nearest configured base station, opens an NTRIP client session to
// that caster, and pipes the RTCM correction stream back. As the rover
// moves, the upstream station is swapped transparently.
//
// Usage:
//
//	./neartrip -config config.json
//
// Flags:
//
//	-config: Path to the JSON configuration file (default: config.json)
//	-version: Show version information
//
// Configuration:
//
//	A missing config file is created with defaults on first start and
//	reloaded automatically whenever it changes on disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kroegman/neartrip/internal/admin"
	"github.com/kroegman/neartrip/internal/config"
	"github.com/kroegman/neartrip/internal/logger"
	"github.com/kroegman/neartrip/internal/nmealog"
	"github.com/kroegman/neartrip/internal/registry"
	"github.com/kroegman/neartrip/internal/session"
)

var (
	version = "dev" // set during build
)

func main() {
	configPath := flag.String("config", "config.json", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("neartrip %s\n", version)
		os.Exit(0)
	}

	store, err := config.NewStore(*configPath, logger.Nop())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := store.Get()

	appLog := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer appLog.Sync()
	store.SetLogger(appLog)

	history, err := registry.NewHistory(cfg.HistoryDatabase)
	if err != nil {
		appLog.Fatalf("Failed to open history database: %v", err)
	}
	defer history.Close()

	reg := registry.NewRegistry(history)

	nmeaLog, err := nmealog.New(cfg.NMEALog, cfg.NMEADir)
	if err != nil {
		appLog.Fatalf("Failed to open NMEA log: %v", err)
	}
	defer nmeaLog.Close()

	watcher, err := config.NewWatcher(store, appLog)
	if err != nil {
		appLog.Warnf("Config watcher disabled: %v", err)
	} else {
		defer watcher.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := registry.NewSweeper(reg, history, cfg.NMEADir, appLog,
		cfg.SweepEvery(), cfg.Retention())
	sweeper.Start(ctx)
	defer sweeper.Stop()

	listener := session.NewListener(store, reg, nmeaLog, appLog, nil)
	if err := listener.Listen(); err != nil {
		appLog.Fatalf("Failed to start NTRIP listener: %v", err)
	}
	go func() {
		if err := listener.Serve(); err != nil {
			appLog.Fatalf("NTRIP listener failed: %v", err)
		}
	}()

	var adminSrv *admin.Server
	if cfg.AdminPort != 0 {
		adminSrv = admin.New(store, reg, history, appLog, version)
		go func() {
			if err := adminSrv.Start(); err != nil {
				appLog.Fatalf("Admin server failed: %v", err)
			}
		}()
	}

	appLog.Infof("neartrip %s started", version)
	appLog.Infof("NTRIP: %s:%d mount /%s", cfg.Interface, cfg.Port, cfg.MountPoint)
	if cfg.AdminPort != 0 {
		appLog.Infof("Admin: :%d", cfg.AdminPort)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	appLog.Info("shutting down gracefully")
	cancel()
	listener.Close()
	if adminSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		adminSrv.Stop(shutdownCtx)
	}
}
