package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mon5termatt/apc-web/internal/collector"
	"github.com/mon5termatt/apc-web/internal/config"
	"github.com/mon5termatt/apc-web/internal/logger"
	"github.com/mon5termatt/apc-web/internal/nis"
	"github.com/mon5termatt/apc-web/internal/pid"
	"github.com/mon5termatt/apc-web/internal/reading"
	"github.com/mon5termatt/apc-web/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel, logger.IsService()); err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug().Msg("Config loaded")

	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("failed to acquire pid file")
	}
	defer pid.Remove()

	// Store initialization failure is the one unrecoverable condition;
	// everything past this point retries cycle by cycle.
	st, err := store.New(store.Config{DBPath: cfg.Database})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close store")
		}
	}()

	client := nis.NewClient(nis.Config{
		Host:    cfg.Host,
		Port:    cfg.Port,
		Timeout: time.Duration(cfg.Timeout) * time.Second,
	})

	coll := collector.New(client, st, collector.Config{
		Interval:  time.Duration(cfg.Interval) * time.Second,
		Retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		Simulate:  cfg.Simulate,
		Hardware: reading.Hardware{
			RatedVA:        cfg.UPSVA,
			RatedWatts:     cfg.UPSWatts,
			PowerFactor:    cfg.PowerFactor,
			NominalVoltage: cfg.NominalVoltage,
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := coll.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("error in collector loop")
	}

	logger.Info().Msg("Exiting...")
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
