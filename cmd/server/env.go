package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/waqt/internal/config"
	"github.com/Nixie-Tech-LLC/waqt/internal/resolver"
)

// configureLogging sets the global level and, in development, a readable
// console writer.
func configureLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func resolverConfig(cfg *config.Config) resolver.Config {
	rc := resolver.DefaultConfig()
	rc.ProbeTimeout = cfg.GPSTimeout
	rc.QuickProbeTimeout = cfg.QuickGPSTimeout
	rc.WatchTimeout = cfg.GPSTimeout
	rc.ManualLock = cfg.ManualLock
	return rc
}
