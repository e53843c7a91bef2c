package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/waqt/internal/config"
	"github.com/Nixie-Tech-LLC/waqt/internal/dataset"
	"github.com/Nixie-Tech-LLC/waqt/internal/db"
	"github.com/Nixie-Tech-LLC/waqt/internal/geo"
	"github.com/Nixie-Tech-LLC/waqt/internal/geocode"
	"github.com/Nixie-Tech-LLC/waqt/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/waqt/internal/mqtt"
	"github.com/Nixie-Tech-LLC/waqt/internal/redis"
	"github.com/Nixie-Tech-LLC/waqt/internal/session"
	"github.com/Nixie-Tech-LLC/waqt/internal/view"
)

func main() {
	if len(os.Args) > 1 {
		if err := runCommand(os.Args[1], os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	// load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	configureLogging(cfg)

	source, err := datasetSource(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("dataset source")
	}
	loader := dataset.NewLoader(source, cfg.DatasetTimeout)

	var geocoder geocode.Geocoder = geocode.NewHTTPGeocoder(cfg.GeocodeURL, cfg.GeocodeTimeout)
	if cfg.RedisAddress != "" {
		redis.InitRedis(cfg.RedisAddress, cfg.RedisUsername, cfg.RedisPassword)
		if err := redis.Ping(context.Background()); err != nil {
			log.Warn().Err(err).Msg("redis unreachable, geocode results will not be cached")
		} else {
			geocoder = geocode.NewCachedGeocoder(geocoder, redis.Cache{}, cfg.GeocodeCacheTTL)
		}
	}

	var publish func(string, view.Snapshot)
	if cfg.MQTTBrokerURL != "" {
		mqtt.SetBrokerURL(cfg.MQTTBrokerURL)
		if err := mqtt.InitMQTT("waqt-server"); err != nil {
			log.Warn().Err(err).Msg("MQTT unavailable, views will only be served over HTTP")
		}
		defer mqtt.CleanupMQTT()
		publish = publishView
	}

	var fixed geo.Source
	if cfg.PositionFile != "" {
		fixed = geo.NewFileSource(cfg.PositionFile, 0)
		log.Info().Str("file", cfg.PositionFile).Msg("sessions use a fixed position")
	}

	sessions := session.NewManager(session.Options{
		Resolver:   resolverConfig(cfg),
		Data:       loader,
		Geocoder:   geocoder,
		IdleExpiry: cfg.SessionIdleExpiry,
		Fixed:      fixed,
		Publish:    publish,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sessions.Run(ctx, time.Minute)
	go func() {
		// warm the cache; failures are retried on first use
		_, _ = loader.Load(ctx)
	}()

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	if err := RegisterRoutes(r, cfg, loader, sessions, InitStorage(cfg)); err != nil {
		log.Fatal().Err(err).Msg("failed to register routes")
	}

	srv := &http.Server{Addr: cfg.ServerAddress, Handler: r}
	go func() {
		log.Info().Str("addr", cfg.ServerAddress).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// publishView pushes a snapshot without holding up the machine; widgets
// drop snapshots older than the last Version they saw.
func publishView(sessionID string, snap view.Snapshot) {
	if !mqtt.Connected() {
		return
	}
	go func() {
		if err := mqtt.PublishView(sessionID, snap); err != nil {
			log.Debug().Err(err).Str("session", sessionID).Msg("view publish failed")
		}
	}()
}

func runCommand(name string, args []string) error {
	switch name {
	case "hash-password":
		if len(args) != 1 {
			return errors.New("usage: server hash-password <password>")
		}
		hash, err := middleware.HashPassword(args[0])
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil

	case "import-dataset":
		if len(args) != 1 {
			return errors.New("usage: server import-dataset <file.json>")
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		configureLogging(cfg)
		if err := connectDB(cfg); err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		districts, rows, err := db.ImportDataset(context.Background(), db.DB, f)
		if err != nil {
			return err
		}
		fmt.Printf("imported %d entries for %d districts\n", rows, districts)
		return nil
	}
	return fmt.Errorf("unknown command %q", name)
}
