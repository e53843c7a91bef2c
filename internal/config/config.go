package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Defaults for the timing values. Each can be overridden through the
// environment with a Go duration ("8s") or a plain number of milliseconds.
const (
	DefaultGPSTimeout        = 8000 * time.Millisecond
	DefaultQuickGPSTimeout   = 3500 * time.Millisecond
	DefaultDatasetTimeout    = 5000 * time.Millisecond
	DefaultGeocodeTimeout    = 4500 * time.Millisecond
	DefaultManualLock        = 30000 * time.Millisecond
	DefaultGeocodeCacheTTL   = 10 * time.Minute
	DefaultSessionIdleExpiry = 2 * time.Hour

	DefaultGeocodeURL = "https://api.bigdatacloud.net/data/reverse-geocode-client"
)

// Config holds environment-based settings
type Config struct {
	Environment   string
	ServerAddress string
	SessionSecret string
	LogLevel      string

	// dataset source: exactly one of these is used, in this order
	DatasetURL  string
	DatasetFile string
	DatabaseURL string

	MigrationsPath string

	GeocodeURL string

	// PositionFile, when set, gives every session a fixed "lat,lon" position
	// instead of positions reported by the widget.
	PositionFile string

	RedisAddress  string
	RedisUsername string
	RedisPassword string

	MQTTBrokerURL string

	AdminUser         string
	AdminPasswordHash string

	UseSpaces       bool
	ExportDir       string
	SpacesEndpoint  string
	SpacesRegion    string
	SpacesBucket    string
	SpacesCDNURL    string
	SpacesAccessKey string
	SpacesSecretKey string

	GPSTimeout        time.Duration // continuous watch and button probe
	QuickGPSTimeout   time.Duration // one-shot probe when tracking starts
	DatasetTimeout    time.Duration
	GeocodeTimeout    time.Duration
	ManualLock        time.Duration // how long a dropdown choice beats geolocation
	GeocodeCacheTTL   time.Duration
	SessionIdleExpiry time.Duration
}

// Load reads configuration from environment variables, after merging any
// .env file found in the working directory.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("[config] could not read .env")
	}

	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}

	cfg := &Config{
		Environment:   getenv("APP_ENV", "production"),
		ServerAddress: getenv("SERVER_ADDRESS", ":8080"),
		SessionSecret: secret,
		LogLevel:      getenv("LOG_LEVEL", "info"),

		DatasetURL:  os.Getenv("DATASET_URL"),
		DatasetFile: os.Getenv("DATASET_FILE"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		MigrationsPath: getenv("MIGRATIONS_PATH", "./migrations"),

		GeocodeURL: getenv("GEOCODE_URL", DefaultGeocodeURL),

		PositionFile: os.Getenv("POSITION_FILE"),

		RedisAddress:  os.Getenv("REDIS_ADDRESS"),
		RedisUsername: os.Getenv("REDIS_USERNAME"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		MQTTBrokerURL: os.Getenv("MQTT_BROKER_URL"),

		AdminUser:         getenv("ADMIN_USER", "admin"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),

		UseSpaces:       os.Getenv("USE_SPACES") == "true",
		ExportDir:       getenv("EXPORT_DIR", "./exports"),
		SpacesEndpoint:  os.Getenv("SPACES_ENDPOINT"),
		SpacesRegion:    os.Getenv("SPACES_REGION"),
		SpacesBucket:    os.Getenv("SPACES_BUCKET"),
		SpacesCDNURL:    os.Getenv("SPACES_CDN_URL"),
		SpacesAccessKey: os.Getenv("SPACES_ACCESS_KEY"),
		SpacesSecretKey: os.Getenv("SPACES_SECRET_KEY"),
	}

	if cfg.DatasetURL == "" && cfg.DatasetFile == "" && cfg.DatabaseURL == "" {
		cfg.DatasetFile = "./db.json"
	}

	durations := []struct {
		env string
		dst *time.Duration
		def time.Duration
	}{
		{"GPS_TIMEOUT", &cfg.GPSTimeout, DefaultGPSTimeout},
		{"QUICK_GPS_TIMEOUT", &cfg.QuickGPSTimeout, DefaultQuickGPSTimeout},
		{"DB_TIMEOUT", &cfg.DatasetTimeout, DefaultDatasetTimeout},
		{"GEOCODE_TIMEOUT", &cfg.GeocodeTimeout, DefaultGeocodeTimeout},
		{"MANUAL_SELECTION_LOCK", &cfg.ManualLock, DefaultManualLock},
		{"GEOCODE_CACHE_TTL", &cfg.GeocodeCacheTTL, DefaultGeocodeCacheTTL},
		{"SESSION_IDLE_EXPIRY", &cfg.SessionIdleExpiry, DefaultSessionIdleExpiry},
	}
	for _, d := range durations {
		v, err := durationEnv(d.env, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// durationEnv accepts "8s"-style durations or bare milliseconds.
func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	if ms, err := strconv.Atoi(raw); err == nil {
		if ms <= 0 {
			return 0, fmt.Errorf("%s must be positive", key)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
