package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const DefaultClusters = `{"0-9": 1000, "10-11": 100, "12-13": 10}`

type InvalidationCfg struct {
	Enabled bool
	Topic   string
	Brokers string
	GroupID string
}

type FeatureCfg struct {
	GardenStaticFile       bool
	TextFilter             bool
	PanToNearest           bool
	TextFilterSpatialBound bool
	DiscardStaleResults    bool
}

type Config struct {
	Addr       string
	LogLevel   string
	LogConsole bool
	LogSampleN int

	StoreEnabled bool
	DBPath       string
	DataDir      string
	Clusters     string

	DefaultLon  float64
	DefaultLat  float64
	DefaultZoom int

	QueryTimeout    time.Duration
	StaticCacheSize int
	SessionTTL      time.Duration
	SessionMax      int

	RedisAddr      string
	RedisPoolSize  int
	PopupCacheTTL  time.Duration
	CacheOpTimeout time.Duration

	Features     FeatureCfg
	Invalidation InvalidationCfg
}

func FromEnv() Config {
	zoom := getint("DEFAULT_ZOOM", 13)
	if zoom < 0 {
		zoom = 0
	}
	return Config{
		Addr:       getenv("ADDR", ":8090"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),
		LogSampleN: getint("LOG_SAMPLE_N", 0),

		StoreEnabled: getbool("STORE_ENABLED", true),
		DBPath:       getenv("DB_PATH", "botanitours.sqlite"),
		DataDir:      getenv("DATA_DIR", "data"),
		Clusters:     getenv("CLUSTERS", DefaultClusters),

		// Dumfries
		DefaultLon:  getfloat("DEFAULT_LON", -3.607),
		DefaultLat:  getfloat("DEFAULT_LAT", 55.072),
		DefaultZoom: zoom,

		QueryTimeout:    getduration("QUERY_TIMEOUT", 5*time.Second),
		StaticCacheSize: getint("STATIC_CACHE_SIZE", 32),
		// idle time; every request to a session renews it
		SessionTTL:      getduration("SESSION_TTL", 30*time.Minute),
		SessionMax:      getint("SESSION_MAX", 10000),

		// empty disables the popup cache
		RedisAddr:      getenv("REDIS_ADDR", ""),
		RedisPoolSize:  getint("REDIS_POOL_SIZE", 16),
		PopupCacheTTL:  getduration("POPUP_CACHE_TTL", time.Hour),
		CacheOpTimeout: getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),

		Features: FeatureCfg{
			GardenStaticFile:       getbool("GARDEN_STATIC_FILE", true),
			TextFilter:             getbool("TEXT_FILTER", true),
			PanToNearest:           getbool("PAN_TO_NEAREST", true),
			TextFilterSpatialBound: getbool("TEXT_FILTER_SPATIAL_BOUND", false),
			DiscardStaleResults:    getbool("DISCARD_STALE_RESULTS", true),
		},
		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Topic:   getenv("KAFKA_TOPIC", "botanitours-invalidation"),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getenv("KAFKA_GROUP_ID", "mapserver"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}
