package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration derived from environment variables and
// an optional config file.
type Config struct {
	HTTPPort      string
	DataDir       string
	DBPath        string
	JobQueueSize  int
	WorkerCount   int
	JobTimeoutSec int
	BackfillLimit int
	EnableWatcher bool
	StrictConfig  bool
	Map           MapConfig
}

// MapConfig captures map-page defaults and the cluster layer tuning.
type MapConfig struct {
	DefaultCrimeType string  `json:"default_crime_type" yaml:"default_crime_type"`
	DefaultYear      int     `json:"default_year" yaml:"default_year"`
	DefaultMonthFrom int     `json:"default_month_from" yaml:"default_month_from"`
	DefaultMonthTo   int     `json:"default_month_to" yaml:"default_month_to"`
	CenterLatitude   float64 `json:"center_latitude" yaml:"center_latitude"`
	CenterLongitude  float64 `json:"center_longitude" yaml:"center_longitude"`
	Zoom             int     `json:"zoom" yaml:"zoom"`
	ClusterRadiusM   float64 `json:"cluster_radius_m" yaml:"cluster_radius_m"`
	TileURL          string  `json:"tile_url" yaml:"tile_url"`
	TileAttribution  string  `json:"tile_attribution" yaml:"tile_attribution"`
}

type fileConfig struct {
	DataDir  string    `json:"data_dir" yaml:"data_dir"`
	HTTPPort string    `json:"http_port" yaml:"http_port"`
	DBPath   string    `json:"db_path" yaml:"db_path"`
	Map      MapConfig `json:"map" yaml:"map"`
}

const (
	defaultPort          = ":8000"
	defaultDataDir       = "runtime/data"
	defaultDBFile        = "runtime/crimemap.db"
	minQueueSize         = 1
	defaultQueueSize     = 100
	maxQueueSize         = 1024
	defaultWorkerCount   = 2
	defaultJobTimeoutSec = 120
	defaultBackfillLimit = 48
	maxBackfillLimit     = 120
)

func defaultMapConfig() MapConfig {
	// Greater London defaults matching the published street-level extracts.
	return MapConfig{
		DefaultCrimeType: "Bicycle theft",
		DefaultYear:      2020,
		DefaultMonthFrom: 1,
		DefaultMonthTo:   12,
		CenterLatitude:   51.5074,
		CenterLongitude:  -0.1278,
		Zoom:             12,
		ClusterRadiusM:   300,
		TileURL:          "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
		TileAttribution:  "&copy; OpenStreetMap contributors",
	}
}

// Load reads configuration from the environment, an optional .env file, and
// an optional YAML/JSON config file, applying sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		JobQueueSize:  defaultQueueSize,
		WorkerCount:   defaultWorkerCount,
		JobTimeoutSec: defaultJobTimeoutSec,
		BackfillLimit: defaultBackfillLimit,
		EnableWatcher: parseBoolEnvDefault("ENABLE_WATCHER", true),
		StrictConfig:  parseBoolEnv("STRICT_CONFIG"),
	}

	configPath := getEnv("CONFIG_PATH", filepath.Join("config", "config.yaml"))
	fileCfg, fileErr := loadFileConfig(configPath)
	if fileErr != nil {
		if cfg.StrictConfig {
			return cfg, fmt.Errorf("config load failed (%s): %w", configPath, fileErr)
		}
		log.Printf("config load failed (%s): %v (using defaults)", configPath, fileErr)
	}

	cfg.Map = applyMapOverrides(defaultMapConfig(), fileCfg.Map)

	cfg.DataDir = firstNonEmpty(os.Getenv("DATA_DIR"), fileCfg.DataDir, defaultDataDir)
	cfg.DBPath = firstNonEmpty(os.Getenv("DB_PATH"), fileCfg.DBPath, defaultDBFile)

	cfg.HTTPPort = firstNonEmpty(os.Getenv("HTTP_PORT"), fileCfg.HTTPPort, defaultPort)
	if legacyPort := os.Getenv("PORT"); legacyPort != "" && cfg.HTTPPort == defaultPort {
		cfg.HTTPPort = legacyPort
	}
	if !strings.HasPrefix(cfg.HTTPPort, ":") {
		cfg.HTTPPort = ":" + cfg.HTTPPort
	}

	if v := os.Getenv("WORKER_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("invalid WORKER_COUNT=%q, using default %d", v, defaultWorkerCount)
			n = defaultWorkerCount
		}
		if n <= 0 {
			log.Printf("WORKER_COUNT must be positive, using default %d", defaultWorkerCount)
			n = defaultWorkerCount
		}
		cfg.WorkerCount = n
	}

	if v := os.Getenv("JOB_QUEUE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("invalid JOB_QUEUE_SIZE=%q, using default %d", v, defaultQueueSize)
			n = defaultQueueSize
		}
		if n < minQueueSize {
			log.Printf("JOB_QUEUE_SIZE raised to minimum %d (was %d)", minQueueSize, n)
			n = minQueueSize
		}
		if n > maxQueueSize {
			log.Printf("JOB_QUEUE_SIZE capped at %d (was %d)", maxQueueSize, n)
			n = maxQueueSize
		}
		cfg.JobQueueSize = n
	}

	if cfg.JobQueueSize < cfg.WorkerCount {
		log.Printf("JOB_QUEUE_SIZE must be >= WORKER_COUNT; using default %d", defaultQueueSize)
		cfg.JobQueueSize = max(defaultQueueSize, cfg.WorkerCount)
	}

	if v := os.Getenv("JOB_TIMEOUT_SEC"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid JOB_TIMEOUT_SEC: %w", err)
		}
		if n <= 0 {
			return cfg, fmt.Errorf("JOB_TIMEOUT_SEC must be positive")
		}
		cfg.JobTimeoutSec = n
	}

	if v, ok, err := parseIntEnv("BACKFILL_LIMIT"); err != nil {
		if cfg.StrictConfig {
			return cfg, fmt.Errorf("invalid BACKFILL_LIMIT: %w", err)
		}
		log.Printf("invalid BACKFILL_LIMIT: %v (using default)", err)
	} else if ok {
		if v < 1 {
			v = 1
		}
		if v > maxBackfillLimit {
			v = maxBackfillLimit
		}
		cfg.BackfillLimit = v
	}

	if v, ok, err := parseFloatEnv("CLUSTER_RADIUS_M"); err != nil {
		if cfg.StrictConfig {
			return cfg, fmt.Errorf("invalid CLUSTER_RADIUS_M: %w", err)
		}
		log.Printf("invalid CLUSTER_RADIUS_M: %v (using default)", err)
	} else if ok && v > 0 {
		cfg.Map.ClusterRadiusM = v
	}
	if v := strings.TrimSpace(os.Getenv("DEFAULT_CRIME_TYPE")); v != "" {
		cfg.Map.DefaultCrimeType = v
	}

	if err := validateConfig(cfg); err != nil {
		if cfg.StrictConfig {
			return cfg, err
		}
		log.Printf("config validation failed: %v (continuing)", err)
	}

	return cfg, nil
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if len(data) == 0 {
		return cfg, errors.New("empty config file")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	default:
		// YAML also covers JSON-ish content; it is a superset of JSON.
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("DATA_DIR is required")
	}
	if strings.TrimSpace(cfg.HTTPPort) == "" {
		return errors.New("HTTP_PORT is required")
	}
	if cfg.Map.DefaultMonthFrom < 1 || cfg.Map.DefaultMonthFrom > 12 {
		return fmt.Errorf("default month_from out of range: %d", cfg.Map.DefaultMonthFrom)
	}
	if cfg.Map.DefaultMonthTo < 1 || cfg.Map.DefaultMonthTo > 12 {
		return fmt.Errorf("default month_to out of range: %d", cfg.Map.DefaultMonthTo)
	}
	if cfg.Map.DefaultMonthFrom > cfg.Map.DefaultMonthTo {
		return errors.New("default month window is inverted")
	}
	if cfg.Map.ClusterRadiusM <= 0 {
		return errors.New("cluster radius must be positive")
	}
	return nil
}

func applyMapOverrides(base MapConfig, override MapConfig) MapConfig {
	if strings.TrimSpace(override.DefaultCrimeType) != "" {
		base.DefaultCrimeType = strings.TrimSpace(override.DefaultCrimeType)
	}
	if override.DefaultYear > 0 {
		base.DefaultYear = override.DefaultYear
	}
	if override.DefaultMonthFrom >= 1 && override.DefaultMonthFrom <= 12 {
		base.DefaultMonthFrom = override.DefaultMonthFrom
	}
	if override.DefaultMonthTo >= 1 && override.DefaultMonthTo <= 12 {
		base.DefaultMonthTo = override.DefaultMonthTo
	}
	if override.CenterLatitude != 0 {
		base.CenterLatitude = override.CenterLatitude
	}
	if override.CenterLongitude != 0 {
		base.CenterLongitude = override.CenterLongitude
	}
	if override.Zoom > 0 {
		base.Zoom = override.Zoom
	}
	if override.ClusterRadiusM > 0 {
		base.ClusterRadiusM = override.ClusterRadiusM
	}
	if strings.TrimSpace(override.TileURL) != "" {
		base.TileURL = strings.TrimSpace(override.TileURL)
	}
	if strings.TrimSpace(override.TileAttribution) != "" {
		base.TileAttribution = strings.TrimSpace(override.TileAttribution)
	}
	return base
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return val
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func parseBoolEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return false
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	return parseBoolEnv(key)
}

func parseIntEnv(key string) (int, bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false, nil
	}
	val, err := strconv.Atoi(raw)
	return val, true, err
}

func parseFloatEnv(key string) (float64, bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false, nil
	}
	val, err := strconv.ParseFloat(raw, 64)
	return val, true, err
}
