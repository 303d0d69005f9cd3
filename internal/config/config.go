package config

import (
	"errors"
	"fmt"
	"os"
	"schoolboard/internal/core/domain"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr string
	DataDir    string
	// uploads
	PublicDir          string
	PublicPath         string
	MaxUploadSize      int64
	ValidateAllUploads bool
	// ids
	RadioIDStrategy domain.IDStrategy
	// http
	AllowOrigins   []string
	TrustProxy     bool
	RequestTimeout time.Duration
	// orphaned upload cleanup
	SweepOrphans bool
	OrphanGrace  time.Duration
}

// change here only as it populates both default and env aware configs
var cfgDefaults = map[string]string{
	"SERVER_ADDR": ":5000",
	"DATA_DIR":    "data",
	// uploads
	"PUBLIC_DIR":           "public",
	"PUBLIC_PATH":          "/public",
	"MAX_UPLOAD_SIZE":      "5242880",
	"VALIDATE_ALL_UPLOADS": "false",
	// ids
	"RADIO_ID_STRATEGY": "max",
	// http
	"ALLOW_ORIGINS":   "*",
	"TRUST_PROXY":     "false",
	"REQUEST_TIMEOUT": "15s",
	// orphaned upload cleanup
	"SWEEP_ORPHANS": "true",
	"ORPHAN_GRACE":  "10m",
}

const durationHelp = `a time duration value is a possibly signed sequence of decimal numbers, each with optional fraction and a unit suffix, such as "300ms", "-1.5h" or "2h45m"`

// Default return a configuration object with defaults so can bypass .env file or ENV vars
func Default() *Config {
	// safe to ignore the errors as the values are defined by us just above
	cfg, _ := build(func(key string) string {
		return cfgDefaults[key]
	})
	return cfg
}

// Load creates a config by loading values from env vars falling back to defaults if these don't exist.
// A .env file in the working directory is read first, it never overrides variables already set.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config error: could not load .env: %w", err)
	}

	return build(func(key string) string {
		return getEnv(key, cfgDefaults[key])
	})
}

func build(lookup func(key string) string) (*Config, error) {
	maxUploadSize, err := strconv.ParseInt(lookup("MAX_UPLOAD_SIZE"), 10, 64)
	if err != nil || maxUploadSize <= 0 {
		return nil, fmt.Errorf("config error: MAX_UPLOAD_SIZE should be a positive number of bytes, got '%s'", lookup("MAX_UPLOAD_SIZE"))
	}

	validateAll, err := parseBool("VALIDATE_ALL_UPLOADS", lookup("VALIDATE_ALL_UPLOADS"))
	if err != nil {
		return nil, err
	}

	radioStrategy, err := parseIDStrategy(lookup("RADIO_ID_STRATEGY"))
	if err != nil {
		return nil, err
	}

	trustProxy, err := parseBool("TRUST_PROXY", lookup("TRUST_PROXY"))
	if err != nil {
		return nil, err
	}

	requestTimeout, err := parseDuration("REQUEST_TIMEOUT", lookup("REQUEST_TIMEOUT"))
	if err != nil {
		return nil, err
	}

	sweepOrphans, err := parseBool("SWEEP_ORPHANS", lookup("SWEEP_ORPHANS"))
	if err != nil {
		return nil, err
	}

	orphanGrace, err := parseDuration("ORPHAN_GRACE", lookup("ORPHAN_GRACE"))
	if err != nil {
		return nil, err
	}

	return &Config{
		ServerAddr:         serverAddr(lookup),
		DataDir:            lookup("DATA_DIR"),
		PublicDir:          lookup("PUBLIC_DIR"),
		PublicPath:         "/" + strings.Trim(lookup("PUBLIC_PATH"), "/"),
		MaxUploadSize:      maxUploadSize,
		ValidateAllUploads: validateAll,
		RadioIDStrategy:    radioStrategy,
		AllowOrigins:       splitList(lookup("ALLOW_ORIGINS")),
		TrustProxy:         trustProxy,
		RequestTimeout:     requestTimeout,
		SweepOrphans:       sweepOrphans,
		OrphanGrace:        orphanGrace,
	}, nil
}

// serverAddr honours the PORT convention of hosting platforms unless SERVER_ADDR was changed
func serverAddr(lookup func(key string) string) string {
	addr := lookup("SERVER_ADDR")
	if port := lookup("PORT"); port != "" && addr == cfgDefaults["SERVER_ADDR"] {
		return ":" + strings.TrimPrefix(port, ":")
	}
	return addr
}

func parseIDStrategy(s string) (domain.IDStrategy, error) {
	switch strings.ToLower(s) {
	case "max":
		return domain.IDMaxPlusOne, nil
	case "count":
		return domain.IDSequentialCount, nil
	default:
		return 0, fmt.Errorf("invalid RADIO_ID_STRATEGY: '%s'. valid options are 'max', 'count'", s)
	}
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf(`config error: %s should be "true" or "false", got '%s'`, key, value)
	}
	return b, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config error: %s: %s: %v", key, durationHelp, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config error: %s must not be negative, got '%s'", key, value)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnv returns the value of an environment var or the default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
