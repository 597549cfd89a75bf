// Package config reads the daemon's environment-variable configuration.
// Every field is a scalar with a sane default; no library offers enough
// leverage over eight env vars to be worth adopting (see DESIGN.md).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the daemon's full runtime configuration.
type Config struct {
	Host string
	Port int

	StoreDSN string

	PollInterval  time.Duration
	PollBatchSize int

	FilterCacheSize int

	TrustedHeaders bool

	Env string // "dev" enables CORS, same switch the teacher uses
}

// Load reads Config from the process environment, applying defaults for
// anything unset.
func Load() (Config, error) {
	c := Config{
		Host:            getString("CORE_HOST", "0.0.0.0"),
		PollInterval:    500 * time.Millisecond,
		PollBatchSize:   500,
		FilterCacheSize: 256,
		Env:             getString("ENV", "production"),
	}

	port, err := getInt("CORE_PORT", 8080)
	if err != nil {
		return Config{}, err
	}
	c.Port = port

	c.StoreDSN = os.Getenv("STORE_DSN")

	if ms, ok := os.LookupEnv("POLL_MS"); ok {
		n, err := strconv.Atoi(ms)
		if err != nil {
			return Config{}, fmt.Errorf("config: POLL_MS: %w", err)
		}
		c.PollInterval = time.Duration(n) * time.Millisecond
	}

	batch, err := getInt("POLL_BATCH", c.PollBatchSize)
	if err != nil {
		return Config{}, err
	}
	c.PollBatchSize = batch

	cacheSize, err := getInt("FILTER_CACHE_SIZE", c.FilterCacheSize)
	if err != nil {
		return Config{}, err
	}
	c.FilterCacheSize = cacheSize

	c.TrustedHeaders = getString("TRUSTED_HEADERS", "false") == "true"

	return c, nil
}

func getString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}
