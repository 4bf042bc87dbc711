// Package config loads gamelink settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Transport names accepted in GAMELINK_TRANSPORT.
const (
	TransportGorilla = "gorilla"
	TransportCoder   = "coder"
)

// Config holds process level settings.
type Config struct {
	URL          string            `env:"GAMELINK_URL" envDefault:"ws://localhost:8080/ws"`
	APIURL       string            `env:"GAMELINK_API_URL" envDefault:"http://localhost:8080/api"`
	Transport    string            `env:"GAMELINK_TRANSPORT" envDefault:"gorilla"`
	LogLevel     string            `env:"GAMELINK_LOG_LEVEL" envDefault:"info"`
	Debug        bool              `env:"GAMELINK_DEBUG"`
	Timeout      time.Duration     `env:"GAMELINK_TIMEOUT" envDefault:"30s"`
	RetryCount   uint              `env:"GAMELINK_RETRY_COUNT" envDefault:"5"`
	RetryWait    time.Duration     `env:"GAMELINK_RETRY_WAIT" envDefault:"1s"`
	RetryMaxWait time.Duration     `env:"GAMELINK_RETRY_MAX_WAIT" envDefault:"30s"`
	KeepAlive    time.Duration     `env:"GAMELINK_KEEPALIVE" envDefault:"0s"`
	Headers      map[string]string `env:"GAMELINK_HEADERS"`
}

// Load reads the given .env files, skipping ones that do not exist, then
// parses GAMELINK_* variables. Variables already set in the process win over
// file values.
func Load(files ...string) (Config, error) {
	var existing []string

	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}

		existing = append(existing, f)
	}

	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return Config{}, fmt.Errorf("load env files: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the values that env parsing cannot.
func (c Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid GAMELINK_URL: %w", err)
	}

	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid GAMELINK_URL %q: scheme must be ws or wss", c.URL)
	}

	if c.Transport != TransportGorilla && c.Transport != TransportCoder {
		return fmt.Errorf("invalid GAMELINK_TRANSPORT %q: want %s or %s", c.Transport, TransportGorilla, TransportCoder)
	}

	if c.RetryWait < 0 || c.RetryMaxWait < 0 || c.Timeout < 0 || c.KeepAlive < 0 {
		return errors.New("durations cannot be negative")
	}

	return nil
}
