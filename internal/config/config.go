// Package config assembles runtime settings from defaults, an optional YAML
// file, a .env file and ANKOMA_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/danieldreier/ankoma-flashcards/internal/images"
	"github.com/danieldreier/ankoma-flashcards/internal/preload"
	"github.com/danieldreier/ankoma-flashcards/internal/storage"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "ANKOMA_"

// Log modes.
const (
	LogDev  = "dev"
	LogProd = "prod"
	LogNop  = "nop"
)

// Config is the full runtime configuration.
type Config struct {
	DeckPath  string        `yaml:"deck_path"`
	DeckURL   string        `yaml:"deck_url"`
	CachePath string        `yaml:"cache_path"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	Assets    Assets        `yaml:"assets"`
	Preload   Preload       `yaml:"preload"`
	LogMode   string        `yaml:"log_mode"`
}

// Assets locates relative image references.
type Assets struct {
	BaseURL   string `yaml:"base_url"`
	Subfolder string `yaml:"subfolder"`
}

// Preload tunes image prefetching.
type Preload struct {
	Enabled   bool          `yaml:"enabled"`
	Lookahead int           `yaml:"lookahead"`
	BatchSize int           `yaml:"batch_size"`
	Delay     time.Duration `yaml:"delay"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DeckPath: "./ankoma.json",
		CacheTTL: storage.DefaultTTL,
		Assets: Assets{
			BaseURL:   images.DefaultBaseURL,
			Subfolder: images.DefaultSubfolder,
		},
		Preload: Preload{
			Enabled:   true,
			Lookahead: preload.DefaultLookahead,
			BatchSize: preload.DefaultBatchSize,
			Delay:     preload.DefaultDelay,
			Timeout:   10 * time.Second,
		},
		LogMode: LogDev,
	}
}

// Options name the files Load reads. Empty names are skipped.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load builds the configuration. A missing config file is an error; a missing
// .env file is not. Variables already set in the environment win over the .env file.
func Load(opts Options) (Config, error) {
	cfg := Default()
	if opts.ConfigFile != "" {
		if err := cfg.LoadFile(opts.ConfigFile); err != nil {
			return cfg, err
		}
	}
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("failed to load env file: %w", err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto c.
func (c *Config) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// ApplyEnv overlays ANKOMA_* variables found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	strs := map[string]*string{
		"DECK_PATH":       &c.DeckPath,
		"DECK_URL":        &c.DeckURL,
		"CACHE_PATH":      &c.CachePath,
		"ASSET_BASE_URL":  &c.Assets.BaseURL,
		"ASSET_SUBFOLDER": &c.Assets.Subfolder,
		"LOG_MODE":        &c.LogMode,
	}
	for key, dst := range strs {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"CACHE_TTL":       &c.CacheTTL,
		"PRELOAD_DELAY":   &c.Preload.Delay,
		"PRELOAD_TIMEOUT": &c.Preload.Timeout,
	}
	for key, dst := range durations {
		if v, ok := get(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
			}
			*dst = d
		}
	}

	ints := map[string]*int{
		"PRELOAD_LOOKAHEAD":  &c.Preload.Lookahead,
		"PRELOAD_BATCH_SIZE": &c.Preload.BatchSize,
	}
	for key, dst := range ints {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}

	if v, ok := get("PRELOAD_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sPRELOAD_ENABLED: %w", EnvPrefix, err)
		}
		c.Preload.Enabled = b
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.DeckPath == "" && c.DeckURL == "" {
		return errors.New("a deck path or deck url is required")
	}
	if c.DeckURL != "" {
		if _, err := parseAbsURL(c.DeckURL); err != nil {
			return fmt.Errorf("invalid deck url: %w", err)
		}
	}
	if _, err := parseAbsURL(c.Assets.BaseURL); err != nil {
		return fmt.Errorf("invalid asset base url: %w", err)
	}
	if c.Preload.Lookahead <= 0 {
		return fmt.Errorf("preload lookahead must be positive, got %d", c.Preload.Lookahead)
	}
	if c.Preload.BatchSize <= 0 {
		return fmt.Errorf("preload batch size must be positive, got %d", c.Preload.BatchSize)
	}
	if c.Preload.Delay < 0 || c.Preload.Timeout < 0 || c.CacheTTL < 0 {
		return errors.New("durations must not be negative")
	}
	switch c.LogMode {
	case LogDev, LogProd, LogNop:
	default:
		return fmt.Errorf("unknown log mode %q", c.LogMode)
	}
	return nil
}

func parseAbsURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%q is not an absolute url", raw)
	}
	return u, nil
}

// Resolver returns the image resolver for the configured asset location.
func (c Config) Resolver() images.Resolver {
	return images.Resolver{BaseURL: c.Assets.BaseURL, Subfolder: c.Assets.Subfolder}
}
