// Package config loads firewatch configuration from a TOML file with
// environment-variable overrides for secrets. Each configured source
// gets its own section; there is no global mutable configuration state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/geih-labs/firewatch/internal/core/domain"
)

// Config is the decoded configuration file.
type Config struct {
	// DatabaseURL is the PostgreSQL connection string for the hotspot
	// warehouse. Empty means load into the in-memory store.
	DatabaseURL string `toml:"database_url"`

	// DataDir holds local state (run database). Empty means
	// ~/.firewatch/data.
	DataDir string `toml:"data_dir"`

	// ListenAddr is the status API bind address.
	ListenAddr string `toml:"listen_addr"`

	// Sources maps source name to its settings.
	Sources map[string]Source `toml:"sources"`
}

// Source is the TOML shape of one source section.
type Source struct {
	APIKey      string            `toml:"api_key"`
	BaseURL     string            `toml:"base_url"`
	Area        string            `toml:"area"`
	Satellite   string            `toml:"satellite"`
	Format      string            `toml:"format"`
	Interval    string            `toml:"interval"`
	FetchTimeout string           `toml:"fetch_timeout"`
	RetryBudget int               `toml:"retry_budget"`
	BackoffBase string            `toml:"backoff_base"`
	BackoffCap  string            `toml:"backoff_cap"`
	MinRecords  int               `toml:"min_records"`
	MaxDropRate float64           `toml:"max_drop_rate"`
	Region      []float64         `toml:"region"`
	Biome       string            `toml:"biome"`
	Options     map[string]string `toml:"options"`
}

const defaultListenAddr = ":8080"

// Load reads the TOML file at path (optionally merging a .env file first)
// and applies environment overrides. If path is empty, defaults to
// ~/.firewatch/config.toml; a missing file yields an empty config rather
// than an error so the CLI can run with flags alone.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env")

	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".firewatch", "config.toml")
	}

	cfg := &Config{Sources: make(map[string]Source)}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
		if cfg.Sources == nil {
			cfg.Sources = make(map[string]Source)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}

	return cfg, nil
}

// applyEnvOverrides lets secrets stay out of the config file.
// FIREWATCH_DATABASE_URL overrides database_url; per-source API keys come
// from FIREWATCH_<SOURCE>_API_KEY with dashes mapped to underscores
// (e.g. FIREWATCH_NASA_FIRMS_API_KEY).
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("FIREWATCH_DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("FIREWATCH_DATA_DIR")); v != "" {
		cfg.DataDir = v
	}

	for name, src := range cfg.Sources {
		envKey := "FIREWATCH_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_API_KEY"
		if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
			src.APIKey = v
			cfg.Sources[name] = src
		}
	}
}

// SourceConfig converts a named section into the domain configuration,
// applying pipeline defaults.
func (c *Config) SourceConfig(name string) (domain.SourceConfig, error) {
	src, ok := c.Sources[name]
	if !ok {
		return domain.SourceConfig{}, fmt.Errorf("source %q not configured", name)
	}

	out := domain.SourceConfig{
		Name:        name,
		APIKey:      src.APIKey,
		BaseURL:     src.BaseURL,
		Area:        src.Area,
		Satellite:   src.Satellite,
		Format:      domain.Format(src.Format),
		RetryBudget: src.RetryBudget,
		MinRecords:  src.MinRecords,
		MaxDropRate: src.MaxDropRate,
		Biome:       src.Biome,
		Options:     src.Options,
	}

	var err error
	if out.Interval, err = parseDuration(src.Interval, "interval"); err != nil {
		return domain.SourceConfig{}, err
	}
	if out.FetchTimeout, err = parseDuration(src.FetchTimeout, "fetch_timeout"); err != nil {
		return domain.SourceConfig{}, err
	}
	if out.BackoffBase, err = parseDuration(src.BackoffBase, "backoff_base"); err != nil {
		return domain.SourceConfig{}, err
	}
	if out.BackoffCap, err = parseDuration(src.BackoffCap, "backoff_cap"); err != nil {
		return domain.SourceConfig{}, err
	}

	switch len(src.Region) {
	case 0:
		out.Region = domain.AmazonLegalBBox
	case 4:
		out.Region = domain.BoundingBox{
			MinLat: src.Region[0],
			MinLon: src.Region[1],
			MaxLat: src.Region[2],
			MaxLon: src.Region[3],
		}
	default:
		return domain.SourceConfig{}, fmt.Errorf("source %q: region must be [minLat, minLon, maxLat, maxLon]", name)
	}

	return out.WithDefaults(), nil
}

// SourceConfigs converts every configured section.
func (c *Config) SourceConfigs() (map[string]domain.SourceConfig, error) {
	out := make(map[string]domain.SourceConfig, len(c.Sources))
	for name := range c.Sources {
		sc, err := c.SourceConfig(name)
		if err != nil {
			return nil, err
		}
		out[name] = sc
	}
	return out, nil
}

func parseDuration(s, field string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return d, nil
}
