// Package config loads the service configuration from a YAML file with
// environment-variable overrides. Precedence is built-in defaults, then
// the config file, then environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/memctx-mcp/internal/backend"
	"github.com/dshills/memctx-mcp/internal/corpus"
	"github.com/dshills/memctx-mcp/internal/ctxcache"
	"github.com/dshills/memctx-mcp/internal/embedder"
	"github.com/dshills/memctx-mcp/internal/searcher"
	"github.com/dshills/memctx-mcp/internal/store"
)

// Remote configures the remote embedding backend.
type Remote struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
}

// Search configures the vector search engine.
type Search struct {
	Threshold  float64 `yaml:"threshold"`
	MaxResults int     `yaml:"max_results"`
	BatchSize  int     `yaml:"batch_size"`
}

// EmbedCache configures the on-disk embedding cache.
type EmbedCache struct {
	Capacity   int `yaml:"capacity"`
	FlushEvery int `yaml:"flush_every"`
}

// ResultCache configures the TTL result cache. Durations use Go
// duration syntax ("5m", "90s").
type ResultCache struct {
	TTL           string `yaml:"ttl"`
	SweepInterval string `yaml:"sweep_interval"`
}

// Config is the full service configuration.
type Config struct {
	DataDir      string      `yaml:"data_dir"`
	StoreBackend string      `yaml:"store_backend"`
	Backends     []string    `yaml:"backends"`
	Strict       bool        `yaml:"strict"`
	Remote       Remote      `yaml:"remote"`
	Search       Search      `yaml:"search"`
	EmbedCache   EmbedCache  `yaml:"embed_cache"`
	ResultCache  ResultCache `yaml:"result_cache"`

	// MinVocabulary is the vocabulary size below which keyword ranking
	// reports insufficient statistics.
	MinVocabulary int `yaml:"min_vocabulary"`
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".memctx", "config.yaml")
}

// Default returns the built-in configuration.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:      filepath.Join(home, ".memctx"),
		StoreBackend: store.BackendJSONL,
		Backends:     []string{backend.NameRemote, backend.NameLexical, backend.NameHash},
		Strict:       false,
		Search: Search{
			Threshold:  searcher.DefaultThreshold,
			MaxResults: searcher.DefaultMaxResults,
			BatchSize:  searcher.DefaultBatchSize,
		},
		EmbedCache: EmbedCache{
			Capacity:   embedder.DefaultCacheCapacity,
			FlushEvery: embedder.DefaultFlushEvery,
		},
		ResultCache: ResultCache{
			TTL:           ctxcache.DefaultTTL.String(),
			SweepInterval: ctxcache.DefaultSweepInterval.String(),
		},
		MinVocabulary: corpus.DefaultMinVocabulary,
	}
}

// Load reads path (DefaultPath when empty), merges it over the
// defaults, applies environment overrides, and validates. A missing
// file is not an error; the defaults plus environment apply.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Environment variables. MEMCTX_EMBED_API_KEY wins over OPENAI_API_KEY.
func applyEnv(cfg *Config) {
	applyString(&cfg.DataDir, "MEMCTX_DATA_DIR")
	applyString(&cfg.StoreBackend, "MEMCTX_STORE")
	applyString(&cfg.Remote.Endpoint, "MEMCTX_EMBED_ENDPOINT")
	applyString(&cfg.Remote.Model, "MEMCTX_EMBED_MODEL")
	applyString(&cfg.ResultCache.TTL, "MEMCTX_CACHE_TTL")

	if v := strings.TrimSpace(os.Getenv("MEMCTX_BACKENDS")); v != "" {
		parts := strings.Split(v, ",")
		backends := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				backends = append(backends, p)
			}
		}
		cfg.Backends = backends
	}

	if v := strings.TrimSpace(os.Getenv("MEMCTX_STRICT")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Strict = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("MEMCTX_THRESHOLD")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.Threshold = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("MEMCTX_MAX_RESULTS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.MaxResults = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MEMCTX_MIN_VOCABULARY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MinVocabulary = n
		}
	}

	for _, env := range []string{"MEMCTX_EMBED_API_KEY", "OPENAI_API_KEY"} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			cfg.Remote.APIKey = v
			break
		}
	}
}

func applyString(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = v
	}
}

// Validate checks the merged configuration.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case store.BackendJSONL, store.BackendSQLite:
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}

	if len(c.Backends) == 0 {
		return fmt.Errorf("backend priority list is empty")
	}
	for _, name := range c.Backends {
		switch name {
		case backend.NameRemote, backend.NameLexical, backend.NameHash:
		default:
			return fmt.Errorf("unknown embedding backend %q", name)
		}
	}

	if c.Search.Threshold < -1 || c.Search.Threshold > 1 {
		return fmt.Errorf("similarity threshold %f outside [-1, 1]", c.Search.Threshold)
	}
	if c.Search.MaxResults < 0 {
		return fmt.Errorf("max results must not be negative")
	}

	if _, err := c.CacheTTL(); err != nil {
		return err
	}
	if _, err := c.CacheSweepInterval(); err != nil {
		return err
	}
	return nil
}

// CacheTTL parses the result cache TTL.
func (c Config) CacheTTL() (time.Duration, error) {
	return parseDuration(c.ResultCache.TTL, "result_cache.ttl")
}

// CacheSweepInterval parses the result cache sweep interval.
func (c Config) CacheSweepInterval() (time.Duration, error) {
	return parseDuration(c.ResultCache.SweepInterval, "result_cache.sweep_interval")
}

func parseDuration(raw, field string) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", field)
	}
	return d, nil
}
