// Package config loads layered taskforge configuration: built-in defaults,
// the user config file, a project override file and TASKFORGE_* environment
// variables, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/felixgeelhaar/taskforge/internal/infrastructure/webhook"
	"github.com/felixgeelhaar/taskforge/pkg/ai"
	"github.com/felixgeelhaar/taskforge/pkg/application"
	"github.com/felixgeelhaar/taskforge/pkg/domain/planning"
)

const (
	envPrefix         = "TASKFORGE"
	projectConfigFile = ".taskforge.yaml"
)

type Config struct {
	Generation    ai.Config              `mapstructure:"generation"`
	Validation    ValidationConfig       `mapstructure:"validation"`
	Decomposition DecompositionConfig    `mapstructure:"decomposition"`
	History       StoreConfig            `mapstructure:"history"`
	Audit         StoreConfig            `mapstructure:"audit"`
	Registry      RegistryConfig         `mapstructure:"registry"`
	Catalog       CatalogConfig          `mapstructure:"catalog"`
	Metrics       planning.MetricWeights `mapstructure:"metrics"`
	Log           LogConfig              `mapstructure:"log"`
	Notify        NotifyConfig           `mapstructure:"notify"`
}

type ValidationConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	// Plugin is the path of a validator binary. Empty uses the built-in rules.
	Plugin           string  `mapstructure:"plugin"`
	MaxContentLength int     `mapstructure:"max_content_length"`
	MinScore         float64 `mapstructure:"min_score"`
}

type DecompositionConfig struct {
	MaxTasks        int `mapstructure:"max_tasks"`
	HistoryExamples int `mapstructure:"history_examples"`
}

// StoreConfig locates a file-backed store. An empty path disables it.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type RegistryConfig struct {
	WorkersFile string `mapstructure:"workers_file"`
	// Watch reloads the registry whenever WorkersFile changes.
	Watch bool `mapstructure:"watch"`
}

type CatalogConfig struct {
	StrategiesFile string `mapstructure:"strategies_file"`
}

// NotifyConfig lists outbound webhook subscribers for session events.
type NotifyConfig struct {
	Webhooks       []webhook.Endpoint `mapstructure:"webhooks"`
	DeadLetterPath string             `mapstructure:"dead_letter_path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EngineConfig projects the loaded values onto the engine's tunables.
func (c *Config) EngineConfig() application.EngineConfig {
	ec := application.DefaultEngineConfig()
	ec.Decomposer.GenerationTimeout = c.Generation.Resilience.Timeout
	ec.Decomposer.ValidationTimeout = c.Validation.Timeout
	ec.Decomposer.MaxTasks = c.Decomposition.MaxTasks
	ec.Decomposer.HistoryExamples = c.Decomposition.HistoryExamples
	ec.ValidationTimeout = c.Validation.Timeout
	ec.NarrativeTimeout = c.Generation.Resilience.Timeout
	ec.Metrics = c.Metrics
	return ec
}

// Load reads the user config from the XDG directory, merges a project
// .taskforge.yaml found in the working directory or a parent, and applies
// environment overrides such as TASKFORGE_GENERATION_PROVIDER.
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(UserConfigDir())
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if project := findProjectConfig(); project != "" {
		pv := viper.New()
		pv.SetConfigFile(project)
		if err := pv.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", project, err)
		}
		if err := v.MergeConfigMap(pv.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	return decode(v)
}

// LoadFromPath reads a single config file plus environment overrides.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return decode(v)
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		// defaults are static; a failure here is a programming error
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Generation.APIKey = os.ExpandEnv(cfg.Generation.APIKey)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Decomposition.MaxTasks <= 0:
		return fmt.Errorf("decomposition.max_tasks must be positive, got %d", c.Decomposition.MaxTasks)
	case c.Decomposition.HistoryExamples < 0:
		return fmt.Errorf("decomposition.history_examples must not be negative")
	case c.Validation.Timeout <= 0:
		return fmt.Errorf("validation.timeout must be positive")
	case c.Generation.Resilience.Timeout <= 0:
		return fmt.Errorf("generation.timeout must be positive")
	case c.Validation.MinScore < 0 || c.Validation.MinScore > 100:
		return fmt.Errorf("validation.min_score must be within [0,100], got %v", c.Validation.MinScore)
	}
	for i, ep := range c.Notify.Webhooks {
		if ep.URL == "" {
			return fmt.Errorf("notify.webhooks[%d] has no url", i)
		}
		if ep.Name == "" {
			c.Notify.Webhooks[i].Name = fmt.Sprintf("webhook-%d", i+1)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	res := ai.DefaultResilienceConfig()
	v.SetDefault("generation.provider", "anthropic")
	v.SetDefault("generation.model", "")
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.base_url", "")
	v.SetDefault("generation.mock_response", "")
	v.SetDefault("generation.timeout", res.Timeout.String())
	v.SetDefault("generation.max_retries", res.MaxRetries)
	v.SetDefault("generation.retry_delay", res.RetryDelay.String())

	v.SetDefault("validation.timeout", "10s")
	v.SetDefault("validation.plugin", "")
	v.SetDefault("validation.max_content_length", 2000)
	v.SetDefault("validation.min_score", 0.0)

	d := application.DefaultDecomposerConfig()
	v.SetDefault("decomposition.max_tasks", d.MaxTasks)
	v.SetDefault("decomposition.history_examples", d.HistoryExamples)

	v.SetDefault("history.path", filepath.Join(".taskforge", "history.db"))
	v.SetDefault("audit.path", filepath.Join(".taskforge", "audit.jsonl"))

	v.SetDefault("registry.workers_file", "")
	v.SetDefault("registry.watch", false)
	v.SetDefault("catalog.strategies_file", "")

	m := planning.DefaultMetricWeights()
	v.SetDefault("metrics.complexity_baseline", m.ComplexityBaseline)
	v.SetDefault("metrics.complexity_slope", m.ComplexitySlope)
	v.SetDefault("metrics.blocked_penalty", m.BlockedPenalty)
	v.SetDefault("metrics.worker_weight", m.WorkerWeight)
	v.SetDefault("metrics.completion_weight", m.CompletionWeight)

	v.SetDefault("notify.dead_letter_path", filepath.Join(".taskforge", "webhook-deadletter.jsonl"))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// UserConfigDir returns $XDG_CONFIG_HOME/taskforge, falling back to
// ~/.config/taskforge.
func UserConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "taskforge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "taskforge")
	}
	return filepath.Join(home, ".config", "taskforge")
}

func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(cwd, projectConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			return ""
		}
		cwd = parent
	}
}
