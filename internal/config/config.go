package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/autorca/autorca-core/internal/utils"
)

// Config captures the settings required to boot the RCA engine.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Summary  SummaryConfig  `yaml:"summary"`
	Cache    CacheConfig    `yaml:"cache"`
}

// ServerConfig controls HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// AnalysisConfig is the immutable per-run analysis configuration. It is
// copied by value into every run; no component reads ambient state.
type AnalysisConfig struct {
	Thresholds         ThresholdConfig `yaml:"thresholds"`
	Weights            RankWeights     `yaml:"weights"`
	CorrelationHorizon time.Duration   `yaml:"correlationHorizon"`
	EdgePairingDelta   time.Duration   `yaml:"edgePairingDelta"`
	Limits             RunLimits       `yaml:"limits"`
	TopN               int             `yaml:"topN"`
}

// ThresholdConfig holds per-kind anomaly detection thresholds.
type ThresholdConfig struct {
	ErrorSpikeCount    int           `yaml:"errorSpikeCount"`
	ErrorSpikeWindow   time.Duration `yaml:"errorSpikeWindow"`
	LatencySpikeCount  int           `yaml:"latencySpikeCount"`
	LatencyCeilingMS   float64       `yaml:"latencyCeilingMS"`
	LatencySpikeWindow time.Duration `yaml:"latencySpikeWindow"`
	ResourceCount      int           `yaml:"resourceCount"`
	ResourcePercent    float64       `yaml:"resourcePercent"`
	ResourceWindow     time.Duration `yaml:"resourceWindow"`
	ChangeCorrelation  time.Duration `yaml:"changeCorrelation"`
}

// RankWeights are the root-cause confidence weights. They are not required
// to sum to 1.
type RankWeights struct {
	Severity float64 `yaml:"severity"`
	Distance float64 `yaml:"distance"`
	Temporal float64 `yaml:"temporal"`
	Evidence float64 `yaml:"evidence"`
}

// RunLimits bound a single run. Exceeding either budget aborts the run.
type RunLimits struct {
	MaxEvents         int           `yaml:"maxEvents"`
	MaxProcessingTime time.Duration `yaml:"maxProcessingTime"`
}

// SummaryConfig selects the summarizer implementation.
type SummaryConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"maxTokens"`
}

// CacheConfig controls in-memory caching of run results in the API layer.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	ResultTTL  time.Duration `yaml:"resultTTL"`
	MaxEntries int           `yaml:"maxEntries"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("AUTORCA_CONFIG")
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Analysis.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Logging:  LoggingConfig{Level: "info", JSON: false},
		Analysis: DefaultAnalysis(),
		Summary:  SummaryConfig{Provider: "rules", MaxTokens: 1024},
		Cache: CacheConfig{
			Enabled:    true,
			ResultTTL:  5 * time.Minute,
			MaxEntries: 256,
		},
	}
}

// DefaultAnalysis returns the default per-run analysis settings.
func DefaultAnalysis() AnalysisConfig {
	return AnalysisConfig{
		Thresholds: ThresholdConfig{
			ErrorSpikeCount:    3,
			ErrorSpikeWindow:   300 * time.Second,
			LatencySpikeCount:  2,
			LatencyCeilingMS:   1000,
			LatencySpikeWindow: 300 * time.Second,
			ResourceCount:      2,
			ResourcePercent:    90,
			ResourceWindow:     300 * time.Second,
			ChangeCorrelation:  600 * time.Second,
		},
		Weights: RankWeights{
			Severity: 0.25,
			Distance: 0.25,
			Temporal: 0.25,
			Evidence: 0.25,
		},
		CorrelationHorizon: 600 * time.Second,
		EdgePairingDelta:   5 * time.Second,
		Limits: RunLimits{
			MaxEvents:         100000,
			MaxProcessingTime: 30 * time.Second,
		},
	}
}

// Validate surfaces configuration errors before any processing begins.
func (c AnalysisConfig) Validate() error {
	t := c.Thresholds
	switch {
	case t.ErrorSpikeCount <= 0:
		return utils.ConfigurationError("config", "errorSpikeCount must be positive")
	case t.ErrorSpikeWindow <= 0:
		return utils.ConfigurationError("config", "errorSpikeWindow must be positive")
	case t.LatencySpikeCount <= 0:
		return utils.ConfigurationError("config", "latencySpikeCount must be positive")
	case t.LatencyCeilingMS <= 0:
		return utils.ConfigurationError("config", "latencyCeilingMS must be positive")
	case t.LatencySpikeWindow <= 0:
		return utils.ConfigurationError("config", "latencySpikeWindow must be positive")
	case t.ResourceCount <= 0:
		return utils.ConfigurationError("config", "resourceCount must be positive")
	case t.ResourcePercent <= 0 || t.ResourcePercent > 100:
		return utils.ConfigurationError("config", "resourcePercent must be in (0,100]")
	case t.ResourceWindow <= 0:
		return utils.ConfigurationError("config", "resourceWindow must be positive")
	case t.ChangeCorrelation <= 0:
		return utils.ConfigurationError("config", "changeCorrelation must be positive")
	}

	w := c.Weights
	if w.Severity < 0 || w.Distance < 0 || w.Temporal < 0 || w.Evidence < 0 {
		return utils.ConfigurationError("config", "ranking weights must not be negative")
	}
	if w.Severity+w.Distance+w.Temporal+w.Evidence == 0 {
		return utils.ConfigurationError("config", "at least one ranking weight must be positive")
	}

	if c.CorrelationHorizon <= 0 {
		return utils.ConfigurationError("config", "correlationHorizon must be positive")
	}
	if c.EdgePairingDelta <= 0 {
		return utils.ConfigurationError("config", "edgePairingDelta must be positive")
	}
	if c.Limits.MaxEvents <= 0 {
		return utils.ConfigurationError("config", "maxEvents must be positive")
	}
	if c.Limits.MaxProcessingTime <= 0 {
		return utils.ConfigurationError("config", "maxProcessingTime must be positive")
	}
	if c.TopN < 0 {
		return utils.ConfigurationError("config", "topN must not be negative")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AUTORCA_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("AUTORCA_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("AUTORCA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AUTORCA_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("AUTORCA_ERROR_SPIKE_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.Thresholds.ErrorSpikeCount = n
		}
	}
	if v := os.Getenv("AUTORCA_ERROR_SPIKE_WINDOW"); v != "" {
		if d, err := parseSecondsOrDuration(v); err == nil {
			cfg.Analysis.Thresholds.ErrorSpikeWindow = d
		}
	}
	if v := os.Getenv("AUTORCA_LATENCY_SPIKE_MS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Analysis.Thresholds.LatencyCeilingMS = f
		}
	}
	if v := os.Getenv("AUTORCA_LATENCY_SPIKE_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.Thresholds.LatencySpikeCount = n
		}
	}
	if v := os.Getenv("AUTORCA_RESOURCE_EXHAUSTION_PERCENT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Analysis.Thresholds.ResourcePercent = f
		}
	}
	if v := os.Getenv("AUTORCA_RESOURCE_EXHAUSTION_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.Thresholds.ResourceCount = n
		}
	}
	if v := os.Getenv("AUTORCA_CHANGE_CORRELATION_SECONDS"); v != "" {
		if d, err := parseSecondsOrDuration(v); err == nil {
			cfg.Analysis.Thresholds.ChangeCorrelation = d
		}
	}
	if v := os.Getenv("AUTORCA_CORRELATION_HORIZON"); v != "" {
		if d, err := parseSecondsOrDuration(v); err == nil {
			cfg.Analysis.CorrelationHorizon = d
		}
	}
	if v := os.Getenv("AUTORCA_MAX_EVENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.Limits.MaxEvents = n
		}
	}
	if v := os.Getenv("AUTORCA_MAX_PROCESSING_TIME"); v != "" {
		if d, err := parseSecondsOrDuration(v); err == nil {
			cfg.Analysis.Limits.MaxProcessingTime = d
		}
	}
	if v := os.Getenv("AUTORCA_SUMMARY_PROVIDER"); v != "" {
		cfg.Summary.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("AUTORCA_SUMMARY_MODEL"); v != "" {
		cfg.Summary.Model = v
	}
	if v := os.Getenv("AUTORCA_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("AUTORCA_CACHE_RESULT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.ResultTTL = d
		}
	}
}

// parseSecondsOrDuration accepts either a bare second count ("300") or a Go
// duration string ("5m").
func parseSecondsOrDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}
