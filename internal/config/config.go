// Package config loads phasefit settings from defaults, an optional config.yaml,
// PHASEFIT_* environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"strings"
	"time"
)

const (
	envPrefix = "PHASEFIT"

	FileSource          = "file"
	ElasticsearchSource = "elasticsearch"

	exactSpanCountStrategy = "exact_span_count"
)

var (
	ErrMissingEntry      = errors.New("workflow.entry_service and workflow.entry_operation are required")
	ErrNegativeCeiling   = errors.New("workflow.e2e_ceiling_ms must not be negative")
	ErrInvalidSpanCount  = errors.New("workflow.expected_span_count must be positive for exact_span_count")
	ErrUnknownSource     = errors.New("input.source must be file or elasticsearch")
	ErrMissingInputPath  = errors.New("input.path is required for the file source")
	ErrMissingAddresses  = errors.New("elasticsearch.addresses is required")
	ErrInvalidBufferSize = errors.New("elasticsearch.buffer_size must be positive")
	ErrInvalidInterval   = errors.New("otlp.analysis_interval must be positive")
)

type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Workflow      WorkflowConfig      `mapstructure:"workflow"`
	Input         InputConfig         `mapstructure:"input"`
	Output        OutputConfig        `mapstructure:"output"`
	OTLP          OTLPConfig          `mapstructure:"otlp"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	QueryServer   QueryServerConfig   `mapstructure:"query_server"`
}

type AppConfig struct {
	LogLevel    string `mapstructure:"log_level"`
	Development bool   `mapstructure:"development"`
}

// WorkflowConfig selects the entry span and the trace filtering applied before aggregation.
type WorkflowConfig struct {
	EntryService       string  `mapstructure:"entry_service"`
	EntryOperation     string  `mapstructure:"entry_operation"`
	E2ECeilingMillis   float64 `mapstructure:"e2e_ceiling_ms"`
	FilterStrategy     string  `mapstructure:"filter_strategy"`
	ExpectedSpanCount  int     `mapstructure:"expected_span_count"`
	SegmentThresholdUs int64   `mapstructure:"segment_threshold_us"`
	MaxErlangPhases    int     `mapstructure:"max_erlang_phases"`
	Workers            int     `mapstructure:"workers"`
}

func (c WorkflowConfig) SegmentThreshold() time.Duration {
	return time.Duration(c.SegmentThresholdUs) * time.Microsecond
}

type InputConfig struct {
	Path   string `mapstructure:"path"`
	Source string `mapstructure:"source"`
}

type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

type OTLPConfig struct {
	ListenAddr       string        `mapstructure:"listen_addr"`
	MetricsAddr      string        `mapstructure:"metrics_addr"`
	AnalysisInterval time.Duration `mapstructure:"analysis_interval"`
}

type ElasticsearchConfig struct {
	Addresses    []string      `mapstructure:"addresses"`
	SpanIndex    string        `mapstructure:"span_index"`
	WriteEnabled bool          `mapstructure:"write_enabled"`
	BufferSize   int           `mapstructure:"buffer_size"`
	LoadWindow   time.Duration `mapstructure:"load_window"`
}

type QueryServerConfig struct {
	ListenAddr string        `mapstructure:"listen_addr"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"log-level":           "app.log_level",
	"development":         "app.development",
	"entry-service":       "workflow.entry_service",
	"entry-operation":     "workflow.entry_operation",
	"e2e-ceiling-ms":      "workflow.e2e_ceiling_ms",
	"filter-strategy":     "workflow.filter_strategy",
	"expected-span-count": "workflow.expected_span_count",
	"workers":             "workflow.workers",
	"input":               "input.path",
	"source":              "input.source",
	"output-dir":          "output.dir",
	"es-addresses":        "elasticsearch.addresses",
}

// RegisterFlags adds the shared flags to fs. Flags left unset do not override other sources.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a config file")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.Bool("development", false, "use the development logger")
	fs.String("entry-service", "", "service name of the workflow entry span")
	fs.String("entry-operation", "", "operation name of the workflow entry span")
	fs.Float64("e2e-ceiling-ms", 0, "drop traces whose end-to-end duration exceeds this many ms (0 disables)")
	fs.String("filter-strategy", "any_root", "trace validity strategy (any_root, exact_span_count)")
	fs.Int("expected-span-count", 0, "span count required by the exact_span_count strategy")
	fs.Int("workers", 0, "aggregation workers (0 uses GOMAXPROCS)")
	fs.String("input", "", "path of the OTLP-JSON lines file")
	fs.String("source", FileSource, "span source (file, elasticsearch)")
	fs.String("output-dir", "output", "directory for the report files")
	fs.StringSlice("es-addresses", []string{"http://localhost:9200"}, "elasticsearch addresses")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.development", false)
	v.SetDefault("workflow.entry_service", "")
	v.SetDefault("workflow.entry_operation", "")
	v.SetDefault("workflow.e2e_ceiling_ms", 0)
	v.SetDefault("workflow.filter_strategy", "any_root")
	v.SetDefault("workflow.expected_span_count", 0)
	v.SetDefault("workflow.segment_threshold_us", 10)
	v.SetDefault("workflow.max_erlang_phases", 1000)
	v.SetDefault("workflow.workers", 0)
	v.SetDefault("input.path", "")
	v.SetDefault("input.source", FileSource)
	v.SetDefault("output.dir", "output")
	v.SetDefault("otlp.listen_addr", ":4317")
	v.SetDefault("otlp.metrics_addr", ":2112")
	v.SetDefault("otlp.analysis_interval", "1m")
	v.SetDefault("elasticsearch.addresses", []string{"http://localhost:9200"})
	v.SetDefault("elasticsearch.span_index", "span_index")
	v.SetDefault("elasticsearch.write_enabled", false)
	v.SetDefault("elasticsearch.buffer_size", 1000)
	v.SetDefault("elasticsearch.load_window", "1h")
	v.SetDefault("query_server.listen_addr", ":8081")
	v.SetDefault("query_server.cache_ttl", "5m")
}

// Load resolves the configuration. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configFile := ""
	if fs != nil {
		if flag := fs.Lookup("config"); flag != nil {
			configFile = flag.Value.String()
		}
		for name, key := range flagKeys {
			flag := fs.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/phasefit")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// ValidateWorkflow checks the settings every analysis needs.
func (c *Config) ValidateWorkflow() error {
	if c.Workflow.EntryService == "" || c.Workflow.EntryOperation == "" {
		return ErrMissingEntry
	}
	if c.Workflow.E2ECeilingMillis < 0 {
		return ErrNegativeCeiling
	}
	if c.Workflow.FilterStrategy == exactSpanCountStrategy && c.Workflow.ExpectedSpanCount <= 0 {
		return ErrInvalidSpanCount
	}
	return nil
}

// ValidateInput checks the workflow and the selected span source of a batch analysis.
func (c *Config) ValidateInput() error {
	if err := c.ValidateWorkflow(); err != nil {
		return err
	}
	switch c.Input.Source {
	case FileSource:
		if c.Input.Path == "" {
			return ErrMissingInputPath
		}
		return nil
	case ElasticsearchSource:
		return c.validateElasticsearch()
	default:
		return fmt.Errorf("%q: %w", c.Input.Source, ErrUnknownSource)
	}
}

// ValidateReceiver checks the settings of the OTLP receiver and its periodic analysis.
func (c *Config) ValidateReceiver() error {
	if err := c.ValidateWorkflow(); err != nil {
		return err
	}
	if c.OTLP.AnalysisInterval <= 0 {
		return ErrInvalidInterval
	}
	if !c.Elasticsearch.WriteEnabled {
		return nil
	}
	if c.Elasticsearch.BufferSize <= 0 {
		return ErrInvalidBufferSize
	}
	return c.validateElasticsearch()
}

// ValidateQueryServer checks the settings of the query server. The workflow arrives per request.
func (c *Config) ValidateQueryServer() error {
	return c.validateElasticsearch()
}

func (c *Config) validateElasticsearch() error {
	if len(c.Elasticsearch.Addresses) == 0 {
		return ErrMissingAddresses
	}
	return nil
}
