package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/labelsift/internal/ai"
	"github.com/KaramelBytes/labelsift/internal/dataset"
	"github.com/KaramelBytes/labelsift/internal/source"
)

// EnvPrefix prefixes environment overrides, e.g. LABELSIFT_SOURCE.
const EnvPrefix = "LABELSIFT"

// Global configuration structure.
type Global struct {
	Source          string   `mapstructure:"source" yaml:"source"`
	TextCandidates  []string `mapstructure:"text_candidates" yaml:"text_candidates"`
	LabelCandidates []string `mapstructure:"label_candidates" yaml:"label_candidates"`
	TextColumn      string   `mapstructure:"text_column" yaml:"text_column"`
	LabelColumn     string   `mapstructure:"label_column" yaml:"label_column"`
	LabelVocabulary []string `mapstructure:"label_vocabulary" yaml:"label_vocabulary"`
	// Delimiter is a single character; empty means sniff.
	Delimiter string `mapstructure:"delimiter" yaml:"delimiter"`

	// Model is a classifier reference: a .json snapshot, ollama:<m> or openrouter:<m>.
	Model  string `mapstructure:"model" yaml:"model"`
	APIKey string `mapstructure:"api_key" yaml:"api_key"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost string `mapstructure:"ollama_host" yaml:"ollama_host"`

	// Remote sources
	S3Region       string `mapstructure:"s3_region" yaml:"s3_region"`
	S3Endpoint     string `mapstructure:"s3_endpoint" yaml:"s3_endpoint"`
	MaxSourceBytes int64  `mapstructure:"max_source_bytes" yaml:"max_source_bytes"`

	// Web shell
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
	LogLevel   string `mapstructure:"log_level" yaml:"log_level"`
}

// Dir returns ~/.labelsift.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".labelsift"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.labelsift/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	// may hold an API key
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// LoadDotenv exports the variables in path unless already set. A missing
// file is not an error.
func LoadDotenv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	cands := dataset.DefaultCandidates()
	v.SetDefault("source", "hasil_klasifikasi.csv")
	v.SetDefault("text_candidates", cands.Text)
	v.SetDefault("label_candidates", cands.Label)
	v.SetDefault("text_column", dataset.DefaultTextColumn)
	v.SetDefault("label_column", dataset.DefaultLabelColumn)
	v.SetDefault("label_vocabulary", []string(dataset.DefaultVocabulary))
	v.SetDefault("delimiter", "")
	v.SetDefault("model", "")
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("max_source_bytes", source.DefaultMaxBytes)
	v.SetDefault("listen_addr", ":8501")
	v.SetDefault("log_level", "info")
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults; flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if _, err := c.DelimiterRune(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Candidates returns the header candidate lists for the loader.
func (c *Global) Candidates() dataset.Candidates {
	return dataset.Candidates{Text: c.TextCandidates, Label: c.LabelCandidates}
}

// Columns returns the canonical output column names.
func (c *Global) Columns() dataset.Columns {
	return dataset.Columns{Text: c.TextColumn, Label: c.LabelColumn}
}

// Vocabulary returns the single-choice label set.
func (c *Global) Vocabulary() dataset.Vocabulary {
	if len(c.LabelVocabulary) == 0 {
		return dataset.DefaultVocabulary
	}
	return dataset.Vocabulary(c.LabelVocabulary)
}

// DelimiterRune parses Delimiter. "\t" and "tab" both mean a tab.
func (c *Global) DelimiterRune() (rune, error) {
	d := c.Delimiter
	switch strings.ToLower(d) {
	case "":
		return 0, nil
	case `\t`, "tab":
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(d)
	if size != len(d) || r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, fmt.Errorf("invalid delimiter %q: must be a single character other than a quote or newline", d)
	}
	return r, nil
}

// Loader builds a dataset loader from the column settings.
func (c *Global) Loader() *dataset.Loader {
	l := dataset.NewLoader(c.Candidates(), c.Columns())
	l.Delimiter, _ = c.DelimiterRune()
	return l
}

// RuntimeConfig returns the settings for LLM-backed classifiers.
func (c *Global) RuntimeConfig() ai.RuntimeConfig {
	return ai.RuntimeConfig{
		HTTPTimeout: time.Duration(c.HTTPTimeoutSec) * time.Second,
		RetryMax:    c.RetryMaxAttempts,
		BaseDelay:   time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		APIKey:      c.APIKey,
		Host:        c.OllamaHost,
	}
}

// SourceOptions returns the settings for remote sources.
func (c *Global) SourceOptions() source.Options {
	return source.Options{
		S3Region:    c.S3Region,
		S3Endpoint:  c.S3Endpoint,
		HTTPTimeout: time.Duration(c.HTTPTimeoutSec) * time.Second,
		MaxBytes:    c.MaxSourceBytes,
	}
}

// Set assigns a single key from its string form. List keys take
// comma-separated values.
func (c *Global) Set(key, val string) error {
	switch key {
	case "source":
		c.Source = val
	case "text_candidates":
		c.TextCandidates = splitList(val)
	case "label_candidates":
		c.LabelCandidates = splitList(val)
	case "text_column":
		c.TextColumn = strings.TrimSpace(val)
	case "label_column":
		c.LabelColumn = strings.TrimSpace(val)
	case "label_vocabulary":
		l := splitList(val)
		if len(l) == 0 {
			return errors.New("label_vocabulary cannot be empty")
		}
		c.LabelVocabulary = l
	case "delimiter":
		old := c.Delimiter
		c.Delimiter = val
		if _, err := c.DelimiterRune(); err != nil {
			c.Delimiter = old
			return err
		}
	case "model":
		c.Model = val
	case "api_key":
		c.APIKey = val
	case "ollama_host":
		c.OllamaHost = val
	case "http_timeout_sec", "retry_max_attempts", "retry_base_delay_ms", "retry_max_delay_ms":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		switch key {
		case "http_timeout_sec":
			c.HTTPTimeoutSec = i
		case "retry_max_attempts":
			c.RetryMaxAttempts = i
		case "retry_base_delay_ms":
			c.RetryBaseDelayMs = i
		case "retry_max_delay_ms":
			c.RetryMaxDelayMs = i
		}
	case "s3_region":
		c.S3Region = val
	case "s3_endpoint":
		c.S3Endpoint = val
	case "max_source_bytes":
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid size for max_source_bytes: %v", val)
		}
		c.MaxSourceBytes = n
	case "listen_addr":
		c.ListenAddr = val
	case "log_level":
		c.LogLevel = strings.ToLower(val)
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
