package main

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vogtb/go-spreadsheet/packages/formula"
	"gopkg.in/yaml.v3"
)

// Config is the sheetcalc configuration file. Command line flags win over
// values read from the file.
type Config struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	CacheSize   int    `yaml:"cache_size"`
	MaxNesting  int    `yaml:"max_nesting"`
	Parallelism int    `yaml:"parallelism"`
	HistoryFile string `yaml:"history_file"`
}

func DefaultConfig() Config {
	return Config{
		LogLevel:    "warn",
		LogFormat:   "text",
		CacheSize:   formula.DefaultCacheSize,
		MaxNesting:  formula.DefaultMaxNesting,
		Parallelism: runtime.NumCPU(),
		HistoryFile: "~/.sheetcalc_history",
	}
}

// LoadConfig reads path over the defaults. An empty path gives the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return cfg, errors.Wrap(err, "reading config")
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.CacheSize < 0 {
		return errors.Errorf("cache_size must not be negative, got %d", c.CacheSize)
	}
	if c.MaxNesting <= 0 {
		return errors.Errorf("max_nesting must be positive, got %d", c.MaxNesting)
	}
	if c.Parallelism <= 0 {
		return errors.Errorf("parallelism must be positive, got %d", c.Parallelism)
	}
	return nil
}

// Logger builds the logger described by the configuration, writing to w.
func (c Config) Logger(w io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "log_level")
	}

	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(level)
	switch c.LogFormat {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, errors.Errorf("unknown log_format %q", c.LogFormat)
	}
	return log, nil
}

// Engine builds a formula engine with the configured limits.
func (c Config) Engine(log logrus.FieldLogger) *formula.Engine {
	return formula.NewEngine(
		formula.WithLogger(log),
		formula.WithCacheSize(c.CacheSize),
		formula.WithMaxNesting(c.MaxNesting),
	)
}

// historyPath expands a leading ~ in the history file setting.
func (c Config) historyPath() string {
	path := c.HistoryFile
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}
