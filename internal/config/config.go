// Package config loads wdlstat settings from defaults, an optional YAML
// file, WDLSTAT_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configName = ".wdlstat"
	configType = "yaml"
	envPrefix  = "WDLSTAT"
)

// Defaults.
const (
	DefaultDir      = "./pgns"
	DefaultOutput   = "scoreWLDstat.json"
	DefaultMaxPlies = 400
	DefaultLogLevel = "info"
)

// Config holds the settings of one run.
type Config struct {
	Dir       string `mapstructure:"dir"`
	File      string `mapstructure:"file"`
	Recursive bool   `mapstructure:"recursive"`
	Workers   int    `mapstructure:"workers"`
	Output    string `mapstructure:"output"`
	MaxPlies  int    `mapstructure:"max_plies"`
	Top       int    `mapstructure:"top"`
	LogLevel  string `mapstructure:"log_level"`
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.MaxPlies < 1 {
		errs = append(errs, fmt.Errorf("max_plies must be at least 1, got %d", c.MaxPlies))
	}
	if c.Top < 0 {
		errs = append(errs, fmt.Errorf("top must not be negative, got %d", c.Top))
	}
	if c.Output == "" {
		errs = append(errs, errors.New("output must not be empty"))
	}
	return errors.Join(errs...)
}

// SingleFile reports whether a single input file was requested.
func (c *Config) SingleFile() bool {
	return c.File != ""
}

// Load resolves the configuration. configPath selects an explicit config
// file; otherwise .wdlstat.yaml is looked up in the working directory and
// $HOME, and a missing file is not an error. Flags that were set on the
// command line override every other source.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("dir", DefaultDir)
	v.SetDefault("file", "")
	v.SetDefault("recursive", false)
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("output", DefaultOutput)
	v.SetDefault("max_plies", DefaultMaxPlies)
	v.SetDefault("top", 0)
	v.SetDefault("log_level", DefaultLogLevel)
}

// bindFlags binds each flag to the key with dashes replaced by underscores.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || err != nil {
			return
		}
		err = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
	return err
}
