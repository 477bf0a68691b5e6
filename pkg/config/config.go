// Package config loads weaver settings from defaults, an optional
// weaver.yaml, WEAVER_* environment variables and command line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read from the working directory when no config file is
// named explicitly.
const DefaultFile = "weaver.yaml"

// EnvPrefix prefixes environment overrides, e.g. WEAVER_LOG_LEVEL.
const EnvPrefix = "WEAVER"

// Keys shared by flags, the config file and the environment.
const (
	KeyRoots            = "roots"
	KeyInclude          = "include"
	KeyFormat           = "format"
	KeyOut              = "out"
	KeyForce            = "force"
	KeyJobs             = "jobs"
	KeyExclude          = "exclude"
	KeyExt              = "ext"
	KeyParser           = "parser"
	KeyKeepComments     = "keep-comments"
	KeyHidden           = "hidden"
	KeyNoFollowSymlinks = "no-follow-symlinks"
	KeyLogLevel         = "log-level"
	KeyVerbose          = "verbose"
	KeyMetricsFile      = "metrics-file"
)

// Config is the resolved configuration of one run
type Config struct {
	Roots            []string `mapstructure:"roots" yaml:"roots"`
	Include          []string `mapstructure:"include" yaml:"include"`
	Format           string   `mapstructure:"format" yaml:"format"`
	Out              string   `mapstructure:"out" yaml:"out,omitempty"`
	Force            bool     `mapstructure:"force" yaml:"force"`
	Jobs             int      `mapstructure:"jobs" yaml:"jobs" validate:"gte=0,lte=4096"`
	Exclude          []string `mapstructure:"exclude" yaml:"exclude"`
	Ext              []string `mapstructure:"ext" yaml:"ext" validate:"dive,required"`
	Parser           string   `mapstructure:"parser" yaml:"parser" validate:"oneof=scan treesitter"`
	KeepComments     bool     `mapstructure:"keep-comments" yaml:"keep-comments"`
	Hidden           bool     `mapstructure:"hidden" yaml:"hidden"`
	NoFollowSymlinks bool     `mapstructure:"no-follow-symlinks" yaml:"no-follow-symlinks"`
	LogLevel         string   `mapstructure:"log-level" yaml:"log-level" validate:"oneof=debug info warn warning error silent"`
	Verbose          bool     `mapstructure:"verbose" yaml:"verbose"`
	MetricsFile      string   `mapstructure:"metrics-file" yaml:"metrics-file,omitempty"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Roots:    []string{},
		Include:  []string{},
		Format:   "dot",
		Exclude:  []string{},
		Ext:      []string{},
		Parser:   "scan",
		LogLevel: "warn",
	}
}

// RegisterFlags defines the command line flags for every config key.
func RegisterFlags(fs *pflag.FlagSet) {
	d := DefaultConfig()
	fs.StringArrayP(KeyInclude, "I", nil, "add `DIR` to the include search path (repeatable, searched in order)")
	fs.StringP(KeyFormat, "f", d.Format, "output `FORMAT`: dot or xml (GraphML)")
	fs.StringP(KeyOut, "o", "", "write the graph to `FILE` instead of stdout")
	fs.Bool(KeyForce, false, "overwrite an existing --out file")
	fs.IntP(KeyJobs, "j", 0, "number of parser workers (0 = one per CPU)")
	fs.StringArrayP(KeyExclude, "e", nil, "skip paths matching gitignore-style `PATTERN` (repeatable)")
	fs.StringArray(KeyExt, nil, "recognized file `EXT`ension, replaces the default C/C++ set (repeatable, e.g. --ext .c --ext .h --ext .x)")
	fs.String(KeyParser, d.Parser, "include extraction backend: scan or treesitter")
	fs.Bool(KeyKeepComments, false, "report directives found inside comments")
	fs.Bool(KeyHidden, false, "descend into hidden files and directories")
	fs.Bool(KeyNoFollowSymlinks, false, "do not follow symbolic links")
	fs.String(KeyLogLevel, d.LogLevel, "log `LEVEL`: debug, info, warn, error or silent")
	fs.Bool(KeyVerbose, false, "enable debug logging and verbose output")
	fs.String(KeyMetricsFile, "", "write run metrics in Prometheus text format to `FILE`")
}

// Load resolves the configuration. When configFile is empty, weaver.yaml in
// the working directory is used if it exists. Flags may be nil.
func Load(flags *pflag.FlagSet, configFile string) (*Config, error) {
	v := viper.New()

	d := DefaultConfig()
	v.SetDefault(KeyRoots, d.Roots)
	v.SetDefault(KeyInclude, d.Include)
	v.SetDefault(KeyFormat, d.Format)
	v.SetDefault(KeyOut, d.Out)
	v.SetDefault(KeyForce, d.Force)
	v.SetDefault(KeyJobs, d.Jobs)
	v.SetDefault(KeyExclude, d.Exclude)
	v.SetDefault(KeyExt, d.Ext)
	v.SetDefault(KeyParser, d.Parser)
	v.SetDefault(KeyKeepComments, d.KeepComments)
	v.SetDefault(KeyHidden, d.Hidden)
	v.SetDefault(KeyNoFollowSymlinks, d.NoFollowSymlinks)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyVerbose, d.Verbose)
	v.SetDefault(KeyMetricsFile, d.MetricsFile)

	// Enable environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			configFile = DefaultFile
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	if err := rawArrays(flags, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// rawArrays copies repeatable flags given on the command line verbatim.
// Viper round-trips them through CSV, which drops empty values and splits
// values that contain commas.
func rawArrays(flags *pflag.FlagSet, cfg *Config) error {
	if flags == nil {
		return nil
	}
	for key, dst := range map[string]*[]string{
		KeyInclude: &cfg.Include,
		KeyExclude: &cfg.Exclude,
		KeyExt:     &cfg.Ext,
	} {
		f := flags.Lookup(key)
		if f == nil || !f.Changed {
			continue
		}
		values, err := flags.GetStringArray(key)
		if err != nil {
			return fmt.Errorf("reading --%s: %w", key, err)
		}
		*dst = values
	}
	return nil
}

var validate = newValidator()

// newValidator reports fields by their config key rather than the Go name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
	})
	return v
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid configuration: %s=%v (%s %s)", fe.Field(), fe.Value(), fe.Tag(), fe.Param())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Dump writes the configuration as YAML
func Dump(w io.Writer, c *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return enc.Close()
}
