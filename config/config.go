// Package config provides loading and parsing of protodict.yaml configuration files.
// A configuration names the descriptor sets and message type to convert, the
// serialization format, and the encode/decode options used by the CLI.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zero-day-ai/protodict"
	"github.com/zero-day-ai/protodict/enum"
	"github.com/zero-day-ai/protodict/format"
	"google.golang.org/protobuf/reflect/protoreflect"
	"gopkg.in/yaml.v3"
)

// File names searched for when a directory is given.
const (
	FileName    = "protodict.yaml"
	AltFileName = "protodict.yml"
)

// ErrNotFound is returned when no configuration file exists where one was
// searched for.
var ErrNotFound = errors.New("config file not found")

// Defaults applied by ApplyDefaults.
const (
	DefaultFormat      = "json"
	DefaultConcurrency = 4
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
)

// Config represents a protodict.yaml configuration file.
type Config struct {
	// Descriptors lists serialized FileDescriptorSet files. Relative paths
	// are resolved against the directory of the config file.
	Descriptors []string `yaml:"descriptors,omitempty"`

	// MessageType is the fully-qualified message name, e.g. "scan.v1.Target".
	MessageType string `yaml:"message_type,omitempty"`

	// Format is the mapping serialization format: json, yaml or msgpack.
	Format string `yaml:"format,omitempty"`

	Encode  EncodeConfig  `yaml:"encode,omitempty"`
	Decode  DecodeConfig  `yaml:"decode,omitempty"`
	Workers WorkersConfig `yaml:"workers,omitempty"`
	Log     LogConfig     `yaml:"log,omitempty"`
}

// EncodeConfig mirrors the protodict encode options.
type EncodeConfig struct {
	EnumLabels    bool   `yaml:"enum_labels,omitempty"`
	UnknownEnums  string `yaml:"unknown_enums,omitempty"` // "error" or "number"
	Int64AsString bool   `yaml:"int64_as_string,omitempty"`
	JSONNames     bool   `yaml:"json_names,omitempty"`
}

// DecodeConfig mirrors the protodict decode options.
type DecodeConfig struct {
	// Strict rejects unknown keys. Default: true
	Strict *bool `yaml:"strict,omitempty"`

	// EnumAliases maps a fully-qualified enum name to alias/value-name pairs,
	// e.g. {"scan.v1.ScanType": {"syn": "SYN_SCAN"}}.
	EnumAliases map[string]map[string]string `yaml:"enum_aliases,omitempty"`
}

// WorkersConfig controls batch conversion.
type WorkersConfig struct {
	// Concurrency is the number of records converted in parallel.
	// Default: 4
	Concurrency int `yaml:"concurrency,omitempty"`
}

// LogConfig controls CLI logging.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // text or json
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// Load reads and parses a protodict.yaml file from the given path.
// If the path is a directory, it looks for protodict.yaml or protodict.yml in that directory.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	configPath := path
	if info.IsDir() {
		configPath, err = findConfig(path)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.resolvePaths(filepath.Dir(configPath))
	return &config, nil
}

func findConfig(dir string) (string, error) {
	for _, name := range []string{FileName, AltFileName} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no %s or %s found in %s", ErrNotFound, FileName, AltFileName, dir)
}

// LoadFromDir searches for protodict.yaml starting from the given directory
// and walking up to parent directories until found or root is reached.
func LoadFromDir(dir string) (*Config, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	for {
		if _, err := findConfig(absDir); err == nil {
			return Load(absDir)
		}

		parent := filepath.Dir(absDir)
		if parent == absDir {
			return nil, fmt.Errorf("%w: no %s found in %s or parent directories", ErrNotFound, FileName, dir)
		}
		absDir = parent
	}
}

func (c *Config) resolvePaths(base string) {
	for i, p := range c.Descriptors {
		if !filepath.IsAbs(p) {
			c.Descriptors[i] = filepath.Join(base, p)
		}
	}
}

// ApplyDefaults fills unset fields with their default values.
func (c *Config) ApplyDefaults() {
	if c.Format == "" {
		c.Format = DefaultFormat
	}
	if c.Encode.UnknownEnums == "" {
		c.Encode.UnknownEnums = protodict.UnknownEnumError.String()
	}
	if c.Decode.Strict == nil {
		strict := true
		c.Decode.Strict = &strict
	}
	if c.Workers.Concurrency <= 0 {
		c.Workers.Concurrency = DefaultConcurrency
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

// Validate checks the configuration, reporting every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Format != "" {
		if _, err := format.Lookup(c.Format); err != nil {
			errs = append(errs, err)
		}
	}
	if _, ok := protodict.ParseUnknownEnumPolicy(c.Encode.UnknownEnums); !ok {
		errs = append(errs, fmt.Errorf("encode.unknown_enums must be \"error\" or \"number\", got %q", c.Encode.UnknownEnums))
	}
	if c.Workers.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("workers.concurrency must not be negative, got %d", c.Workers.Concurrency))
	}
	if c.Log.Level != "" {
		if _, err := c.LogLevel(); err != nil {
			errs = append(errs, err)
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if c.Log.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("invalid log.level %q: %w", c.Log.Level, err)
	}
	return level, nil
}

// FormatCodec returns the configured format.
func (c *Config) FormatCodec() (format.Format, error) {
	name := c.Format
	if name == "" {
		name = DefaultFormat
	}
	return format.Lookup(name)
}

// EncodeOptions converts the encode section into protodict options.
func (c *Config) EncodeOptions() []protodict.EncodeOption {
	policy, _ := protodict.ParseUnknownEnumPolicy(c.Encode.UnknownEnums)
	return []protodict.EncodeOption{
		protodict.WithEnumLabels(c.Encode.EnumLabels),
		protodict.WithUnknownEnumPolicy(policy),
		protodict.WithInt64AsString(c.Encode.Int64AsString),
		protodict.WithJSONNames(c.Encode.JSONNames),
	}
}

// DecodeOptions converts the decode section into protodict options, followed
// by extra. Mappings keyed by JSON names are accepted when encode.json_names
// is set.
func (c *Config) DecodeOptions(extra ...protodict.DecodeOption) []protodict.DecodeOption {
	strict := c.Decode.Strict == nil || *c.Decode.Strict
	opts := []protodict.DecodeOption{protodict.WithStrict(strict)}
	if c.Encode.JSONNames {
		opts = append(opts, protodict.AcceptJSONNames(true))
	}

	if len(c.Decode.EnumAliases) > 0 {
		aliases := enum.NewRegistry()
		for enumName, pairs := range c.Decode.EnumAliases {
			aliases.Register(protoreflect.FullName(enumName), pairs)
		}
		opts = append(opts, protodict.WithEnumAliases(aliases))
	}

	return append(opts, extra...)
}
