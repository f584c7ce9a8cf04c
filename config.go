package opular

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-opular/parse"
	"github.com/goliatone/go-opular/scope"
)

// Config is the file form of the core module options.
type Config struct {
	DigestTTL int    `yaml:"digest_ttl"`
	Engine    string `yaml:"engine"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		DigestTTL: scope.DefaultDigestTTL,
		Engine:    parse.EngineExpr,
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// LoadConfig decodes YAML from r over the defaults. Unknown keys are
// rejected. An empty document yields the defaults.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("opular: decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configured values.
func (c Config) Validate() error {
	var errs []error
	if c.DigestTTL < 0 {
		errs = append(errs, fmt.Errorf("digest_ttl must not be negative, got %d", c.DigestTTL))
	}
	switch c.Engine {
	case "", parse.EngineExpr, parse.EngineCEL, parse.EngineJS:
	default:
		errs = append(errs, fmt.Errorf("engine %q: %w", c.Engine, parse.ErrUnknownEngine))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q is not text or json", c.LogFormat))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("opular: invalid config: %w", err)
	}
	return nil
}

// Logger builds the logger described by the config.
func (c Config) Logger(w io.Writer) *slog.Logger {
	return NewLogger(c.LogLevel, c.LogFormat, w)
}

// Options converts the config to core module options, logging to w.
func (c Config) Options(w io.Writer) []Option {
	opts := []Option{
		WithLogger(c.Logger(w)),
		WithEngine(c.Engine),
	}
	if c.DigestTTL > 0 {
		opts = append(opts, WithDigestTTL(c.DigestTTL))
	}
	return opts
}
