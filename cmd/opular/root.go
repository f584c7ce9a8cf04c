package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-opular"
)

type rootOptions struct {
	configPath string
	engine     string
	logLevel   string
	digestTTL  int
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "opular",
		Short:         "Compile markup and evaluate expressions with the opular runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags (available to all commands)
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML runtime configuration file")
	cmd.PersistentFlags().StringVar(&opts.engine, "engine", "", "expression engine: expr, cel or js")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	cmd.PersistentFlags().IntVar(&opts.digestTTL, "digest-ttl", 0, "maximum digest rounds")

	cmd.AddCommand(newCompileCmd(opts), newEvalCmd(opts))
	return cmd
}

// runtimeConfig merges the config file with the flags given on the command
// line.
func (o *rootOptions) runtimeConfig() (opular.Config, error) {
	cfg := opular.DefaultConfig()
	if o.configPath != "" {
		file, err := os.Open(o.configPath)
		if err != nil {
			return cfg, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		if cfg, err = opular.LoadConfig(file); err != nil {
			return cfg, err
		}
	}
	if o.engine != "" {
		cfg.Engine = o.engine
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.digestTTL > 0 {
		cfg.DigestTTL = o.digestTTL
	}
	return cfg, cfg.Validate()
}
