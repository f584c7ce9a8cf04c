package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-opular"
	"github.com/goliatone/go-opular/pkg/activity"
	"github.com/goliatone/go-opular/pkg/metrics"
)

func newEvalCmd(root *rootOptions) *cobra.Command {
	var assignments []string
	var stats bool

	cmd := &cobra.Command{
		Use:   "eval <expression>",
		Short: "Evaluate an expression against a digested root scope",
		Long: `Sets the given variables on a fresh root scope, applies the expression
and prints its result once the digest settled. Values are parsed as YAML
scalars, so --set n=2 yields a number and --set s=abc a string.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd.OutOrStdout(), root, args[0], assignments, stats)
		},
	}
	cmd.Flags().StringArrayVar(&assignments, "set", nil, "scope variable as name=value (repeatable)")
	cmd.Flags().BoolVar(&stats, "stats", false, "print digest metrics after the result")
	return cmd
}

func runEval(out io.Writer, root *rootOptions, expression string, assignments []string, stats bool) error {
	cfg, err := root.runtimeConfig()
	if err != nil {
		return err
	}
	logger := cfg.Logger(os.Stderr)
	collector := metrics.New("opular")
	gatherer := prometheus.NewRegistry()
	if err := gatherer.Register(collector); err != nil {
		return err
	}
	emitter := activity.NewEmitter(activity.Hooks{activityLogger(logger)}, activity.Config{
		Enabled: true,
		ActorID: "cli",
		Logger:  logger,
	})

	opts := append(cfg.Options(os.Stderr),
		opular.WithLogger(logger),
		opular.WithObserver(collector, activity.NewObserver(context.Background(), emitter)),
	)
	registry, err := opular.NewRegistry(opts...)
	if err != nil {
		return err
	}
	inj, err := opular.Bootstrap(registry, nil)
	if err != nil {
		return err
	}
	scope, _, err := opular.Services(inj)
	if err != nil {
		return err
	}

	for _, assignment := range assignments {
		name, raw, ok := strings.Cut(assignment, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return fmt.Errorf("invalid --set %q, want name=value", assignment)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return fmt.Errorf("--set %s: %w", name, err)
		}
		scope.Set(strings.TrimSpace(name), value)
	}

	result, err := scope.Apply(expression)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(out, result); err != nil {
		return err
	}
	if stats {
		return printStats(out, gatherer)
	}
	return nil
}

func activityLogger(logger *slog.Logger) activity.HookFunc {
	return func(_ context.Context, event activity.Event) error {
		logger.Debug("activity", "verb", event.Verb, "object", event.ObjectType, "id", event.ObjectID)
		return nil
	}
}

// printStats writes counters, gauges and histogram sample counts as
// "name{labels} value" lines.
func printStats(out io.Writer, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return err
	}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			labels := make([]string, 0, len(metric.GetLabel()))
			for _, label := range metric.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", label.GetName(), label.GetValue()))
			}
			name := family.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}

			var value float64
			switch {
			case metric.GetCounter() != nil:
				value = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				value = metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				name += "_count"
				value = float64(metric.GetHistogram().GetSampleCount())
			}
			if _, err := fmt.Fprintf(out, "%s %g\n", name, value); err != nil {
				return err
			}
		}
	}
	return nil
}
