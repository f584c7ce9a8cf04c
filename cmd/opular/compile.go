package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-opular"
	"github.com/goliatone/go-opular/compile"
	"github.com/goliatone/go-opular/dom"
)

type manifest struct {
	Directives map[string]map[string]any `yaml:"directives"`
}

func newCompileCmd(root *rootOptions) *cobra.Command {
	var directivesPath string
	var render bool

	cmd := &cobra.Command{
		Use:   "compile <file.html>",
		Short: "Report the directives applied to an HTML fragment",
		Long: `Parses the HTML file, registers the directives declared in the manifest
and prints one line per directive application in compile order.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			markup, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer markup.Close()

			var m manifest
			if directivesPath != "" {
				raw, err := os.ReadFile(directivesPath)
				if err != nil {
					return err
				}
				if err := yaml.Unmarshal(raw, &m); err != nil {
					return fmt.Errorf("decode directives: %w", err)
				}
			}
			return runCompile(cmd.OutOrStdout(), root, markup, m, render)
		},
	}
	cmd.Flags().StringVarP(&directivesPath, "directives", "d", "", "YAML manifest of directive definitions")
	cmd.Flags().BoolVar(&render, "render", false, "print the fragment after compilation")
	return cmd
}

func runCompile(out io.Writer, root *rootOptions, markup io.Reader, m manifest, render bool) error {
	cfg, err := root.runtimeConfig()
	if err != nil {
		return err
	}
	registry, err := opular.NewRegistry(cfg.Options(os.Stderr)...)
	if err != nil {
		return err
	}

	module := registry.Module("cli", opular.CoreModule)
	for name, def := range m.Directives {
		definition := make(map[string]any, len(def)+1)
		for k, v := range def {
			definition[k] = v
		}
		definition["compile"] = reporter(out, name)
		module.Directive(name, definition)
	}

	inj, err := opular.Bootstrap(registry, []any{"cli"})
	if err != nil {
		return err
	}
	_, compiler, err := opular.Services(inj)
	if err != nil {
		return err
	}

	doc, err := dom.ParseReader(markup)
	if err != nil {
		return err
	}
	if err := compiler.Run(doc.Nodes()); err != nil {
		return err
	}
	if render {
		if err := doc.Render(out); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}
	return nil
}

func reporter(out io.Writer, name string) compile.CompileFunc {
	return func(nodes []compile.Node) error {
		tags := make([]string, 0, len(nodes))
		for _, node := range nodes {
			tags = append(tags, node.TagName())
		}
		_, err := fmt.Fprintf(out, "%s %v\n", name, tags)
		return err
	}
}
