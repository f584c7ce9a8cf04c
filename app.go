package opular

import (
	"log/slog"

	"github.com/goliatone/go-opular/compile"
)

// DataSetter is implemented by nodes carrying a data bag, such as
// *dom.Element.
type DataSetter interface {
	SetData(key string, value any)
}

// App is the op_app directive. It marks the nodes it compiles with
// hasCompiled=true.
type App struct {
	logger *slog.Logger
}

// Restrict implements compile.Directive.
func (a *App) Restrict() compile.Restrict { return compile.RestrictAttribute }

// Compile implements compile.Directive.
func (a *App) Compile(nodes []compile.Node) error {
	for _, node := range nodes {
		if bag, ok := node.(DataSetter); ok {
			bag.SetData("hasCompiled", true)
		}
	}
	if a.logger != nil {
		a.logger.Debug("opular: application compiled", "nodes", len(nodes))
	}
	return nil
}
