package opular_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-opular"
	"github.com/goliatone/go-opular/dom"
	"github.com/goliatone/go-opular/injector"
	"github.com/goliatone/go-opular/parse"
	"github.com/goliatone/go-opular/scope"
)

func TestBootstrapProvidesCoreServices(t *testing.T) {
	registry, err := opular.NewRegistry()
	require.NoError(t, err)

	inj, err := opular.Bootstrap(registry, nil)
	require.NoError(t, err)

	for _, key := range []string{opular.KeyParse, opular.KeyRootScope, opular.KeyCompile} {
		assert.True(t, inj.Has(key), key)
	}

	root, compiler, err := opular.Services(inj)
	require.NoError(t, err)
	require.NotNil(t, compiler)
	assert.Equal(t, scope.DefaultDigestTTL, root.DigestTTL())

	parser, err := injector.GetAs[*parse.Parser](inj, opular.KeyParse)
	require.NoError(t, err)
	assert.Equal(t, parse.EngineExpr, parser.Engine().Name())
}

func TestAppDirectiveMarksNode(t *testing.T) {
	registry, err := opular.NewRegistry()
	require.NoError(t, err)
	inj, err := opular.Bootstrap(registry, nil)
	require.NoError(t, err)
	_, compiler, err := opular.Services(inj)
	require.NoError(t, err)

	doc, err := dom.Parse(`<div op-app><span></span></div>`)
	require.NoError(t, err)
	require.NoError(t, compiler.Run(doc.Nodes()))

	value, ok := doc.Find("div")[0].Data("hasCompiled")
	assert.True(t, ok)
	assert.Equal(t, true, value)

	_, ok = doc.Find("span")[0].Data("hasCompiled")
	assert.False(t, ok)
}

func TestConfigBlockTunesRootScope(t *testing.T) {
	registry, err := opular.NewRegistry()
	require.NoError(t, err)

	registry.Module("app", opular.CoreModule).
		Config(injector.Annotate(func(p *scope.Provider) {
			p.DigestTTL(19)
		}, opular.KeyRootScope+"_provider"))

	inj, err := opular.Bootstrap(registry, []any{"app"})
	require.NoError(t, err)
	root, err := injector.GetAs[*scope.Scope](inj, opular.KeyRootScope)
	require.NoError(t, err)
	assert.Equal(t, 19, root.DigestTTL())
}

func TestRootScopeEvaluatesStringExpressions(t *testing.T) {
	registry, err := opular.NewRegistry(opular.WithDigestTTL(3))
	require.NoError(t, err)
	inj, err := opular.Bootstrap(registry, nil)
	require.NoError(t, err)
	root, _, err := opular.Services(inj)
	require.NoError(t, err)
	assert.Equal(t, 3, root.DigestTTL())

	root.Set("a", 2)
	value, err := root.Eval("a + 1", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, value)

	var seen []any
	root.Watch("a * 10", func(newValue, _ any, _ *scope.Scope) {
		seen = append(seen, newValue)
	}, false)
	_, err = root.Apply(func(s *scope.Scope) { s.Set("a", 4) })
	require.NoError(t, err)
	assert.Equal(t, []any{40}, seen)
}

func TestCELEngineOption(t *testing.T) {
	registry, err := opular.NewRegistry(opular.WithEngine(parse.EngineCEL))
	require.NoError(t, err)
	inj, err := opular.Bootstrap(registry, nil)
	require.NoError(t, err)
	root, _, err := opular.Services(inj)
	require.NoError(t, err)

	root.Set("count", 2)
	value, err := root.Eval("count + 1", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, value)
}

func TestUnknownEngineRejected(t *testing.T) {
	_, err := opular.NewRegistry(opular.WithEngine("lua"))
	require.ErrorIs(t, err, parse.ErrUnknownEngine)
}

func TestBootstrapRequiresCoreModule(t *testing.T) {
	_, err := opular.Bootstrap(injector.NewRegistry(), nil)
	require.ErrorIs(t, err, injector.ErrModuleNotFound)
}

func TestObserversReceiveDigests(t *testing.T) {
	observer := &countingObserver{}
	registry, err := opular.NewRegistry(opular.WithObserver(observer))
	require.NoError(t, err)
	inj, err := opular.Bootstrap(registry, nil)
	require.NoError(t, err)
	root, _, err := opular.Services(inj)
	require.NoError(t, err)

	require.NoError(t, root.Digest())
	require.NoError(t, root.Digest())
	assert.Equal(t, 2, observer.digests)
}

type countingObserver struct {
	scope.BaseObserver
	digests int
}

func (o *countingObserver) DigestCompleted(*scope.Scope, int, time.Duration) { o.digests++ }

func TestNewLoggerNormalizesErrorKey(t *testing.T) {
	var buf bytes.Buffer
	logger := opular.NewLogger("debug", "json", &buf)
	logger.Debug("failed", "error", errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, `"err":"boom"`)
	assert.Contains(t, out, `"level":"DEBUG"`)
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := opular.NewLogger("warn", "text", &buf)
	logger.Info("hidden")
	logger.Warn("shown")

	assert.False(t, strings.Contains(buf.String(), "hidden"))
	assert.True(t, strings.Contains(buf.String(), "shown"))
}
