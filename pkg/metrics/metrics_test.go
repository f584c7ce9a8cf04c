package metrics_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-opular/parse"
	"github.com/goliatone/go-opular/pkg/metrics"
	"github.com/goliatone/go-opular/scope"
)

func TestCollectorRecordsScopesAndDigests(t *testing.T) {
	collector := metrics.New("opular")
	registry := prometheus.NewPedanticRegistry()
	require.NoError(t, registry.Register(collector))

	root := scope.New(parse.New(), scope.WithObserver(collector))
	child := root.NewChild()
	root.Set("n", 1)
	root.Watch(func(s *scope.Scope) any { return s.Get("n") }, func(any, any, *scope.Scope) {}, false)
	require.NoError(t, root.Digest())
	child.Destroy()

	expected := `
# HELP opular_digests_total Total number of digests by result.
# TYPE opular_digests_total counter
opular_digests_total{result="ok"} 1
# HELP opular_scopes_created_total Total number of scopes created.
# TYPE opular_scopes_created_total counter
opular_scopes_created_total 2
# HELP opular_scopes_destroyed_total Total number of scopes destroyed.
# TYPE opular_scopes_destroyed_total counter
opular_scopes_destroyed_total 1
# HELP opular_scopes_live Scopes created and not yet destroyed.
# TYPE opular_scopes_live gauge
opular_scopes_live 1
`
	err := testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"opular_digests_total",
		"opular_scopes_created_total",
		"opular_scopes_destroyed_total",
		"opular_scopes_live",
	)
	require.NoError(t, err)
	assert.Equal(t, 1, testutil.CollectAndCount(collector, "opular_digest_rounds"))
}

func TestCollectorLabelsTTLFailures(t *testing.T) {
	collector := metrics.New("opular")
	root := scope.New(parse.New(), scope.WithObserver(collector), scope.WithDigestTTL(3))

	counter := 0
	root.Watch(func(*scope.Scope) any {
		counter++
		return counter
	}, func(any, any, *scope.Scope) {}, false)

	err := root.Digest()
	require.ErrorIs(t, err, scope.ErrDigestTTLExceeded)

	collector.DigestFailed(root, errors.New("other"))

	expected := `
# HELP opular_digests_total Total number of digests by result.
# TYPE opular_digests_total counter
opular_digests_total{result="error"} 1
opular_digests_total{result="ttl_exceeded"} 1
`
	require.NoError(t, testutil.CollectAndCompare(collector, strings.NewReader(expected), "opular_digests_total"))
}

func TestCollectorCountsWatchErrors(t *testing.T) {
	collector := metrics.New("opular")
	root := scope.New(parse.New(), scope.WithObserver(collector))

	root.Watch(func(*scope.Scope) (any, error) {
		return nil, errors.New("broken watch")
	}, func(any, any, *scope.Scope) {}, false)
	require.NoError(t, root.Digest())

	assert.Equal(t, 1, testutil.CollectAndCount(collector, "opular_watch_errors_total"))
	expected := `
# HELP opular_watch_errors_total Watch expression and listener errors recovered during digests.
# TYPE opular_watch_errors_total counter
opular_watch_errors_total 1
`
	require.NoError(t, testutil.CollectAndCompare(collector, strings.NewReader(expected), "opular_watch_errors_total"))
}
