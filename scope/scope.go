// Package scope implements a hierarchical reactive state tree with a
// dirty-checking digest loop.
//
// Every scope sits in two trees. The hierarchy tree (HierarchyParent,
// Children) drives digest traversal and destruction. The lookup tree (Parent)
// drives property fallback and is cut for isolated scopes. Phase, queues and
// the digest short-circuit marker live on the root and are shared by every
// scope of the tree.
package scope

import (
	"io"
	"log/slog"

	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/goliatone/go-opular/layering"
	"github.com/goliatone/go-opular/parse"
)

// DefaultDigestTTL is the number of dirty rounds a digest may run.
const DefaultDigestTTL = 10

// Phase is the execution mode of a tree.
type Phase string

const (
	PhaseIdle   Phase = ""
	PhaseApply  Phase = "apply"
	PhaseDigest Phase = "digest"
)

func (p Phase) String() string {
	if p == PhaseIdle {
		return "idle"
	}
	return string(p)
}

// Translator turns expressions into callables.
type Translator interface {
	Callable(expr any) parse.Func
}

// Option configures a root scope.
type Option func(*config)

type config struct {
	logger    *slog.Logger
	ttl       int
	scheduler Scheduler
	observers []Observer
}

// WithLogger sets the logger used for recovered evaluation errors.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithDigestTTL sets the number of dirty rounds a digest may run.
func WithDigestTTL(ttl int) Option {
	return func(cfg *config) {
		cfg.ttl = ttl
	}
}

// WithScheduler sets the scheduler backing EvalAsync and ApplyAsync.
func WithScheduler(scheduler Scheduler) Option {
	return func(cfg *config) {
		cfg.scheduler = scheduler
	}
}

// WithObserver registers lifecycle observers.
func WithObserver(observers ...Observer) Option {
	return func(cfg *config) {
		cfg.observers = append(cfg.observers, observers...)
	}
}

func applyOptions(opts []Option) config {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.ttl <= 0 {
		cfg.ttl = DefaultDigestTTL
	}
	if cfg.scheduler == nil {
		cfg.scheduler = NewLoop()
	}
	return cfg
}

type queued struct {
	scope *Scope
	fn    parse.Func
}

type rootState struct {
	phase            Phase
	asyncQueue       []queued
	applyAsyncQueue  []queued
	postDigestQueue  []func()
	applyAsyncHandle Handle
	lastDirtyWatch   *watcher

	ttl       int
	scheduler Scheduler
	logger    *slog.Logger
	observers []Observer
}

// Scope is one node of the tree.
type Scope struct {
	id       string
	props    *orderedmap.OrderedMap[string, any]
	watchers []*watcher
	children []*Scope

	parent   *Scope
	hparent  *Scope
	isolated bool
	root     *Scope

	parse Translator
	state *rootState
}

// New creates the root of a new tree. A nil translator uses parse.New().
func New(translator Translator, opts ...Option) *Scope {
	cfg := applyOptions(opts)
	if translator == nil {
		translator = parse.New()
	}
	s := &Scope{
		id:    uuid.NewString(),
		props: orderedmap.New[string, any](),
		parse: translator,
		state: &rootState{
			ttl:       cfg.ttl,
			scheduler: cfg.scheduler,
			logger:    cfg.logger,
			observers: cfg.observers,
		},
	}
	s.root = s
	s.state.notify(func(o Observer) { o.ScopeCreated(s) })
	return s
}

// ChildOption configures NewChild.
type ChildOption func(*childConfig)

type childConfig struct {
	isolated bool
	hparent  *Scope
}

// Isolated cuts the lookup chain of the new scope.
func Isolated() ChildOption {
	return func(cfg *childConfig) {
		cfg.isolated = true
	}
}

// WithHierarchyParent links the new scope under parent in the hierarchy tree
// while keeping the receiver as lookup parent.
func WithHierarchyParent(parent *Scope) ChildOption {
	return func(cfg *childConfig) {
		cfg.hparent = parent
	}
}

// NewChild creates a scope below s.
func (s *Scope) NewChild(opts ...ChildOption) *Scope {
	cfg := childConfig{hparent: s}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.hparent == nil {
		cfg.hparent = s
	}
	child := &Scope{
		id:       uuid.NewString(),
		props:    orderedmap.New[string, any](),
		parent:   s,
		hparent:  cfg.hparent,
		isolated: cfg.isolated,
		root:     s.root,
		parse:    s.parse,
		state:    s.state,
	}
	cfg.hparent.children = append(cfg.hparent.children, child)
	s.state.notify(func(o Observer) { o.ScopeCreated(child) })
	return child
}

// Destroy unlinks s from its hierarchy parent. Watchers of the subtree stop
// being digested. Observers still see the parent when notified.
func (s *Scope) Destroy() {
	if s.hparent == nil {
		return
	}
	siblings := s.hparent.children
	for i, child := range siblings {
		if child == s {
			s.hparent.children = append(siblings[:i:i], siblings[i+1:]...)
			break
		}
	}
	s.state.notify(func(o Observer) { o.ScopeDestroyed(s) })
	s.hparent = nil
}

// ID returns the scope identifier.
func (s *Scope) ID() string { return s.id }

// Root returns the tree root.
func (s *Scope) Root() *Scope { return s.root }

// Parent returns the lookup parent, nil for roots and isolated scopes.
func (s *Scope) Parent() *Scope {
	if s.isolated {
		return nil
	}
	return s.parent
}

// HierarchyParent returns the structural parent.
func (s *Scope) HierarchyParent() *Scope { return s.hparent }

// Children returns a copy of the structural children.
func (s *Scope) Children() []*Scope { return append([]*Scope(nil), s.children...) }

// Isolated reports whether the lookup chain stops at s.
func (s *Scope) Isolated() bool { return s.isolated }

// Phase returns the active phase of the tree.
func (s *Scope) Phase() Phase { return s.state.phase }

// DigestTTL returns the configured number of dirty rounds.
func (s *Scope) DigestTTL() int { return s.state.ttl }

// Scheduler returns the scheduler backing the async queues.
func (s *Scope) Scheduler() Scheduler { return s.state.scheduler }

// AddObserver registers an observer on the whole tree.
func (s *Scope) AddObserver(observer Observer) {
	if observer != nil {
		s.state.observers = append(s.state.observers, observer)
	}
}

// Get returns the value of name from s or the closest lookup ancestor.
func (s *Scope) Get(name string) any {
	value, _ := s.Lookup(name)
	return value
}

// Lookup is Get reporting whether name was found.
func (s *Scope) Lookup(name string) (any, bool) {
	for current := s; current != nil; current = current.Parent() {
		if value, ok := current.props.Get(name); ok {
			return value, true
		}
	}
	return nil, false
}

// Set stores value on s, shadowing any ancestor value.
func (s *Scope) Set(name string, value any) {
	s.props.Set(name, value)
}

// Has reports whether name resolves on s or a lookup ancestor.
func (s *Scope) Has(name string) bool {
	_, ok := s.Lookup(name)
	return ok
}

// HasOwn reports whether name is stored on s itself.
func (s *Scope) HasOwn(name string) bool {
	_, ok := s.props.Get(name)
	return ok
}

// Delete removes name from s. Ancestor values become visible again.
func (s *Scope) Delete(name string) {
	s.props.Delete(name)
}

// Keys returns the names stored on s in insertion order.
func (s *Scope) Keys() []string {
	keys := make([]string, 0, s.props.Len())
	for pair := s.props.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Vars returns the flattened lookup view of s.
func (s *Scope) Vars() map[string]any {
	var layers []map[string]any
	for current := s; current != nil; current = current.Parent() {
		layers = append(layers, current.own())
	}
	return layering.Overlay(layers...)
}

func (s *Scope) own() map[string]any {
	out := make(map[string]any, s.props.Len())
	for pair := s.props.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = pair.Value
	}
	return out
}
