// Package injector implements a name-keyed dependency injection container with
// lazy, memoized singletons and cycle detection.
//
// The container is split in two tiers that share one resolution mechanism:
//
//   - the provider tier caches provider objects under "<key>_provider" and is
//     reachable from config blocks before any instance exists;
//   - the instance tier caches resolved singletons under the plain key and,
//     on a miss, asks the provider tier for "<key>_provider" and invokes its
//     resolver.
//
// Each cache entry is a three-state cell (absent, in progress, resolved). A
// lookup that finds an in-progress cell fails with CircularDependencyError and
// the path of keys being built. Failed resolutions clear their cell so a later
// attempt starts clean.
//
// Go has no parameter-name introspection, so callables declare their
// dependencies explicitly:
//
//	fn := injector.Annotate(func(cfg *Config, log *slog.Logger) *Server {
//		return &Server{cfg: cfg, log: log}
//	}, "config", "logger")
//
//	provide.Factory("server", fn)
//
// Constructors follow a two-phase protocol (allocate, then initialise with
// dependencies) so the init function receives a live handle to the value it is
// building:
//
//	ctor := injector.Construct[Server](func(s *Server, cfg *Config) {
//		s.cfg = cfg
//	}, "config")
//
// Modules are declared on an explicit Registry and loaded by New in
// dependency order; see Registry and Module.
package injector
