package scope

import "github.com/goliatone/go-opular/injector"

// KeyParse is the service the root scope provider injects as translator.
const KeyParse = "_parse"

// Provider builds the root scope of an injector. Config blocks reach it as
// "_root_scope_provider" to tune the digest before the root exists.
type Provider struct {
	ttl       int
	observers []Observer
	opts      []Option
}

// NewProvider constructs a Provider building roots with opts.
func NewProvider(opts ...Option) *Provider {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	ttl := cfg.ttl
	if ttl <= 0 {
		ttl = DefaultDigestTTL
	}
	return &Provider{
		ttl:  ttl,
		opts: append([]Option(nil), opts...),
	}
}

// DigestTTL sets the digest TTL when ttl is positive and returns the value in
// effect.
func (p *Provider) DigestTTL(ttl int) int {
	if ttl > 0 {
		p.ttl = ttl
	}
	return p.ttl
}

// Observe registers observers on the root built by p.
func (p *Provider) Observe(observers ...Observer) {
	p.observers = append(p.observers, observers...)
}

// Get returns the resolver building the root scope from the "_parse"
// service.
func (p *Provider) Get() any {
	return injector.Annotate(func(translator Translator) *Scope {
		opts := append(append([]Option(nil), p.opts...), WithDigestTTL(p.ttl), WithObserver(p.observers...))
		return New(translator, opts...)
	}, KeyParse)
}
