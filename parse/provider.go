package parse

// Provider serves the parser as an injectable service. Config blocks may swap
// the engine before the first instance is built.
type Provider struct {
	opts []Option
}

// NewProvider constructs a Provider building parsers with opts.
func NewProvider(opts ...Option) *Provider {
	return &Provider{opts: append([]Option(nil), opts...)}
}

// UseEngine makes subsequently built parsers compile with engine.
func (p *Provider) UseEngine(engine Engine) {
	p.opts = append(p.opts, WithEngine(engine))
}

// Get returns the resolver building the parser.
func (p *Provider) Get() any {
	return func() *Parser {
		return New(p.opts...)
	}
}
