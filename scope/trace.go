package scope

import "encoding/json"

// Trace records which scopes along a lookup chain hold a name.
type Trace struct {
	Name   string       `json:"name"`
	Layers []Provenance `json:"layers"`
}

// Provenance details one scope of a traced lookup chain.
type Provenance struct {
	ScopeID string `json:"scope_id"`
	Value   any    `json:"value,omitempty"`
	Found   bool   `json:"found"`
}

// Trace walks the lookup chain of s starting at s. The first found layer is
// the effective value.
func (s *Scope) Trace(name string) Trace {
	trace := Trace{Name: name}
	for current := s; current != nil; current = current.Parent() {
		value, ok := current.props.Get(name)
		trace.Layers = append(trace.Layers, Provenance{
			ScopeID: current.id,
			Value:   value,
			Found:   ok,
		})
	}
	return trace
}

// Effective returns the value of the first layer holding the name.
func (t Trace) Effective() (any, bool) {
	for _, layer := range t.Layers {
		if layer.Found {
			return layer.Value, true
		}
	}
	return nil, false
}

// ToJSON serialises the trace for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}
