package pipeline

import (
	"context"
	"strings"
)

// Kind is the typed capability tag a stage selects on. Capabilities declare
// their kind explicitly; no runtime type inspection is involved.
type Kind string

const (
	KindCollection     Kind = "collection"
	KindClassification Kind = "classification"
	KindAnalysis       Kind = "analysis"
	KindVisualization  Kind = "visualization"
)

// Capability is one pluggable unit of work attachable to a stage, e.g. a
// specific data source or classifier. Input and output travel as canonical
// serialized strings because capabilities are opaque and may run
// out-of-process; Execute may return any value and the executor normalizes it.
type Capability interface {
	Kind() Kind
	Name() string
	Execute(ctx context.Context, input string) (any, error)
}

// Set is an ordered collection of interchangeable capabilities attached to a
// stage. Order matters: selection falls back to the first entry.
type Set []Capability

// Selector picks one capability from a set, by kind, by name, or both. A
// zero Selector always yields the first capability.
type Selector struct {
	Kind Kind
	Name string
}

// Select resolves a capability from the set. Name matches win over kind
// matches; when nothing matches, the first capability is used. An empty set
// returns ErrNoCapability.
func (s Set) Select(sel Selector) (Capability, error) {
	if len(s) == 0 {
		return nil, ErrNoCapability
	}

	if sel.Name != "" {
		for _, c := range s {
			if strings.EqualFold(c.Name(), sel.Name) {
				return c, nil
			}
		}
	}

	if sel.Kind != "" {
		for _, c := range s {
			if c.Kind() == sel.Kind {
				return c, nil
			}
		}
	}

	return s[0], nil
}
