// Package predicate implements conditional-execution gating: an order may
// carry a call-template whose target answers a single boolean, and a fill
// only proceeds while that answer is true. The engine knows nothing about
// the condition itself; expiry, whitelists, and oracle gates are all just
// predicate kinds. An empty template is vacuously true.
package predicate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/quillex/limitswap/pkg/util"
)

// Predicate is a boolean gate evaluated once per fill attempt.
// Check must be a pure read with a single typed return; an error result is
// distinct from a false result and aborts the fill differently.
type Predicate interface {
	Check(ctx context.Context) (bool, error)
	Kind() string
}

// Template is the stored call-template form of a predicate
type Template struct {
	Kind   string          `json:"kind"`
	Params json.RawMessage `json:"params"`
}

// IsZero reports whether the template is empty ("always true")
func (t Template) IsZero() bool {
	return t.Kind == ""
}

// Encode returns the canonical byte encoding hashed into the order.
// Empty templates encode to nil.
func (t Template) Encode() []byte {
	if t.IsZero() {
		return nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		panic(fmt.Errorf("encode predicate template: %w", err))
	}
	return b
}

// DecodeTemplate parses a canonical template encoding; empty input yields
// the zero template
func DecodeTemplate(data []byte) (Template, error) {
	if len(data) == 0 {
		return Template{}, nil
	}
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return Template{}, fmt.Errorf("failed to decode predicate template: %w", err)
	}
	return t, nil
}

// Decoder turns a kind's raw parameters into a ready Predicate, validating
// the declared shape eagerly
type Decoder func(params json.RawMessage) (Predicate, error)

// Registry maps predicate kinds to decoders in a thread-safe manner
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
	clock    util.Clock
}

// NewRegistry creates a registry with the built-in predicates registered.
// The clock feeds time-based predicates (expiry).
func NewRegistry(clock util.Clock) *Registry {
	r := &Registry{
		decoders: make(map[string]Decoder),
		clock:    clock,
	}
	r.decoders[KindTimestampBelow] = func(params json.RawMessage) (Predicate, error) {
		return decodeTimestampBelow(params, r.clock)
	}
	r.decoders[KindAnd] = func(params json.RawMessage) (Predicate, error) {
		return decodeComposite(params, r, compositeAnd)
	}
	r.decoders[KindOr] = func(params json.RawMessage) (Predicate, error) {
		return decodeComposite(params, r, compositeOr)
	}
	return r
}

// NewDefaultRegistry creates a registry on the real clock
func NewDefaultRegistry() *Registry {
	return NewRegistry(util.RealClock{})
}

// Register adds a custom predicate kind.
// Returns error if the kind is already registered.
func (r *Registry) Register(kind string, d Decoder) error {
	if d == nil {
		return fmt.Errorf("cannot register nil decoder")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.decoders[kind]; exists {
		return fmt.Errorf("predicate kind %q already registered", kind)
	}
	r.decoders[kind] = d
	return nil
}

// Compile resolves a template to a ready Predicate. The zero template
// compiles to the vacuous always-true predicate; unknown kinds and
// malformed parameters fail here, before any fill attempt runs.
func (r *Registry) Compile(t Template) (Predicate, error) {
	if t.IsZero() {
		return alwaysTrue{}, nil
	}

	r.mu.RLock()
	d, exists := r.decoders[t.Kind]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown predicate kind %q", t.Kind)
	}
	return d(t.Params)
}

type alwaysTrue struct{}

func (alwaysTrue) Check(ctx context.Context) (bool, error) { return true, nil }
func (alwaysTrue) Kind() string                            { return "" }
