// Package pricing implements the dynamic amount-resolution mechanism: an
// order does not carry a fixed price, it carries a call-template naming a
// pricing curve and its parameters. The engine completes the template with
// the requested fill size at execution time and reads back the counterpart
// amount. Curves are a closed set of typed strategy variants behind the
// Curve interface, with a registry for built-ins and custom kinds.
package pricing

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"github.com/quillex/limitswap/pkg/util"
)

// Curve computes one side's amount given the other side's requested amount
// and the order's fill progress. Implementations must be pure reads: no
// state mutation, single typed return value.
type Curve interface {
	// MakerAmount returns how much the maker gives for takerAmount taken
	MakerAmount(takerAmount, filled *big.Int) (*big.Int, error)

	// TakerAmount returns how much the taker owes for makerAmount given
	TakerAmount(makerAmount, filled *big.Int) (*big.Int, error)

	// MakerCapacity is the total maker-side quantity the curve will price.
	// The fill ledger derives remaining capacity from it; it is not stored
	// anywhere else.
	MakerCapacity() *big.Int

	Kind() string
}

// Template is the stored call-template form of a curve: a kind tag plus the
// kind's own parameter encoding. Templates declare their shape at
// construction via the registry's decoder, so malformed parameters are
// rejected before any fill references them.
type Template struct {
	Kind   string          `json:"kind"`
	Params json.RawMessage `json:"params"`
}

// IsZero reports whether the template is empty
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
		panic(fmt.Errorf("encode pricing template: %w", err))
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
		return Template{}, fmt.Errorf("failed to decode pricing template: %w", err)
	}
	return t, nil
}

// Decoder turns a kind's raw parameters into a ready Curve, validating the
// declared shape eagerly
type Decoder func(params json.RawMessage) (Curve, error)

// Registry maps template kinds to decoders in a thread-safe manner.
// Built-in curves are registered at construction; custom curves are the
// extension point.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
	clock    util.Clock
}

// NewRegistry creates a registry with the built-in curves registered.
// The clock feeds time-dependent curves (decaying rate).
func NewRegistry(clock util.Clock) *Registry {
	r := &Registry{
		decoders: make(map[string]Decoder),
		clock:    clock,
	}
	r.decoders[KindLinearRate] = decodeLinearRate
	r.decoders[KindDecayingRate] = func(params json.RawMessage) (Curve, error) {
		return decodeDecayingRate(params, r.clock)
	}
	return r
}

// NewDefaultRegistry creates a registry on the real clock
func NewDefaultRegistry() *Registry {
	return NewRegistry(util.RealClock{})
}

// Register adds a custom curve kind.
// Returns error if the kind is already registered.
func (r *Registry) Register(kind string, d Decoder) error {
	if d == nil {
		return fmt.Errorf("cannot register nil decoder")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.decoders[kind]; exists {
		return fmt.Errorf("curve kind %q already registered", kind)
	}
	r.decoders[kind] = d
	return nil
}

// Compile resolves a template to a ready Curve.
// Empty templates, unknown kinds, and malformed parameters all fail here,
// before any fill attempt runs.
func (r *Registry) Compile(t Template) (Curve, error) {
	if t.IsZero() {
		return nil, fmt.Errorf("empty pricing template")
	}

	r.mu.RLock()
	d, exists := r.decoders[t.Kind]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown curve kind %q", t.Kind)
	}
	return d(t.Params)
}
