package predicate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quillex/limitswap/pkg/util"
)

// Built-in predicate kinds
const (
	KindTimestampBelow = "timestamp-below" // true while now < deadline
	KindAnd            = "and"             // all sub-predicates true
	KindOr             = "or"              // any sub-predicate true
)

type timestampBelowParams struct {
	Deadline int64 `json:"deadline"` // Unix seconds
}

// TimestampBelow holds until a deadline: the standard expiry gate
type TimestampBelow struct {
	deadline int64
	clock    util.Clock
}

// NewTimestampBelow builds an expiry template: fills pass while now < deadline
func NewTimestampBelow(deadline int64) Template {
	params, err := json.Marshal(timestampBelowParams{Deadline: deadline})
	if err != nil {
		panic(fmt.Errorf("encode timestamp-below params: %w", err))
	}
	return Template{Kind: KindTimestampBelow, Params: params}
}

func decodeTimestampBelow(params json.RawMessage, clock util.Clock) (Predicate, error) {
	var p timestampBelowParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("failed to decode timestamp-below params: %w", err)
	}
	if p.Deadline <= 0 {
		return nil, fmt.Errorf("timestamp-below deadline must be positive")
	}
	return &TimestampBelow{deadline: p.Deadline, clock: clock}, nil
}

func (p *TimestampBelow) Kind() string { return KindTimestampBelow }

func (p *TimestampBelow) Check(ctx context.Context) (bool, error) {
	return p.clock.Now().Unix() < p.deadline, nil
}

type compositeParams struct {
	Subs []Template `json:"subs"`
}

type compositeMode int

const (
	compositeAnd compositeMode = iota
	compositeOr
)

// Composite combines sub-predicates with AND or OR semantics.
// Sub-templates are compiled eagerly, so a malformed member fails at
// template construction, not mid-fill.
type Composite struct {
	kind string
	mode compositeMode
	subs []Predicate
}

// NewAnd builds a template that passes only when every sub-template passes
func NewAnd(subs ...Template) Template {
	return newComposite(KindAnd, subs)
}

// NewOr builds a template that passes when any sub-template passes
func NewOr(subs ...Template) Template {
	return newComposite(KindOr, subs)
}

func newComposite(kind string, subs []Template) Template {
	params, err := json.Marshal(compositeParams{Subs: subs})
	if err != nil {
		panic(fmt.Errorf("encode %s params: %w", kind, err))
	}
	return Template{Kind: kind, Params: params}
}

func decodeComposite(params json.RawMessage, r *Registry, mode compositeMode) (Predicate, error) {
	var p compositeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("failed to decode composite params: %w", err)
	}
	if len(p.Subs) == 0 {
		return nil, fmt.Errorf("composite predicate needs at least one sub-predicate")
	}

	kind := KindAnd
	if mode == compositeOr {
		kind = KindOr
	}

	subs := make([]Predicate, len(p.Subs))
	for i, sub := range p.Subs {
		compiled, err := r.Compile(sub)
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s sub-predicate %d: %w", kind, i, err)
		}
		subs[i] = compiled
	}
	return &Composite{kind: kind, mode: mode, subs: subs}, nil
}

func (p *Composite) Kind() string { return p.kind }

func (p *Composite) Check(ctx context.Context) (bool, error) {
	for _, sub := range p.subs {
		ok, err := sub.Check(ctx)
		if err != nil {
			return false, fmt.Errorf("%s predicate failed: %w", sub.Kind(), err)
		}
		if p.mode == compositeAnd && !ok {
			return false, nil
		}
		if p.mode == compositeOr && ok {
			return true, nil
		}
	}
	return p.mode == compositeAnd, nil
}
