package pricing

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// KindLinearRate prices fills at the fixed ratio makerTotal:takerTotal.
// Rounding always favors the maker: maker-out is floored, taker-in is
// ceiled, so no sequence of partial fills extracts more than the ratio.
const KindLinearRate = "linear-rate"

type linearRateParams struct {
	MakerTotal *big.Int `json:"makerTotal"`
	TakerTotal *big.Int `json:"takerTotal"`
}

// LinearRate is the constant-price curve: capacity makerTotal, priced so
// that the full capacity costs exactly takerTotal
type LinearRate struct {
	makerTotal *big.Int
	takerTotal *big.Int
}

// NewLinearRate builds a linear-rate template for the given totals
func NewLinearRate(makerTotal, takerTotal *big.Int) Template {
	params, err := json.Marshal(linearRateParams{MakerTotal: makerTotal, TakerTotal: takerTotal})
	if err != nil {
		panic(fmt.Errorf("encode linear-rate params: %w", err))
	}
	return Template{Kind: KindLinearRate, Params: params}
}

func decodeLinearRate(params json.RawMessage) (Curve, error) {
	var p linearRateParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("failed to decode linear-rate params: %w", err)
	}
	if p.MakerTotal == nil || p.MakerTotal.Sign() <= 0 {
		return nil, fmt.Errorf("linear-rate makerTotal must be positive")
	}
	if p.TakerTotal == nil || p.TakerTotal.Sign() <= 0 {
		return nil, fmt.Errorf("linear-rate takerTotal must be positive")
	}
	return &LinearRate{makerTotal: p.MakerTotal, takerTotal: p.TakerTotal}, nil
}

func (c *LinearRate) Kind() string { return KindLinearRate }

func (c *LinearRate) MakerCapacity() *big.Int {
	return new(big.Int).Set(c.makerTotal)
}

// MakerAmount = floor(takerAmount * makerTotal / takerTotal)
func (c *LinearRate) MakerAmount(takerAmount, filled *big.Int) (*big.Int, error) {
	if takerAmount == nil || takerAmount.Sign() < 0 {
		return nil, fmt.Errorf("taker amount must be non-negative")
	}
	out := new(big.Int).Mul(takerAmount, c.makerTotal)
	return out.Quo(out, c.takerTotal), nil
}

// TakerAmount = ceil(makerAmount * takerTotal / makerTotal)
func (c *LinearRate) TakerAmount(makerAmount, filled *big.Int) (*big.Int, error) {
	if makerAmount == nil || makerAmount.Sign() < 0 {
		return nil, fmt.Errorf("maker amount must be non-negative")
	}
	num := new(big.Int).Mul(makerAmount, c.takerTotal)
	return ceilDiv(num, c.makerTotal), nil
}

func ceilDiv(num, den *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
