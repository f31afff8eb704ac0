package pricing

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/quillex/limitswap/pkg/util"
)

// KindDecayingRate is a dutch-auction curve: the taker-side total moves
// linearly from takerTotalStart at startTime to takerTotalEnd at endTime,
// clamped outside that window. Capacity stays makerTotal throughout.
const KindDecayingRate = "decaying-rate"

type decayingRateParams struct {
	MakerTotal      *big.Int `json:"makerTotal"`
	TakerTotalStart *big.Int `json:"takerTotalStart"`
	TakerTotalEnd   *big.Int `json:"takerTotalEnd"`
	StartTime       int64    `json:"startTime"` // Unix seconds
	EndTime         int64    `json:"endTime"`
}

type DecayingRate struct {
	params decayingRateParams
	clock  util.Clock
}

// NewDecayingRate builds a decaying-rate template
func NewDecayingRate(makerTotal, takerTotalStart, takerTotalEnd *big.Int, startTime, endTime int64) Template {
	params, err := json.Marshal(decayingRateParams{
		MakerTotal:      makerTotal,
		TakerTotalStart: takerTotalStart,
		TakerTotalEnd:   takerTotalEnd,
		StartTime:       startTime,
		EndTime:         endTime,
	})
	if err != nil {
		panic(fmt.Errorf("encode decaying-rate params: %w", err))
	}
	return Template{Kind: KindDecayingRate, Params: params}
}

func decodeDecayingRate(params json.RawMessage, clock util.Clock) (Curve, error) {
	var p decayingRateParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("failed to decode decaying-rate params: %w", err)
	}
	if p.MakerTotal == nil || p.MakerTotal.Sign() <= 0 {
		return nil, fmt.Errorf("decaying-rate makerTotal must be positive")
	}
	if p.TakerTotalStart == nil || p.TakerTotalStart.Sign() <= 0 ||
		p.TakerTotalEnd == nil || p.TakerTotalEnd.Sign() <= 0 {
		return nil, fmt.Errorf("decaying-rate taker totals must be positive")
	}
	if p.EndTime <= p.StartTime {
		return nil, fmt.Errorf("decaying-rate endTime %d must be after startTime %d", p.EndTime, p.StartTime)
	}
	return &DecayingRate{params: p, clock: clock}, nil
}

func (c *DecayingRate) Kind() string { return KindDecayingRate }

func (c *DecayingRate) MakerCapacity() *big.Int {
	return new(big.Int).Set(c.params.MakerTotal)
}

// takerTotalNow interpolates the taker-side total at the current time
func (c *DecayingRate) takerTotalNow() *big.Int {
	now := c.clock.Now().Unix()
	if now <= c.params.StartTime {
		return new(big.Int).Set(c.params.TakerTotalStart)
	}
	if now >= c.params.EndTime {
		return new(big.Int).Set(c.params.TakerTotalEnd)
	}

	// start + (end-start) * elapsed / window
	span := new(big.Int).Sub(c.params.TakerTotalEnd, c.params.TakerTotalStart)
	elapsed := big.NewInt(now - c.params.StartTime)
	window := big.NewInt(c.params.EndTime - c.params.StartTime)
	delta := new(big.Int).Mul(span, elapsed)
	delta.Quo(delta, window)
	return delta.Add(delta, c.params.TakerTotalStart)
}

func (c *DecayingRate) MakerAmount(takerAmount, filled *big.Int) (*big.Int, error) {
	if takerAmount == nil || takerAmount.Sign() < 0 {
		return nil, fmt.Errorf("taker amount must be non-negative")
	}
	out := new(big.Int).Mul(takerAmount, c.params.MakerTotal)
	return out.Quo(out, c.takerTotalNow()), nil
}

func (c *DecayingRate) TakerAmount(makerAmount, filled *big.Int) (*big.Int, error) {
	if makerAmount == nil || makerAmount.Sign() < 0 {
		return nil, fmt.Errorf("maker amount must be non-negative")
	}
	num := new(big.Int).Mul(makerAmount, c.takerTotalNow())
	return ceilDiv(num, c.params.MakerTotal), nil
}
