// Package exchange implements the order-fill engine: EIP-712 order hashing
// and signature verification, call-template amount resolution and predicate
// gating, partial-fill bookkeeping, and the atomic orchestration that ties
// them into a single all-or-nothing fill.
package exchange

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quillex/limitswap/pkg/crypto"
	"github.com/quillex/limitswap/pkg/exchange/predicate"
	"github.com/quillex/limitswap/pkg/exchange/pricing"
	"github.com/quillex/limitswap/pkg/ledger"
)

// FillRequest is one fill attempt: a signed order presented by a taker.
// Exactly one of MakingAmount/TakingAmount must be positive; the engine
// resolves the other side through the order's amount template.
type FillRequest struct {
	Order     Order
	Signature []byte
	Taker     common.Address

	MakingAmount *big.Int // requested maker-side amount (nil/zero = derive)
	TakingAmount *big.Int // requested taker-side amount (nil/zero = derive)

	// AllowPartial permits consuming less than the full remaining capacity.
	// When false, MakingAmount must land exactly on the remainder.
	AllowPartial bool

	// AuxData is opaque caller context echoed into the fill event
	AuxData []byte
}

// FillResult reports the amounts actually moved by a completed fill
type FillResult struct {
	OrderHash    common.Hash `json:"orderHash"`
	MakingAmount *big.Int    `json:"makingAmount"`
	TakingAmount *big.Int    `json:"takingAmount"`
	FilledTotal  *big.Int    `json:"filledTotal"` // cumulative maker-side filled
}

// FillEvent is the fill-completed notification published to subscribers
type FillEvent struct {
	ID           string         `json:"id"`
	OrderHash    common.Hash    `json:"orderHash"`
	Maker        common.Address `json:"maker"`
	Taker        common.Address `json:"taker"`
	MakingAmount *big.Int       `json:"makingAmount"`
	TakingAmount *big.Int       `json:"takingAmount"`
	FilledTotal  *big.Int       `json:"filledTotal"`
	AuxData      []byte         `json:"auxData,omitempty"`
	Timestamp    int64          `json:"timestamp"` // Unix milliseconds
}

// Engine is the fill orchestrator: the only component with write access to
// the fill ledger and the only caller of the verifier, curves, predicates,
// permits, and transfer legs. One linear protocol per attempt, no internal
// retries.
type Engine struct {
	signer     *crypto.EIP712Signer
	curves     *pricing.Registry
	predicates *predicate.Registry
	ledgers    *ledger.Registry
	fills      *FillLedger

	// spender is the exchange instance's own address: the allowance party
	// for both transfer legs and the natural permit target
	spender common.Address

	log    *zap.Logger
	onFill func(FillEvent) // optional sink, set before serving
}

// NewEngine wires an orchestrator. The EIP-712 signer fixes the domain;
// its verifying contract address doubles as the allowance spender.
func NewEngine(signer *crypto.EIP712Signer, curves *pricing.Registry, predicates *predicate.Registry,
	ledgers *ledger.Registry, fills *FillLedger, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		signer:     signer,
		curves:     curves,
		predicates: predicates,
		ledgers:    ledgers,
		fills:      fills,
		spender:    signer.Domain().VerifyingContract,
		log:        log,
	}
}

// Domain returns the signing domain the engine verifies orders under
func (e *Engine) Domain() crypto.EIP712Domain {
	return e.signer.Domain()
}

// Spender returns the address takers and makers must grant allowances to
func (e *Engine) Spender() common.Address {
	return e.spender
}

// DomainSeparator returns the 32-byte EIP-712 domain hash for off-path
// order-hash recomputation
func (e *Engine) DomainSeparator() ([]byte, error) {
	return e.signer.DomainSeparator()
}

// SetFillSink installs the fill-event subscriber. Must be called before the
// engine starts serving fills.
func (e *Engine) SetFillSink(fn func(FillEvent)) {
	e.onFill = fn
}

// OrderHash computes an order's digest under the engine's domain
func (e *Engine) OrderHash(o *Order) (common.Hash, error) {
	return o.Hash(e.signer)
}

// Filled returns the cumulative maker-side amount consumed for an order
func (e *Engine) Filled(orderHash common.Hash) *big.Int {
	return e.fills.Filled(orderHash)
}

// VerifyOrder recovers the signer of an order and reports whether it
// matches the order's maker. Used by the off-path query API; FillOrder does
// the same check internally.
func (e *Engine) VerifyOrder(o *Order, signature []byte) (common.Address, bool, error) {
	recovered, err := e.signer.RecoverOrderSigner(o.Typed(), signature)
	if err != nil {
		return common.Address{}, false, err
	}
	return recovered, recovered == o.Maker(), nil
}

func positive(v *big.Int) bool { return v != nil && v.Sign() > 0 }

// permitCovers reports whether the permit owner's standing allowance already
// covers the leg the permit's asset settles, making the permit call redundant
func permitCovers(order *Order, l ledger.AssetLedger, making, taking *big.Int) bool {
	needed := taking
	if order.Permit.Asset == order.MakerAsset {
		needed = making
	}
	return l.Allowance(order.Permit.Owner, order.Permit.Spender).Cmp(needed) >= 0
}

// FillOrder executes one fill attempt end to end:
//
//	verify signature → evaluate predicate → resolve the unsupplied amount →
//	commit the fill record → execute permit → move both legs
//
// The fill record is committed before the permit and transfer calls run, so
// a reentrant attempt triggered by either already observes the updated
// filled total. Any failure aborts the whole attempt: post-commit failures
// roll the record (and a completed taker leg) back, and the caller observes
// exactly one taxonomy error.
func (e *Engine) FillOrder(ctx context.Context, req FillRequest) (*FillResult, error) {
	order := &req.Order

	if err := order.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	if req.Taker == (common.Address{}) {
		return nil, fmt.Errorf("%w: fill request has no taker", ErrInvalidOrder)
	}
	if positive(req.MakingAmount) == positive(req.TakingAmount) {
		return nil, fmt.Errorf("%w: exactly one of makingAmount/takingAmount must be positive", ErrInvalidOrder)
	}
	if restricted := order.TakerAssetData.From; restricted != (common.Address{}) && restricted != req.Taker {
		return nil, fmt.Errorf("%w: order is restricted to taker %s", ErrInvalidOrder, restricted.Hex())
	}

	orderHash, err := e.OrderHash(order)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}

	// Authenticity: the signature must recover to the maker named inside
	// makerAssetData. Fails closed on malformed signatures.
	maker := order.Maker()
	recovered, err := e.signer.RecoverOrderSigner(order.Typed(), req.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if recovered != maker {
		return nil, fmt.Errorf("%w: signed by %s, maker is %s", ErrInvalidSignature, recovered.Hex(), maker.Hex())
	}

	// Predicate gate. Compiled fresh per attempt: predicates are external
	// logic and may answer differently over time.
	pred, err := e.predicates.Compile(order.Predicate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPredicateError, err)
	}
	ok, err := pred.Check(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPredicateError, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: order %s", ErrPredicateFailed, orderHash.Hex())
	}

	// Amount resolution: invoke the curve for exactly the side the caller
	// did not supply. Capacity comes from the same compiled curve.
	filled := e.fills.Filled(orderHash)
	var making, taking, capacity *big.Int
	if positive(req.TakingAmount) {
		curve, err := e.curves.Compile(order.GetMakerAmount)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrResolution, err)
		}
		taking = new(big.Int).Set(req.TakingAmount)
		making, err = curve.MakerAmount(taking, filled)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrResolution, err)
		}
		capacity = curve.MakerCapacity()
	} else {
		curve, err := e.curves.Compile(order.GetTakerAmount)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrResolution, err)
		}
		making = new(big.Int).Set(req.MakingAmount)
		taking, err = curve.TakerAmount(making, filled)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrResolution, err)
		}
		capacity = curve.MakerCapacity()
	}

	if making.Sign() <= 0 || taking.Sign() <= 0 {
		return nil, fmt.Errorf("%w: resolved making=%s taking=%s", ErrZeroFill, making, taking)
	}

	remaining := e.fills.Remaining(orderHash, capacity)
	if making.Cmp(remaining) > 0 {
		return nil, fmt.Errorf("%w: making %s > remaining %s", ErrOverfill, making, remaining)
	}
	if !req.AllowPartial && making.Cmp(remaining) != 0 {
		return nil, fmt.Errorf("%w: making %s != remaining %s", ErrPartialFillDenied, making, remaining)
	}

	// Resolve both ledgers before any state is committed
	makerLedger, err := e.ledgers.Get(order.MakerAsset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	takerLedger, err := e.ledgers.Get(order.TakerAsset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	// Checks-effects-interactions: commit the fill record before the permit
	// and transfer calls, which run code the engine does not control.
	// Commit rechecks capacity under the ledger lock, so racing attempts on
	// the same order serialize here.
	filledTotal, err := e.fills.Commit(orderHash, making, capacity)
	if err != nil {
		return nil, err
	}

	// Optional one-shot allowance grant, happens-before the transfers.
	// Skipped when the standing allowance already covers this attempt: a
	// permit consumed by an earlier aborted attempt leaves its allowance
	// behind, so resubmitting the same signed order still fills.
	if !order.Permit.IsZero() {
		permitLedger, err := e.ledgers.Get(order.Permit.Asset)
		if err != nil {
			e.fills.Rollback(orderHash, making)
			return nil, fmt.Errorf("%w: %v", ErrPermitFailed, err)
		}
		if !permitCovers(order, permitLedger, making, taking) {
			if err := permitLedger.Permit(order.Permit); err != nil {
				e.fills.Rollback(orderHash, making)
				return nil, fmt.Errorf("%w: %v", ErrPermitFailed, err)
			}
		}
	}

	// Taker leg: taker pays the maker (or the maker's named recipient)
	takerPaysTo := order.TakerAssetData.To
	if takerPaysTo == (common.Address{}) {
		takerPaysTo = maker
	}
	if err := takerLedger.TransferFrom(e.spender, req.Taker, takerPaysTo, taking); err != nil {
		e.fills.Rollback(orderHash, making)
		return nil, fmt.Errorf("%w: taker leg: %v", ErrTransferFailed, err)
	}

	// Maker leg: maker pays the taker (or the recipient named in the order)
	makerPaysTo := order.MakerAssetData.To
	if makerPaysTo == (common.Address{}) {
		makerPaysTo = req.Taker
	}
	if err := makerLedger.TransferFrom(e.spender, maker, makerPaysTo, making); err != nil {
		// reverse the completed taker leg, allowance included, so the abort
		// leaves no effect
		if rerr := takerLedger.RefundTransferFrom(e.spender, req.Taker, takerPaysTo, taking); rerr != nil {
			e.log.Error("failed to reverse taker leg on abort",
				zap.String("order", orderHash.Hex()), zap.Error(rerr))
		}
		e.fills.Rollback(orderHash, making)
		return nil, fmt.Errorf("%w: maker leg: %v", ErrTransferFailed, err)
	}

	result := &FillResult{
		OrderHash:    orderHash,
		MakingAmount: making,
		TakingAmount: taking,
		FilledTotal:  filledTotal,
	}

	e.log.Info("order filled",
		zap.String("order", orderHash.Hex()),
		zap.String("maker", maker.Hex()),
		zap.String("taker", req.Taker.Hex()),
		zap.String("making", making.String()),
		zap.String("taking", taking.String()),
		zap.String("filledTotal", filledTotal.String()))

	if e.onFill != nil {
		e.onFill(FillEvent{
			ID:           uuid.NewString(),
			OrderHash:    orderHash,
			Maker:        maker,
			Taker:        req.Taker,
			MakingAmount: making,
			TakingAmount: taking,
			FilledTotal:  filledTotal,
			AuxData:      req.AuxData,
			Timestamp:    time.Now().UnixMilli(),
		})
	}

	return result, nil
}
