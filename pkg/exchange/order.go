package exchange

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quillex/limitswap/pkg/crypto"
	"github.com/quillex/limitswap/pkg/exchange/predicate"
	"github.com/quillex/limitswap/pkg/exchange/pricing"
	"github.com/quillex/limitswap/pkg/ledger"
)

// Order is a maker-signed description of an asset-for-asset exchange with a
// pricing rule instead of a fixed amount. Immutable once hashed: the EIP-712
// digest covers all eight fields, so changing anything (including predicate
// or permit) yields a different, independently signable order.
//
// The maker is not a separate field; it is the From party of MakerAssetData.
// A zero From on TakerAssetData leaves the order open to any taker; a
// non-zero From pins the taker leg's source and restricts the order to that
// address. The To fields override the default recipients (maker receives the
// taker leg, taker receives the maker leg) when set.
type Order struct {
	MakerAsset common.Address `json:"makerAsset"`
	TakerAsset common.Address `json:"takerAsset"`

	MakerAssetData ledger.TransferIntent `json:"makerAssetData"`
	TakerAssetData ledger.TransferIntent `json:"takerAssetData"`

	GetMakerAmount pricing.Template `json:"getMakerAmount"`
	GetTakerAmount pricing.Template `json:"getTakerAmount"`

	Predicate predicate.Template   `json:"predicate"`
	Permit    ledger.PermitRequest `json:"permit"`
}

// Maker returns the order's signer identity: the source party of the
// maker-side transfer intent
func (o *Order) Maker() common.Address {
	return o.MakerAssetData.From
}

// Validate rejects structurally malformed orders before any crypto or
// external call runs
func (o *Order) Validate() error {
	if o.MakerAsset == (common.Address{}) || o.TakerAsset == (common.Address{}) {
		return fmt.Errorf("order names a zero asset")
	}
	if o.Maker() == (common.Address{}) {
		return fmt.Errorf("order has no maker party")
	}
	if o.GetMakerAmount.IsZero() || o.GetTakerAmount.IsZero() {
		return fmt.Errorf("order is missing an amount template")
	}
	if o.MakerAssetData.Amount != nil && o.MakerAssetData.Amount.Sign() < 0 {
		return fmt.Errorf("maker intent amount is negative")
	}
	if o.TakerAssetData.Amount != nil && o.TakerAssetData.Amount.Sign() < 0 {
		return fmt.Errorf("taker intent amount is negative")
	}
	return nil
}

// Typed renders the order into its EIP-712 shape: addresses plus the
// canonical byte encoding of every template field
func (o *Order) Typed() *crypto.LimitOrder712 {
	return &crypto.LimitOrder712{
		MakerAsset:     o.MakerAsset,
		TakerAsset:     o.TakerAsset,
		MakerAssetData: o.MakerAssetData.Encode(),
		TakerAssetData: o.TakerAssetData.Encode(),
		GetMakerAmount: o.GetMakerAmount.Encode(),
		GetTakerAmount: o.GetTakerAmount.Encode(),
		Predicate:      o.Predicate.Encode(),
		Permit:         o.Permit.Encode(),
	}
}

// Hash computes the order's EIP-712 digest under the given signing domain
func (o *Order) Hash(signer *crypto.EIP712Signer) (common.Hash, error) {
	digest, err := signer.HashOrder(o.Typed())
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash order: %w", err)
	}
	return common.BytesToHash(digest), nil
}
