// Package ledger defines the fungible-asset ledger interface the fill engine
// settles against, plus the typed payloads (transfer intents, permits) that
// orders embed. The engine only ever talks to a ledger through AssetLedger;
// Token is the reference in-memory implementation.
package ledger

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// AssetLedger is the interface the engine needs from a fungible-asset ledger:
// balances, allowances, the two transfer forms, and the one-shot permit.
type AssetLedger interface {
	BalanceOf(addr common.Address) *big.Int
	Allowance(owner, spender common.Address) *big.Int

	// Transfer moves amount from -> to, authorized by from itself.
	Transfer(from, to common.Address, amount *big.Int) error

	// TransferFrom moves amount from -> to on behalf of spender,
	// consuming spender's allowance granted by from.
	TransferFrom(spender, from, to common.Address, amount *big.Int) error

	// RefundTransferFrom undoes a completed TransferFrom: the amount moves
	// back from to -> from and the allowance the forward call consumed is
	// restored. The engine uses it when a later stage of a fill aborts.
	RefundTransferFrom(spender, from, to common.Address, amount *big.Int) error

	// Permit sets an allowance from a signed authorization instead of a
	// direct call by the owner. Mutates allowance state on success.
	Permit(req PermitRequest) error
}

// TransferIntent is one leg of an exchange as embedded in a signed order:
// the parties, with the fill amount left to be overwritten at execution time.
// A zero From/To slot on the taker side means "whoever presents the order".
type TransferIntent struct {
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount *big.Int       `json:"amount"`
}

// Encode returns the canonical byte encoding used for order hashing.
// Field order is fixed by the struct definition, so the encoding is
// deterministic for a given intent.
func (t TransferIntent) Encode() []byte {
	if t.Amount == nil {
		t.Amount = big.NewInt(0)
	}
	b, err := json.Marshal(t)
	if err != nil {
		// TransferIntent contains no unmarshalable fields
		panic(fmt.Errorf("encode transfer intent: %w", err))
	}
	return b
}

// DecodeTransferIntent parses a canonical intent encoding
func DecodeTransferIntent(data []byte) (TransferIntent, error) {
	var t TransferIntent
	if err := json.Unmarshal(data, &t); err != nil {
		return TransferIntent{}, fmt.Errorf("failed to decode transfer intent: %w", err)
	}
	if t.Amount == nil {
		t.Amount = big.NewInt(0)
	}
	return t, nil
}

// PermitRequest is a signed one-shot allowance grant (EIP-2612 style),
// executed against the asset's ledger immediately before transfers.
// A zero-valued request (zero Asset) means "no permit step".
type PermitRequest struct {
	Asset    common.Address `json:"asset"`
	Owner    common.Address `json:"owner"`
	Spender  common.Address `json:"spender"`
	Value    *big.Int       `json:"value"`
	Deadline int64          `json:"deadline"` // Unix seconds, 0 = no expiry

	// Signature is the owner's 65-byte [R || S || V] signature over the
	// ledger's permit digest for (asset, owner, spender, value, deadline, nonce)
	Signature hexutil.Bytes `json:"signature"`
}

// IsZero reports whether the request is the empty "skip permit" value
func (p PermitRequest) IsZero() bool {
	return p.Asset == (common.Address{})
}

// Encode returns the canonical byte encoding used for order hashing.
// The empty request encodes to nil so that "no permit" hashes like an
// empty bytes field.
func (p PermitRequest) Encode() []byte {
	if p.IsZero() {
		return nil
	}
	if p.Value == nil {
		p.Value = big.NewInt(0)
	}
	b, err := json.Marshal(p)
	if err != nil {
		panic(fmt.Errorf("encode permit request: %w", err))
	}
	return b
}

// DecodePermitRequest parses a canonical permit encoding; empty input yields
// the zero request
func DecodePermitRequest(data []byte) (PermitRequest, error) {
	if len(data) == 0 {
		return PermitRequest{}, nil
	}
	var p PermitRequest
	if err := json.Unmarshal(data, &p); err != nil {
		return PermitRequest{}, fmt.Errorf("failed to decode permit request: %w", err)
	}
	if p.Value == nil {
		p.Value = big.NewInt(0)
	}
	return p, nil
}
