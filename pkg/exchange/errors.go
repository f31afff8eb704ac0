package exchange

import "errors"

// Fill-abort taxonomy. Every failed fill attempt resolves to exactly one of
// these sentinels (wrapped with detail), so clients and tests can tell abort
// paths apart with errors.Is. All of them mean full rollback: a fill either
// reaches Done or leaves no observable effect.
var (
	// ErrInvalidOrder covers malformed orders and fill requests: missing
	// templates, zero parties, both or neither amounts supplied, or a
	// taker-restricted order presented by someone else
	ErrInvalidOrder = errors.New("invalid order")

	// ErrInvalidSignature means the signature does not recover to the
	// order's maker (including malformed signatures and tampered fields)
	ErrInvalidSignature = errors.New("invalid order signature")

	// ErrPredicateFailed means the order's predicate answered false
	ErrPredicateFailed = errors.New("order predicate returned false")

	// ErrPredicateError means the predicate could not be evaluated at all
	ErrPredicateError = errors.New("order predicate evaluation failed")

	// ErrResolution means the amount-resolution curve failed: unknown kind,
	// malformed parameters, or the curve itself erroring
	ErrResolution = errors.New("amount resolution failed")

	// ErrOverfill means the requested amount exceeds the order's remaining
	// capacity
	ErrOverfill = errors.New("fill exceeds remaining capacity")

	// ErrZeroFill means the requested or resolved amount is zero
	ErrZeroFill = errors.New("zero fill amount")

	// ErrPartialFillDenied means the order was presented with partial fills
	// disallowed but the request does not consume the full remaining capacity
	ErrPartialFillDenied = errors.New("partial fill not allowed")

	// ErrPermitFailed means the order's permit step could not be executed
	ErrPermitFailed = errors.New("permit execution failed")

	// ErrTransferFailed means an asset leg could not be moved (unknown
	// ledger, insufficient balance or allowance on either side)
	ErrTransferFailed = errors.New("asset transfer failed")
)

// taxonomy maps sentinels to stable wire codes for API responses and tooling
var taxonomy = []struct {
	err  error
	code string
}{
	{ErrInvalidOrder, "InvalidOrder"},
	{ErrInvalidSignature, "InvalidSignature"},
	{ErrPredicateFailed, "PredicateFailed"},
	{ErrPredicateError, "PredicateError"},
	{ErrResolution, "ResolutionError"},
	{ErrOverfill, "Overfill"},
	{ErrZeroFill, "ZeroFill"},
	{ErrPartialFillDenied, "PartialFillDenied"},
	{ErrPermitFailed, "PermitFailed"},
	{ErrTransferFailed, "TransferFailed"},
}

// ErrorCode returns the stable taxonomy code for a fill error, or "Internal"
// for anything outside the taxonomy
func ErrorCode(err error) string {
	for _, entry := range taxonomy {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return "Internal"
}
