package exchange

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/quillex/limitswap/pkg/storage"
)

// FillLedger tracks per-order cumulative filled amounts: orderHash → filled.
// In-memory map with optional Pebble persistence, warm-started from the
// store at construction.
//
// Commit is the single synchronization point between racing fill attempts
// on the same order: the capacity recheck and the increment happen under
// one lock, so no attempt can observe a stale remaining value relative to a
// concurrent commit. Records are created on first fill and never deleted.
type FillLedger struct {
	mu     sync.Mutex
	filled map[common.Hash]*big.Int
	store  *storage.FillStore // nil = memory only (tests)
	log    *zap.Logger
}

// NewFillLedger creates a fill ledger backed by store (nil for memory-only),
// loading all persisted records into the cache
func NewFillLedger(store *storage.FillStore, log *zap.Logger) (*FillLedger, error) {
	if log == nil {
		log = zap.NewNop()
	}
	l := &FillLedger{
		filled: make(map[common.Hash]*big.Int),
		store:  store,
		log:    log,
	}
	if store != nil {
		fills, err := store.LoadAll()
		if err != nil {
			return nil, fmt.Errorf("failed to warm-start fill ledger: %w", err)
		}
		l.filled = fills
		if l.filled == nil {
			l.filled = make(map[common.Hash]*big.Int)
		}
	}
	return l, nil
}

func (l *FillLedger) filledLocked(orderHash common.Hash) *big.Int {
	if f, ok := l.filled[orderHash]; ok {
		return f
	}
	return big.NewInt(0)
}

// Filled returns the cumulative filled amount for an order (zero if never
// filled)
func (l *FillLedger) Filled(orderHash common.Hash) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.filledLocked(orderHash))
}

// Remaining returns capacity - filled, floored at zero
func (l *FillLedger) Remaining(orderHash common.Hash, capacity *big.Int) *big.Int {
	remaining := new(big.Int).Sub(capacity, l.Filled(orderHash))
	if remaining.Sign() < 0 {
		return big.NewInt(0)
	}
	return remaining
}

// Commit atomically checks filled + amount against capacity and records the
// increment. Returns the new cumulative total. Rejects zero amounts with
// ErrZeroFill and capacity violations with ErrOverfill, leaving the record
// untouched. The persisted record is written before the in-memory total
// becomes observable.
func (l *FillLedger) Commit(orderHash common.Hash, amount, capacity *big.Int) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount == nil || amount.Sign() == 0 {
		return nil, fmt.Errorf("%w: order %s", ErrZeroFill, orderHash.Hex())
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative amount for order %s", ErrZeroFill, orderHash.Hex())
	}

	filled := l.filledLocked(orderHash)
	next := new(big.Int).Add(filled, amount)
	if next.Cmp(capacity) > 0 {
		return nil, fmt.Errorf("%w: order %s filled %s + %s > capacity %s",
			ErrOverfill, orderHash.Hex(), filled, amount, capacity)
	}

	if l.store != nil {
		if err := l.store.SaveFilled(orderHash, next); err != nil {
			return nil, fmt.Errorf("failed to persist fill record: %w", err)
		}
	}
	l.filled[orderHash] = next
	return new(big.Int).Set(next), nil
}

// Rollback reverses a prior Commit after a later fill stage aborted.
// Only the orchestrator calls it, and only with the exact amount it just
// committed, so the counter stays a faithful sum of completed fills.
func (l *FillLedger) Rollback(orderHash common.Hash, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	filled := l.filledLocked(orderHash)
	next := new(big.Int).Sub(filled, amount)
	if next.Sign() < 0 {
		// rollback larger than filled indicates an orchestrator bug
		l.log.Error("fill rollback underflow",
			zap.String("order", orderHash.Hex()),
			zap.String("filled", filled.String()),
			zap.String("amount", amount.String()))
		next = big.NewInt(0)
	}

	if l.store != nil {
		if err := l.store.SaveFilled(orderHash, next); err != nil {
			// memory stays authoritative for live attempts; durable state
			// catches up on the next successful commit
			l.log.Error("failed to persist fill rollback",
				zap.String("order", orderHash.Hex()), zap.Error(err))
		}
	}
	l.filled[orderHash] = next
}
