package exchange

import (
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func newMemoryLedger(t *testing.T) *FillLedger {
	t.Helper()
	l, err := NewFillLedger(nil, nil)
	if err != nil {
		t.Fatalf("failed to create fill ledger: %v", err)
	}
	return l
}

func TestCommitAndRemaining(t *testing.T) {
	l := newMemoryLedger(t)
	hash := common.HexToHash("0x01")
	capacity := big.NewInt(100)

	if got := l.Filled(hash); got.Sign() != 0 {
		t.Errorf("initial filled = %s, want 0", got)
	}
	if got := l.Remaining(hash, capacity); got.Cmp(capacity) != 0 {
		t.Errorf("initial remaining = %s, want 100", got)
	}

	total, err := l.Commit(hash, big.NewInt(40), capacity)
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if total.Cmp(big.NewInt(40)) != 0 {
		t.Errorf("total = %s, want 40", total)
	}
	if got := l.Remaining(hash, capacity); got.Cmp(big.NewInt(60)) != 0 {
		t.Errorf("remaining = %s, want 60", got)
	}

	total, err = l.Commit(hash, big.NewInt(60), capacity)
	if err != nil {
		t.Fatalf("commit to capacity failed: %v", err)
	}
	if total.Cmp(capacity) != 0 {
		t.Errorf("total = %s, want 100", total)
	}
}

func TestCommitRejectsOverfillAndZero(t *testing.T) {
	l := newMemoryLedger(t)
	hash := common.HexToHash("0x01")
	capacity := big.NewInt(100)

	if _, err := l.Commit(hash, big.NewInt(101), capacity); !errors.Is(err, ErrOverfill) {
		t.Errorf("got %v, want ErrOverfill", err)
	}
	if _, err := l.Commit(hash, big.NewInt(0), capacity); !errors.Is(err, ErrZeroFill) {
		t.Errorf("got %v, want ErrZeroFill", err)
	}
	if _, err := l.Commit(hash, nil, capacity); !errors.Is(err, ErrZeroFill) {
		t.Errorf("got %v, want ErrZeroFill for nil amount", err)
	}

	// rejected commits leave the record untouched
	if got := l.Filled(hash); got.Sign() != 0 {
		t.Errorf("filled after rejections = %s, want 0", got)
	}

	l.Commit(hash, big.NewInt(90), capacity)
	if _, err := l.Commit(hash, big.NewInt(11), capacity); !errors.Is(err, ErrOverfill) {
		t.Errorf("got %v, want ErrOverfill past capacity", err)
	}
	if got := l.Filled(hash); got.Cmp(big.NewInt(90)) != 0 {
		t.Errorf("filled = %s, want 90", got)
	}
}

func TestRollback(t *testing.T) {
	l := newMemoryLedger(t)
	hash := common.HexToHash("0x01")
	capacity := big.NewInt(100)

	l.Commit(hash, big.NewInt(70), capacity)
	l.Rollback(hash, big.NewInt(30))

	if got := l.Filled(hash); got.Cmp(big.NewInt(40)) != 0 {
		t.Errorf("filled after rollback = %s, want 40", got)
	}

	// underflowing rollback clamps at zero instead of going negative
	l.Rollback(hash, big.NewInt(1_000))
	if got := l.Filled(hash); got.Sign() != 0 {
		t.Errorf("filled after underflow rollback = %s, want 0", got)
	}
}

func TestConcurrentCommitsNeverOverfill(t *testing.T) {
	l := newMemoryLedger(t)
	hash := common.HexToHash("0x01")
	capacity := big.NewInt(100)

	// 50 goroutines race to commit 10 each; only 10 can win
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Commit(hash, big.NewInt(10), capacity); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 10 {
		t.Errorf("wins = %d, want 10", wins)
	}
	if got := l.Filled(hash); got.Cmp(capacity) != 0 {
		t.Errorf("filled = %s, want exactly 100", got)
	}
}
