package tests

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quillex/limitswap/pkg/crypto"
	"github.com/quillex/limitswap/pkg/exchange"
	"github.com/quillex/limitswap/pkg/exchange/predicate"
	"github.com/quillex/limitswap/pkg/exchange/pricing"
	"github.com/quillex/limitswap/pkg/ledger"
	"github.com/quillex/limitswap/pkg/storage"
)

var (
	wethAddr     = common.HexToAddress("0x000000000000000000000000000000000000aaa1")
	daiAddr      = common.HexToAddress("0x000000000000000000000000000000000000aaa2")
	contractAddr = common.HexToAddress("0x000000000000000000000000000000000000f111")
)

// newTestStore opens a fill store on a unique path per test to avoid Pebble
// lock conflicts between tests
func newTestStore(t *testing.T) (*storage.FillStore, string) {
	t.Helper()
	dbPath := fmt.Sprintf("./tmp_test_fills_%s.db", t.Name())
	os.RemoveAll(dbPath)
	t.Cleanup(func() {
		os.RemoveAll(dbPath)
	})

	store, err := storage.NewFillStore(dbPath)
	if err != nil {
		t.Fatalf("failed to open fill store: %v", err)
	}
	return store, dbPath
}

type stack struct {
	engine *exchange.Engine
	store  *storage.FillStore
	weth   *ledger.Token
	dai    *ledger.Token
	maker  *crypto.Signer
	taker  *crypto.Signer
}

// newStack wires the full production stack: pebble-backed fill ledger, token
// registry, default curve and predicate registries, and an engine on the
// devnet domain
func newStack(t *testing.T, store *storage.FillStore, weth, dai *ledger.Token, maker, taker *crypto.Signer) *stack {
	t.Helper()

	ledgers := ledger.NewRegistry()
	if err := ledgers.Register(wethAddr, weth); err != nil {
		t.Fatalf("failed to register weth: %v", err)
	}
	if err := ledgers.Register(daiAddr, dai); err != nil {
		t.Fatalf("failed to register dai: %v", err)
	}

	fills, err := exchange.NewFillLedger(store, nil)
	if err != nil {
		t.Fatalf("failed to create fill ledger: %v", err)
	}

	signer := crypto.NewEIP712Signer(crypto.EIP712Domain{
		Name:              "LimitSwap",
		Version:           "1",
		ChainID:           big.NewInt(1337),
		VerifyingContract: contractAddr,
	})
	engine := exchange.NewEngine(signer, pricing.NewDefaultRegistry(), predicate.NewDefaultRegistry(),
		ledgers, fills, nil)

	return &stack{engine: engine, store: store, weth: weth, dai: dai, maker: maker, taker: taker}
}

func signOrder(t *testing.T, s *stack, order *exchange.Order) []byte {
	t.Helper()
	sig, err := crypto.NewEIP712Signer(s.engine.Domain()).SignOrder(s.maker, order.Typed())
	if err != nil {
		t.Fatalf("failed to sign order: %v", err)
	}
	return sig
}

// TestFilledStateSurvivesRestart fills an order partway, tears the whole
// stack down, rebuilds it on the same database, and checks that the new
// engine both reports and enforces the persisted fill state
func TestFilledStateSurvivesRestart(t *testing.T) {
	maker, _ := crypto.GenerateKey()
	taker, _ := crypto.GenerateKey()
	store, dbPath := newTestStore(t)

	weth := ledger.NewToken(wethAddr, "WETH")
	dai := ledger.NewToken(daiAddr, "DAI")
	weth.Mint(maker.Address(), big.NewInt(100))
	weth.Approve(maker.Address(), contractAddr, big.NewInt(100))
	dai.Mint(taker.Address(), big.NewInt(100))
	dai.Approve(taker.Address(), contractAddr, big.NewInt(100))

	s := newStack(t, store, weth, dai, maker, taker)

	rate := pricing.NewLinearRate(big.NewInt(10), big.NewInt(10))
	order := exchange.Order{
		MakerAsset:     wethAddr,
		TakerAsset:     daiAddr,
		MakerAssetData: ledger.TransferIntent{From: maker.Address(), Amount: big.NewInt(10)},
		TakerAssetData: ledger.TransferIntent{Amount: big.NewInt(10)},
		GetMakerAmount: rate,
		GetTakerAmount: rate,
	}
	sig := signOrder(t, s, &order)
	hash, err := s.engine.OrderHash(&order)
	if err != nil {
		t.Fatalf("failed to hash order: %v", err)
	}

	// consume 7 of 10 before the restart
	res, err := s.engine.FillOrder(context.Background(), exchange.FillRequest{
		Order: order, Signature: sig, Taker: taker.Address(),
		TakingAmount: big.NewInt(7), AllowPartial: true,
	})
	if err != nil {
		t.Fatalf("fill before restart failed: %v", err)
	}
	if res.FilledTotal.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("filled total = %s, want 7", res.FilledTotal)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	// rebuild everything on the same database
	store2, err := storage.NewFillStore(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen fill store: %v", err)
	}
	t.Cleanup(func() { store2.Close() })
	s2 := newStack(t, store2, weth, dai, maker, taker)

	if got := s2.engine.Filled(hash); got.Cmp(big.NewInt(7)) != 0 {
		t.Errorf("filled after restart = %s, want 7", got)
	}

	// the remaining 3 fill cleanly, a 4th unit does not
	res, err = s2.engine.FillOrder(context.Background(), exchange.FillRequest{
		Order: order, Signature: sig, Taker: taker.Address(),
		TakingAmount: big.NewInt(3), AllowPartial: true,
	})
	if err != nil {
		t.Fatalf("fill after restart failed: %v", err)
	}
	if res.FilledTotal.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("filled total = %s, want 10", res.FilledTotal)
	}
	_, err = s2.engine.FillOrder(context.Background(), exchange.FillRequest{
		Order: order, Signature: sig, Taker: taker.Address(),
		TakingAmount: big.NewInt(1), AllowPartial: true,
	})
	if !errors.Is(err, exchange.ErrOverfill) {
		t.Errorf("got %v, want ErrOverfill after restart", err)
	}

	// ten WETH crossed in total across both processes
	if got := weth.BalanceOf(taker.Address()); got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("taker WETH = %s, want 10", got)
	}
}

// TestGatedPermitOrderEndToEnd runs the full feature set through one order:
// a decaying price, an expiry predicate, and an inline permit instead of a
// standing taker allowance
func TestGatedPermitOrderEndToEnd(t *testing.T) {
	maker, _ := crypto.GenerateKey()
	taker, _ := crypto.GenerateKey()
	store, _ := newTestStore(t)
	t.Cleanup(func() { store.Close() })

	weth := ledger.NewToken(wethAddr, "WETH")
	dai := ledger.NewToken(daiAddr, "DAI")
	weth.Mint(maker.Address(), big.NewInt(100))
	weth.Approve(maker.Address(), contractAddr, big.NewInt(100))
	dai.Mint(taker.Address(), big.NewInt(1_000))
	// no standing DAI approval: the order's permit must grant it

	s := newStack(t, store, weth, dai, maker, taker)

	// auction started an hour ago and has another hour to run, price decaying
	// from 400 to 200 DAI for the 10 WETH lot: mid-auction it asks 300
	now := time.Now().Unix()
	order := exchange.Order{
		MakerAsset:     wethAddr,
		TakerAsset:     daiAddr,
		MakerAssetData: ledger.TransferIntent{From: maker.Address(), Amount: big.NewInt(10)},
		TakerAssetData: ledger.TransferIntent{Amount: big.NewInt(400)},
		GetMakerAmount: pricing.NewDecayingRate(big.NewInt(10), big.NewInt(400), big.NewInt(200), now-3600, now+3600),
		GetTakerAmount: pricing.NewDecayingRate(big.NewInt(10), big.NewInt(400), big.NewInt(200), now-3600, now+3600),
		Predicate:      predicate.NewTimestampBelow(now + 3600),
	}

	value := big.NewInt(400)
	deadline := now + 3600
	permitSig, err := taker.Sign(dai.PermitDigest(taker.Address(), contractAddr, value, deadline))
	if err != nil {
		t.Fatalf("failed to sign permit: %v", err)
	}
	order.Permit = ledger.PermitRequest{
		Asset:     daiAddr,
		Owner:     taker.Address(),
		Spender:   contractAddr,
		Value:     value,
		Deadline:  deadline,
		Signature: permitSig,
	}

	sig := signOrder(t, s, &order)

	res, err := s.engine.FillOrder(context.Background(), exchange.FillRequest{
		Order: order, Signature: sig, Taker: taker.Address(),
		MakingAmount: big.NewInt(10), AllowPartial: true,
	})
	if err != nil {
		t.Fatalf("fill failed: %v", err)
	}
	if res.MakingAmount.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("making = %s, want 10", res.MakingAmount)
	}
	// mid-decay the full lot costs ~300 DAI; allow a unit of clock drift
	low, high := big.NewInt(295), big.NewInt(305)
	if res.TakingAmount.Cmp(low) < 0 || res.TakingAmount.Cmp(high) > 0 {
		t.Errorf("taking = %s, want ~300", res.TakingAmount)
	}

	if got := weth.BalanceOf(taker.Address()); got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("taker WETH = %s, want 10", got)
	}
	if got := dai.BalanceOf(maker.Address()); got.Cmp(res.TakingAmount) != 0 {
		t.Errorf("maker DAI = %s, want %s", got, res.TakingAmount)
	}

	// the permit was single-use: its nonce is consumed
	if got := dai.Nonce(taker.Address()); got != 1 {
		t.Errorf("taker permit nonce = %d, want 1", got)
	}
}
