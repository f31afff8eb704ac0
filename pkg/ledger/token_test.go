package ledger

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quillex/limitswap/pkg/crypto"
	"github.com/quillex/limitswap/pkg/util"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

var _ util.Clock = (*fakeClock)(nil)

var testAsset = common.HexToAddress("0x000000000000000000000000000000000000aaa1")

func addr(b byte) common.Address {
	return common.BytesToAddress([]byte{b})
}

func TestTransfer(t *testing.T) {
	token := NewToken(testAsset, "WETH")
	alice, bob := addr(1), addr(2)

	token.Mint(alice, big.NewInt(100))

	if err := token.Transfer(alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if got := token.BalanceOf(alice); got.Cmp(big.NewInt(60)) != 0 {
		t.Errorf("alice balance = %s, want 60", got)
	}
	if got := token.BalanceOf(bob); got.Cmp(big.NewInt(40)) != 0 {
		t.Errorf("bob balance = %s, want 40", got)
	}

	if err := token.Transfer(alice, bob, big.NewInt(100)); err == nil {
		t.Error("overdraft transfer should fail")
	}
	if err := token.Transfer(alice, bob, big.NewInt(0)); err == nil {
		t.Error("zero transfer should fail")
	}
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	token := NewToken(testAsset, "WETH")
	owner, spender, dest := addr(1), addr(2), addr(3)

	token.Mint(owner, big.NewInt(100))
	token.Approve(owner, spender, big.NewInt(50))

	if err := token.TransferFrom(spender, owner, dest, big.NewInt(30)); err != nil {
		t.Fatalf("transferFrom failed: %v", err)
	}
	if got := token.Allowance(owner, spender); got.Cmp(big.NewInt(20)) != 0 {
		t.Errorf("allowance = %s, want 20", got)
	}
	if got := token.BalanceOf(dest); got.Cmp(big.NewInt(30)) != 0 {
		t.Errorf("dest balance = %s, want 30", got)
	}

	// remaining allowance (20) is below the requested 25
	if err := token.TransferFrom(spender, owner, dest, big.NewInt(25)); err == nil {
		t.Error("transferFrom above allowance should fail")
	}
}

func TestRefundTransferFromRestoresAllowance(t *testing.T) {
	token := NewToken(testAsset, "WETH")
	owner, spender, dest := addr(1), addr(2), addr(3)

	token.Mint(owner, big.NewInt(100))
	token.Approve(owner, spender, big.NewInt(50))

	if err := token.TransferFrom(spender, owner, dest, big.NewInt(30)); err != nil {
		t.Fatalf("transferFrom failed: %v", err)
	}
	if err := token.RefundTransferFrom(spender, owner, dest, big.NewInt(30)); err != nil {
		t.Fatalf("refund failed: %v", err)
	}

	// forward call fully undone: balances and allowance as before
	if got := token.BalanceOf(owner); got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("owner balance = %s, want 100", got)
	}
	if got := token.BalanceOf(dest); got.Sign() != 0 {
		t.Errorf("dest balance = %s, want 0", got)
	}
	if got := token.Allowance(owner, spender); got.Cmp(big.NewInt(50)) != 0 {
		t.Errorf("allowance = %s, want 50", got)
	}

	// refund of funds the destination no longer holds fails
	if err := token.RefundTransferFrom(spender, owner, dest, big.NewInt(1)); err == nil {
		t.Error("refund without funds at dest should fail")
	}
}

func TestPermit(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_000, 0)}
	token := NewTokenWithClock(testAsset, "WETH", clock)

	owner, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	spender := addr(9)
	value := big.NewInt(75)
	deadline := int64(2_000)

	digest := token.PermitDigest(owner.Address(), spender, value, deadline)
	sig, err := owner.Sign(digest)
	if err != nil {
		t.Fatalf("failed to sign permit: %v", err)
	}

	req := PermitRequest{
		Asset:     testAsset,
		Owner:     owner.Address(),
		Spender:   spender,
		Value:     value,
		Deadline:  deadline,
		Signature: sig,
	}
	if err := token.Permit(req); err != nil {
		t.Fatalf("permit failed: %v", err)
	}
	if got := token.Allowance(owner.Address(), spender); got.Cmp(value) != 0 {
		t.Errorf("allowance after permit = %s, want %s", got, value)
	}

	// the nonce moved, so replaying the same permit must fail
	if err := token.Permit(req); err == nil {
		t.Error("permit replay should fail")
	}
}

func TestPermitRejectsBadInput(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_000, 0)}
	token := NewTokenWithClock(testAsset, "WETH", clock)

	owner, _ := crypto.GenerateKey()
	stranger, _ := crypto.GenerateKey()
	spender := addr(9)
	value := big.NewInt(75)

	digest := token.PermitDigest(owner.Address(), spender, value, 2_000)

	// signed by someone other than the owner
	sig, _ := stranger.Sign(digest)
	err := token.Permit(PermitRequest{
		Asset: testAsset, Owner: owner.Address(), Spender: spender,
		Value: value, Deadline: 2_000, Signature: sig,
	})
	if err == nil {
		t.Error("permit signed by a stranger should fail")
	}

	// expired deadline
	sig, _ = owner.Sign(digest)
	clock.now = time.Unix(3_000, 0)
	err = token.Permit(PermitRequest{
		Asset: testAsset, Owner: owner.Address(), Spender: spender,
		Value: value, Deadline: 2_000, Signature: sig,
	})
	if err == nil {
		t.Error("expired permit should fail")
	}

	// wrong asset
	clock.now = time.Unix(1_000, 0)
	err = token.Permit(PermitRequest{
		Asset: addr(123), Owner: owner.Address(), Spender: spender,
		Value: value, Deadline: 2_000, Signature: sig,
	})
	if err == nil {
		t.Error("wrong-asset permit should fail")
	}

	if token.Allowance(owner.Address(), spender).Sign() != 0 {
		t.Error("failed permits must not change allowance")
	}
}

func TestTransferIntentEncodeRoundTrip(t *testing.T) {
	intent := TransferIntent{From: addr(1), To: addr(2), Amount: big.NewInt(42)}

	decoded, err := DecodeTransferIntent(intent.Encode())
	if err != nil {
		t.Fatalf("failed to decode intent: %v", err)
	}
	if decoded.From != intent.From || decoded.To != intent.To {
		t.Error("intent parties changed in round trip")
	}
	if decoded.Amount.Cmp(intent.Amount) != 0 {
		t.Error("intent amount changed in round trip")
	}
}

func TestPermitRequestEncodeEmpty(t *testing.T) {
	if got := (PermitRequest{}).Encode(); got != nil {
		t.Errorf("zero permit encoded to %q, want nil", got)
	}

	req, err := DecodePermitRequest(nil)
	if err != nil {
		t.Fatalf("failed to decode empty permit: %v", err)
	}
	if !req.IsZero() {
		t.Error("empty encoding should decode to the zero request")
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	token := NewToken(testAsset, "WETH")

	if err := reg.Register(testAsset, token); err != nil {
		t.Fatalf("failed to register: %v", err)
	}
	if err := reg.Register(testAsset, token); err == nil {
		t.Error("duplicate registration should fail")
	}

	got, err := reg.Get(testAsset)
	if err != nil {
		t.Fatalf("failed to get ledger: %v", err)
	}
	if got != AssetLedger(token) {
		t.Error("registry returned a different ledger")
	}

	if _, err := reg.Get(addr(99)); err == nil {
		t.Error("unknown asset should not resolve")
	}
	if reg.Count() != 1 {
		t.Errorf("count = %d, want 1", reg.Count())
	}
}
