package ledger

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/quillex/limitswap/pkg/crypto"
	"github.com/quillex/limitswap/pkg/util"
)

// Token is the reference in-memory AssetLedger: balances, allowances, and
// signature-based permits, guarded by a single RWMutex. Used by the devnet
// node and the test suites; production deployments plug in their own ledger.
type Token struct {
	mu sync.RWMutex

	Addr   common.Address // asset identifier this ledger answers for
	Symbol string

	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
	nonces     map[common.Address]uint64 // permit replay protection

	clock util.Clock
}

// NewToken creates an empty token ledger identified by addr
func NewToken(addr common.Address, symbol string) *Token {
	return &Token{
		Addr:       addr,
		Symbol:     symbol,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
		nonces:     make(map[common.Address]uint64),
		clock:      util.RealClock{},
	}
}

// NewTokenWithClock creates a token ledger with an injected clock so permit
// deadlines are testable
func NewTokenWithClock(addr common.Address, symbol string, clock util.Clock) *Token {
	t := NewToken(addr, symbol)
	t.clock = clock
	return t
}

// Mint credits amount to addr (devnet/test faucet)
func (t *Token) Mint(addr common.Address, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[addr] = new(big.Int).Add(t.balanceLocked(addr), amount)
}

func (t *Token) balanceLocked(addr common.Address) *big.Int {
	if b, ok := t.balances[addr]; ok {
		return b
	}
	return big.NewInt(0)
}

func (t *Token) allowanceLocked(owner, spender common.Address) *big.Int {
	if m, ok := t.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return a
		}
	}
	return big.NewInt(0)
}

func (t *Token) setAllowanceLocked(owner, spender common.Address, value *big.Int) {
	m, ok := t.allowances[owner]
	if !ok {
		m = make(map[common.Address]*big.Int)
		t.allowances[owner] = m
	}
	m[spender] = new(big.Int).Set(value)
}

// BalanceOf returns addr's balance (zero if the account is unknown)
func (t *Token) BalanceOf(addr common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(big.Int).Set(t.balanceLocked(addr))
}

// Allowance returns what spender may move on owner's behalf
func (t *Token) Allowance(owner, spender common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(big.Int).Set(t.allowanceLocked(owner, spender))
}

// Approve lets owner grant spender a spending allowance directly
func (t *Token) Approve(owner, spender common.Address, value *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setAllowanceLocked(owner, spender, value)
}

// Transfer moves amount from -> to, authorized by from itself
func (t *Token) Transfer(from, to common.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transferLocked(from, to, amount)
}

func (t *Token) transferLocked(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("transfer amount must be positive")
	}
	balance := t.balanceLocked(from)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance: have %s, need %s %s", balance, amount, t.Symbol)
	}
	t.balances[from] = new(big.Int).Sub(balance, amount)
	t.balances[to] = new(big.Int).Add(t.balanceLocked(to), amount)
	return nil
}

// TransferFrom moves amount from -> to on behalf of spender, consuming
// spender's allowance granted by from
func (t *Token) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("transfer amount must be positive")
	}
	allowance := t.allowanceLocked(from, spender)
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient allowance: have %s, need %s %s", allowance, amount, t.Symbol)
	}
	if err := t.transferLocked(from, to, amount); err != nil {
		return err
	}
	t.setAllowanceLocked(from, spender, new(big.Int).Sub(allowance, amount))
	return nil
}

// RefundTransferFrom reverses a completed TransferFrom, leaving no trace of
// the forward call: the amount moves back and the spender's allowance is
// credited by the same amount
func (t *Token) RefundTransferFrom(spender, from, to common.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.transferLocked(to, from, amount); err != nil {
		return err
	}
	allowance := t.allowanceLocked(from, spender)
	t.setAllowanceLocked(from, spender, new(big.Int).Add(allowance, amount))
	return nil
}

// Nonce returns owner's current permit nonce
func (t *Token) Nonce(owner common.Address) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nonces[owner]
}

// PermitDigest computes the 32-byte digest an owner signs to authorize a
// permit at the owner's current nonce. Packing:
// keccak256(asset || owner || spender || value(32) || deadline(8) || nonce(8))
func (t *Token) PermitDigest(owner, spender common.Address, value *big.Int, deadline int64) []byte {
	t.mu.RLock()
	nonce := t.nonces[owner]
	t.mu.RUnlock()
	return permitDigest(t.Addr, owner, spender, value, deadline, nonce)
}

func permitDigest(asset, owner, spender common.Address, value *big.Int, deadline int64, nonce uint64) []byte {
	buf := make([]byte, 0, 20*3+32+8+8)
	buf = append(buf, asset.Bytes()...)
	buf = append(buf, owner.Bytes()...)
	buf = append(buf, spender.Bytes()...)
	var v [32]byte
	if value != nil {
		value.FillBytes(v[:])
	}
	buf = append(buf, v[:]...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(deadline))
	buf = binary.BigEndian.AppendUint64(buf, nonce)
	return ethcrypto.Keccak256(buf)
}

// Permit sets allowance[owner][spender] = value from a signed authorization.
// Rejects expired deadlines, wrong-asset requests, and signatures that do not
// recover to the owner. Consumes the owner's nonce on success.
func (t *Token) Permit(req PermitRequest) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if req.Asset != t.Addr {
		return fmt.Errorf("permit asset %s does not match ledger %s", req.Asset.Hex(), t.Addr.Hex())
	}
	if req.Deadline != 0 && t.clock.Now().Unix() > req.Deadline {
		return fmt.Errorf("permit expired at %d", req.Deadline)
	}

	digest := permitDigest(req.Asset, req.Owner, req.Spender, req.Value, req.Deadline, t.nonces[req.Owner])
	if !crypto.VerifySignature(req.Owner, digest, req.Signature) {
		return fmt.Errorf("permit signature does not recover to owner %s", req.Owner.Hex())
	}

	t.setAllowanceLocked(req.Owner, req.Spender, req.Value)
	t.nonces[req.Owner]++
	return nil
}

var _ AssetLedger = (*Token)(nil)
