package crypto

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712Domain is the typed-data domain separator for order signing.
// It binds every signature to one protocol version, chain, and exchange
// instance, which is what prevents cross-deployment and cross-chain replay.
type EIP712Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// LimitOrder712 is the typed-data shape of a limit order: the two asset
// identifiers plus the six opaque byte fields (transfer intents, the two
// amount call-templates, predicate, permit) in their canonical encoding.
// Wallets sign exactly this structure via eth_signTypedData_v4.
type LimitOrder712 struct {
	MakerAsset     common.Address
	TakerAsset     common.Address
	MakerAssetData []byte
	TakerAssetData []byte
	GetMakerAmount []byte
	GetTakerAmount []byte
	Predicate      []byte
	Permit         []byte
}

var orderFields = []apitypes.Type{
	{Name: "makerAsset", Type: "address"},
	{Name: "takerAsset", Type: "address"},
	{Name: "makerAssetData", Type: "bytes"},
	{Name: "takerAssetData", Type: "bytes"},
	{Name: "getMakerAmount", Type: "bytes"},
	{Name: "getTakerAmount", Type: "bytes"},
	{Name: "predicate", Type: "bytes"},
	{Name: "permit", Type: "bytes"},
}

var domainFields = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// EIP712Signer hashes and verifies limit orders under a fixed domain
type EIP712Signer struct {
	domain EIP712Domain
}

func NewEIP712Signer(domain EIP712Domain) *EIP712Signer {
	return &EIP712Signer{domain: domain}
}

// Domain returns the signing domain this instance is bound to
func (e *EIP712Signer) Domain() EIP712Domain {
	return e.domain
}

func (e *EIP712Signer) typedData(order *LimitOrder712) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainFields,
			"LimitOrder":   orderFields,
		},
		PrimaryType: "LimitOrder",
		Domain: apitypes.TypedDataDomain{
			Name:              e.domain.Name,
			Version:           e.domain.Version,
			ChainId:           (*math.HexOrDecimal256)(e.domain.ChainID),
			VerifyingContract: e.domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"makerAsset":     order.MakerAsset.Hex(),
			"takerAsset":     order.TakerAsset.Hex(),
			"makerAssetData": hexutil.Encode(order.MakerAssetData),
			"takerAssetData": hexutil.Encode(order.TakerAssetData),
			"getMakerAmount": hexutil.Encode(order.GetMakerAmount),
			"getTakerAmount": hexutil.Encode(order.GetTakerAmount),
			"predicate":      hexutil.Encode(order.Predicate),
			"permit":         hexutil.Encode(order.Permit),
		},
	}
}

// DomainSeparator returns the 32-byte hash of the EIP-712 domain.
// Callers can recompute it independently from the protocol parameters to
// verify order hashes off-path.
func (e *EIP712Signer) DomainSeparator() ([]byte, error) {
	typedData := e.typedData(&LimitOrder712{})
	separator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}
	return separator, nil
}

// HashOrder computes the EIP-712 digest of an order: any change to any of
// the eight fields, or to the domain, produces a different digest
func (e *EIP712Signer) HashOrder(order *LimitOrder712) ([]byte, error) {
	typedData := e.typedData(order)

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}
	structHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash order struct: %w", err)
	}

	// digest = keccak256("\x19\x01" || domainSeparator || structHash)
	raw := make([]byte, 0, 2+len(domainSeparator)+len(structHash))
	raw = append(raw, 0x19, 0x01)
	raw = append(raw, domainSeparator...)
	raw = append(raw, structHash...)
	return crypto.Keccak256(raw), nil
}

// SignOrder hashes and signs an order with the maker's key
func (e *EIP712Signer) SignOrder(signer *Signer, order *LimitOrder712) ([]byte, error) {
	hash, err := e.HashOrder(order)
	if err != nil {
		return nil, fmt.Errorf("failed to hash order: %w", err)
	}
	signature, err := signer.Sign(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to sign order: %w", err)
	}
	return signature, nil
}

// RecoverOrderSigner recovers the address that signed an order
func (e *EIP712Signer) RecoverOrderSigner(order *LimitOrder712, signature []byte) (common.Address, error) {
	hash, err := e.HashOrder(order)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to hash order: %w", err)
	}
	return RecoverAddress(hash, signature)
}

// VerifyOrderSignature reports whether signature over order was produced by
// the claimed maker
func (e *EIP712Signer) VerifyOrderSignature(order *LimitOrder712, signature []byte, maker common.Address) (bool, error) {
	recovered, err := e.RecoverOrderSigner(order, signature)
	if err != nil {
		return false, err
	}
	return recovered == maker, nil
}

// OrderToJSON renders the full typed-data payload for wallet signing
// (eth_signTypedData_v4 format used by MetaMask and friends)
func (e *EIP712Signer) OrderToJSON(order *LimitOrder712) (string, error) {
	typedData := e.typedData(order)
	jsonBytes, err := json.MarshalIndent(typedData, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal typed data: %w", err)
	}
	return string(jsonBytes), nil
}
