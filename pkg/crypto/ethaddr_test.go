package crypto

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func TestEIP55KnownChecksums(t *testing.T) {
	// checksummed forms from the EIP-55 reference vectors
	vectors := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	}
	for _, want := range vectors {
		addr := common.HexToAddress(want)
		if got := EIP55(addr); got != want {
			t.Errorf("EIP55(%s) = %s, want %s", addr, got, want)
		}
		// agrees with go-ethereum's own checksummed rendering
		if got := EIP55(addr); got != addr.Hex() {
			t.Errorf("EIP55(%s) = %s, diverges from Hex() %s", addr, got, addr.Hex())
		}
	}
}

func TestAddressFromUncompressedPub(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	// recovery feeds Ecrecover's uncompressed pubkey through this derivation
	digest := ethcrypto.Keccak256([]byte("address derivation"))
	sig, err := signer.Sign(digest)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	pub, err := ethcrypto.Ecrecover(digest, sig)
	if err != nil {
		t.Fatalf("failed to recover pubkey: %v", err)
	}

	addr, err := AddressFromUncompressedPub(pub)
	if err != nil {
		t.Fatalf("failed to derive address: %v", err)
	}
	if addr != signer.Address() {
		t.Errorf("derived %s, want signer address %s", addr.Hex(), signer.Address().Hex())
	}
}

func TestAddressFromUncompressedPubRejectsMalformed(t *testing.T) {
	if _, err := AddressFromUncompressedPub(nil); err == nil {
		t.Error("nil input should fail")
	}
	if _, err := AddressFromUncompressedPub(make([]byte, 64)); err == nil {
		t.Error("short input should fail")
	}
	bad := make([]byte, 65) // wrong prefix byte
	if _, err := AddressFromUncompressedPub(bad); err == nil {
		t.Error("missing 0x04 prefix should fail")
	}
}
