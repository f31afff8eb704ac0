package crypto

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// AddressFromUncompressedPub derives an address from a 65-byte uncompressed
// secp256k1 public key (0x04 || X || Y): the last 20 bytes of the keccak256
// of the coordinates. This is the derivation RecoverAddress applies to
// Ecrecover output.
func AddressFromUncompressedPub(pub []byte) (common.Address, error) {
	if len(pub) != 65 || pub[0] != 0x04 {
		return common.Address{}, fmt.Errorf("invalid uncompressed public key")
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(pub[1:])
	sum := h.Sum(nil)
	return common.BytesToAddress(sum[12:]), nil
}

// EIP55 renders an address in mixed-case checksum form
func EIP55(addr common.Address) string {
	hexaddr := hex.EncodeToString(addr[:]) // lower
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(hexaddr))
	hash := h.Sum(nil)

	out := make([]byte, 2+len(hexaddr))
	copy(out, "0x")
	for i, c := range []byte(hexaddr) {
		if c >= '0' && c <= '9' {
			out[2+i] = c
			continue
		}
		// each hex char maps to 4 bits; i>>1 picks the byte, even/odd the nibble
		nibble := hash[i>>1]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[2+i] = byte(strings.ToUpper(string(c))[0])
		} else {
			out[2+i] = c
		}
	}
	return string(out)
}
