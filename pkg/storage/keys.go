package storage

import (
	"github.com/ethereum/go-ethereum/common"
)

// Fill-record key schema for Pebble:
//
//   f:<32-byte-order-hash> → cumulative filled amount (big.Int bytes)
const prefixFill = "f:"

func fillKey(orderHash common.Hash) []byte {
	return append([]byte(prefixFill), orderHash[:]...)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
