package api

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/quillex/limitswap/pkg/exchange"
)

// DomainInfo lets callers recompute the domain separator, order hashes, and
// signature checks off-path
type DomainInfo struct {
	Name              string `json:"name"`
	Version           string `json:"version"`
	ChainID           string `json:"chainId"`
	VerifyingContract string `json:"verifyingContract"`
	DomainSeparator   string `json:"domainSeparator"`
}

type HashResponse struct {
	OrderHash string `json:"orderHash"`
}

type VerifyRequest struct {
	Order     exchange.Order `json:"order"`
	Signature hexutil.Bytes  `json:"signature"`
}

type VerifyResponse struct {
	Recovered string `json:"recovered"`
	Valid     bool   `json:"valid"`
}

type FillRequest struct {
	Order        exchange.Order `json:"order"`
	Signature    hexutil.Bytes  `json:"signature"`
	Taker        common.Address `json:"taker"`
	MakingAmount *big.Int       `json:"makingAmount,omitempty"`
	TakingAmount *big.Int       `json:"takingAmount,omitempty"`
	AllowPartial bool           `json:"allowPartial"`
	AuxData      hexutil.Bytes  `json:"auxData,omitempty"`
}

type FillResponse struct {
	OrderHash    string `json:"orderHash"`
	MakingAmount string `json:"makingAmount"`
	TakingAmount string `json:"takingAmount"`
	FilledTotal  string `json:"filledTotal"`
}

type FillStateResponse struct {
	OrderHash string `json:"orderHash"`
	Filled    string `json:"filled"`
}

// ErrorResponse carries the taxonomy code so client tooling can tell abort
// paths apart without parsing messages
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
