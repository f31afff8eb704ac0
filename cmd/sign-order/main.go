package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quillex/limitswap/params"
	"github.com/quillex/limitswap/pkg/crypto"
	"github.com/quillex/limitswap/pkg/exchange"
	"github.com/quillex/limitswap/pkg/exchange/predicate"
	"github.com/quillex/limitswap/pkg/exchange/pricing"
	"github.com/quillex/limitswap/pkg/ledger"
)

// Builds a sample limit order, signs it with a fresh key, and verifies the
// signature locally. Useful for wiring wallets and API clients.
func main() {
	cfg := params.LoadFromEnv("")

	fmt.Println("Generating new maker keypair...")
	signer, err := crypto.GenerateKey()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Maker address: %s\n", crypto.EIP55(signer.Address()))
	fmt.Printf("Private key: %s (KEEP SECRET!)\n\n", signer.PrivateKeyHex())

	makerAsset := common.HexToAddress("0x000000000000000000000000000000000000aaa1")
	takerAsset := common.HexToAddress("0x000000000000000000000000000000000000aaa2")

	// Sell 10 units of makerAsset for 20 units of takerAsset, expiring in
	// one hour, open to any taker, partial fills priced linearly.
	order := exchange.Order{
		MakerAsset: makerAsset,
		TakerAsset: takerAsset,
		MakerAssetData: ledger.TransferIntent{
			From:   signer.Address(),
			Amount: big.NewInt(10),
		},
		TakerAssetData: ledger.TransferIntent{
			Amount: big.NewInt(20),
		},
		GetMakerAmount: pricing.NewLinearRate(big.NewInt(10), big.NewInt(20)),
		GetTakerAmount: pricing.NewLinearRate(big.NewInt(10), big.NewInt(20)),
		Predicate:      predicate.NewTimestampBelow(time.Now().Add(time.Hour).Unix()),
	}

	eip712Signer := crypto.NewEIP712Signer(crypto.EIP712Domain{
		Name:              cfg.Protocol.Name,
		Version:           cfg.Protocol.Version,
		ChainID:           cfg.Protocol.ChainID,
		VerifyingContract: cfg.Protocol.Contract,
	})

	orderHash, err := order.Hash(eip712Signer)
	if err != nil {
		fmt.Printf("Error hashing order: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Order hash: %s\n", orderHash.Hex())

	signature, err := eip712Signer.SignOrder(signer, order.Typed())
	if err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Signature: 0x%x\n\n", signature)

	orderJSON, err := json.MarshalIndent(order, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling order: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Order (JSON):")
	fmt.Println(string(orderJSON))
	fmt.Println()

	typedJSON, err := eip712Signer.OrderToJSON(order.Typed())
	if err != nil {
		fmt.Printf("Error rendering typed data: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Typed data for eth_signTypedData_v4:")
	fmt.Println(typedJSON)
	fmt.Println()

	fmt.Println("Verifying signature...")
	valid, err := eip712Signer.VerifyOrderSignature(order.Typed(), signature, signer.Address())
	if err != nil {
		fmt.Printf("Error verifying: %v\n", err)
		os.Exit(1)
	}
	if !valid {
		fmt.Println("Signature INVALID")
		os.Exit(1)
	}
	fmt.Println("Signature valid ✓")
}
