package main

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/quillex/limitswap/params"
	"github.com/quillex/limitswap/pkg/api"
	"github.com/quillex/limitswap/pkg/crypto"
	"github.com/quillex/limitswap/pkg/exchange"
	"github.com/quillex/limitswap/pkg/exchange/predicate"
	"github.com/quillex/limitswap/pkg/exchange/pricing"
	"github.com/quillex/limitswap/pkg/ledger"
	"github.com/quillex/limitswap/pkg/storage"
	"github.com/quillex/limitswap/pkg/util"
)

// Devnet asset addresses for the two built-in token ledgers. Production
// deployments register their own ledgers instead.
var (
	devWETH = common.HexToAddress("0x000000000000000000000000000000000000aaa1")
	devDAI  = common.HexToAddress("0x000000000000000000000000000000000000aaa2")
)

func main() {
	cfg := params.LoadFromEnv("")

	var log *zap.Logger
	var err error
	if cfg.Node.LogFile != "" {
		log, err = util.NewLoggerWithFile(cfg.Node.LogFile)
	} else {
		log, err = util.NewLogger()
	}
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	signer := crypto.NewEIP712Signer(crypto.EIP712Domain{
		Name:              cfg.Protocol.Name,
		Version:           cfg.Protocol.Version,
		ChainID:           cfg.Protocol.ChainID,
		VerifyingContract: cfg.Protocol.Contract,
	})

	store, err := storage.NewFillStore(cfg.Node.DataDir)
	if err != nil {
		log.Fatal("failed to open fill store", zap.Error(err))
	}
	defer store.Close()

	fills, err := exchange.NewFillLedger(store, log)
	if err != nil {
		log.Fatal("failed to create fill ledger", zap.Error(err))
	}

	ledgers := ledger.NewRegistry()
	for _, t := range []*ledger.Token{
		ledger.NewToken(devWETH, "WETH"),
		ledger.NewToken(devDAI, "DAI"),
	} {
		if err := ledgers.Register(t.Addr, t); err != nil {
			log.Fatal("failed to register asset ledger", zap.Error(err))
		}
		log.Info("registered asset ledger",
			zap.String("asset", t.Addr.Hex()), zap.String("symbol", t.Symbol))
	}

	engine := exchange.NewEngine(
		signer,
		pricing.NewDefaultRegistry(),
		predicate.NewDefaultRegistry(),
		ledgers,
		fills,
		log,
	)

	log.Info("exchange engine ready",
		zap.String("protocol", cfg.Protocol.Name),
		zap.String("version", cfg.Protocol.Version),
		zap.String("chainId", cfg.Protocol.ChainID.String()),
		zap.String("contract", cfg.Protocol.Contract.Hex()),
		zap.Int("assetLedgers", ledgers.Count()))

	server := api.NewServer(engine, log)
	if err := server.Start(cfg.Node.ListenAddr); err != nil {
		log.Fatal("api server failed", zap.Error(err))
	}
}
