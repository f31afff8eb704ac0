package params

import (
	"math/big"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Protocol defines the EIP-712 signing domain for this exchange instance.
// Orders signed under one domain are unfillable under any other: two
// deployments differing in any of these fields produce different order
// hashes for identical order terms.
type Protocol struct {
	Name     string         // Protocol name (e.g. "LimitSwap")
	Version  string         // Protocol version (e.g. "1")
	ChainID  *big.Int       // Chain ID the instance is bound to
	Contract common.Address // Verifying contract / exchange instance address
}

type Node struct {
	DataDir    string // Pebble database directory for fill records
	ListenAddr string // REST/WebSocket listen address
	LogFile    string // optional log file path; empty logs to console only
}

type Config struct {
	Protocol Protocol
	Node     Node
}

func Default() Config {
	return Config{
		Protocol: Protocol{
			Name:     "LimitSwap",
			Version:  "1",
			ChainID:  big.NewInt(1337),
			Contract: common.HexToAddress("0x000000000000000000000000000000000000f111"),
		},
		Node: Node{
			DataDir:    "data/fills.db",
			ListenAddr: ":8080",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if it exists) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if name := os.Getenv("PROTOCOL_NAME"); name != "" {
		cfg.Protocol.Name = name
	}
	if version := os.Getenv("PROTOCOL_VERSION"); version != "" {
		cfg.Protocol.Version = version
	}
	if chainID := os.Getenv("CHAIN_ID"); chainID != "" {
		if id, err := strconv.ParseInt(chainID, 10, 64); err == nil {
			cfg.Protocol.ChainID = big.NewInt(id)
		}
	}
	if contract := os.Getenv("EXCHANGE_CONTRACT"); contract != "" {
		cfg.Protocol.Contract = common.HexToAddress(contract)
	}
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		cfg.Node.DataDir = dataDir
	}
	if addr := os.Getenv("API_LISTEN_ADDR"); addr != "" {
		cfg.Node.ListenAddr = addr
	}
	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		cfg.Node.LogFile = logFile
	}

	return cfg
}
