package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Ethernal-Tech/ethgo"
	jsoniter "github.com/json-iterator/go"

	"github.com/furyaxyz/elysium-bridge/helper/common"
	"github.com/furyaxyz/elysium-bridge/secrets"
)

const (
	DefaultJSONRPCAddr        = "127.0.0.1:8645"
	DefaultMetricsAddr        = "127.0.0.1:9645"
	DefaultRequestsPerSecond  = 32
	defaultSyncBatchSize      = 100
	defaultBlockConfirmations = 6
	defaultBlocksToReconcile  = 1000
	defaultPollInterval       = 2 * time.Second
	defaultOrchestratorTick   = 5 * time.Second
	defaultBlockTime          = 2 * time.Second
)

var (
	errMissingDataDir   = errors.New("data dir is not set")
	errMissingEndpoint  = errors.New("external chain JSON RPC endpoint is not set")
	errMissingContract  = errors.New("bridge contract address is not set")
	errInvalidBlockTime = errors.New("block time must be positive")

	json = jsoniter.ConfigCompatibleWithStandardLibrary
)

// EventTracker holds the configuration of the external chain log poller
type EventTracker struct {
	SyncBatchSize          uint64          `json:"syncBatchSize"`
	NumBlockConfirmations  uint64          `json:"numBlockConfirmations"`
	NumOfBlocksToReconcile uint64          `json:"numOfBlocksToReconcile"`
	PollInterval           common.Duration `json:"pollInterval"`
	StartBlock             uint64          `json:"startBlock"`
}

// Bridge holds the addresses of the external chain bridge deployment
type Bridge struct {
	ExternalChainID     uint64        `json:"externalChainId"`
	JSONRPCEndpoint     string        `json:"jsonRPCEndpoint"`
	BridgeContractAddr  ethgo.Address `json:"bridgeContractAddress"`
	EventTrackerOptions EventTracker  `json:"eventTracker"`
}

// Orchestrator holds the configuration of the validator operated relay process
type Orchestrator struct {
	Enabled bool   `json:"enabled"`
	KeyFile string `json:"keyFile"`
	// Secrets, when set, is the secrets manager holding the orchestrator key instead of KeyFile
	Secrets      *secrets.SecretsManagerConfig `json:"secrets,omitempty"`
	TickInterval common.Duration               `json:"tickInterval"`
}

// Config is the configuration of a bridge node
type Config struct {
	DataDir           string       `json:"dataDir"`
	GenesisPath       string       `json:"genesisPath"`
	Bridge            Bridge       `json:"bridge"`
	Orchestrator      Orchestrator `json:"orchestrator"`
	JSONRPCAddr       string       `json:"jsonRPCAddr"`
	RequestsPerSecond uint64       `json:"requestsPerSecond"`
	MetricsAddr       string       `json:"metricsAddr"`
	LogLevel          string       `json:"logLevel"`
	// BlockTime is the interval at which the node ends a bridge block
	BlockTime common.Duration `json:"blockTime"`
}

// DefaultConfig returns the default node configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir:     "./bridge-data",
		GenesisPath: "./genesis.json",
		Bridge: Bridge{
			ExternalChainID: 1,
			JSONRPCEndpoint: "http://127.0.0.1:8545",
			EventTrackerOptions: EventTracker{
				SyncBatchSize:          defaultSyncBatchSize,
				NumBlockConfirmations:  defaultBlockConfirmations,
				NumOfBlocksToReconcile: defaultBlocksToReconcile,
				PollInterval:           common.Duration{Duration: defaultPollInterval},
			},
		},
		Orchestrator: Orchestrator{
			TickInterval: common.Duration{Duration: defaultOrchestratorTick},
		},
		JSONRPCAddr:       DefaultJSONRPCAddr,
		RequestsPerSecond: DefaultRequestsPerSecond,
		MetricsAddr:       DefaultMetricsAddr,
		LogLevel:          "info",
		BlockTime:         common.Duration{Duration: defaultBlockTime},
	}
}

// Validate checks the node configuration
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errMissingDataDir
	}

	if c.Bridge.JSONRPCEndpoint == "" {
		return errMissingEndpoint
	}

	if c.Bridge.BridgeContractAddr == ethgo.ZeroAddress {
		return errMissingContract
	}

	if c.BlockTime.Duration <= 0 {
		return errInvalidBlockTime
	}

	return nil
}

// Load reads the node configuration from a JSON file, missing fields keep their defaults
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the node configuration to a JSON file
func (c *Config) Save(path string) error {
	raw, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return err
	}

	return common.SaveFileSafe(path, raw, 0600)
}
