package server

import (
	"errors"
	"fmt"
	"os"

	"github.com/Ethernal-Tech/ethgo"

	"github.com/furyaxyz/elysium-bridge/bridge/config"
)

const (
	configFlag          = "config"
	dataDirFlag         = "data-dir"
	genesisPathFlag     = "genesis"
	jsonRPCFlag         = "json-rpc"
	metricsFlag         = "prometheus"
	externalRPCFlag     = "external-rpc"
	bridgeContractFlag  = "bridge-contract"
	externalChainIDFlag = "external-chain-id"
	orchestratorKeyFlag = "orchestrator-key"
	logLevelFlag        = "log-level"
)

var errContractNotHex = errors.New("bridge contract must be a hex encoded address")

type serverParams struct {
	configPath      string
	dataDir         string
	genesisPath     string
	jsonRPCAddr     string
	metricsAddr     string
	externalRPC     string
	bridgeContract  string
	externalChainID uint64
	orchestratorKey string
	logLevel        string
}

func (p *serverParams) validateFlags() error {
	if p.configPath != "" {
		if _, err := os.Stat(p.configPath); err != nil {
			return fmt.Errorf("provided config path '%s' is invalid. Error: %w", p.configPath, err)
		}
	}

	if p.bridgeContract != "" {
		var addr ethgo.Address
		if err := addr.UnmarshalText([]byte(p.bridgeContract)); err != nil {
			return fmt.Errorf("%w: %w", errContractNotHex, err)
		}
	}

	return nil
}

// buildConfig loads the config file, if any, and applies the flags set on the command line on top of it
func (p *serverParams) buildConfig(isSet func(name string) bool) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if p.configPath != "" {
		loaded, err := config.Load(p.configPath)
		if err != nil {
			return nil, err
		}

		cfg = loaded
	}

	if isSet(dataDirFlag) {
		cfg.DataDir = p.dataDir
	}

	if isSet(genesisPathFlag) {
		cfg.GenesisPath = p.genesisPath
	}

	if isSet(jsonRPCFlag) {
		cfg.JSONRPCAddr = p.jsonRPCAddr
	}

	if isSet(metricsFlag) {
		cfg.MetricsAddr = p.metricsAddr
	}

	if isSet(externalRPCFlag) {
		cfg.Bridge.JSONRPCEndpoint = p.externalRPC
	}

	if isSet(externalChainIDFlag) {
		cfg.Bridge.ExternalChainID = p.externalChainID
	}

	if isSet(bridgeContractFlag) {
		if err := cfg.Bridge.BridgeContractAddr.UnmarshalText([]byte(p.bridgeContract)); err != nil {
			return nil, err
		}
	}

	if isSet(orchestratorKeyFlag) {
		cfg.Orchestrator.Enabled = p.orchestratorKey != ""
		cfg.Orchestrator.KeyFile = p.orchestratorKey
	}

	if isSet(logLevelFlag) {
		cfg.LogLevel = p.logLevel
	}

	return cfg, cfg.Validate()
}
