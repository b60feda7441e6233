package genesis

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/holiman/uint256"

	"github.com/furyaxyz/elysium-bridge/bridge"
	"github.com/furyaxyz/elysium-bridge/bridge/ledger"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
)

const (
	genesisPathFlag    = "dir"
	validatorFlag      = "validator"
	adminFlag          = "admin"
	bridgeActiveFlag   = "bridge-active"
	autoDeploymentFlag = "auto-deployment"
	ibcDenomFlag       = "ibc-denom"
	ibcTimeoutFlag     = "ibc-timeout"
	mappingFlag        = "token-mapping"
	balanceFlag        = "balance"

	defaultGenesisPath = "./genesis.json"
)

var errNoValidators = errors.New("at least one validator is required")

type genesisParams struct {
	genesisPath    string
	validators     []string
	admin          string
	bridgeActive   bool
	autoDeployment bool
	ibcDenom       string
	ibcTimeout     uint64
	mappings       []string
	balances       []string
}

func (p *genesisParams) validateFlags() error {
	if len(p.validators) == 0 {
		return errNoValidators
	}

	_, err := p.buildGenesis()

	return err
}

// buildGenesis creates the genesis state described by the flags
func (p *genesisParams) buildGenesis() (*bridge.GenesisState, error) {
	valset := make([]*types.ValsetMember, 0, len(p.validators))

	for _, raw := range p.validators {
		member, err := parseValidator(raw)
		if err != nil {
			return nil, err
		}

		valset = append(valset, member)
	}

	g := bridge.DefaultGenesis(valset)
	g.Params.BridgeActive = p.bridgeActive
	g.Params.EnableAutoDeployment = p.autoDeployment

	if p.ibcDenom != "" {
		g.Params.IbcElyDenom = p.ibcDenom
	}

	if p.ibcTimeout != 0 {
		g.Params.IbcTimeout = p.ibcTimeout
	}

	if p.admin != "" {
		if err := g.Params.ElysiumAdmin.UnmarshalText([]byte(p.admin)); err != nil {
			return nil, fmt.Errorf("invalid admin address %q: %w", p.admin, err)
		}
	}

	for _, raw := range p.mappings {
		mapping, err := parseMapping(raw)
		if err != nil {
			return nil, err
		}

		g.TokenMappings = append(g.TokenMappings, mapping)
	}

	for _, raw := range p.balances {
		entry, err := parseBalance(raw)
		if err != nil {
			return nil, err
		}

		g.Balances = append(g.Balances, entry)
	}

	return g, g.Validate()
}

// parseValidator parses <address>:<power>
func parseValidator(raw string) (*types.ValsetMember, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid validator %q, expected <address>:<power>", raw)
	}

	member := &types.ValsetMember{}
	if err := member.Address.UnmarshalText([]byte(parts[0])); err != nil {
		return nil, fmt.Errorf("invalid validator address %q: %w", parts[0], err)
	}

	power, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil || power == 0 {
		return nil, fmt.Errorf("invalid validator power %q", parts[1])
	}

	member.Power = power

	return member, nil
}

// parseMapping parses <denom>:<contract>
func parseMapping(raw string) (*types.TokenMapping, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid token mapping %q, expected <denom>:<contract>", raw)
	}

	var contract ethgo.Address
	if err := contract.UnmarshalText([]byte(parts[1])); err != nil {
		return nil, fmt.Errorf("invalid token contract %q: %w", parts[1], err)
	}

	return &types.TokenMapping{
		Denom:    parts[0],
		Contract: contract,
		Source:   types.IsSourceDenom(parts[0]),
	}, nil
}

// parseBalance parses <account>:<asset>:<amount>
func parseBalance(raw string) (*ledger.Entry, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid balance %q, expected <account>:<asset>:<amount>", raw)
	}

	entry := &ledger.Entry{Asset: parts[1]}
	if err := entry.Account.UnmarshalText([]byte(parts[0])); err != nil {
		return nil, fmt.Errorf("invalid balance account %q: %w", parts[0], err)
	}

	amount, err := uint256.FromDecimal(parts[2])
	if err != nil {
		return nil, fmt.Errorf("invalid balance amount %q: %w", parts[2], err)
	}

	entry.Amount = amount

	return entry, nil
}
