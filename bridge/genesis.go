package bridge

import (
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	jsoniter "github.com/json-iterator/go"
	bolt "go.etcd.io/bbolt"

	"github.com/furyaxyz/elysium-bridge/bridge/config"
	"github.com/furyaxyz/elysium-bridge/bridge/ledger"
	"github.com/furyaxyz/elysium-bridge/bridge/metrics"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
	"github.com/furyaxyz/elysium-bridge/helper/common"
)

var (
	errGenesisInitialized = errors.New("genesis is already initialized")

	json = jsoniter.ConfigCompatibleWithStandardLibrary
)

// GenesisState is the initial state of the bridge
type GenesisState struct {
	Params        config.Params         `json:"params"`
	Valset        []*types.ValsetMember `json:"valset"`
	TokenMappings []*types.TokenMapping `json:"tokenMappings,omitempty"`
	// ExternalTokens are the external chain contracts deployed for source denoms
	ExternalTokens []*types.ExternalToken `json:"externalTokens,omitempty"`
	Balances       []*ledger.Entry        `json:"balances,omitempty"`
	// LastAppliedNonces is the applied cursor per nonce space
	LastAppliedNonces map[string]uint64 `json:"lastAppliedNonces,omitempty"`
}

// DefaultGenesis returns the genesis state with default params and the given signer set
func DefaultGenesis(valset []*types.ValsetMember) *GenesisState {
	return &GenesisState{
		Params: config.DefaultParams(),
		Valset: valset,
	}
}

// Validate checks the genesis state and reports every problem found
func (g *GenesisState) Validate() error {
	var result error

	if err := g.Params.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	if len(g.Valset) == 0 {
		result = multierror.Append(result, fmt.Errorf("%w: genesis signer set is empty", types.ErrInvalidRequest))
	}

	denoms := make(map[string]struct{}, len(g.TokenMappings))

	for _, m := range g.TokenMappings {
		if !types.IsValidBridgeDenom(m.Denom) {
			result = multierror.Append(result, fmt.Errorf("%w: invalid denom %q", types.ErrInvalidRequest, m.Denom))
		}

		if _, ok := denoms[m.Denom]; ok {
			result = multierror.Append(result, fmt.Errorf("%w: duplicate mapping of %s", types.ErrInvalidRequest, m.Denom))
		}

		denoms[m.Denom] = struct{}{}
	}

	for _, et := range g.ExternalTokens {
		if !types.IsSourceDenom(et.Denom) {
			result = multierror.Append(result,
				fmt.Errorf("%w: external token of non source denom %q", types.ErrInvalidRequest, et.Denom))
		}
	}

	for _, b := range g.Balances {
		if b.Amount == nil || b.Amount.IsZero() {
			result = multierror.Append(result,
				fmt.Errorf("%w: empty balance of %s %s", types.ErrInvalidRequest, b.Account, b.Asset))
		}
	}

	return result
}

// LoadGenesis reads the genesis state from a JSON file
func LoadGenesis(path string) (*GenesisState, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read genesis file %s: %w", path, err)
	}

	var g GenesisState
	if err := json.Unmarshal(content, &g); err != nil {
		return nil, fmt.Errorf("failed to parse genesis file %s: %w", path, err)
	}

	return &g, nil
}

// Save writes the genesis state to a JSON file
func (g *GenesisState) Save(path string) error {
	raw, err := json.MarshalIndent(g, "", "    ")
	if err != nil {
		return err
	}

	return common.SaveFileSafe(path, raw, 0600)
}

// InitGenesis loads the genesis state into an empty bridge
func (b *Bridge) InitGenesis(g *GenesisState) error {
	if err := g.Validate(); err != nil {
		return err
	}

	initialized, err := b.state.IsGenesisInitialized()
	if err != nil {
		return err
	}

	if initialized {
		return errGenesisInitialized
	}

	err = b.execute(func(tx *bolt.Tx) error {
		if err := b.gate.Init(tx, g.Params); err != nil {
			return err
		}

		if _, err := b.signers.InitGenesis(tx, g.Valset); err != nil {
			return fmt.Errorf("failed to store genesis signer set: %w", err)
		}

		for _, m := range g.TokenMappings {
			if err := b.tokens.SetMapping(tx, m); err != nil {
				return fmt.Errorf("failed to store mapping of %s: %w", m.Denom, err)
			}
		}

		for _, et := range g.ExternalTokens {
			if err := b.tokens.SetExternalToken(tx, et.Denom, et.Contract); err != nil {
				return fmt.Errorf("failed to store external token of %s: %w", et.Denom, err)
			}
		}

		for _, entry := range g.Balances {
			if err := b.ledger.Mint(tx, entry.Account, entry.Asset, entry.Amount); err != nil {
				return fmt.Errorf("failed to mint genesis balance of %s: %w", entry.Account, err)
			}
		}

		for space, nonce := range g.LastAppliedNonces {
			if err := b.attestations.SetLastAppliedNonce(tx, space, nonce); err != nil {
				return err
			}
		}

		return b.state.MarkGenesisInitialized(tx)
	})
	if err != nil {
		return err
	}

	metrics.SetBridgeActive(g.Params.BridgeActive)

	b.logger.Info("genesis initialized", "signers", len(g.Valset), "mappings", len(g.TokenMappings),
		"active", g.Params.BridgeActive)

	return nil
}

// ExportGenesis exports params, the active signer set, token mappings with their external tokens,
// balances and the applied cursor
func (b *Bridge) ExportGenesis() (*GenesisState, error) {
	tx, err := b.state.BeginDBTransaction(false)
	if err != nil {
		return nil, err
	}

	defer tx.Rollback() //nolint:errcheck

	p, err := b.gate.Params(tx)
	if err != nil {
		return nil, err
	}

	cp, err := b.signers.CurrentSet(tx)
	if err != nil {
		return nil, err
	}

	mappings, err := b.tokens.Mappings(tx)
	if err != nil {
		return nil, err
	}

	externalTokens, err := b.tokens.ExternalTokens(tx)
	if err != nil {
		return nil, err
	}

	balances, err := b.ledger.All(tx)
	if err != nil {
		return nil, err
	}

	lastApplied, err := b.attestations.LastAppliedNonce(tx, b.EventSpace())
	if err != nil {
		return nil, err
	}

	g := &GenesisState{
		Params:         p,
		Valset:         cp.Members,
		TokenMappings:  mappings,
		ExternalTokens: externalTokens,
		Balances:       balances,
	}

	if lastApplied > 0 {
		g.LastAppliedNonces = map[string]uint64{b.EventSpace(): lastApplied}
	}

	return g, nil
}
