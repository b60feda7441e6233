package bridge

import (
	"fmt"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/mitchellh/mapstructure"
	bolt "go.etcd.io/bbolt"

	"github.com/furyaxyz/elysium-bridge/bridge/types"
)

// TokenMappingChangeProposalType is the type url of the legacy token mapping proposal
const TokenMappingChangeProposalType = "/elysium.TokenMappingChangeProposal"

// TokenMappingChangeProposal changes the contract of a denom through governance.
// An empty contract removes the mapping.
type TokenMappingChangeProposal struct {
	Type        string `mapstructure:"@type"`
	Title       string `mapstructure:"title"`
	Description string `mapstructure:"description"`
	Denom       string `mapstructure:"denom"`
	Contract    string `mapstructure:"contract"`
	Symbol      string `mapstructure:"symbol"`
	Decimal     uint8  `mapstructure:"decimal"`
}

// DecodeTokenMappingChangeProposal decodes the proposal out of generic legacy content
func DecodeTokenMappingChangeProposal(content map[string]interface{}) (*TokenMappingChangeProposal, error) {
	var proposal TokenMappingChangeProposal

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &proposal,
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(content); err != nil {
		return nil, fmt.Errorf("%w: failed to decode proposal: %w", types.ErrInvalidRequest, err)
	}

	if proposal.Type != TokenMappingChangeProposalType {
		return nil, fmt.Errorf("%w: unsupported proposal %q", types.ErrInvalidRequest, proposal.Type)
	}

	if !types.IsValidBridgeDenom(proposal.Denom) {
		return nil, fmt.Errorf("%w: invalid denom %q", types.ErrInvalidRequest, proposal.Denom)
	}

	return &proposal, nil
}

// ContractAddress parses the proposed contract, the zero address for an empty contract
func (p *TokenMappingChangeProposal) ContractAddress() (ethgo.Address, error) {
	var addr ethgo.Address

	if p.Contract == "" {
		return addr, nil
	}

	if len(p.Contract) != 42 {
		return addr, fmt.Errorf("%w: invalid contract %q", types.ErrInvalidRequest, p.Contract)
	}

	if err := addr.UnmarshalText([]byte(p.Contract)); err != nil {
		return addr, fmt.Errorf("%w: invalid contract %q", types.ErrInvalidRequest, p.Contract)
	}

	return addr, nil
}

func (b *Bridge) execLegacyContent(tx *bolt.Tx, height uint64, m *MsgExecLegacyContent) (*outcome, error) {
	if m.Authority != types.GovernanceAuthority {
		return nil, fmt.Errorf("%w: invalid authority %s", types.ErrPermissionDenied, m.Authority)
	}

	proposal, err := DecodeTokenMappingChangeProposal(m.Content)
	if err != nil {
		return nil, err
	}

	contract, err := proposal.ContractAddress()
	if err != nil {
		return nil, err
	}

	if contract == ethgo.ZeroAddress {
		if err := b.tokens.DeleteMapping(tx, proposal.Denom); err != nil {
			return nil, err
		}

		return &outcome{
			notifications: []types.Notification{
				types.NewNotification(types.NotifyMappingUpdated, height, "denom", proposal.Denom, "contract", ""),
			},
		}, nil
	}

	return b.setMapping(tx, height, &types.TokenMapping{
		Denom:    proposal.Denom,
		Contract: contract,
		Symbol:   proposal.Symbol,
		Decimals: proposal.Decimal,
	})
}
