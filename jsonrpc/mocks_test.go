package jsonrpc

import (
	"github.com/Ethernal-Tech/ethgo"
	"github.com/holiman/uint256"

	"github.com/furyaxyz/elysium-bridge/bridge"
	"github.com/furyaxyz/elysium-bridge/bridge/attestation"
	"github.com/furyaxyz/elysium-bridge/bridge/config"
	"github.com/furyaxyz/elysium-bridge/bridge/signerset"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
)

var _ bridgeStore = (*storeMock)(nil)

// storeMock serves canned records, missing records are reported as not found
type storeMock struct {
	space        string
	params       config.Params
	mappings     []*types.TokenMapping
	batches      []*types.OutgoingBatch
	vouchers     map[uint64]*types.RevertedVoucher
	attestations map[uint64]*attestation.Attestation
	balances     map[string]*uint256.Int
	external     map[string]ethgo.Address
	height       uint64
}

func (m *storeMock) EventSpace() string {
	return m.space
}

func (m *storeMock) QueryParams() (*bridge.ParamsResponse, error) {
	return &bridge.ParamsResponse{
		ElysiumAdmin:         m.params.ElysiumAdmin,
		EnableAutoDeployment: m.params.EnableAutoDeployment,
		IbcElyDenom:          m.params.IbcElyDenom,
		IbcTimeout:           m.params.IbcTimeout,
	}, nil
}

func (m *storeMock) QueryGravityParams() (config.Params, error) {
	return m.params, nil
}

func (m *storeMock) QueryContractByDenom(denom string) (*bridge.ContractByDenomResponse, error) {
	for _, mapping := range m.mappings {
		if mapping.Denom == denom {
			return &bridge.ContractByDenomResponse{Contract: mapping.Contract}, nil
		}
	}

	return nil, types.ErrMappingNotFound
}

func (m *storeMock) QueryDenomByContract(contract ethgo.Address) (string, error) {
	for _, mapping := range m.mappings {
		if mapping.Contract == contract {
			return mapping.Denom, nil
		}
	}

	return "", types.ErrMappingNotFound
}

func (m *storeMock) QueryTokenMappings() ([]*types.TokenMapping, error) {
	return m.mappings, nil
}

func (m *storeMock) QueryBatches() ([]*types.OutgoingBatch, error) {
	return m.batches, nil
}

func (m *storeMock) QuerySignedBatch(token ethgo.Address, nonce uint64) (*bridge.SignedBatchResponse, error) {
	for _, batch := range m.batches {
		if batch.TokenContract == token && batch.Nonce == nonce {
			return &bridge.SignedBatchResponse{Batch: batch}, nil
		}
	}

	return nil, types.ErrNotFound
}

func (m *storeMock) QueryPendingTransfers(ethgo.Address) ([]*types.OutgoingTransfer, error) {
	return []*types.OutgoingTransfer{}, nil
}

func (m *storeMock) QueryExternalToken(denom string) (ethgo.Address, error) {
	token, ok := m.external[denom]
	if !ok {
		return ethgo.ZeroAddress, types.ErrMappingNotFound
	}

	return token, nil
}

func (m *storeMock) QueryLastExternalHeight() (uint64, error) {
	return m.height, nil
}

func (m *storeMock) QueryLastRevertedNonce() (uint64, error) {
	return uint64(len(m.vouchers)), nil
}

func (m *storeMock) QueryRevertedVoucher(nonce uint64) (*types.RevertedVoucher, error) {
	voucher, ok := m.vouchers[nonce]
	if !ok {
		return nil, types.ErrNotFound
	}

	return voucher, nil
}

func (m *storeMock) QueryAttestation(space string, nonce uint64) (*attestation.Attestation, error) {
	att, ok := m.attestations[nonce]
	if !ok || att.Space != space {
		return nil, types.ErrNotFound
	}

	return att, nil
}

func (m *storeMock) QueryInvalidClaims(string) ([]*types.InvalidClaim, error) {
	return []*types.InvalidClaim{}, nil
}

func (m *storeMock) QueryBalance(account ethgo.Address, asset string) (*uint256.Int, error) {
	if amount, ok := m.balances[account.String()+asset]; ok {
		return amount, nil
	}

	return uint256.NewInt(0), nil
}

func (m *storeMock) QuerySupply(string) (*uint256.Int, error) {
	total := uint256.NewInt(0)
	for _, amount := range m.balances {
		total.Add(total, amount)
	}

	return total, nil
}

func (m *storeMock) QueryValset() (*signerset.Checkpoint, error) {
	return &signerset.Checkpoint{Nonce: 1, Active: true}, nil
}
