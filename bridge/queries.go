package bridge

import (
	"fmt"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/holiman/uint256"

	"github.com/furyaxyz/elysium-bridge/bridge/attestation"
	"github.com/furyaxyz/elysium-bridge/bridge/config"
	"github.com/furyaxyz/elysium-bridge/bridge/signerset"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
)

// ParamsResponse is the elysium part of the module params
type ParamsResponse struct {
	ElysiumAdmin         ethgo.Address `json:"elysiumAdmin"`
	EnableAutoDeployment bool          `json:"enableAutoDeployment"`
	IbcElyDenom          string        `json:"ibcElyDenom"`
	IbcTimeout           uint64        `json:"ibcTimeout"`
}

// ContractByDenomResponse is the contract a denom is mapped to
type ContractByDenomResponse struct {
	Contract     ethgo.Address `json:"contract"`
	AutoContract bool          `json:"autoContract"`
}

// SignedBatchResponse is a batch with the collected orchestrator signatures
type SignedBatchResponse struct {
	Batch      *types.OutgoingBatch    `json:"batch"`
	Signatures []*types.BatchSignature `json:"signatures"`
	HasQuorum  bool                    `json:"hasQuorum"`
}

// QueryParams returns the elysium params
func (b *Bridge) QueryParams() (*ParamsResponse, error) {
	p, err := b.gate.Params(nil)
	if err != nil {
		return nil, err
	}

	return &ParamsResponse{
		ElysiumAdmin:         p.ElysiumAdmin,
		EnableAutoDeployment: p.EnableAutoDeployment,
		IbcElyDenom:          p.IbcElyDenom,
		IbcTimeout:           p.IbcTimeout,
	}, nil
}

// QueryGravityParams returns the full params record, bridge activity included
func (b *Bridge) QueryGravityParams() (config.Params, error) {
	return b.gate.Params(nil)
}

// QueryContractByDenom returns the contract mapped to a denom
func (b *Bridge) QueryContractByDenom(denom string) (*ContractByDenomResponse, error) {
	mapping, err := b.tokens.ContractByDenom(nil, denom)
	if err != nil {
		return nil, err
	}

	return &ContractByDenomResponse{Contract: mapping.Contract, AutoContract: mapping.AutoContract}, nil
}

// QueryDenomByContract returns the denom mapped to a contract
func (b *Bridge) QueryDenomByContract(contract ethgo.Address) (string, error) {
	return b.tokens.DenomByContract(nil, contract)
}

// QueryTokenMappings returns every token mapping
func (b *Bridge) QueryTokenMappings() ([]*types.TokenMapping, error) {
	return b.tokens.Mappings(nil)
}

// QueryAutoDeployRequests returns the contracts the host EVM still has to deploy
func (b *Bridge) QueryAutoDeployRequests() ([]*types.AutoDeployRequest, error) {
	return b.tokens.AutoDeployRequests(nil)
}

// QueryExternalToken returns the external chain token deployed for a source denom
func (b *Bridge) QueryExternalToken(denom string) (ethgo.Address, error) {
	return b.tokens.ExternalToken(nil, denom)
}

// QueryLastExternalHeight returns the highest attested external chain height, batch timeouts are counted from it
func (b *Bridge) QueryLastExternalHeight() (uint64, error) {
	return b.batches.LastExternalHeight(nil)
}

// QueryBatches returns the outstanding batches
func (b *Bridge) QueryBatches() ([]*types.OutgoingBatch, error) {
	return b.batches.Batches(nil)
}

// QuerySignedBatch returns a batch with its signatures
func (b *Bridge) QuerySignedBatch(token ethgo.Address, nonce uint64) (*SignedBatchResponse, error) {
	batch, sigs, hasQuorum, err := b.batches.SignedBatch(nil, token, nonce)
	if err != nil {
		return nil, err
	}

	return &SignedBatchResponse{Batch: batch, Signatures: sigs, HasQuorum: hasQuorum}, nil
}

// QueryUnsignedBatches returns the batches the orchestrator has not signed yet
func (b *Bridge) QueryUnsignedBatches(orchestrator ethgo.Address) ([]*types.OutgoingBatch, error) {
	return b.batches.UnsignedBatches(nil, orchestrator)
}

// QueryPendingTransfers returns the transfers waiting in the pool, for every token when token is zero
func (b *Bridge) QueryPendingTransfers(token ethgo.Address) ([]*types.OutgoingTransfer, error) {
	return b.batches.PendingTransfers(nil, token)
}

// QueryLastRevertedNonce returns the nonce of the last created voucher
func (b *Bridge) QueryLastRevertedNonce() (uint64, error) {
	return b.batches.LastRevertedNonce(nil)
}

// QueryRevertedVoucher returns an unredeemed voucher
func (b *Bridge) QueryRevertedVoucher(nonce uint64) (*types.RevertedVoucher, error) {
	return b.batches.Voucher(nil, nonce)
}

// QueryRevertedVouchers returns every unredeemed voucher
func (b *Bridge) QueryRevertedVouchers() ([]*types.RevertedVoucher, error) {
	return b.batches.Vouchers(nil)
}

// QueryAttestation returns the attestation of a nonce
func (b *Bridge) QueryAttestation(space string, nonce uint64) (*attestation.Attestation, error) {
	att, err := b.attestations.Get(nil, space, nonce)
	if err != nil {
		return nil, err
	}

	if att == nil {
		return nil, fmt.Errorf("%w: attestation %d of %s", types.ErrNotFound, nonce, space)
	}

	return att, nil
}

// QueryAttestations returns the stored attestations of a space
func (b *Bridge) QueryAttestations(space string) ([]*attestation.Attestation, error) {
	return b.attestations.List(nil, space)
}

// QueryInvalidClaims returns the attested events of a space that could not be applied
func (b *Bridge) QueryInvalidClaims(space string) ([]*types.InvalidClaim, error) {
	return b.claims.InvalidClaims(nil, space)
}

// QueryBalance returns the balance of an account
func (b *Bridge) QueryBalance(account ethgo.Address, asset string) (*uint256.Int, error) {
	return b.ledger.Balance(nil, account, asset)
}

// QuerySupply returns the total supply of an asset
func (b *Bridge) QuerySupply(asset string) (*uint256.Int, error) {
	return b.ledger.Supply(nil, asset)
}

// QueryValset returns the active signer set checkpoint
func (b *Bridge) QueryValset() (*signerset.Checkpoint, error) {
	return b.signers.CurrentSet(nil)
}

// QueryValsetCheckpoint returns the signer set checkpoint of a nonce
func (b *Bridge) QueryValsetCheckpoint(nonce uint64) (*signerset.Checkpoint, error) {
	return b.signers.Checkpoint(nil, nonce)
}

// QueryPendingValsets returns the checkpoints the orchestrator has not confirmed yet
func (b *Bridge) QueryPendingValsets(orchestrator ethgo.Address) ([]*signerset.Checkpoint, error) {
	return b.signers.Pending(nil, orchestrator)
}

// LastAppliedNonce returns the last applied nonce of a space
func (b *Bridge) LastAppliedNonce(space string) (uint64, error) {
	return b.attestations.LastAppliedNonce(nil, space)
}
