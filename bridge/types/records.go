package types

import (
	"github.com/Ethernal-Tech/ethgo"
	"github.com/holiman/uint256"
)

// TokenMapping associates a bridge denom with its contract on the destination EVM
type TokenMapping struct {
	Denom    string        `json:"denom"`
	Contract ethgo.Address `json:"contract"`
	Symbol   string        `json:"symbol,omitempty"`
	Decimals uint8         `json:"decimals,omitempty"`
	// Source is true when the coin originates on this chain (elysium0x denoms)
	Source bool `json:"source"`
	// AutoContract is true when the contract was deployed by the bridge itself
	AutoContract bool `json:"autoContract"`
}

// ExternalToken is the external chain token contract deployed for a source denom
type ExternalToken struct {
	Denom    string        `json:"denom"`
	Contract ethgo.Address `json:"contract"`
}

// AutoDeployRequest is a request for the host EVM to deploy a bridged token contract
type AutoDeployRequest struct {
	Denom    string        `json:"denom"`
	Contract ethgo.Address `json:"contract"`
	Height   uint64        `json:"height"`
}

// OutgoingTransfer is a single outbound transfer to the external chain
type OutgoingTransfer struct {
	ID            uint64        `json:"id"`
	Sender        ethgo.Address `json:"sender"`
	Recipient     ethgo.Address `json:"recipient"`
	TokenContract ethgo.Address `json:"tokenContract"`
	Denom         string        `json:"denom"`
	Amount        *uint256.Int  `json:"amount"`
	Fee           *uint256.Int  `json:"fee"`
	// BatchNonce is zero while the transfer is waiting in the pool
	BatchNonce uint64 `json:"batchNonce,omitempty"`
}

// OutgoingBatch is an ordered set of transfers of one token signed collectively
type OutgoingBatch struct {
	Nonce         uint64              `json:"nonce"`
	TokenContract ethgo.Address       `json:"tokenContract"`
	Transfers     []*OutgoingTransfer `json:"transfers"`
	// Height is the block at which the batch was cut
	Height uint64 `json:"height"`
	// Timeout is the external chain height after which the batch is returned to the pool
	Timeout uint64 `json:"timeout"`
	// ValsetNonce is the checkpoint whose signers must sign the batch
	ValsetNonce uint64     `json:"valsetNonce"`
	RootHash    ethgo.Hash `json:"rootHash"`
	Checkpoint  ethgo.Hash `json:"checkpoint"`
}

// TotalFee returns the sum of the fees of all transfers in the batch
func (b *OutgoingBatch) TotalFee() *uint256.Int {
	total := new(uint256.Int)
	for _, tr := range b.Transfers {
		total.Add(total, tr.Fee)
	}

	return total
}

// BatchSignature is an orchestrator signature over a batch checkpoint
type BatchSignature struct {
	Orchestrator ethgo.Address `json:"orchestrator"`
	Signature    []byte        `json:"signature"`
}

// RevertedVoucher is a redeemable credit for an outbound transfer rejected by the destination
type RevertedVoucher struct {
	Nonce     uint64        `json:"nonce"`
	Token     ethgo.Address `json:"token"`
	Denom     string        `json:"denom"`
	Recipient ethgo.Address `json:"recipient"`
	Amount    *uint256.Int  `json:"amount"`
}

// InvalidClaim records an attested event that could not be applied
type InvalidClaim struct {
	Space  string `json:"space"`
	Nonce  uint64 `json:"nonce"`
	Reason string `json:"reason"`
	Height uint64 `json:"height"`
}
