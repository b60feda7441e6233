package bridge

import (
	"fmt"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/holiman/uint256"

	"github.com/furyaxyz/elysium-bridge/bridge/config"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
)

// Msg is a state transition request submitted by an account
type Msg interface {
	// Type returns the message name used in logs and metrics
	Type() string
	// ValidateBasic performs stateless checks
	ValidateBasic() error
}

var (
	_ Msg = &MsgSendToEthereum{}
	_ Msg = &MsgCancelSendToEthereum{}
	_ Msg = &MsgSubmitClaim{}
	_ Msg = &MsgConfirmBatch{}
	_ Msg = &MsgConfirmValset{}
	_ Msg = &MsgProposeValset{}
	_ Msg = &MsgTurnBridge{}
	_ Msg = &MsgUpdateParams{}
	_ Msg = &MsgUpdateTokenMapping{}
	_ Msg = &MsgExecLegacyContent{}
	_ Msg = &MsgRedeemVoucher{}
	_ Msg = &MsgResolveHalted{}
	_ Msg = &MsgEvmTx{}
)

// MsgSendToEthereum queues an outbound transfer of a bridged coin
type MsgSendToEthereum struct {
	Sender    ethgo.Address `json:"sender"`
	Recipient ethgo.Address `json:"recipient"`
	Denom     string        `json:"denom"`
	Amount    *uint256.Int  `json:"amount"`
	Fee       *uint256.Int  `json:"fee"`
}

func (m *MsgSendToEthereum) Type() string { return "send_to_ethereum" }

func (m *MsgSendToEthereum) ValidateBasic() error {
	if m.Amount == nil || m.Amount.IsZero() {
		return fmt.Errorf("%w: amount must be positive", types.ErrInvalidRequest)
	}

	if m.Sender == ethgo.ZeroAddress || m.Recipient == ethgo.ZeroAddress {
		return fmt.Errorf("%w: sender and recipient are required", types.ErrInvalidRequest)
	}

	return nil
}

// MsgCancelSendToEthereum cancels a transfer that is still waiting in the pool
type MsgCancelSendToEthereum struct {
	Sender     ethgo.Address `json:"sender"`
	TransferID uint64        `json:"transferId"`
}

func (m *MsgCancelSendToEthereum) Type() string { return "cancel_send_to_ethereum" }

func (m *MsgCancelSendToEthereum) ValidateBasic() error {
	if m.TransferID == 0 {
		return fmt.Errorf("%w: transfer id is required", types.ErrInvalidRequest)
	}

	return nil
}

// MsgSubmitClaim is an orchestrator's claim about an event observed on the external chain
type MsgSubmitClaim struct {
	Orchestrator ethgo.Address `json:"orchestrator"`
	Event        *types.Event  `json:"event"`
}

func (m *MsgSubmitClaim) Type() string { return "submit_claim" }

func (m *MsgSubmitClaim) ValidateBasic() error {
	if m.Event == nil {
		return fmt.Errorf("%w: event is required", types.ErrInvalidRequest)
	}

	return m.Event.Validate()
}

// MsgConfirmBatch carries an orchestrator signature over a batch checkpoint
type MsgConfirmBatch struct {
	Orchestrator  ethgo.Address `json:"orchestrator"`
	TokenContract ethgo.Address `json:"tokenContract"`
	Nonce         uint64        `json:"nonce"`
	Signature     []byte        `json:"signature"`
}

func (m *MsgConfirmBatch) Type() string { return "confirm_batch" }

func (m *MsgConfirmBatch) ValidateBasic() error {
	if len(m.Signature) == 0 {
		return fmt.Errorf("%w: signature is required", types.ErrInvalidRequest)
	}

	return nil
}

// MsgConfirmValset carries an orchestrator signature over a signer set checkpoint
type MsgConfirmValset struct {
	Orchestrator ethgo.Address `json:"orchestrator"`
	Nonce        uint64        `json:"nonce"`
	Signature    []byte        `json:"signature"`
}

func (m *MsgConfirmValset) Type() string { return "confirm_valset" }

func (m *MsgConfirmValset) ValidateBasic() error {
	if len(m.Signature) == 0 {
		return fmt.Errorf("%w: signature is required", types.ErrInvalidRequest)
	}

	return nil
}

// MsgProposeValset proposes a new signer set checkpoint
type MsgProposeValset struct {
	Authority ethgo.Address         `json:"authority"`
	Members   []*types.ValsetMember `json:"members"`
}

func (m *MsgProposeValset) Type() string { return "propose_valset" }

func (m *MsgProposeValset) ValidateBasic() error {
	if len(m.Members) == 0 {
		return fmt.Errorf("%w: signer set is empty", types.ErrInvalidRequest)
	}

	return nil
}

// MsgTurnBridge enables or disables the bridge
type MsgTurnBridge struct {
	Signer ethgo.Address `json:"signer"`
	Enable bool          `json:"enable"`
}

func (m *MsgTurnBridge) Type() string { return "turn_bridge" }

func (m *MsgTurnBridge) ValidateBasic() error { return nil }

// MsgUpdateParams replaces the module params, executed by governance
type MsgUpdateParams struct {
	Authority ethgo.Address `json:"authority"`
	Params    config.Params `json:"params"`
}

func (m *MsgUpdateParams) Type() string { return "update_params" }

func (m *MsgUpdateParams) ValidateBasic() error {
	return m.Params.Validate()
}

// MsgUpdateTokenMapping sets the contract of a denom, admin only
type MsgUpdateTokenMapping struct {
	Sender   ethgo.Address `json:"sender"`
	Denom    string        `json:"denom"`
	Contract ethgo.Address `json:"contract"`
	Symbol   string        `json:"symbol"`
	Decimals uint8         `json:"decimals"`
}

func (m *MsgUpdateTokenMapping) Type() string { return "update_token_mapping" }

func (m *MsgUpdateTokenMapping) ValidateBasic() error {
	if !types.IsValidBridgeDenom(m.Denom) {
		return fmt.Errorf("%w: invalid denom %q", types.ErrInvalidRequest, m.Denom)
	}

	return nil
}

// MsgExecLegacyContent executes a passed legacy governance proposal
type MsgExecLegacyContent struct {
	Authority ethgo.Address          `json:"authority"`
	Content   map[string]interface{} `json:"content"`
}

func (m *MsgExecLegacyContent) Type() string { return "exec_legacy_content" }

func (m *MsgExecLegacyContent) ValidateBasic() error {
	if len(m.Content) == 0 {
		return fmt.Errorf("%w: proposal content is empty", types.ErrInvalidRequest)
	}

	return nil
}

// MsgRedeemVoucher redeems a reverted transfer voucher to a new recipient
type MsgRedeemVoucher struct {
	Sender    ethgo.Address `json:"sender"`
	Nonce     uint64        `json:"nonce"`
	Recipient ethgo.Address `json:"recipient"`
	Fee       *uint256.Int  `json:"fee"`
}

func (m *MsgRedeemVoucher) Type() string { return "redeem_voucher" }

func (m *MsgRedeemVoucher) ValidateBasic() error {
	if m.Nonce == 0 {
		return fmt.Errorf("%w: voucher nonce is required", types.ErrInvalidRequest)
	}

	return nil
}

// MsgResolveHalted picks the canonical hash of a halted attestation, executed by governance
type MsgResolveHalted struct {
	Authority ethgo.Address `json:"authority"`
	Space     string        `json:"space"`
	Nonce     uint64        `json:"nonce"`
	// Hash is the chosen claim hash, the zero hash skips the nonce
	Hash ethgo.Hash `json:"hash"`
}

func (m *MsgResolveHalted) Type() string { return "resolve_halted" }

func (m *MsgResolveHalted) ValidateBasic() error {
	if m.Space == "" || m.Nonce == 0 {
		return fmt.Errorf("%w: space and nonce are required", types.ErrInvalidRequest)
	}

	return nil
}

// MsgEvmTx carries the logs emitted by a host EVM transaction
type MsgEvmTx struct {
	TxSender ethgo.Address `json:"txSender"`
	Logs     []*ethgo.Log  `json:"logs"`
}

func (m *MsgEvmTx) Type() string { return "evm_tx" }

func (m *MsgEvmTx) ValidateBasic() error { return nil }
