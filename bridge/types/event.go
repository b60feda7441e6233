package types

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/Ethernal-Tech/ethgo/abi"
	"github.com/holiman/uint256"

	"github.com/furyaxyz/elysium-bridge/crypto"
)

// EventKind is the kind of an event emitted by the external bridge contract
type EventKind uint8

const (
	EventDeposit EventKind = iota + 1
	EventBatchExecuted
	EventLogicCallExecuted
	EventValsetUpdated
	EventERC20Deployed
)

func (k EventKind) String() string {
	switch k {
	case EventDeposit:
		return "deposit"
	case EventBatchExecuted:
		return "batch_executed"
	case EventLogicCallExecuted:
		return "logic_call_executed"
	case EventValsetUpdated:
		return "valset_updated"
	case EventERC20Deployed:
		return "erc20_deployed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

var eventHeaderABIType = abi.MustNewType(
	"tuple(uint256 chainId, address contract, uint256 nonce, uint8 kind, uint256 height, bytes payload)")

// DepositPayload is the payload of a SendToCosmos event
type DepositPayload struct {
	TokenContract ethgo.Address `json:"tokenContract"`
	Sender        ethgo.Address `json:"sender"`
	// Receiver is the raw destination written by the depositor, it is validated when applied
	Receiver string       `json:"receiver"`
	Amount   *uint256.Int `json:"amount"`
}

// BatchExecutedPayload is the payload of a TransactionBatchExecuted event
type BatchExecutedPayload struct {
	TokenContract       ethgo.Address `json:"tokenContract"`
	BatchNonce          uint64        `json:"batchNonce"`
	RevertedTransferIDs []uint64      `json:"revertedTransferIds,omitempty"`
}

// LogicCallExecutedPayload is the payload of a LogicCallEvent event
type LogicCallExecutedPayload struct {
	InvalidationID    ethgo.Hash `json:"invalidationId"`
	InvalidationNonce uint64     `json:"invalidationNonce"`
}

// ValsetMember is a single signer reported by a ValsetUpdated event
type ValsetMember struct {
	Address ethgo.Address `json:"address"`
	Power   uint64        `json:"power"`
}

// ValsetUpdatedPayload is the payload of a ValsetUpdated event
type ValsetUpdatedPayload struct {
	ValsetNonce uint64          `json:"valsetNonce"`
	Members     []*ValsetMember `json:"members"`
}

// ERC20DeployedPayload is the payload of an ERC20DeployedEvent event, the external chain
// token the bridge contract deployed to represent a source denom
type ERC20DeployedPayload struct {
	Denom         string        `json:"denom"`
	TokenContract ethgo.Address `json:"tokenContract"`
	Name          string        `json:"name"`
	Symbol        string        `json:"symbol"`
	Decimals      uint8         `json:"decimals"`
}

// Event is an immutable record of a bridge contract log observed on the external chain
type Event struct {
	SourceChainID uint64        `json:"sourceChainId"`
	Contract      ethgo.Address `json:"contract"`
	Nonce         uint64        `json:"nonce"`
	Kind          EventKind     `json:"kind"`
	Height        uint64        `json:"height"`

	Deposit       *DepositPayload           `json:"deposit,omitempty"`
	BatchExecuted *BatchExecutedPayload     `json:"batchExecuted,omitempty"`
	LogicCall     *LogicCallExecutedPayload `json:"logicCall,omitempty"`
	ValsetUpdated *ValsetUpdatedPayload     `json:"valsetUpdated,omitempty"`
	ERC20Deployed *ERC20DeployedPayload     `json:"erc20Deployed,omitempty"`
}

// Validate checks that the event carries exactly the payload of its kind
func (e *Event) Validate() error {
	if e.Nonce == 0 {
		return fmt.Errorf("%w: event nonce must be positive", ErrInvalidRequest)
	}

	payloads := 0

	for _, set := range []bool{
		e.Deposit != nil, e.BatchExecuted != nil, e.LogicCall != nil, e.ValsetUpdated != nil, e.ERC20Deployed != nil,
	} {
		if set {
			payloads++
		}
	}

	if payloads != 1 {
		return fmt.Errorf("%w: event must carry exactly one payload, got %d", ErrInvalidRequest, payloads)
	}

	var ok bool

	switch e.Kind {
	case EventDeposit:
		ok = e.Deposit != nil && e.Deposit.Amount != nil
	case EventBatchExecuted:
		ok = e.BatchExecuted != nil
	case EventLogicCallExecuted:
		ok = e.LogicCall != nil
	case EventValsetUpdated:
		ok = e.ValsetUpdated != nil
	case EventERC20Deployed:
		ok = e.ERC20Deployed != nil
	}

	if !ok {
		return fmt.Errorf("%w: payload does not match event kind %s", ErrInvalidRequest, e.Kind)
	}

	return nil
}

// Space returns the nonce space of the event, nonces are monotonic per source contract
func (e *Event) Space() string {
	return EventSpace(e.SourceChainID, e.Contract)
}

// ClaimHash returns the hash honest orchestrators agree on when they observe the same log
func (e *Event) ClaimHash() (ethgo.Hash, error) {
	payload, err := json.Marshal(struct {
		Deposit       *DepositPayload           `json:"deposit,omitempty"`
		BatchExecuted *BatchExecutedPayload     `json:"batchExecuted,omitempty"`
		LogicCall     *LogicCallExecutedPayload `json:"logicCall,omitempty"`
		ValsetUpdated *ValsetUpdatedPayload     `json:"valsetUpdated,omitempty"`
		ERC20Deployed *ERC20DeployedPayload     `json:"erc20Deployed,omitempty"`
	}{e.Deposit, e.BatchExecuted, e.LogicCall, e.ValsetUpdated, e.ERC20Deployed})
	if err != nil {
		return ethgo.ZeroHash, err
	}

	encoded, err := eventHeaderABIType.Encode(map[string]interface{}{
		"chainId":  new(big.Int).SetUint64(e.SourceChainID),
		"contract": e.Contract,
		"nonce":    new(big.Int).SetUint64(e.Nonce),
		"kind":     uint8(e.Kind),
		"height":   new(big.Int).SetUint64(e.Height),
		"payload":  payload,
	})
	if err != nil {
		return ethgo.ZeroHash, fmt.Errorf("failed to encode event %d: %w", e.Nonce, err)
	}

	return crypto.Keccak256Hash(encoded), nil
}

// Copy returns a deep copy of the event
func (e *Event) Copy() *Event {
	raw, _ := json.Marshal(e)

	var cp Event
	_ = json.Unmarshal(raw, &cp)

	return &cp
}

// EventSpace returns the nonce space name for the given source contract
func EventSpace(chainID uint64, contract ethgo.Address) string {
	return fmt.Sprintf("events/%d/%s", chainID, contract)
}

// ValsetSpace is the nonce space of signer set checkpoints
const ValsetSpace = "valset"
