package contractsapi

import (
	"fmt"
	"math/big"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/Ethernal-Tech/ethgo/abi"

	"github.com/furyaxyz/elysium-bridge/bridge/types"
)

var (
	sendToCosmosEventABI = abi.MustNewEvent("event SendToCosmosEvent(" +
		"address indexed _tokenContract, address indexed _sender, string _destination," +
		"uint256 _amount, uint256 _eventNonce)")
	transactionBatchExecutedEventABI = abi.MustNewEvent("event TransactionBatchExecutedEvent(" +
		"uint256 indexed _batchNonce, address indexed _token, uint256 _eventNonce, uint256[] _revertedTransferIds)")
	logicCallEventABI = abi.MustNewEvent("event LogicCallEvent(" +
		"bytes32 _invalidationId, uint256 _invalidationNonce, bytes _returnData, uint256 _eventNonce)")
	valsetUpdatedEventABI = abi.MustNewEvent("event ValsetUpdatedEvent(" +
		"uint256 indexed _newValsetNonce, uint256 _eventNonce, uint256 _rewardAmount, address _rewardToken," +
		"address[] _validators, uint256[] _powers)")
	erc20DeployedEventABI = abi.MustNewEvent("event ERC20DeployedEvent(" +
		"string _cosmosDenom, address indexed _tokenContract, string _name, string _symbol," +
		"uint8 _decimals, uint256 _eventNonce)")
)

var (
	_ EventAbi = &SendToCosmosEvent{}
	_ EventAbi = &TransactionBatchExecutedEvent{}
	_ EventAbi = &LogicCallEvent{}
	_ EventAbi = &ValsetUpdatedEvent{}
	_ EventAbi = &ERC20DeployedEvent{}
)

// BridgeEvent is a bridge contract event that carries an event nonce
type BridgeEvent interface {
	EventAbi
	// ToEvent converts the parsed log into a bridge event
	ToEvent(chainID uint64, contract ethgo.Address, height uint64) (*types.Event, error)
}

// BridgeEventSigs returns the signatures of all events the bridge contract emits
func BridgeEventSigs() []ethgo.Hash {
	return []ethgo.Hash{
		sendToCosmosEventABI.ID(),
		transactionBatchExecutedEventABI.ID(),
		logicCallEventABI.ID(),
		valsetUpdatedEventABI.ID(),
		erc20DeployedEventABI.ID(),
	}
}

// ParseBridgeLog parses a bridge contract log into the event it represents.
// It returns false when the log is not a bridge event.
func ParseBridgeLog(log *ethgo.Log) (BridgeEvent, bool, error) {
	for _, ev := range []BridgeEvent{
		&SendToCosmosEvent{},
		&TransactionBatchExecutedEvent{},
		&LogicCallEvent{},
		&ValsetUpdatedEvent{},
		&ERC20DeployedEvent{},
	} {
		matches, err := ev.ParseLog(log)
		if err != nil {
			return nil, matches, err
		}

		if matches {
			return ev, true, nil
		}
	}

	return nil, false, nil
}

type SendToCosmosEvent struct {
	TokenContract ethgo.Address `abi:"_tokenContract"`
	Sender        ethgo.Address `abi:"_sender"`
	Destination   string        `abi:"_destination"`
	Amount        *big.Int      `abi:"_amount"`
	EventNonce    *big.Int      `abi:"_eventNonce"`
}

func (*SendToCosmosEvent) Sig() ethgo.Hash {
	return sendToCosmosEventABI.ID()
}

func (e *SendToCosmosEvent) ParseLog(log *ethgo.Log) (bool, error) {
	if !sendToCosmosEventABI.Match(log) {
		return false, nil
	}

	return true, decodeEvent(sendToCosmosEventABI, log, e)
}

func (e *SendToCosmosEvent) ToEvent(chainID uint64, contract ethgo.Address, height uint64) (*types.Event, error) {
	nonce, err := ToUint64(e.EventNonce)
	if err != nil {
		return nil, fmt.Errorf("invalid event nonce: %w", err)
	}

	amount, err := ToUint256(e.Amount)
	if err != nil {
		return nil, err
	}

	return &types.Event{
		SourceChainID: chainID,
		Contract:      contract,
		Nonce:         nonce,
		Kind:          types.EventDeposit,
		Height:        height,
		Deposit: &types.DepositPayload{
			TokenContract: e.TokenContract,
			Sender:        e.Sender,
			Receiver:      e.Destination,
			Amount:        amount,
		},
	}, nil
}

type TransactionBatchExecutedEvent struct {
	BatchNonce          *big.Int      `abi:"_batchNonce"`
	Token               ethgo.Address `abi:"_token"`
	EventNonce          *big.Int      `abi:"_eventNonce"`
	RevertedTransferIDs []*big.Int    `abi:"_revertedTransferIds"`
}

func (*TransactionBatchExecutedEvent) Sig() ethgo.Hash {
	return transactionBatchExecutedEventABI.ID()
}

func (e *TransactionBatchExecutedEvent) ParseLog(log *ethgo.Log) (bool, error) {
	if !transactionBatchExecutedEventABI.Match(log) {
		return false, nil
	}

	return true, decodeEvent(transactionBatchExecutedEventABI, log, e)
}

func (e *TransactionBatchExecutedEvent) ToEvent(
	chainID uint64, contract ethgo.Address, height uint64) (*types.Event, error) {
	nonce, err := ToUint64(e.EventNonce)
	if err != nil {
		return nil, fmt.Errorf("invalid event nonce: %w", err)
	}

	batchNonce, err := ToUint64(e.BatchNonce)
	if err != nil {
		return nil, fmt.Errorf("invalid batch nonce: %w", err)
	}

	var reverted []uint64

	for _, id := range e.RevertedTransferIDs {
		v, err := ToUint64(id)
		if err != nil {
			return nil, fmt.Errorf("invalid reverted transfer id: %w", err)
		}

		reverted = append(reverted, v)
	}

	return &types.Event{
		SourceChainID: chainID,
		Contract:      contract,
		Nonce:         nonce,
		Kind:          types.EventBatchExecuted,
		Height:        height,
		BatchExecuted: &types.BatchExecutedPayload{
			TokenContract:       e.Token,
			BatchNonce:          batchNonce,
			RevertedTransferIDs: reverted,
		},
	}, nil
}

type LogicCallEvent struct {
	InvalidationID    [32]byte `abi:"_invalidationId"`
	InvalidationNonce *big.Int `abi:"_invalidationNonce"`
	ReturnData        []byte   `abi:"_returnData"`
	EventNonce        *big.Int `abi:"_eventNonce"`
}

func (*LogicCallEvent) Sig() ethgo.Hash {
	return logicCallEventABI.ID()
}

func (e *LogicCallEvent) ParseLog(log *ethgo.Log) (bool, error) {
	if !logicCallEventABI.Match(log) {
		return false, nil
	}

	return true, decodeEvent(logicCallEventABI, log, e)
}

func (e *LogicCallEvent) ToEvent(chainID uint64, contract ethgo.Address, height uint64) (*types.Event, error) {
	nonce, err := ToUint64(e.EventNonce)
	if err != nil {
		return nil, fmt.Errorf("invalid event nonce: %w", err)
	}

	invalidationNonce, err := ToUint64(e.InvalidationNonce)
	if err != nil {
		return nil, fmt.Errorf("invalid invalidation nonce: %w", err)
	}

	return &types.Event{
		SourceChainID: chainID,
		Contract:      contract,
		Nonce:         nonce,
		Kind:          types.EventLogicCallExecuted,
		Height:        height,
		LogicCall: &types.LogicCallExecutedPayload{
			InvalidationID:    ethgo.Hash(e.InvalidationID),
			InvalidationNonce: invalidationNonce,
		},
	}, nil
}

type ValsetUpdatedEvent struct {
	NewValsetNonce *big.Int        `abi:"_newValsetNonce"`
	EventNonce     *big.Int        `abi:"_eventNonce"`
	RewardAmount   *big.Int        `abi:"_rewardAmount"`
	RewardToken    ethgo.Address   `abi:"_rewardToken"`
	Validators     []ethgo.Address `abi:"_validators"`
	Powers         []*big.Int      `abi:"_powers"`
}

func (*ValsetUpdatedEvent) Sig() ethgo.Hash {
	return valsetUpdatedEventABI.ID()
}

func (e *ValsetUpdatedEvent) ParseLog(log *ethgo.Log) (bool, error) {
	if !valsetUpdatedEventABI.Match(log) {
		return false, nil
	}

	return true, decodeEvent(valsetUpdatedEventABI, log, e)
}

func (e *ValsetUpdatedEvent) ToEvent(chainID uint64, contract ethgo.Address, height uint64) (*types.Event, error) {
	nonce, err := ToUint64(e.EventNonce)
	if err != nil {
		return nil, fmt.Errorf("invalid event nonce: %w", err)
	}

	valsetNonce, err := ToUint64(e.NewValsetNonce)
	if err != nil {
		return nil, fmt.Errorf("invalid valset nonce: %w", err)
	}

	if len(e.Validators) != len(e.Powers) {
		return nil, fmt.Errorf("validators and powers length mismatch: %d != %d", len(e.Validators), len(e.Powers))
	}

	members := make([]*types.ValsetMember, len(e.Validators))

	for i, addr := range e.Validators {
		power, err := ToUint64(e.Powers[i])
		if err != nil {
			return nil, fmt.Errorf("invalid power of %s: %w", addr, err)
		}

		members[i] = &types.ValsetMember{Address: addr, Power: power}
	}

	return &types.Event{
		SourceChainID: chainID,
		Contract:      contract,
		Nonce:         nonce,
		Kind:          types.EventValsetUpdated,
		Height:        height,
		ValsetUpdated: &types.ValsetUpdatedPayload{
			ValsetNonce: valsetNonce,
			Members:     members,
		},
	}, nil
}

type ERC20DeployedEvent struct {
	CosmosDenom   string        `abi:"_cosmosDenom"`
	TokenContract ethgo.Address `abi:"_tokenContract"`
	Name          string        `abi:"_name"`
	Symbol        string        `abi:"_symbol"`
	Decimals      uint8         `abi:"_decimals"`
	EventNonce    *big.Int      `abi:"_eventNonce"`
}

func (*ERC20DeployedEvent) Sig() ethgo.Hash {
	return erc20DeployedEventABI.ID()
}

func (e *ERC20DeployedEvent) ParseLog(log *ethgo.Log) (bool, error) {
	if !erc20DeployedEventABI.Match(log) {
		return false, nil
	}

	return true, decodeEvent(erc20DeployedEventABI, log, e)
}

func (e *ERC20DeployedEvent) ToEvent(chainID uint64, contract ethgo.Address, height uint64) (*types.Event, error) {
	nonce, err := ToUint64(e.EventNonce)
	if err != nil {
		return nil, fmt.Errorf("invalid event nonce: %w", err)
	}

	return &types.Event{
		SourceChainID: chainID,
		Contract:      contract,
		Nonce:         nonce,
		Kind:          types.EventERC20Deployed,
		Height:        height,
		ERC20Deployed: &types.ERC20DeployedPayload{
			Denom:         e.CosmosDenom,
			TokenContract: e.TokenContract,
			Name:          e.Name,
			Symbol:        e.Symbol,
			Decimals:      e.Decimals,
		},
	}, nil
}
