package contractsapi

import (
	"math/big"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/Ethernal-Tech/ethgo/abi"
)

const (
	SendToEvmChainEventName         = "__ElysiumSendToEvmChain"
	SendToEvmChainResponseEventName = "__ElysiumSendToEvmChainResponse"
	SendToAccountEventName          = "__ElysiumSendToAccount"
)

var (
	sendToEvmChainEventABI = abi.MustNewEvent("event " + SendToEvmChainEventName + "(" +
		"address sender, address recipient, uint256 amount, uint256 bridge_fee," +
		"uint256 chain_id, uint256 extra_data_length)")
	sendToEvmChainResponseEventABI = abi.MustNewEvent("event " + SendToEvmChainResponseEventName + "(uint256 id)")
	sendToAccountEventABI          = abi.MustNewEvent("event " + SendToAccountEventName +
		"(address recipient, uint256 amount)")
)

var (
	_ EventAbi = &SendToEvmChainEvent{}
	_ EventAbi = &SendToAccountEvent{}
)

// SendToEvmChainEvent is emitted by an auto-deployed token contract after it burnt tokens to bridge out
type SendToEvmChainEvent struct {
	Sender          ethgo.Address `abi:"sender"`
	Recipient       ethgo.Address `abi:"recipient"`
	Amount          *big.Int      `abi:"amount"`
	BridgeFee       *big.Int      `abi:"bridge_fee"`
	ChainID         *big.Int      `abi:"chain_id"`
	ExtraDataLength *big.Int      `abi:"extra_data_length"`
}

func (*SendToEvmChainEvent) Sig() ethgo.Hash {
	return sendToEvmChainEventABI.ID()
}

func (e *SendToEvmChainEvent) ParseLog(log *ethgo.Log) (bool, error) {
	if !sendToEvmChainEventABI.Match(log) {
		return false, nil
	}

	return true, decodeEvent(sendToEvmChainEventABI, log, e)
}

// SendToEvmChainResponseEvent carries the outgoing transfer id created for a SendToEvmChainEvent
type SendToEvmChainResponseEvent struct {
	ID *big.Int `abi:"id"`
}

func (*SendToEvmChainResponseEvent) Sig() ethgo.Hash {
	return sendToEvmChainResponseEventABI.ID()
}

// Log builds the response log emitted by the token contract
func (e *SendToEvmChainResponseEvent) Log(contract ethgo.Address) (*ethgo.Log, error) {
	data, err := sendToEvmChainResponseEventABI.Inputs.Encode(e)
	if err != nil {
		return nil, err
	}

	return &ethgo.Log{
		Address: contract,
		Topics:  []ethgo.Hash{e.Sig()},
		Data:    data,
	}, nil
}

func (e *SendToEvmChainResponseEvent) ParseLog(log *ethgo.Log) (bool, error) {
	if !sendToEvmChainResponseEventABI.Match(log) {
		return false, nil
	}

	return true, decodeEvent(sendToEvmChainResponseEventABI, log, e)
}

// SendToAccountEvent is emitted by an auto-deployed token contract to convert tokens back into native coins
type SendToAccountEvent struct {
	Recipient ethgo.Address `abi:"recipient"`
	Amount    *big.Int      `abi:"amount"`
}

func (*SendToAccountEvent) Sig() ethgo.Hash {
	return sendToAccountEventABI.ID()
}

func (e *SendToAccountEvent) ParseLog(log *ethgo.Log) (bool, error) {
	if !sendToAccountEventABI.Match(log) {
		return false, nil
	}

	return true, decodeEvent(sendToAccountEventABI, log, e)
}
