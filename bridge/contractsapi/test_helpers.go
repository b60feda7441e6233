package contractsapi

import (
	"math/big"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/Ethernal-Tech/ethgo/abi"

	"github.com/furyaxyz/elysium-bridge/helper/common"
)

var (
	sendToCosmosDataType  = abi.MustNewType("tuple(string _destination, uint256 _amount, uint256 _eventNonce)")
	batchExecutedDataType = abi.MustNewType("tuple(uint256 _eventNonce, uint256[] _revertedTransferIds)")
	logicCallDataType     = abi.MustNewType(
		"tuple(bytes32 _invalidationId, uint256 _invalidationNonce, bytes _returnData, uint256 _eventNonce)")
	valsetUpdatedDataType = abi.MustNewType("tuple(uint256 _eventNonce, uint256 _rewardAmount," +
		"address _rewardToken, address[] _validators, uint256[] _powers)")
	erc20DeployedDataType = abi.MustNewType(
		"tuple(string _cosmosDenom, string _name, string _symbol, uint8 _decimals, uint256 _eventNonce)")
)

func uint64Topic(v uint64) ethgo.Hash {
	return ethgo.BytesToHash(common.EncodeUint64ToBytes(v))
}

func addressTopic(a ethgo.Address) ethgo.Hash {
	return ethgo.BytesToHash(a[:])
}

func newLog(contract ethgo.Address, block uint64, topics []ethgo.Hash, t *abi.Type, data interface{}) *ethgo.Log {
	encoded, err := t.Encode(data)
	if err != nil {
		panic(err)
	}

	return &ethgo.Log{
		Address:     contract,
		BlockNumber: block,
		Topics:      topics,
		Data:        encoded,
	}
}

// NewSendToCosmosLog creates a deposit log as emitted by the bridge contract, used in tests
func NewSendToCosmosLog(contract ethgo.Address, block uint64, nonce uint64,
	token, sender ethgo.Address, destination string, amount *big.Int) *ethgo.Log {
	return newLog(contract, block,
		[]ethgo.Hash{sendToCosmosEventABI.ID(), addressTopic(token), addressTopic(sender)},
		sendToCosmosDataType, map[string]interface{}{
			"_destination": destination,
			"_amount":      amount,
			"_eventNonce":  new(big.Int).SetUint64(nonce),
		})
}

// NewBatchExecutedLog creates a batch executed log as emitted by the bridge contract, used in tests
func NewBatchExecutedLog(contract ethgo.Address, block uint64, nonce uint64,
	token ethgo.Address, batchNonce uint64, reverted ...uint64) *ethgo.Log {
	ids := make([]*big.Int, len(reverted))
	for i, id := range reverted {
		ids[i] = new(big.Int).SetUint64(id)
	}

	return newLog(contract, block,
		[]ethgo.Hash{transactionBatchExecutedEventABI.ID(), uint64Topic(batchNonce), addressTopic(token)},
		batchExecutedDataType, map[string]interface{}{
			"_eventNonce":          new(big.Int).SetUint64(nonce),
			"_revertedTransferIds": ids,
		})
}

// NewLogicCallLog creates a logic call log as emitted by the bridge contract, used in tests
func NewLogicCallLog(contract ethgo.Address, block uint64, nonce uint64,
	invalidationID ethgo.Hash, invalidationNonce uint64) *ethgo.Log {
	return newLog(contract, block, []ethgo.Hash{logicCallEventABI.ID()},
		logicCallDataType, map[string]interface{}{
			"_invalidationId":    [32]byte(invalidationID),
			"_invalidationNonce": new(big.Int).SetUint64(invalidationNonce),
			"_returnData":        []byte{},
			"_eventNonce":        new(big.Int).SetUint64(nonce),
		})
}

// NewValsetUpdatedLog creates a valset updated log as emitted by the bridge contract, used in tests
func NewValsetUpdatedLog(contract ethgo.Address, block uint64, nonce uint64,
	valsetNonce uint64, validators []ethgo.Address, powers []uint64) *ethgo.Log {
	p := make([]*big.Int, len(powers))
	for i, v := range powers {
		p[i] = new(big.Int).SetUint64(v)
	}

	return newLog(contract, block,
		[]ethgo.Hash{valsetUpdatedEventABI.ID(), uint64Topic(valsetNonce)},
		valsetUpdatedDataType, map[string]interface{}{
			"_eventNonce":   new(big.Int).SetUint64(nonce),
			"_rewardAmount": big.NewInt(0),
			"_rewardToken":  ethgo.ZeroAddress,
			"_validators":   validators,
			"_powers":       p,
		})
}

// NewERC20DeployedLog creates the log the bridge contract emits after deploying a token for a source denom,
// used in tests
func NewERC20DeployedLog(contract ethgo.Address, block uint64, nonce uint64,
	denom string, token ethgo.Address, symbol string, decimals uint8) *ethgo.Log {
	return newLog(contract, block,
		[]ethgo.Hash{erc20DeployedEventABI.ID(), addressTopic(token)},
		erc20DeployedDataType, map[string]interface{}{
			"_cosmosDenom": denom,
			"_name":        symbol,
			"_symbol":      symbol,
			"_decimals":    decimals,
			"_eventNonce":  new(big.Int).SetUint64(nonce),
		})
}

// NewSendToEvmChainLog creates the log an auto-deployed token emits when bridging out, used in tests
func NewSendToEvmChainLog(contract, sender, recipient ethgo.Address, amount, fee *big.Int, chainID uint64) *ethgo.Log {
	return newLog(contract, 0, []ethgo.Hash{sendToEvmChainEventABI.ID()},
		sendToEvmChainEventABI.Inputs, map[string]interface{}{
			"sender":            sender,
			"recipient":         recipient,
			"amount":            amount,
			"bridge_fee":        fee,
			"chain_id":          new(big.Int).SetUint64(chainID),
			"extra_data_length": big.NewInt(0),
		})
}

// NewSendToAccountLog creates the log an auto-deployed token emits when converting back, used in tests
func NewSendToAccountLog(contract, recipient ethgo.Address, amount *big.Int) *ethgo.Log {
	return newLog(contract, 0, []ethgo.Hash{sendToAccountEventABI.ID()},
		sendToAccountEventABI.Inputs, map[string]interface{}{
			"recipient": recipient,
			"amount":    amount,
		})
}
