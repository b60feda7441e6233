package contractsapi

import (
	"fmt"
	"math/big"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/Ethernal-Tech/ethgo/abi"
	merkle "github.com/Ethernal-Tech/merkle-tree"

	"github.com/furyaxyz/elysium-bridge/bridge/types"
	"github.com/furyaxyz/elysium-bridge/crypto"
)

// BridgeID domain-separates the signatures of this bridge from other deployments of the contract
var BridgeID = bytes32("elysium-bridge")

var (
	ValsetCheckpointABIType = abi.MustNewType(
		"tuple(bytes32 bridgeId, bytes32 methodName, uint256 valsetNonce, address[] validators, uint256[] powers)")

	BatchCheckpointABIType = abi.MustNewType(
		"tuple(bytes32 bridgeId, bytes32 methodName, uint256[] amounts, address[] destinations," +
			"uint256[] fees, uint256 batchNonce, address tokenContract, uint256 batchTimeout, bytes32 transfersRoot)")

	OutgoingTransferABIType = abi.MustNewType(
		"tuple(uint256 id, address sender, address recipient, address tokenContract, uint256 amount, uint256 fee)")
)

var (
	_ ABIEncoder = &ValsetCheckpoint{}
	_ ABIEncoder = &BatchCheckpoint{}
)

// ValsetCheckpoint is the pre-image of a signer set checkpoint hash
type ValsetCheckpoint struct {
	BridgeID    [32]byte        `abi:"bridgeId"`
	MethodName  [32]byte        `abi:"methodName"`
	ValsetNonce *big.Int        `abi:"valsetNonce"`
	Validators  []ethgo.Address `abi:"validators"`
	Powers      []*big.Int      `abi:"powers"`
}

// NewValsetCheckpoint builds the checkpoint pre-image of the given members
func NewValsetCheckpoint(nonce uint64, members []*types.ValsetMember) *ValsetCheckpoint {
	c := &ValsetCheckpoint{
		BridgeID:    BridgeID,
		MethodName:  bytes32("checkpoint"),
		ValsetNonce: new(big.Int).SetUint64(nonce),
		Validators:  make([]ethgo.Address, len(members)),
		Powers:      make([]*big.Int, len(members)),
	}

	for i, m := range members {
		c.Validators[i] = m.Address
		c.Powers[i] = new(big.Int).SetUint64(m.Power)
	}

	return c
}

func (c *ValsetCheckpoint) EncodeAbi() ([]byte, error) {
	return ValsetCheckpointABIType.Encode(c)
}

func (c *ValsetCheckpoint) DecodeAbi(buf []byte) error {
	return decodeStruct(ValsetCheckpointABIType, buf, c)
}

// Hash returns the checkpoint hash orchestrators sign
func (c *ValsetCheckpoint) Hash() (ethgo.Hash, error) {
	encoded, err := c.EncodeAbi()
	if err != nil {
		return ethgo.ZeroHash, fmt.Errorf("failed to encode valset checkpoint: %w", err)
	}

	return crypto.Keccak256Hash(encoded), nil
}

// BatchCheckpoint is the pre-image of an outgoing batch checkpoint hash
type BatchCheckpoint struct {
	BridgeID      [32]byte        `abi:"bridgeId"`
	MethodName    [32]byte        `abi:"methodName"`
	Amounts       []*big.Int      `abi:"amounts"`
	Destinations  []ethgo.Address `abi:"destinations"`
	Fees          []*big.Int      `abi:"fees"`
	BatchNonce    *big.Int        `abi:"batchNonce"`
	TokenContract ethgo.Address   `abi:"tokenContract"`
	BatchTimeout  *big.Int        `abi:"batchTimeout"`
	TransfersRoot [32]byte        `abi:"transfersRoot"`
}

// NewBatchCheckpoint builds the checkpoint pre-image of the given batch
func NewBatchCheckpoint(batch *types.OutgoingBatch) *BatchCheckpoint {
	c := &BatchCheckpoint{
		BridgeID:      BridgeID,
		MethodName:    bytes32("transactionBatch"),
		Amounts:       make([]*big.Int, len(batch.Transfers)),
		Destinations:  make([]ethgo.Address, len(batch.Transfers)),
		Fees:          make([]*big.Int, len(batch.Transfers)),
		BatchNonce:    new(big.Int).SetUint64(batch.Nonce),
		TokenContract: batch.TokenContract,
		BatchTimeout:  new(big.Int).SetUint64(batch.Timeout),
		TransfersRoot: batch.RootHash,
	}

	for i, tr := range batch.Transfers {
		c.Amounts[i] = tr.Amount.ToBig()
		c.Destinations[i] = tr.Recipient
		c.Fees[i] = tr.Fee.ToBig()
	}

	return c
}

func (c *BatchCheckpoint) EncodeAbi() ([]byte, error) {
	return BatchCheckpointABIType.Encode(c)
}

func (c *BatchCheckpoint) DecodeAbi(buf []byte) error {
	return decodeStruct(BatchCheckpointABIType, buf, c)
}

// Hash returns the checkpoint hash orchestrators sign
func (c *BatchCheckpoint) Hash() (ethgo.Hash, error) {
	encoded, err := c.EncodeAbi()
	if err != nil {
		return ethgo.ZeroHash, fmt.Errorf("failed to encode batch checkpoint: %w", err)
	}

	return crypto.Keccak256Hash(encoded), nil
}

// TransfersRoot returns the merkle root over the ABI encoded transfers of a batch.
// A single transfer gets a second, empty leaf.
func TransfersRoot(transfers []*types.OutgoingTransfer) (ethgo.Hash, error) {
	if len(transfers) == 0 {
		return ethgo.ZeroHash, nil
	}

	data := make([][]byte, len(transfers))

	for i, tr := range transfers {
		encoded, err := OutgoingTransferABIType.Encode(map[string]interface{}{
			"id":            new(big.Int).SetUint64(tr.ID),
			"sender":        tr.Sender,
			"recipient":     tr.Recipient,
			"tokenContract": tr.TokenContract,
			"amount":        tr.Amount.ToBig(),
			"fee":           tr.Fee.ToBig(),
		})
		if err != nil {
			return ethgo.ZeroHash, fmt.Errorf("failed to encode transfer %d: %w", tr.ID, err)
		}

		data[i] = encoded
	}

	if len(data) == 1 {
		data = append(data, []byte{})
	}

	tree, err := merkle.NewMerkleTree(data)
	if err != nil {
		return ethgo.ZeroHash, fmt.Errorf("failed to create transfers merkle tree: %w", err)
	}

	return ethgo.Hash(tree.Hash()), nil
}
