package contractsapi

import (
	"fmt"
	"math/big"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/Ethernal-Tech/ethgo/abi"
	"github.com/holiman/uint256"
	"github.com/mitchellh/mapstructure"
)

// ABIEncoder declares functions that are encoding and decoding data to/from ABI format
type ABIEncoder interface {
	// EncodeAbi contains logic for encoding arbitrary data into ABI format
	EncodeAbi() ([]byte, error)
	// DecodeAbi contains logic for decoding given ABI data
	DecodeAbi(b []byte) error
}

// EventAbi is an interface representing an event of the bridge contract or of an auto-deployed token
type EventAbi interface {
	// Sig returns the event ABI signature or ID (which is unique for all event types)
	Sig() ethgo.Hash
	// ParseLog parses the provided receipt log to given event type
	ParseLog(log *ethgo.Log) (bool, error)
}

func decodeEvent(event *abi.Event, log *ethgo.Log, out interface{}) error {
	val, err := event.ParseLog(log)
	if err != nil {
		return err
	}

	return decodeImpl(val, out)
}

func decodeStruct(t *abi.Type, input []byte, out interface{}) error {
	if len(input) < 32 {
		return fmt.Errorf("invalid abi input length: %d", len(input))
	}

	val, err := abi.Decode(t, input)
	if err != nil {
		return err
	}

	return decodeImpl(val, out)
}

func decodeImpl(input interface{}, out interface{}) error {
	metadata := &mapstructure.Metadata{}
	dc := &mapstructure.DecoderConfig{
		Result:   out,
		TagName:  "abi",
		Metadata: metadata,
	}

	ms, err := mapstructure.NewDecoder(dc)
	if err != nil {
		return err
	}

	if err = ms.Decode(input); err != nil {
		return err
	}

	if len(metadata.Unused) != 0 {
		return fmt.Errorf("some keys not used: %v", metadata.Unused)
	}

	return nil
}

// ToUint256 converts an ABI decoded integer, failing when it does not fit in 256 bits
func ToUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}

	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %s", v)
	}

	res, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("amount %s overflows 256 bits", v)
	}

	return res, nil
}

// ToUint64 converts an ABI decoded integer used as a nonce or id
func ToUint64(v *big.Int) (uint64, error) {
	if v == nil || v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("value %v is not a valid uint64", v)
	}

	return v.Uint64(), nil
}

func bytes32(s string) (res [32]byte) {
	copy(res[:], s)

	return res
}
