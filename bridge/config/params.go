package config

import (
	"fmt"

	"github.com/Ethernal-Tech/ethgo"
	"gopkg.in/yaml.v3"

	"github.com/furyaxyz/elysium-bridge/bridge/types"
	"github.com/furyaxyz/elysium-bridge/bridge/validator"
)

const (
	DefaultIbcElyDenom        = "ibc/6B5A664BF0AF4F71B2F0BAA33141E2F1321242FBD5D19762F541EC971ACB0865"
	DefaultIbcTimeout         = uint64(86400000000000) // 1 day in nanoseconds
	DefaultBatchInterval      = uint64(10)
	DefaultMaxBatchSize       = uint64(100)
	DefaultBatchTimeoutBlocks = uint64(500)
	DefaultQuorumNumerator    = uint64(2)
	DefaultQuorumDenominator  = uint64(3)
)

// Params is the versioned configuration record consulted by every state transition.
// It is only changed through governance or privileged transactions.
type Params struct {
	BridgeActive         bool          `json:"bridgeActive" yaml:"bridge_active"`
	ElysiumAdmin         ethgo.Address `json:"elysiumAdmin" yaml:"elysium_admin"`
	EnableAutoDeployment bool          `json:"enableAutoDeployment" yaml:"enable_auto_deployment"`
	IbcElyDenom          string        `json:"ibcElyDenom" yaml:"ibc_ely_denom"`
	IbcTimeout           uint64        `json:"ibcTimeout" yaml:"ibc_timeout"`

	// BatchInterval is the block cadence of batch cutting
	BatchInterval uint64 `json:"batchInterval" yaml:"batch_interval"`
	// MaxBatchSize bounds the number of transfers in a batch, a full pool is cut immediately
	MaxBatchSize uint64 `json:"maxBatchSize" yaml:"max_batch_size"`
	// BatchTimeoutBlocks is the number of external chain blocks, counted from the last attested external
	// height, after which an unexecuted batch is superseded
	BatchTimeoutBlocks uint64 `json:"batchTimeoutBlocks" yaml:"batch_timeout_blocks"`

	// a claim hash resolves when its stake is strictly greater than numerator/denominator of the total
	QuorumNumerator   uint64 `json:"quorumNumerator" yaml:"quorum_numerator"`
	QuorumDenominator uint64 `json:"quorumDenominator" yaml:"quorum_denominator"`

	Version uint64 `json:"version" yaml:"version"`
}

// DefaultParams returns the default module params
func DefaultParams() Params {
	return Params{
		BridgeActive:         true,
		EnableAutoDeployment: false,
		IbcElyDenom:          DefaultIbcElyDenom,
		IbcTimeout:           DefaultIbcTimeout,
		BatchInterval:        DefaultBatchInterval,
		MaxBatchSize:         DefaultMaxBatchSize,
		BatchTimeoutBlocks:   DefaultBatchTimeoutBlocks,
		QuorumNumerator:      DefaultQuorumNumerator,
		QuorumDenominator:    DefaultQuorumDenominator,
	}
}

// Validate performs basic validation of the params
func (p Params) Validate() error {
	if !types.IsIbcDenom(p.IbcElyDenom) {
		return fmt.Errorf("%w: invalid ibc denom %q", types.ErrInvalidParams, p.IbcElyDenom)
	}

	if p.BatchInterval == 0 {
		return fmt.Errorf("%w: batch interval must be positive", types.ErrInvalidParams)
	}

	if p.MaxBatchSize == 0 {
		return fmt.Errorf("%w: max batch size must be positive", types.ErrInvalidParams)
	}

	if p.BatchTimeoutBlocks == 0 {
		return fmt.Errorf("%w: batch timeout must be positive", types.ErrInvalidParams)
	}

	if p.QuorumNumerator == 0 || p.QuorumDenominator == 0 ||
		p.QuorumNumerator >= p.QuorumDenominator ||
		2*p.QuorumNumerator < p.QuorumDenominator {
		return fmt.Errorf("%w: quorum %d/%d must be in [1/2, 1)",
			types.ErrInvalidParams, p.QuorumNumerator, p.QuorumDenominator)
	}

	return nil
}

// Quorum returns the attestation threshold
func (p Params) Quorum() validator.Quorum {
	return validator.Quorum{Numerator: p.QuorumNumerator, Denominator: p.QuorumDenominator}
}

// String implements the Stringer interface
func (p Params) String() string {
	out, _ := yaml.Marshal(p)

	return string(out)
}
