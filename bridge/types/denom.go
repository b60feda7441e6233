package types

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Ethernal-Tech/ethgo"
)

const (
	// GravityDenomPrefix is the prefix of coins bridged from the external EVM chain
	GravityDenomPrefix = "gravity"
	// SourceDenomPrefix is the prefix of coins minted from tokens deployed on this chain's EVM
	SourceDenomPrefix = "elysium"
	// IbcDenomPrefix is the prefix of ibc voucher denoms
	IbcDenomPrefix = "ibc/"
	// ContractAssetPrefix prefixes the asset name reported for EVM token contract balances
	ContractAssetPrefix = "erc20/"
)

var (
	gravityDenomRegex = regexp.MustCompile(`^gravity0x[0-9a-fA-F]{40}$`)
	sourceDenomRegex  = regexp.MustCompile(`^elysium0x[0-9a-fA-F]{40}$`)
	ibcDenomRegex     = regexp.MustCompile(`^ibc/[0-9A-F]{64}$`)
)

// GravityDenom returns the denom of the external token contract
func GravityDenom(tokenContract ethgo.Address) string {
	return GravityDenomPrefix + tokenContract.String()
}

// IsGravityDenom reports whether the denom represents an external EVM token
func IsGravityDenom(denom string) bool {
	return gravityDenomRegex.MatchString(denom)
}

// GravityTokenContract parses the external token contract out of a gravity denom
func GravityTokenContract(denom string) (ethgo.Address, error) {
	if !IsGravityDenom(denom) {
		return ethgo.ZeroAddress, fmt.Errorf("%w: %s is not a gravity denom", ErrInvalidRequest, denom)
	}

	var addr ethgo.Address
	if err := addr.UnmarshalText([]byte(strings.TrimPrefix(denom, GravityDenomPrefix))); err != nil {
		return ethgo.ZeroAddress, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	return addr, nil
}

// IsSourceDenom reports whether the denom is minted from a contract deployed on this chain
func IsSourceDenom(denom string) bool {
	return sourceDenomRegex.MatchString(denom)
}

// IsIbcDenom reports whether the denom is an ibc voucher
func IsIbcDenom(denom string) bool {
	return ibcDenomRegex.MatchString(denom)
}

// IsValidBridgeDenom reports whether the denom can be mapped to a token contract
func IsValidBridgeDenom(denom string) bool {
	return IsGravityDenom(denom) || IsSourceDenom(denom) || IsIbcDenom(denom)
}

// ContractAsset names the EVM token of a contract in notifications
func ContractAsset(contract ethgo.Address) string {
	return ContractAssetPrefix + contract.String()
}
