package validator

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/Ethernal-Tech/ethgo"
)

// ValidatorMetadata represents a bridge signer (orchestrator address) with its stake weight
type ValidatorMetadata struct {
	Address     ethgo.Address `json:"address"`
	VotingPower *big.Int      `json:"votingPower"`
	IsActive    bool          `json:"isActive"`
}

// NewValidatorMetadata creates an active validator with the given power
func NewValidatorMetadata(address ethgo.Address, power uint64) *ValidatorMetadata {
	return &ValidatorMetadata{
		Address:     address,
		VotingPower: new(big.Int).SetUint64(power),
		IsActive:    power > 0,
	}
}

// Equals checks ValidatorMetadata equality
func (v *ValidatorMetadata) Equals(b *ValidatorMetadata) bool {
	if v == nil || b == nil {
		return v == b
	}

	return v.Address == b.Address && v.VotingPower.Cmp(b.VotingPower) == 0
}

// Copy returns a deep copy of ValidatorMetadata
func (v *ValidatorMetadata) Copy() *ValidatorMetadata {
	return &ValidatorMetadata{
		Address:     v.Address,
		VotingPower: new(big.Int).Set(v.VotingPower),
		IsActive:    v.IsActive,
	}
}

func (v *ValidatorMetadata) String() string {
	return fmt.Sprintf("Address=%v; Voting Power=%d; Is Active=%v", v.Address, v.VotingPower, v.IsActive)
}

// AccountSet is a list of validator metadata
type AccountSet []*ValidatorMetadata

// Len returns length of AccountSet
func (as AccountSet) Len() int {
	return len(as)
}

// ContainsAddress checks whether ValidatorMetadata with given address is present in the AccountSet
func (as AccountSet) ContainsAddress(address ethgo.Address) bool {
	return as.Index(address) != -1
}

// Index returns index of the given address, -1 if it is not part of the set
func (as AccountSet) Index(address ethgo.Address) int {
	for i, validator := range as {
		if validator.Address == address {
			return i
		}
	}

	return -1
}

// GetValidatorMetadata tries to retrieve validator account metadata by given address from the account set.
// It returns nil if such account is not found.
func (as AccountSet) GetValidatorMetadata(address ethgo.Address) *ValidatorMetadata {
	if i := as.Index(address); i != -1 {
		return as[i]
	}

	return nil
}

// GetAddresses aggregates addresses for given AccountSet
func (as AccountSet) GetAddresses() []ethgo.Address {
	res := make([]ethgo.Address, 0, len(as))
	for _, account := range as {
		res = append(res, account.Address)
	}

	return res
}

// GetTotalVotingPower returns the sum of the voting power of all accounts
func (as AccountSet) GetTotalVotingPower() *big.Int {
	total := new(big.Int)
	for _, account := range as {
		total.Add(total, account.VotingPower)
	}

	return total
}

// Equals compares checks if two AccountSet instances are equal (ordering is important)
func (as AccountSet) Equals(other AccountSet) bool {
	if len(as) != len(other) {
		return false
	}

	for i := range as {
		if !as[i].Equals(other[i]) {
			return false
		}
	}

	return true
}

// Copy returns deep copy of AccountSet
func (as AccountSet) Copy() AccountSet {
	copiedAccs := make(AccountSet, len(as))
	for i, acc := range as {
		copiedAccs[i] = acc.Copy()
	}

	return copiedAccs
}

// Validate checks that the set is not empty, has positive powers and no duplicates
func (as AccountSet) Validate() error {
	if len(as) == 0 {
		return errEmptyValidatorSet
	}

	seen := make(map[ethgo.Address]struct{}, len(as))

	for _, acc := range as {
		if acc.VotingPower == nil || acc.VotingPower.Sign() <= 0 {
			return fmt.Errorf("%w: %s", errNonPositivePower, acc.Address)
		}

		if _, exists := seen[acc.Address]; exists {
			return fmt.Errorf("%w: %s", errDuplicateValidator, acc.Address)
		}

		seen[acc.Address] = struct{}{}
	}

	return nil
}

func (as AccountSet) String() string {
	var sb strings.Builder

	for i, acc := range as {
		if i > 0 {
			sb.WriteString(",")
		}

		sb.WriteString(fmt.Sprintf("%s:%s", acc.Address, acc.VotingPower))
	}

	return sb.String()
}

// sortAccounts orders accounts by voting power desc, then by address asc
func sortAccounts(accounts AccountSet) func(i, j int) bool {
	return func(i, j int) bool {
		v1, v2 := accounts[i], accounts[j]

		switch v1.VotingPower.Cmp(v2.VotingPower) {
		case 1:
			return true
		case 0:
			return bytes.Compare(v1.Address[:], v2.Address[:]) < 0
		default:
			return false
		}
	}
}
