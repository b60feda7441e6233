package validator

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/Ethernal-Tech/ethgo"
)

var bigZero = big.NewInt(0)

// ValidatorStakeMap holds ValidatorMetadata for each validator address
type ValidatorStakeMap map[ethgo.Address]*ValidatorMetadata

// NewValidatorStakeMap returns a new instance of validatorStakeMap
func NewValidatorStakeMap(validatorSet AccountSet) ValidatorStakeMap {
	stakeMap := make(ValidatorStakeMap, len(validatorSet))

	for _, v := range validatorSet {
		stakeMap[v.Address] = v.Copy()
	}

	return stakeMap
}

// AddStake adds given amount to a validator defined by address
func (sc *ValidatorStakeMap) AddStake(address ethgo.Address, amount *big.Int) {
	if metadata, exists := (*sc)[address]; exists {
		metadata.VotingPower.Add(metadata.VotingPower, amount)
		metadata.IsActive = metadata.VotingPower.Cmp(bigZero) > 0
	} else {
		(*sc)[address] = &ValidatorMetadata{
			VotingPower: new(big.Int).Set(amount),
			Address:     address,
			IsActive:    amount.Cmp(bigZero) > 0,
		}
	}
}

// RemoveStake removes given amount from validator defined by address
func (sc *ValidatorStakeMap) RemoveStake(address ethgo.Address, amount *big.Int) {
	stakeData, exists := (*sc)[address]
	if !exists {
		return
	}

	stakeData.VotingPower.Sub(stakeData.VotingPower, amount)
	if stakeData.VotingPower.Cmp(bigZero) < 0 {
		stakeData.VotingPower.SetUint64(0)
	}

	stakeData.IsActive = stakeData.VotingPower.Cmp(bigZero) > 0
}

// GetSorted returns validators (*ValidatorMetadata) in sorted order
func (sc ValidatorStakeMap) GetSorted(maxValidatorSetSize int) AccountSet {
	activeValidators := make(AccountSet, 0, len(sc))

	for _, v := range sc {
		if v.VotingPower.Cmp(bigZero) > 0 {
			activeValidators = append(activeValidators, v)
		}
	}

	sort.Slice(activeValidators, sortAccounts(activeValidators))

	if len(activeValidators) <= maxValidatorSetSize {
		return activeValidators
	}

	return activeValidators[:maxValidatorSetSize]
}

func (sc ValidatorStakeMap) String() string {
	var sb strings.Builder

	for _, x := range sc.GetSorted(len(sc)) {
		sb.WriteString(fmt.Sprintf("%s:%s:%t\n", x.Address, x.VotingPower, x.IsActive))
	}

	return sb.String()
}
