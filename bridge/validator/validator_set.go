package validator

import (
	"errors"
	"math/big"

	"github.com/Ethernal-Tech/ethgo"
)

var (
	errEmptyValidatorSet  = errors.New("validator set is empty")
	errNonPositivePower   = errors.New("validator voting power must be positive")
	errDuplicateValidator = errors.New("duplicate validator")
	errInvalidQuorum      = errors.New("invalid quorum fraction")
)

// Quorum is the stake fraction a vote must strictly exceed
type Quorum struct {
	Numerator   uint64 `json:"numerator"`
	Denominator uint64 `json:"denominator"`
}

// DefaultQuorum is the classic byzantine threshold, more than 2/3 of the stake
var DefaultQuorum = Quorum{Numerator: 2, Denominator: 3}

// Validate checks that the fraction lies in [1/2, 1)
func (q Quorum) Validate() error {
	if q.Denominator == 0 || q.Numerator == 0 || q.Numerator >= q.Denominator || 2*q.Numerator < q.Denominator {
		return errInvalidQuorum
	}

	return nil
}

// Reached reports whether power is strictly greater than the quorum fraction of total
func (q Quorum) Reached(power, total *big.Int) bool {
	if total.Sign() <= 0 {
		return false
	}

	lhs := new(big.Int).Mul(power, new(big.Int).SetUint64(q.Denominator))
	rhs := new(big.Int).Mul(total, new(big.Int).SetUint64(q.Numerator))

	return lhs.Cmp(rhs) > 0
}

// ValidatorSet interface of the current validator set
type ValidatorSet interface {
	// Includes check if given address is among the current validator set
	Includes(address ethgo.Address) bool

	// Len returns the size of the validator set
	Len() int

	// Accounts returns the list of the ValidatorMetadata
	Accounts() AccountSet

	// HasQuorum checks if submitted signers have reached quorum
	HasQuorum(signers map[ethgo.Address]struct{}) bool

	// VotingPower returns the accumulated voting power of the given signers
	VotingPower(signers map[ethgo.Address]struct{}) *big.Int

	// TotalVotingPower returns the total voting power of the set
	TotalVotingPower() *big.Int

	// Quorum returns the quorum fraction of the set
	Quorum() Quorum
}

type validatorSet struct {
	// validators represents current list of validators
	validators AccountSet

	// votingPowerMap represents voting powers per validator address
	votingPowerMap map[ethgo.Address]*big.Int

	// totalVotingPower is sum of active validator set
	totalVotingPower *big.Int

	quorum Quorum
}

// NewValidatorSet creates a new validator set
func NewValidatorSet(valz AccountSet, quorum Quorum) ValidatorSet {
	votingPowerMap := make(map[ethgo.Address]*big.Int, len(valz))
	totalVotingPower := new(big.Int)

	for _, val := range valz {
		totalVotingPower.Add(totalVotingPower, val.VotingPower)
		votingPowerMap[val.Address] = val.VotingPower
	}

	return &validatorSet{
		validators:       valz,
		votingPowerMap:   votingPowerMap,
		totalVotingPower: totalVotingPower,
		quorum:           quorum,
	}
}

// HasQuorum determines if there is quorum of enough signers reached,
// based on its voting power and quorum size
func (vs validatorSet) HasQuorum(signers map[ethgo.Address]struct{}) bool {
	return vs.quorum.Reached(vs.VotingPower(signers), vs.totalVotingPower)
}

func (vs validatorSet) VotingPower(signers map[ethgo.Address]struct{}) *big.Int {
	accVotingPower := new(big.Int)

	for address := range signers {
		if votingPower, exists := vs.votingPowerMap[address]; exists {
			accVotingPower.Add(accVotingPower, votingPower)
		}
	}

	return accVotingPower
}

func (vs validatorSet) Accounts() AccountSet {
	return vs.validators
}

func (vs validatorSet) Includes(address ethgo.Address) bool {
	_, exists := vs.votingPowerMap[address]

	return exists
}

func (vs validatorSet) Len() int {
	return vs.validators.Len()
}

func (vs validatorSet) TotalVotingPower() *big.Int {
	return new(big.Int).Set(vs.totalVotingPower)
}

func (vs validatorSet) Quorum() Quorum {
	return vs.quorum
}
