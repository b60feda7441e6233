package validator

import (
	"math/big"
	"testing"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAccounts(powers ...uint64) AccountSet {
	accounts := make(AccountSet, len(powers))
	for i, p := range powers {
		accounts[i] = NewValidatorMetadata(ethgo.Address{byte(i + 1)}, p)
	}

	return accounts
}

func TestQuorum_Reached(t *testing.T) {
	t.Parallel()

	q := DefaultQuorum
	total := big.NewInt(300)

	assert.False(t, q.Reached(big.NewInt(200), total))
	assert.True(t, q.Reached(big.NewInt(201), total))
	assert.False(t, q.Reached(big.NewInt(0), big.NewInt(0)))

	half := Quorum{Numerator: 1, Denominator: 2}
	require.NoError(t, half.Validate())
	assert.False(t, half.Reached(big.NewInt(50), big.NewInt(100)))
	assert.True(t, half.Reached(big.NewInt(51), big.NewInt(100)))

	require.ErrorIs(t, Quorum{Numerator: 1, Denominator: 3}.Validate(), errInvalidQuorum)
	require.ErrorIs(t, Quorum{Numerator: 3, Denominator: 3}.Validate(), errInvalidQuorum)
}

func TestValidatorSet_HasQuorum(t *testing.T) {
	t.Parallel()

	accounts := newTestAccounts(10, 10, 10, 10)
	vs := NewValidatorSet(accounts, DefaultQuorum)

	require.Equal(t, 4, vs.Len())
	require.Equal(t, big.NewInt(40), vs.TotalVotingPower())

	signers := map[ethgo.Address]struct{}{
		accounts[0].Address: {},
		accounts[1].Address: {},
	}
	require.False(t, vs.HasQuorum(signers))

	signers[accounts[2].Address] = struct{}{}
	require.True(t, vs.HasQuorum(signers))

	// unknown signers do not count
	unknown := map[ethgo.Address]struct{}{{0xff}: {}}
	require.Zero(t, vs.VotingPower(unknown).Sign())
	require.False(t, vs.Includes(ethgo.Address{0xff}))
	require.True(t, vs.Includes(accounts[3].Address))
}

func TestValidatorSet_WeightedQuorum(t *testing.T) {
	t.Parallel()

	accounts := newTestAccounts(70, 10, 10, 10)
	vs := NewValidatorSet(accounts, DefaultQuorum)

	require.True(t, vs.HasQuorum(map[ethgo.Address]struct{}{accounts[0].Address: {}}))
	require.False(t, vs.HasQuorum(map[ethgo.Address]struct{}{
		accounts[1].Address: {}, accounts[2].Address: {}, accounts[3].Address: {},
	}))
}

func TestAccountSet(t *testing.T) {
	t.Parallel()

	accounts := newTestAccounts(5, 7)

	require.True(t, accounts.ContainsAddress(ethgo.Address{0x2}))
	require.Equal(t, 1, accounts.Index(ethgo.Address{0x2}))
	require.Nil(t, accounts.GetValidatorMetadata(ethgo.Address{0x9}))
	require.Equal(t, big.NewInt(12), accounts.GetTotalVotingPower())
	require.Equal(t, []ethgo.Address{{0x1}, {0x2}}, accounts.GetAddresses())

	cp := accounts.Copy()
	require.True(t, accounts.Equals(cp))

	cp[0].VotingPower.SetUint64(100)
	require.False(t, accounts.Equals(cp))
	require.Equal(t, uint64(5), accounts[0].VotingPower.Uint64())

	require.NoError(t, accounts.Validate())
	require.ErrorIs(t, AccountSet{}.Validate(), errEmptyValidatorSet)
	require.ErrorIs(t, append(accounts.Copy(), accounts[0].Copy()).Validate(), errDuplicateValidator)
	require.ErrorIs(t, newTestAccounts(1, 0).Validate(), errNonPositivePower)
}

func TestValidatorStakeMap_GetSorted(t *testing.T) {
	t.Parallel()

	stakeMap := NewValidatorStakeMap(newTestAccounts(10, 30, 30))
	stakeMap.AddStake(ethgo.Address{0x4}, big.NewInt(20))
	stakeMap.RemoveStake(ethgo.Address{0x1}, big.NewInt(10))
	stakeMap.RemoveStake(ethgo.Address{0x9}, big.NewInt(10))

	sorted := stakeMap.GetSorted(10)
	require.Len(t, sorted, 3)
	require.Equal(t, ethgo.Address{0x2}, sorted[0].Address)
	require.Equal(t, ethgo.Address{0x3}, sorted[1].Address)
	require.Equal(t, ethgo.Address{0x4}, sorted[2].Address)
	require.False(t, stakeMap[ethgo.Address{0x1}].IsActive)

	require.Len(t, stakeMap.GetSorted(2), 2)
	require.NotEmpty(t, stakeMap.String())
}
