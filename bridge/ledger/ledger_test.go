package ledger

import (
	"testing"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/hashicorp/go-hclog"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/furyaxyz/elysium-bridge/bridge/state"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
)

const testAsset = "gravity0x0000000000000000000000000000000000000001"

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()

	l, err := New(state.NewTestState(t).DB(), nil, hclog.NewNullLogger())
	require.NoError(t, err)

	return l
}

func maxUint256() *uint256.Int {
	return new(uint256.Int).Not(new(uint256.Int))
}

func TestLedger_MintTransferBurn(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)
	alice, bob := ethgo.Address{0x1}, ethgo.Address{0x2}

	require.NoError(t, l.Mint(nil, alice, testAsset, uint256.NewInt(100)))
	require.NoError(t, l.Transfer(nil, alice, bob, testAsset, uint256.NewInt(40)))

	balance, err := l.Balance(nil, alice, testAsset)
	require.NoError(t, err)
	require.Equal(t, uint64(60), balance.Uint64())

	balance, err = l.Balance(nil, bob, testAsset)
	require.NoError(t, err)
	require.Equal(t, uint64(40), balance.Uint64())

	require.NoError(t, l.Burn(nil, bob, testAsset, uint256.NewInt(40)))

	supply, err := l.Supply(nil, testAsset)
	require.NoError(t, err)
	require.Equal(t, uint64(60), supply.Uint64())

	balances, err := l.Balances(nil, bob)
	require.NoError(t, err)
	require.Empty(t, balances)

	balances, err = l.Balances(nil, alice)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	require.Equal(t, uint64(60), balances[testAsset].Uint64())
}

func TestLedger_InsufficientFunds(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)
	alice := ethgo.Address{0x1}

	require.NoError(t, l.Mint(nil, alice, testAsset, uint256.NewInt(10)))

	err := l.Transfer(nil, alice, ethgo.Address{0x2}, testAsset, uint256.NewInt(11))
	require.ErrorIs(t, err, types.ErrInsufficientFunds)

	err = l.Burn(nil, alice, testAsset, uint256.NewInt(11))
	require.ErrorIs(t, err, types.ErrInsufficientFunds)

	balance, err := l.Balance(nil, alice, testAsset)
	require.NoError(t, err)
	require.Equal(t, uint64(10), balance.Uint64())
}

func TestLedger_MaxSupply(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)
	alice := ethgo.Address{0x1}

	ok, err := l.CanMint(nil, testAsset, maxUint256())
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Mint(nil, alice, testAsset, maxUint256()))

	ok, err = l.CanMint(nil, testAsset, uint256.NewInt(1))
	require.NoError(t, err)
	require.False(t, ok)

	err = l.Mint(nil, alice, testAsset, maxUint256())
	require.ErrorIs(t, err, types.ErrOverflowSupply)

	balance, err := l.Balance(nil, alice, testAsset)
	require.NoError(t, err)
	require.Equal(t, maxUint256(), balance)

	// after the supply shrinks, a new max deposit is representable again
	require.NoError(t, l.Burn(nil, alice, testAsset, maxUint256()))
	require.NoError(t, l.Mint(nil, alice, testAsset, maxUint256()))
}

func TestLedger_SeparateAssets(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)
	alice := ethgo.Address{0x1}
	contractAsset := types.ContractAsset(ethgo.Address{0xcc})

	require.NoError(t, l.Mint(nil, alice, testAsset, uint256.NewInt(5)))
	require.NoError(t, l.Mint(nil, alice, contractAsset, uint256.NewInt(7)))

	balances, err := l.Balances(nil, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(5), balances[testAsset].Uint64())
	require.Equal(t, uint64(7), balances[contractAsset].Uint64())
}

func TestLedger_All(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)
	alice, bob := ethgo.Address{0x1}, ethgo.Address{0x2}

	require.NoError(t, l.Mint(nil, bob, testAsset, uint256.NewInt(7)))
	require.NoError(t, l.Mint(nil, alice, testAsset, uint256.NewInt(3)))
	require.NoError(t, l.Mint(nil, alice, "erc20/x", uint256.NewInt(1)))
	require.NoError(t, l.Burn(nil, alice, "erc20/x", uint256.NewInt(1)))

	entries, err := l.All(nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.Equal(t, alice, entries[0].Account)
	require.Equal(t, testAsset, entries[0].Asset)
	require.Equal(t, uint64(3), entries[0].Amount.Uint64())
	require.Equal(t, bob, entries[1].Account)
	require.Equal(t, uint64(7), entries[1].Amount.Uint64())
}
