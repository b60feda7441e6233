package watcher

import (
	"errors"
	"math/big"
	"testing"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/furyaxyz/elysium-bridge/bridge/contractsapi"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
)

const chainID = 5

var (
	bridgeContract = ethgo.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	token          = ethgo.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	receiver       = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

type collector struct {
	nonces []uint64
	fail   bool
}

func (c *collector) HandleEvent(event *types.Event) error {
	if c.fail {
		return errors.New("sink is down")
	}

	c.nonces = append(c.nonces, event.Nonce)

	return nil
}

func newTestWatcher(t *testing.T, lastApplied uint64) (*Watcher, *collector, *appliedNonceSourceMock) {
	t.Helper()

	applied := &appliedNonceSourceMock{}
	applied.On("LastAppliedNonce", types.EventSpace(chainID, bridgeContract)).Return(lastApplied, nil)

	sink := &collector{}

	return New(chainID, bridgeContract, applied, sink, hclog.NewNullLogger()), sink, applied
}

func depositLog(nonce uint64) *ethgo.Log {
	return contractsapi.NewSendToCosmosLog(bridgeContract, 10+nonce, nonce, token, ethgo.Address{0x5e},
		receiver, big.NewInt(100))
}

func addLogs(t *testing.T, w *Watcher, nonces ...uint64) {
	t.Helper()

	for _, n := range nonces {
		require.NoError(t, w.AddLog(depositLog(n)))
	}
}

func TestWatcher_EmitsInOrder(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		observed []uint64
		emitted  []uint64
		pending  int
	}{
		{"in order", []uint64{1, 2, 3}, []uint64{1, 2, 3}, 0},
		{"out of order", []uint64{3, 1, 2}, []uint64{1, 2, 3}, 0},
		{"duplicates", []uint64{1, 1, 2, 1, 2}, []uint64{1, 2}, 0},
		{"gap", []uint64{1, 3, 4}, []uint64{1}, 2},
	}

	for _, c := range cases {
		c := c

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			w, sink, applied := newTestWatcher(t, 0)

			addLogs(t, w, c.observed...)

			require.Equal(t, c.emitted, sink.nonces)
			require.Equal(t, c.pending, w.Pending())
			applied.AssertExpectations(t)
		})
	}
}

func TestWatcher_SkipsAppliedNonces(t *testing.T) {
	t.Parallel()

	w, sink, _ := newTestWatcher(t, 2)

	addLogs(t, w, 1, 2, 3)

	require.Equal(t, []uint64{3}, sink.nonces)
	require.Zero(t, w.Pending())
}

func TestWatcher_IgnoresForeignLogs(t *testing.T) {
	t.Parallel()

	w, sink, _ := newTestWatcher(t, 0)

	removed := depositLog(1)
	removed.Removed = true

	otherContract := contractsapi.NewSendToCosmosLog(ethgo.Address{0x01}, 10, 1, token, ethgo.Address{0x5e},
		receiver, big.NewInt(1))

	unknown := depositLog(1)
	unknown.Topics = []ethgo.Hash{{0x99}}

	require.NoError(t, w.AddLog(removed))
	require.NoError(t, w.AddLog(otherContract))
	require.NoError(t, w.AddLog(unknown))

	require.Empty(t, sink.nonces)
	require.Zero(t, w.Pending())
}

func TestWatcher_RetriesFailedEmission(t *testing.T) {
	t.Parallel()

	w, sink, _ := newTestWatcher(t, 0)
	sink.fail = true

	require.Error(t, w.AddLog(depositLog(1)))
	require.Equal(t, 1, w.Pending())

	// the tracker redelivers the log
	sink.fail = false

	addLogs(t, w, 1)

	require.Equal(t, []uint64{1}, sink.nonces)
	require.Zero(t, w.Pending())
}

func TestWatcher_AppliedSourceError(t *testing.T) {
	t.Parallel()

	applied := &appliedNonceSourceMock{}
	applied.On("LastAppliedNonce", mock.Anything).Return(uint64(0), errors.New("db closed"))

	w := New(chainID, bridgeContract, applied, EventSinkFn(func(*types.Event) error { return nil }),
		hclog.NewNullLogger())

	require.Error(t, w.AddLog(depositLog(1)))
}

func TestWatcher_ConvertsEventKinds(t *testing.T) {
	t.Parallel()

	var events []*types.Event

	applied := &appliedNonceSourceMock{}
	applied.On("LastAppliedNonce", mock.Anything).Return(uint64(0), nil)

	w := New(chainID, bridgeContract, applied, EventSinkFn(func(e *types.Event) error {
		events = append(events, e)

		return nil
	}), hclog.NewNullLogger())

	logs := []*ethgo.Log{
		depositLog(1),
		contractsapi.NewBatchExecutedLog(bridgeContract, 20, 2, token, 7, 3),
		contractsapi.NewLogicCallLog(bridgeContract, 21, 3, ethgo.Hash{0x1d}, 4),
		contractsapi.NewValsetUpdatedLog(bridgeContract, 22, 4, 1, []ethgo.Address{{0x01}}, []uint64{10}),
	}

	for _, log := range logs {
		require.NoError(t, w.AddLog(log))
	}

	require.Len(t, events, 4)
	require.Equal(t, types.EventDeposit, events[0].Kind)
	require.Equal(t, types.EventBatchExecuted, events[1].Kind)
	require.Equal(t, []uint64{3}, events[1].BatchExecuted.RevertedTransferIDs)
	require.Equal(t, types.EventLogicCallExecuted, events[2].Kind)
	require.Equal(t, types.EventValsetUpdated, events[3].Kind)

	for _, e := range events {
		require.Equal(t, uint64(chainID), e.SourceChainID)
		require.Equal(t, bridgeContract, e.Contract)
	}
}

func TestWatcher_BoundsPendingWindow(t *testing.T) {
	t.Parallel()

	w, sink, _ := newTestWatcher(t, 0)
	w.maxPending = 3

	// nonce 1 is missing, 2 and 3 fit the window [1, 4), 4 and 10 do not
	addLogs(t, w, 2, 3, 4, 10)

	require.Empty(t, sink.nonces)
	require.Equal(t, 2, w.Pending())

	addLogs(t, w, 1)

	require.Equal(t, []uint64{1, 2, 3}, sink.nonces)
	require.Zero(t, w.Pending())

	// the window moved with the emitted nonces, a redelivered 4 is accepted now
	addLogs(t, w, 4)

	require.Equal(t, []uint64{1, 2, 3, 4}, sink.nonces)
}

func TestWatcher_PendingDroppedBelowAppliedCursor(t *testing.T) {
	t.Parallel()

	applied := &appliedNonceSourceMock{}
	applied.On("LastAppliedNonce", mock.Anything).Return(uint64(0), nil).Twice()
	applied.On("LastAppliedNonce", mock.Anything).Return(uint64(5), nil)

	sink := &collector{}
	w := New(chainID, bridgeContract, applied, sink, hclog.NewNullLogger())

	// 1 is missing so 3 and 4 stay buffered
	addLogs(t, w, 3, 4)
	require.Equal(t, 2, w.Pending())

	// the core applied up to 5 through the claims of other orchestrators
	addLogs(t, w, 7)

	require.Empty(t, sink.nonces)
	require.Equal(t, 1, w.Pending())

	addLogs(t, w, 6)

	require.Equal(t, []uint64{6, 7}, sink.nonces)
	require.Zero(t, w.Pending())
}
