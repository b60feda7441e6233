package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/furyaxyz/elysium-bridge/bridge/signerset"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
	"github.com/furyaxyz/elysium-bridge/crypto"
)

func newTestOrchestrator(t *testing.T, tick time.Duration) (*Orchestrator, *submitterMock, *sourceMock) {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	submitter := &submitterMock{}
	source := &sourceMock{}

	o := New(key, submitter, source, Config{
		TickInterval: tick,
		MaxRetries:   3,
		RetryBase:    time.Millisecond,
	}, hclog.NewNullLogger())

	return o, submitter, source
}

func signedBy(address ethgo.Address, hash ethgo.Hash) interface{} {
	return mock.MatchedBy(func(sig []byte) bool {
		signer, err := crypto.RecoverAddress(hash[:], sig)

		return err == nil && signer == address
	})
}

func TestOrchestrator_SignPending(t *testing.T) {
	t.Parallel()

	o, submitter, source := newTestOrchestrator(t, 0)
	address := o.Address()
	token := ethgo.Address{0x70}

	valset := &signerset.Checkpoint{Nonce: 2, Hash: ethgo.Hash{0x22}}
	batch := &types.OutgoingBatch{Nonce: 7, TokenContract: token, Checkpoint: ethgo.Hash{0x77}}

	source.On("PendingValsets", address).Return([]*signerset.Checkpoint{valset}, nil).Once()
	source.On("UnsignedBatches", address).Return([]*types.OutgoingBatch{batch}, nil).Once()
	submitter.On("ConfirmValset", address, uint64(2), signedBy(address, valset.Hash)).Return(nil).Once()
	submitter.On("ConfirmBatch", address, token, uint64(7), signedBy(address, batch.Checkpoint)).Return(nil).Once()

	require.NoError(t, o.SignPending(context.Background()))

	submitter.AssertExpectations(t)
	source.AssertExpectations(t)
}

func TestOrchestrator_SignPendingSkipsRejected(t *testing.T) {
	t.Parallel()

	o, submitter, source := newTestOrchestrator(t, 0)
	address := o.Address()

	source.On("PendingValsets", address).Return([]*signerset.Checkpoint{{Nonce: 1}, {Nonce: 2}}, nil)
	source.On("UnsignedBatches", address).Return([]*types.OutgoingBatch{}, nil)
	submitter.On("ConfirmValset", address, uint64(1), mock.Anything).Return(types.ErrInvalidRequest).Once()
	submitter.On("ConfirmValset", address, uint64(2), mock.Anything).Return(nil).Once()

	require.NoError(t, o.SignPending(context.Background()))
	submitter.AssertExpectations(t)
}

func TestOrchestrator_SignPendingQueryError(t *testing.T) {
	t.Parallel()

	o, _, source := newTestOrchestrator(t, 0)

	source.On("PendingValsets", o.Address()).Return([]*signerset.Checkpoint(nil), errors.New("unavailable"))

	require.Error(t, o.SignPending(context.Background()))
}

func TestOrchestrator_SubmitClaimRetries(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		errs  []error
		calls int
		fails bool
	}{
		{"success", []error{nil}, 1, false},
		{"transient failure", []error{errors.New("connection refused"), nil}, 2, false},
		{"duplicate is final", []error{types.ErrDuplicateClaim}, 1, false},
		{"rejection is final", []error{types.ErrUnknownOrchestrator}, 1, true},
		{"retries exhausted", []error{errors.New("timeout")}, 4, true},
	}

	for _, c := range cases {
		c := c

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			o, submitter, _ := newTestOrchestrator(t, 0)

			for i, e := range c.errs {
				call := submitter.On("SubmitClaim", o.Address(), uint64(1)).Return(e)
				if i < len(c.errs)-1 {
					call.Once()
				}
			}

			err := o.submitClaim(context.Background(), &types.Event{Nonce: 1})
			if c.fails {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			submitter.AssertNumberOfCalls(t, "SubmitClaim", c.calls)
		})
	}
}

func TestOrchestrator_Run(t *testing.T) {
	t.Parallel()

	o, submitter, source := newTestOrchestrator(t, 5*time.Millisecond)
	submitted := make(chan uint64, 2)

	submitter.On("SubmitClaim", o.Address(), mock.Anything).Run(func(args mock.Arguments) {
		submitted <- args.Get(1).(uint64) //nolint:forcetypeassert
	}).Return(nil)
	source.On("PendingValsets", o.Address()).Return([]*signerset.Checkpoint{}, nil)
	source.On("UnsignedBatches", o.Address()).Return([]*types.OutgoingBatch{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- o.Run(ctx)
	}()

	require.NoError(t, o.HandleEvent(&types.Event{Nonce: 1, Kind: types.EventDeposit}))
	require.NoError(t, o.HandleEvent(&types.Event{Nonce: 2, Kind: types.EventDeposit}))

	for _, expected := range []uint64{1, 2} {
		select {
		case nonce := <-submitted:
			require.Equal(t, expected, nonce)
		case <-time.After(5 * time.Second):
			t.Fatal("claim was not submitted")
		}
	}

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("orchestrator did not stop")
	}

	require.ErrorIs(t, o.HandleEvent(&types.Event{Nonce: 3}), errClosed)
}
