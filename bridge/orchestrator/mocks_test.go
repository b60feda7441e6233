package orchestrator

import (
	"context"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/stretchr/testify/mock"

	"github.com/furyaxyz/elysium-bridge/bridge/signerset"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
)

var (
	_ ClaimSubmitter = (*submitterMock)(nil)
	_ SigningSource  = (*sourceMock)(nil)
)

type submitterMock struct {
	mock.Mock
}

func (m *submitterMock) SubmitClaim(ctx context.Context, orchestrator ethgo.Address, event *types.Event) error {
	return m.Called(orchestrator, event.Nonce).Error(0)
}

func (m *submitterMock) ConfirmBatch(ctx context.Context, orchestrator, token ethgo.Address,
	nonce uint64, signature []byte) error {
	return m.Called(orchestrator, token, nonce, signature).Error(0)
}

func (m *submitterMock) ConfirmValset(ctx context.Context, orchestrator ethgo.Address,
	nonce uint64, signature []byte) error {
	return m.Called(orchestrator, nonce, signature).Error(0)
}

type sourceMock struct {
	mock.Mock
}

func (m *sourceMock) UnsignedBatches(ctx context.Context, orchestrator ethgo.Address) ([]*types.OutgoingBatch, error) {
	args := m.Called(orchestrator)

	return args.Get(0).([]*types.OutgoingBatch), args.Error(1) //nolint:forcetypeassert
}

func (m *sourceMock) PendingValsets(ctx context.Context, orchestrator ethgo.Address) ([]*signerset.Checkpoint, error) {
	args := m.Called(orchestrator)

	return args.Get(0).([]*signerset.Checkpoint), args.Error(1) //nolint:forcetypeassert
}
