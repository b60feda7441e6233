package watcher

import (
	"github.com/stretchr/testify/mock"
)

var _ AppliedNonceSource = (*appliedNonceSourceMock)(nil)

type appliedNonceSourceMock struct {
	mock.Mock
}

func (m *appliedNonceSourceMock) LastAppliedNonce(space string) (uint64, error) {
	args := m.Called(space)

	return args.Get(0).(uint64), args.Error(1) //nolint:forcetypeassert
}
