package state

import (
	"path"
	"testing"
)

// NewTestState creates new instance of state used by tests.
func NewTestState(tb testing.TB) *State {
	tb.Helper()

	state, err := NewState(path.Join(tb.TempDir(), "bridge.db"))
	if err != nil {
		tb.Fatal(err)
	}

	tb.Cleanup(func() {
		if err := state.Close(); err != nil {
			tb.Error(err)
		}
	})

	return state
}
