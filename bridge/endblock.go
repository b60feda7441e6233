package bridge

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/Ethernal-Tech/ethgo"
	bolt "go.etcd.io/bbolt"

	"github.com/furyaxyz/elysium-bridge/bridge/claims"
	"github.com/furyaxyz/elysium-bridge/bridge/metrics"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
)

// attestationRetention is the number of applied nonces kept per space for queries
const attestationRetention = 1000

// EndBlockResult describes the effects of a finalized block
type EndBlockResult struct {
	Height   uint64                 `json:"height"`
	Applied  []uint64               `json:"applied,omitempty"`
	Claims   []*claims.Result       `json:"-"`
	Cut      []*types.OutgoingBatch `json:"cut,omitempty"`
	TimedOut []*types.OutgoingBatch `json:"timedOut,omitempty"`
	Halted   bool                   `json:"halted"`
}

// EndBlock finalizes a block: applies resolved attestations in nonce order, cuts and times out
// batches and persists the block height. Attestations are not applied while the bridge is inactive.
func (b *Bridge) EndBlock(height uint64) (*EndBlockResult, error) {
	res := &EndBlockResult{Height: height}

	var notifications []types.Notification

	err := b.execute(func(tx *bolt.Tx) error {
		last, err := b.state.GetLastBlockHeight(tx)
		if err != nil {
			return err
		}

		if height <= last {
			return fmt.Errorf("%w: block %d is already finalized", types.ErrInvalidRequest, height)
		}

		p, err := b.gate.Params(tx)
		if err != nil {
			return err
		}

		if p.BridgeActive {
			if err := b.applyObserved(tx, height, res); err != nil {
				return err
			}
		}

		for _, r := range res.Claims {
			notifications = append(notifications, r.Notifications...)
		}

		res.Cut, res.TimedOut, err = b.batches.EndBlock(tx, height)
		if err != nil {
			return err
		}

		for _, batch := range res.TimedOut {
			notifications = append(notifications, types.NewNotification(types.NotifyBatchTimedOut, height,
				"token", batch.TokenContract.String(), "nonce", strconv.FormatUint(batch.Nonce, 10)))
		}

		for _, batch := range res.Cut {
			notifications = append(notifications, types.NewNotification(types.NotifyBatchCut, height,
				"token", batch.TokenContract.String(), "nonce", strconv.FormatUint(batch.Nonce, 10),
				"transfers", strconv.Itoa(len(batch.Transfers))))
		}

		pending, err := b.batches.PendingTransfers(tx, ethgo.ZeroAddress)
		if err != nil {
			return err
		}

		metrics.SetPendingTransfers(len(pending))
		metrics.SetBridgeActive(p.BridgeActive)

		return b.state.InsertLastBlockHeight(height, tx)
	})
	if err != nil {
		return nil, err
	}

	b.publish(notifications)

	return res, nil
}

func (b *Bridge) applyObserved(tx *bolt.Tx, height uint64, res *EndBlockResult) error {
	space := b.EventSpace()

	if err := b.attestations.CheckStream(tx, space); err != nil {
		if !errors.Is(err, types.ErrConflictingAttestation) {
			return err
		}

		res.Halted = true

		b.logger.Error("event stream is halted", "space", space, "critical", true, "err", err)

		return nil
	}

	applied, err := b.attestations.ProcessObserved(tx, space, b.claims.ApplyFn(height, &res.Claims))
	if err != nil {
		return err
	}

	res.Applied = applied

	if len(applied) == 0 {
		return nil
	}

	last := applied[len(applied)-1]
	if last > attestationRetention {
		if _, err := b.attestations.Prune(tx, space, last-attestationRetention); err != nil {
			return err
		}
	}

	return nil
}
