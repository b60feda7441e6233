package bridge

import (
	"context"

	"github.com/Ethernal-Tech/ethgo"

	"github.com/furyaxyz/elysium-bridge/bridge/orchestrator"
	"github.com/furyaxyz/elysium-bridge/bridge/signerset"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
)

var (
	_ orchestrator.ClaimSubmitter = (*LocalClient)(nil)
	_ orchestrator.SigningSource  = (*LocalClient)(nil)
)

// LocalClient delivers orchestrator messages to an in-process bridge at the height of the block being built
type LocalClient struct {
	bridge *Bridge
}

// NewLocalClient creates a client of the given bridge
func NewLocalClient(b *Bridge) *LocalClient {
	return &LocalClient{bridge: b}
}

func (c *LocalClient) SubmitClaim(ctx context.Context, orch ethgo.Address, event *types.Event) error {
	return c.deliver(ctx, &MsgSubmitClaim{Orchestrator: orch, Event: event})
}

func (c *LocalClient) ConfirmBatch(ctx context.Context, orch, token ethgo.Address, nonce uint64,
	signature []byte) error {
	return c.deliver(ctx, &MsgConfirmBatch{
		Orchestrator:  orch,
		TokenContract: token,
		Nonce:         nonce,
		Signature:     signature,
	})
}

func (c *LocalClient) ConfirmValset(ctx context.Context, orch ethgo.Address, nonce uint64, signature []byte) error {
	return c.deliver(ctx, &MsgConfirmValset{Orchestrator: orch, Nonce: nonce, Signature: signature})
}

func (c *LocalClient) UnsignedBatches(_ context.Context, orch ethgo.Address) ([]*types.OutgoingBatch, error) {
	return c.bridge.QueryUnsignedBatches(orch)
}

func (c *LocalClient) PendingValsets(_ context.Context, orch ethgo.Address) ([]*signerset.Checkpoint, error) {
	return c.bridge.QueryPendingValsets(orch)
}

func (c *LocalClient) deliver(ctx context.Context, msg Msg) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	height, err := c.bridge.CurrentHeight()
	if err != nil {
		return err
	}

	return c.bridge.Deliver(height, msg).Err()
}
