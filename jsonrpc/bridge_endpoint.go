package jsonrpc

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/hashicorp/go-bexpr"
	"github.com/holiman/uint256"

	"github.com/furyaxyz/elysium-bridge/bridge"
	"github.com/furyaxyz/elysium-bridge/bridge/attestation"
	"github.com/furyaxyz/elysium-bridge/bridge/config"
	"github.com/furyaxyz/elysium-bridge/bridge/signerset"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
)

// bridgeStore is the read side of the bridge core served over JSON RPC
type bridgeStore interface {
	EventSpace() string
	QueryParams() (*bridge.ParamsResponse, error)
	QueryGravityParams() (config.Params, error)
	QueryContractByDenom(denom string) (*bridge.ContractByDenomResponse, error)
	QueryDenomByContract(contract ethgo.Address) (string, error)
	QueryTokenMappings() ([]*types.TokenMapping, error)
	QueryExternalToken(denom string) (ethgo.Address, error)
	QueryLastExternalHeight() (uint64, error)
	QueryBatches() ([]*types.OutgoingBatch, error)
	QuerySignedBatch(token ethgo.Address, nonce uint64) (*bridge.SignedBatchResponse, error)
	QueryPendingTransfers(token ethgo.Address) ([]*types.OutgoingTransfer, error)
	QueryLastRevertedNonce() (uint64, error)
	QueryRevertedVoucher(nonce uint64) (*types.RevertedVoucher, error)
	QueryAttestation(space string, nonce uint64) (*attestation.Attestation, error)
	QueryInvalidClaims(space string) ([]*types.InvalidClaim, error)
	QueryBalance(account ethgo.Address, asset string) (*uint256.Int, error)
	QuerySupply(asset string) (*uint256.Int, error)
	QueryValset() (*signerset.Checkpoint, error)
}

var _ bridgeStore = (*bridge.Bridge)(nil)

// batchView is the shape batch filter expressions are evaluated against, e.g.
// "Nonce != 3 and Transfers == 2" or `Token == "0xabc..."`. Token is lower case hex.
type batchView struct {
	Nonce       uint64
	Token       string
	Transfers   int
	Height      uint64
	Timeout     uint64
	ValsetNonce uint64
}

// Bridge is the bridge_ endpoint
type Bridge struct {
	store      bridgeStore
	throttling *Throttling
}

// NewBridge creates the bridge_ endpoint
func NewBridge(store bridgeStore, throttling *Throttling) *Bridge {
	return &Bridge{
		store:      store,
		throttling: throttling,
	}
}

// Params returns the elysium params
func (b *Bridge) Params(ctx context.Context) (interface{}, error) {
	return b.throttling.AttemptRequest(ctx, func() (interface{}, error) {
		return b.store.QueryParams()
	})
}

// GravityParams returns the full params record
func (b *Bridge) GravityParams(ctx context.Context) (interface{}, error) {
	return b.throttling.AttemptRequest(ctx, func() (interface{}, error) {
		return b.store.QueryGravityParams()
	})
}

func (b *Bridge) ContractByDenom(ctx context.Context, denom string) (interface{}, error) {
	return b.throttling.AttemptRequest(ctx, func() (interface{}, error) {
		return b.store.QueryContractByDenom(denom)
	})
}

func (b *Bridge) DenomByContract(ctx context.Context, contract ethgo.Address) (interface{}, error) {
	return b.throttling.AttemptRequest(ctx, func() (interface{}, error) {
		return b.store.QueryDenomByContract(contract)
	})
}

func (b *Bridge) TokenMappings(ctx context.Context) (interface{}, error) {
	return b.throttling.AttemptRequest(ctx, func() (interface{}, error) {
		return b.store.QueryTokenMappings()
	})
}

// ExternalToken returns the external chain token registered for an elysium source denom
func (b *Bridge) ExternalToken(ctx context.Context, denom string) (interface{}, error) {
	return b.throttling.AttemptRequest(ctx, func() (interface{}, error) {
		return b.store.QueryExternalToken(denom)
	})
}

func (b *Bridge) LastExternalHeight(ctx context.Context) (interface{}, error) {
	return b.throttling.AttemptRequest(ctx, func() (interface{}, error) {
		return b.store.QueryLastExternalHeight()
	})
}

// Batches returns the outgoing batches, optionally filtered by a boolean expression over batchView
func (b *Bridge) Batches(ctx context.Context, filter *string) (interface{}, error) {
	return b.throttling.AttemptRequest(ctx, func() (interface{}, error) {
		batches, err := b.store.QueryBatches()
		if err != nil {
			return nil, err
		}

		if filter == nil || strings.TrimSpace(*filter) == "" {
			return batches, nil
		}

		return filterBatches(batches, *filter)
	})
}

func (b *Bridge) SignedBatch(ctx context.Context, token ethgo.Address, nonce uint64) (interface{}, error) {
	return b.throttling.AttemptRequest(ctx, func() (interface{}, error) {
		return b.store.QuerySignedBatch(token, nonce)
	})
}

func (b *Bridge) PendingTransfers(ctx context.Context, token ethgo.Address) (interface{}, error) {
	return b.throttling.AttemptRequest(ctx, func() (interface{}, error) {
		return b.store.QueryPendingTransfers(token)
	})
}

func (b *Bridge) LastRevertedNonce(ctx context.Context) (interface{}, error) {
	return b.throttling.AttemptRequest(ctx, func() (interface{}, error) {
		return b.store.QueryLastRevertedNonce()
	})
}

func (b *Bridge) RevertedVoucher(ctx context.Context, nonce uint64) (interface{}, error) {
	return b.throttling.AttemptRequest(ctx, func() (interface{}, error) {
		return b.store.QueryRevertedVoucher(nonce)
	})
}

// Attestation returns the attestation of a nonce. The space defaults to the watched bridge contract.
func (b *Bridge) Attestation(ctx context.Context, nonce uint64, space *string) (interface{}, error) {
	return b.throttling.AttemptRequest(ctx, func() (interface{}, error) {
		return b.store.QueryAttestation(b.space(space), nonce)
	})
}

func (b *Bridge) InvalidClaims(ctx context.Context, space *string) (interface{}, error) {
	return b.throttling.AttemptRequest(ctx, func() (interface{}, error) {
		return b.store.QueryInvalidClaims(b.space(space))
	})
}

// Balance returns the decimal balance of an account in an asset
func (b *Bridge) Balance(ctx context.Context, account ethgo.Address, asset string) (interface{}, error) {
	return b.throttling.AttemptRequest(ctx, func() (interface{}, error) {
		amount, err := b.store.QueryBalance(account, asset)
		if err != nil {
			return nil, err
		}

		return amount.Dec(), nil
	})
}

func (b *Bridge) Supply(ctx context.Context, asset string) (interface{}, error) {
	return b.throttling.AttemptRequest(ctx, func() (interface{}, error) {
		amount, err := b.store.QuerySupply(asset)
		if err != nil {
			return nil, err
		}

		return amount.Dec(), nil
	})
}

// Valset returns the active signer set checkpoint
func (b *Bridge) Valset(ctx context.Context) (interface{}, error) {
	return b.throttling.AttemptRequest(ctx, func() (interface{}, error) {
		return b.store.QueryValset()
	})
}

func (b *Bridge) space(space *string) string {
	if space == nil || *space == "" {
		return b.store.EventSpace()
	}

	return *space
}

func filterBatches(batches []*types.OutgoingBatch, filter string) ([]*types.OutgoingBatch, error) {
	expr, err := bexpr.CreateEvaluator(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to parse batch filter: %w", err)
	}

	result := make([]*types.OutgoingBatch, 0, len(batches))

	for _, batch := range batches {
		match, err := expr.Evaluate(batchView{
			Nonce:       batch.Nonce,
			Token:       strings.ToLower(batch.TokenContract.String()),
			Transfers:   len(batch.Transfers),
			Height:      batch.Height,
			Timeout:     batch.Timeout,
			ValsetNonce: batch.ValsetNonce,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate batch filter: %w", err)
		}

		if match {
			result = append(result, batch)
		}
	}

	return result, nil
}
