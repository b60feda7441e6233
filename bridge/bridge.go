package bridge

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	bolt "go.etcd.io/bbolt"

	"github.com/furyaxyz/elysium-bridge/bridge/attestation"
	"github.com/furyaxyz/elysium-bridge/bridge/batch"
	"github.com/furyaxyz/elysium-bridge/bridge/claims"
	"github.com/furyaxyz/elysium-bridge/bridge/config"
	"github.com/furyaxyz/elysium-bridge/bridge/evmhandlers"
	"github.com/furyaxyz/elysium-bridge/bridge/ledger"
	"github.com/furyaxyz/elysium-bridge/bridge/metrics"
	"github.com/furyaxyz/elysium-bridge/bridge/params"
	"github.com/furyaxyz/elysium-bridge/bridge/signerset"
	"github.com/furyaxyz/elysium-bridge/bridge/state"
	"github.com/furyaxyz/elysium-bridge/bridge/tokenmap"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
)

var errBridgeClosed = errors.New("bridge is closed")

// Response is the result of a delivered message
type Response struct {
	// Code is zero on success, otherwise the result code of the error
	Code uint32      `json:"code"`
	Log  string      `json:"log,omitempty"`
	Data interface{} `json:"data,omitempty"`

	err error
}

// Err returns the error the message failed with
func (r *Response) Err() error {
	return r.err
}

// IsOK reports whether the message succeeded
func (r *Response) IsOK() bool {
	return r.Code == 0
}

// outcome is what a message handler produced. A failure is reported to the sender
// while the state changes of the message are still committed.
type outcome struct {
	data          interface{}
	notifications []types.Notification
	failure       error
}

// Bridge is the state transition core of the bridge. Every message runs in a single
// bolt write transaction which is rolled back when the message fails.
type Bridge struct {
	state    *state.State
	db       *bolt.DB
	chainID  uint64
	contract ethgo.Address

	gate         *params.Gate
	ledger       *ledger.Ledger
	tokens       *tokenmap.Store
	attestations *attestation.Store
	signers      *signerset.Manager
	batches      *batch.Builder
	claims       *claims.Processor
	evmHandlers  *evmhandlers.Handlers

	subsLock  sync.Mutex
	subs      map[uint64]chan types.Notification
	nextSubID uint64
	closed    bool

	logger hclog.Logger
}

// New creates the bridge core on top of the given state for the external bridge deployment
func New(st *state.State, cfg config.Bridge, logger hclog.Logger) (*Bridge, error) {
	db := st.DB()

	gate, err := params.NewGate(db, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create params gate: %w", err)
	}

	l, err := ledger.New(db, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger: %w", err)
	}

	tokens, err := tokenmap.NewStore(db, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create token mapping store: %w", err)
	}

	attestations, err := attestation.NewStore(db, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create attestation store: %w", err)
	}

	signers, err := signerset.NewManager(db, nil, gate, attestations, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create signer set manager: %w", err)
	}

	batches, err := batch.NewBuilder(db, nil, gate, l, tokens, signers, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch builder: %w", err)
	}

	processor, err := claims.NewProcessor(db, nil, gate, l, tokens, batches, signers, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create claim processor: %w", err)
	}

	evmHandlers, err := evmhandlers.NewHandlers(logger,
		evmhandlers.NewSendToEvmChainHandler(db, gate, l, tokens, batches, cfg.ExternalChainID, logger),
		evmhandlers.NewSendToAccountHandler(db, l, tokens, logger),
	)
	if err != nil {
		return nil, err
	}

	return &Bridge{
		state:        st,
		db:           db,
		chainID:      cfg.ExternalChainID,
		contract:     cfg.BridgeContractAddr,
		gate:         gate,
		ledger:       l,
		tokens:       tokens,
		attestations: attestations,
		signers:      signers,
		batches:      batches,
		claims:       processor,
		evmHandlers:  evmHandlers,
		subs:         make(map[uint64]chan types.Notification),
		logger:       logger.Named("bridge"),
	}, nil
}

// EventSpace returns the nonce space of the watched bridge contract
func (b *Bridge) EventSpace() string {
	return types.EventSpace(b.chainID, b.contract)
}

// CurrentHeight returns the height of the block being built
func (b *Bridge) CurrentHeight() (uint64, error) {
	last, err := b.state.GetLastBlockHeight(nil)
	if err != nil {
		return 0, err
	}

	return last + 1, nil
}

// Deliver executes a message at the given height
func (b *Bridge) Deliver(height uint64, msg Msg) *Response {
	defer metrics.UpdateMessageExecutionMetric(msg.Type(), time.Now())

	if err := msg.ValidateBasic(); err != nil {
		return b.errorResponse(msg, err)
	}

	var out *outcome

	err := b.execute(func(tx *bolt.Tx) error {
		var err error

		out, err = b.handle(tx, height, msg)

		return err
	})
	if err != nil {
		return b.errorResponse(msg, err)
	}

	b.publish(out.notifications)

	if out.failure != nil {
		res := b.errorResponse(msg, out.failure)
		res.Data = out.data

		return res
	}

	return &Response{Data: out.data}
}

// Subscribe registers a notification subscriber. Notifications are delivered after commit and
// dropped when the subscriber buffer is full. The returned function cancels the subscription.
func (b *Bridge) Subscribe(buffer int) (<-chan types.Notification, func()) {
	b.subsLock.Lock()
	defer b.subsLock.Unlock()

	ch := make(chan types.Notification, buffer)
	if b.closed {
		close(ch)

		return ch, func() {}
	}

	id := b.nextSubID
	b.nextSubID++
	b.subs[id] = ch

	return ch, func() {
		b.subsLock.Lock()
		defer b.subsLock.Unlock()

		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

// Close closes every subscription and the underlying state
func (b *Bridge) Close() error {
	var result error

	b.subsLock.Lock()

	if b.closed {
		b.subsLock.Unlock()

		return errBridgeClosed
	}

	b.closed = true

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}

	b.subsLock.Unlock()

	if err := b.state.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close state: %w", err))
	}

	return result
}

// execute runs fn in a new write transaction, commits on success and rolls back otherwise
func (b *Bridge) execute(fn func(tx *bolt.Tx) error) error {
	defer b.tokens.AfterCommit()

	tx, err := b.state.BeginDBTransaction(true)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return multierror.Append(err, rbErr)
		}

		return err
	}

	return tx.Commit()
}

func (b *Bridge) publish(notifications []types.Notification) {
	if len(notifications) == 0 {
		return
	}

	b.subsLock.Lock()
	defer b.subsLock.Unlock()

	for _, n := range notifications {
		for id, ch := range b.subs {
			select {
			case ch <- n:
			default:
				b.logger.Warn("subscriber is full, notification dropped", "subscriber", id, "kind", n.Kind)
			}
		}
	}
}

func (b *Bridge) errorResponse(msg Msg, err error) *Response {
	code := types.ResultCode(err)

	switch {
	case code == types.InternalErrorCode:
		b.logger.Error("message failed", "type", msg.Type(), "err", err)
	case errors.Is(err, types.ErrDuplicateClaim):
		b.logger.Debug("message rejected", "type", msg.Type(), "err", err)
	default:
		b.logger.Info("message rejected", "type", msg.Type(), "code", code, "err", err)
	}

	return &Response{Code: code, Log: err.Error(), err: err}
}
