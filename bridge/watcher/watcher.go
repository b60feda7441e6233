package watcher

import (
	"errors"
	"fmt"
	"path"
	"sync"

	"github.com/Ethernal-Tech/blockchain-event-tracker/store"
	"github.com/Ethernal-Tech/blockchain-event-tracker/tracker"
	"github.com/Ethernal-Tech/ethgo"
	"github.com/hashicorp/go-hclog"

	"github.com/furyaxyz/elysium-bridge/bridge/config"
	"github.com/furyaxyz/elysium-bridge/bridge/contractsapi"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
)

// defaultMaxPendingEvents bounds the nonce window buffered above the next nonce to emit
const defaultMaxPendingEvents = 1024

var errAlreadyStarted = errors.New("event watcher is already started")

// AppliedNonceSource reports the last nonce of a space the bridge core already applied
type AppliedNonceSource interface {
	LastAppliedNonce(space string) (uint64, error)
}

// EventSink receives the observed events in strictly increasing nonce order
type EventSink interface {
	HandleEvent(event *types.Event) error
}

// EventSinkFn is an adapter to use ordinary functions as EventSink
type EventSinkFn func(event *types.Event) error

func (f EventSinkFn) HandleEvent(event *types.Event) error {
	return f(event)
}

// Watcher observes the bridge contract on the external chain. It receives confirmed logs from the
// event tracker, buffers out of order nonces and emits every nonce exactly once, in order.
type Watcher struct {
	chainID  uint64
	contract ethgo.Address

	applied AppliedNonceSource
	sink    EventSink
	logger  hclog.Logger

	lock sync.Mutex
	// nextNonce is the next nonce to emit, zero until synced with the applied nonce source
	nextNonce uint64
	pending   map[uint64]*types.Event
	// maxPending is the width of the buffered nonce window starting at nextNonce
	maxPending uint64

	tracker *tracker.EventTracker
}

// New creates a watcher of the bridge contract on the given chain
func New(chainID uint64, contract ethgo.Address, applied AppliedNonceSource, sink EventSink,
	logger hclog.Logger) *Watcher {
	return &Watcher{
		chainID:  chainID,
		contract: contract,
		applied:  applied,
		sink:     sink,
		logger:   logger.Named("watcher"),
		pending:  make(map[uint64]*types.Event),

		maxPending: defaultMaxPendingEvents,
	}
}

// Space returns the nonce space of the watched contract
func (w *Watcher) Space() string {
	return types.EventSpace(w.chainID, w.contract)
}

// Start starts tracking the bridge contract logs. The tracker checkpoint is kept in dataDir.
func (w *Watcher) Start(dataDir string, cfg config.Bridge) error {
	if w.tracker != nil {
		return errAlreadyStarted
	}

	trackerStore, err := store.NewBoltDBEventTrackerStore(path.Join(dataDir, "/event-tracker.db"))
	if err != nil {
		return fmt.Errorf("failed to open event tracker store: %w", err)
	}

	opts := cfg.EventTrackerOptions

	eventTracker, err := tracker.NewEventTracker(
		&tracker.EventTrackerConfig{
			EventSubscriber:        w,
			Logger:                 w.logger,
			RPCEndpoint:            cfg.JSONRPCEndpoint,
			SyncBatchSize:          opts.SyncBatchSize,
			NumBlockConfirmations:  opts.NumBlockConfirmations,
			NumOfBlocksToReconcile: opts.NumOfBlocksToReconcile,
			PollInterval:           opts.PollInterval.Duration,
			LogFilter: map[ethgo.Address][]ethgo.Hash{
				w.contract: contractsapi.BridgeEventSigs(),
			},
		},
		trackerStore, opts.StartBlock,
	)
	if err != nil {
		return fmt.Errorf("failed to create event tracker: %w", err)
	}

	if err := eventTracker.Start(); err != nil {
		return fmt.Errorf("failed to start event tracker: %w", err)
	}

	w.tracker = eventTracker

	w.logger.Info("watching bridge contract", "chainID", w.chainID, "contract", w.contract,
		"confirmations", opts.NumBlockConfirmations, "startBlock", opts.StartBlock)

	return nil
}

// Close stops the event tracker
func (w *Watcher) Close() {
	if w.tracker != nil {
		w.tracker.Close()
	}
}

// AddLog is the event tracker subscriber implementation. The tracker of a watcher follows a single
// chain, so events are attributed to the chain the watcher was created for.
func (w *Watcher) AddLog(log *ethgo.Log) error {
	if log.Address != w.contract {
		return nil
	}

	if log.Removed {
		w.logger.Debug("ignoring removed log", "block", log.BlockNumber, "index", log.LogIndex)

		return nil
	}

	bridgeEvent, matches, err := contractsapi.ParseBridgeLog(log)
	if !matches {
		return nil
	}

	if err != nil {
		// malformed logs are dropped so they can not block the tracker
		w.logger.Error("could not decode bridge event", "block", log.BlockNumber,
			"hash", log.TransactionHash, "index", log.LogIndex, "err", err)

		return nil
	}

	event, err := bridgeEvent.ToEvent(w.chainID, w.contract, log.BlockNumber)
	if err != nil {
		w.logger.Error("could not convert bridge event", "block", log.BlockNumber,
			"hash", log.TransactionHash, "err", err)

		return nil
	}

	return w.observe(event)
}

// Pending returns the number of buffered events waiting for a lower nonce
func (w *Watcher) Pending() int {
	w.lock.Lock()
	defer w.lock.Unlock()

	return len(w.pending)
}

func (w *Watcher) observe(event *types.Event) error {
	w.lock.Lock()
	defer w.lock.Unlock()

	if err := w.syncApplied(); err != nil {
		return err
	}

	_, buffered := w.pending[event.Nonce]

	switch {
	case event.Nonce < w.nextNonce:
		w.logger.Debug("dropping already emitted event", "nonce", event.Nonce, "next", w.nextNonce)
	case buffered:
		w.logger.Debug("dropping duplicate event", "nonce", event.Nonce)
	case event.Nonce-w.nextNonce >= w.maxPending:
		w.logger.Warn("dropping event beyond the pending window", "nonce", event.Nonce,
			"next", w.nextNonce, "window", w.maxPending)
	default:
		w.pending[event.Nonce] = event
		w.logger.Info("bridge event observed", "nonce", event.Nonce, "kind", event.Kind, "block", event.Height)
	}

	return w.flush()
}

// syncApplied moves the next nonce past everything the core already applied
func (w *Watcher) syncApplied() error {
	lastApplied, err := w.applied.LastAppliedNonce(w.Space())
	if err != nil {
		return fmt.Errorf("failed to read last applied nonce: %w", err)
	}

	if lastApplied+1 <= w.nextNonce {
		return nil
	}

	w.nextNonce = lastApplied + 1

	for nonce := range w.pending {
		if nonce < w.nextNonce {
			delete(w.pending, nonce)
		}
	}

	return nil
}

func (w *Watcher) flush() error {
	for {
		event, ok := w.pending[w.nextNonce]
		if !ok {
			return nil
		}

		if err := w.sink.HandleEvent(event); err != nil {
			return fmt.Errorf("failed to emit event %d: %w", event.Nonce, err)
		}

		delete(w.pending, w.nextNonce)
		w.nextNonce++
	}
}
