package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/hashicorp/go-hclog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/furyaxyz/elysium-bridge/bridge/signerset"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
	"github.com/furyaxyz/elysium-bridge/crypto"
)

const (
	defaultEventQueueSize = 1024
	defaultMaxRetries     = 5
	defaultRetryBase      = 500 * time.Millisecond
)

var errClosed = errors.New("orchestrator is closed")

// ClaimSubmitter delivers orchestrator messages to the bridge core
type ClaimSubmitter interface {
	SubmitClaim(ctx context.Context, orchestrator ethgo.Address, event *types.Event) error
	ConfirmBatch(ctx context.Context, orchestrator, token ethgo.Address, nonce uint64, signature []byte) error
	ConfirmValset(ctx context.Context, orchestrator ethgo.Address, nonce uint64, signature []byte) error
}

// SigningSource lists the checkpoints the orchestrator has not signed yet
type SigningSource interface {
	UnsignedBatches(ctx context.Context, orchestrator ethgo.Address) ([]*types.OutgoingBatch, error)
	PendingValsets(ctx context.Context, orchestrator ethgo.Address) ([]*signerset.Checkpoint, error)
}

// Config holds the orchestrator settings
type Config struct {
	TickInterval time.Duration
	QueueSize    int
	MaxRetries   uint64
	RetryBase    time.Duration
}

// Orchestrator is the validator operated process that attests observed events
// and signs the batches and signer set checkpoints of the bridge
type Orchestrator struct {
	key       *crypto.Key
	submitter ClaimSubmitter
	source    SigningSource
	config    Config
	logger    hclog.Logger

	eventsCh  chan *types.Event
	closeCh   chan struct{}
	closeOnce sync.Once
}

// New creates an orchestrator signing with the given key
func New(key *crypto.Key, submitter ClaimSubmitter, source SigningSource, cfg Config,
	logger hclog.Logger) *Orchestrator {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultEventQueueSize
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}

	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}

	return &Orchestrator{
		key:       key,
		submitter: submitter,
		source:    source,
		config:    cfg,
		logger:    logger.Named("orchestrator"),
		eventsCh:  make(chan *types.Event, cfg.QueueSize),
		closeCh:   make(chan struct{}),
	}
}

// Address returns the orchestrator address
func (o *Orchestrator) Address() ethgo.Address {
	return o.key.Address()
}

// HandleEvent queues an observed event for claim submission, it is the watcher event sink
func (o *Orchestrator) HandleEvent(event *types.Event) error {
	select {
	case <-o.closeCh:
		return errClosed
	default:
	}

	select {
	case o.eventsCh <- event.Copy():
		return nil
	case <-o.closeCh:
		return errClosed
	}
}

// Run submits claims and signs pending checkpoints until the context is cancelled
func (o *Orchestrator) Run(ctx context.Context) error {
	defer o.Close()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return o.runClaims(ctx)
	})

	g.Go(func() error {
		return o.runSigner(ctx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// Close stops accepting events
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		close(o.closeCh)
	})
}

func (o *Orchestrator) runClaims(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-o.eventsCh:
			if err := o.submitClaim(ctx, event); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}

				o.logger.Error("failed to submit claim", "space", event.Space(), "nonce", event.Nonce, "err", err)
			}
		}
	}
}

func (o *Orchestrator) runSigner(ctx context.Context) error {
	if o.config.TickInterval <= 0 {
		return nil
	}

	ticker := time.NewTicker(o.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := o.SignPending(ctx); err != nil {
				o.logger.Error("failed to sign pending checkpoints", "err", err)
			}
		}
	}
}

// SignPending signs every valset checkpoint and batch the orchestrator has not confirmed yet.
// Valsets go first since batches cut after a rotation need the new set.
func (o *Orchestrator) SignPending(ctx context.Context) error {
	address := o.key.Address()

	valsets, err := o.source.PendingValsets(ctx, address)
	if err != nil {
		return fmt.Errorf("failed to query pending valsets: %w", err)
	}

	for _, cp := range valsets {
		sig, err := o.key.Sign(cp.Hash[:])
		if err != nil {
			return err
		}

		if err := o.withRetry(ctx, func(ctx context.Context) error {
			return o.submitter.ConfirmValset(ctx, address, cp.Nonce, sig)
		}); err != nil {
			o.logger.Warn("failed to confirm valset", "nonce", cp.Nonce, "err", err)

			continue
		}

		o.logger.Debug("valset confirmed", "nonce", cp.Nonce)
	}

	batches, err := o.source.UnsignedBatches(ctx, address)
	if err != nil {
		return fmt.Errorf("failed to query unsigned batches: %w", err)
	}

	for _, b := range batches {
		sig, err := o.key.Sign(b.Checkpoint[:])
		if err != nil {
			return err
		}

		if err := o.withRetry(ctx, func(ctx context.Context) error {
			return o.submitter.ConfirmBatch(ctx, address, b.TokenContract, b.Nonce, sig)
		}); err != nil {
			o.logger.Warn("failed to confirm batch", "token", b.TokenContract, "nonce", b.Nonce, "err", err)

			continue
		}

		o.logger.Debug("batch confirmed", "token", b.TokenContract, "nonce", b.Nonce)
	}

	return nil
}

func (o *Orchestrator) submitClaim(ctx context.Context, event *types.Event) error {
	err := o.withRetry(ctx, func(ctx context.Context) error {
		return o.submitter.SubmitClaim(ctx, o.key.Address(), event)
	})

	switch {
	case err == nil:
		o.logger.Debug("claim submitted", "space", event.Space(), "nonce", event.Nonce)
	case errors.Is(err, types.ErrDuplicateClaim):
		// already voted or already applied
		o.logger.Debug("claim already known", "space", event.Space(), "nonce", event.Nonce)

		return nil
	}

	return err
}

// withRetry retries internal failures with an exponential backoff, rejections of the core are final
func (o *Orchestrator) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(o.config.MaxRetries, retry.NewExponential(o.config.RetryBase))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && types.ResultCode(err) == types.InternalErrorCode {
			return retry.RetryableError(err)
		}

		return err
	})
}
