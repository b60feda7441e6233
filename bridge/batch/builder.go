package batch

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/hashicorp/go-hclog"
	"github.com/holiman/uint256"
	bolt "go.etcd.io/bbolt"

	"github.com/furyaxyz/elysium-bridge/bridge/contractsapi"
	"github.com/furyaxyz/elysium-bridge/bridge/ledger"
	"github.com/furyaxyz/elysium-bridge/bridge/metrics"
	"github.com/furyaxyz/elysium-bridge/bridge/params"
	"github.com/furyaxyz/elysium-bridge/bridge/signerset"
	"github.com/furyaxyz/elysium-bridge/bridge/state"
	"github.com/furyaxyz/elysium-bridge/bridge/tokenmap"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
	"github.com/furyaxyz/elysium-bridge/crypto"
	"github.com/furyaxyz/elysium-bridge/helper/common"
)

var (
	// bucket to store pool transfers, nested per token contract
	poolBucket = []byte("outgoingPool")
	// bucket to store cut batches, nested per token contract
	batchesBucket = []byte("outgoingBatches")
	// bucket to store batch signatures, nested per token contract and batch nonce
	batchSignaturesBucket = []byte("batchSignatures")
	// bucket to store sequences of transfer ids, batch nonces and voucher nonces
	batchMetaBucket = []byte("batchMeta")

	lastTransferIDKey     = []byte("lastTransferId")
	lastBatchNonceKey     = []byte("lastBatchNonce")
	lastExternalHeightKey = []byte("lastExternalHeight")
)

/*
Bolt DB schema:

outgoing pool/
|--> token contract --> transfer id -> *types.OutgoingTransfer (json marshalled)

outgoing batches/
|--> token contract --> batch nonce -> *types.OutgoingBatch (json marshalled)

batch signatures/
|--> token contract ++ batch nonce --> orchestrator -> signature

batch meta/
|--> "lastTransferId" | "lastBatchNonce" | "lastRevertedNonce" | "lastExternalHeight" -> value
*/

// Builder exclusively owns the outgoing pool, the cut batches and the reverted vouchers
type Builder struct {
	db      *bolt.DB
	gate    *params.Gate
	ledger  *ledger.Ledger
	tokens  *tokenmap.Store
	signers *signerset.Manager
	logger  hclog.Logger
}

// NewBuilder creates the outgoing batch builder and its buckets
func NewBuilder(db *bolt.DB, dbTx *bolt.Tx, gate *params.Gate, l *ledger.Ledger, tokens *tokenmap.Store,
	signers *signerset.Manager, logger hclog.Logger) (*Builder, error) {
	b := &Builder{
		db:      db,
		gate:    gate,
		ledger:  l,
		tokens:  tokens,
		signers: signers,
		logger:  logger.Named("batch"),
	}

	return b, state.CreateBuckets(db, dbTx,
		poolBucket, batchesBucket, batchSignaturesBucket, batchMetaBucket, vouchersBucket, redeemedBucket)
}

// Enqueue escrows amount and fee of the sender and adds an outbound transfer to the pool
func (b *Builder) Enqueue(dbTx *bolt.Tx, sender, recipient ethgo.Address, denom string,
	amount, fee *uint256.Int) (*types.OutgoingTransfer, error) {
	if err := b.gate.RequireActive(dbTx); err != nil {
		return nil, err
	}

	total, overflow := new(uint256.Int).AddOverflow(amount, fee)
	if overflow {
		return nil, fmt.Errorf("%w: amount and fee overflow", types.ErrInvalidRequest)
	}

	var transfer *types.OutgoingTransfer

	err := state.Update(b.db, dbTx, func(tx *bolt.Tx) error {
		if err := b.validateTransfer(tx, recipient, denom, amount); err != nil {
			return err
		}

		if err := b.ledger.Transfer(tx, sender, types.ModuleAccount, denom, total); err != nil {
			return err
		}

		var err error

		transfer, err = b.enqueue(tx, sender, recipient, denom, amount, fee)

		return err
	})

	return transfer, err
}

// EnqueueEscrowed adds an outbound transfer whose funds are already held by the module account
func (b *Builder) EnqueueEscrowed(dbTx *bolt.Tx, sender, recipient ethgo.Address, denom string,
	amount, fee *uint256.Int) (*types.OutgoingTransfer, error) {
	if err := b.gate.RequireActive(dbTx); err != nil {
		return nil, err
	}

	var transfer *types.OutgoingTransfer

	err := state.Update(b.db, dbTx, func(tx *bolt.Tx) error {
		if err := b.validateTransfer(tx, recipient, denom, amount); err != nil {
			return err
		}

		var err error

		transfer, err = b.enqueue(tx, sender, recipient, denom, amount, fee)

		return err
	})

	return transfer, err
}

// Cancel removes a transfer of the sender from the pool and refunds its escrow.
// Transfers that are already part of a batch can not be cancelled.
func (b *Builder) Cancel(dbTx *bolt.Tx, sender ethgo.Address, id uint64) (*types.OutgoingTransfer, error) {
	var transfer *types.OutgoingTransfer

	err := state.Update(b.db, dbTx, func(tx *bolt.Tx) error {
		var (
			bucket *bolt.Bucket
			err    error
		)

		transfer, bucket, err = findPoolTransfer(tx, id)
		if err != nil {
			return err
		}

		if transfer.Sender != sender {
			return fmt.Errorf("%w: transfer %d was not sent by %s", types.ErrPermissionDenied, id, sender)
		}

		if err := bucket.Delete(common.EncodeUint64ToBytes(id)); err != nil {
			return err
		}

		refund := new(uint256.Int).Add(transfer.Amount, transfer.Fee)

		return b.ledger.Transfer(tx, types.ModuleAccount, sender, transfer.Denom, refund)
	})
	if err != nil {
		return nil, err
	}

	b.logger.Debug("transfer cancelled", "id", id, "sender", sender)

	return transfer, nil
}

// CutBatch moves up to MaxBatchSize pool transfers of the token into a new batch,
// highest fee first. It returns nil when the pool holds no transfer of the token.
// The batch times out BatchTimeoutBlocks external chain blocks after the last attested external height.
func (b *Builder) CutBatch(dbTx *bolt.Tx, token ethgo.Address, height uint64) (*types.OutgoingBatch, error) {
	p, err := b.gate.Params(dbTx)
	if err != nil {
		return nil, err
	}

	if !p.BridgeActive {
		return nil, types.ErrBridgeInactive
	}

	var batch *types.OutgoingBatch

	err = state.Update(b.db, dbTx, func(tx *bolt.Tx) error {
		transfers, err := poolTransfers(tx, token)
		if err != nil || len(transfers) == 0 {
			return err
		}

		if uint64(len(transfers)) > p.MaxBatchSize {
			transfers = transfers[:p.MaxBatchSize]
		}

		active, err := b.signers.CurrentSet(tx)
		if err != nil {
			return err
		}

		nonce := getMeta(tx, lastBatchNonceKey) + 1
		pool := tx.Bucket(poolBucket).Bucket(token[:])

		for _, tr := range transfers {
			tr.BatchNonce = nonce

			if err := pool.Delete(common.EncodeUint64ToBytes(tr.ID)); err != nil {
				return err
			}
		}

		batch = &types.OutgoingBatch{
			Nonce:         nonce,
			TokenContract: token,
			Transfers:     transfers,
			Height:        height,
			Timeout:       getMeta(tx, lastExternalHeightKey) + p.BatchTimeoutBlocks,
			ValsetNonce:   active.Nonce,
		}

		if batch.RootHash, err = contractsapi.TransfersRoot(transfers); err != nil {
			return err
		}

		if batch.Checkpoint, err = contractsapi.NewBatchCheckpoint(batch).Hash(); err != nil {
			return err
		}

		if err := putBatch(tx, batch); err != nil {
			return err
		}

		return putMeta(tx, lastBatchNonceKey, nonce)
	})
	if err != nil || batch == nil {
		return nil, err
	}

	metrics.IncrBatchCut(len(batch.Transfers))
	b.logger.Info("batch cut", "token", token, "nonce", batch.Nonce,
		"transfers", len(batch.Transfers), "fee", batch.TotalFee())

	return batch, nil
}

// EndBlock times out batches whose timeout the attested external height has reached and cuts new
// batches on the configured cadence or when the pool of a token is full. Nothing happens while
// the bridge is inactive.
func (b *Builder) EndBlock(dbTx *bolt.Tx, height uint64) (cut []*types.OutgoingBatch,
	timedOut []*types.OutgoingBatch, err error) {
	p, err := b.gate.Params(dbTx)
	if err != nil {
		return nil, nil, err
	}

	if !p.BridgeActive {
		return nil, nil, nil
	}

	err = state.Update(b.db, dbTx, func(tx *bolt.Tx) error {
		batches, err := allBatches(tx)
		if err != nil {
			return err
		}

		externalHeight := getMeta(tx, lastExternalHeightKey)

		for _, batch := range batches {
			if batch.Timeout > externalHeight {
				continue
			}

			if err := b.returnToPool(tx, batch); err != nil {
				return err
			}

			timedOut = append(timedOut, batch)
		}

		counts, err := poolCounts(tx)
		if err != nil {
			return err
		}

		tokens := make([]ethgo.Address, 0, len(counts))
		for token := range counts {
			tokens = append(tokens, token)
		}

		sort.Slice(tokens, func(i, j int) bool {
			return tokens[i].String() < tokens[j].String()
		})

		for _, token := range tokens {
			if height%p.BatchInterval != 0 && uint64(counts[token]) < p.MaxBatchSize {
				continue
			}

			batch, err := b.CutBatch(tx, token, height)
			if err != nil {
				return err
			}

			if batch != nil {
				cut = append(cut, batch)
			}
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	for _, batch := range timedOut {
		metrics.IncrBatchTimedOut()
		b.logger.Info("batch timed out", "token", batch.TokenContract, "nonce", batch.Nonce,
			"timeout", batch.Timeout, "height", height)
	}

	return cut, timedOut, nil
}

// Confirm stores the signature of an orchestrator over a batch checkpoint. The signer must belong
// to the signer set that was active when the batch was cut. Repeated confirmations are ignored.
func (b *Builder) Confirm(dbTx *bolt.Tx, orchestrator, token ethgo.Address, nonce uint64, signature []byte) error {
	return state.Update(b.db, dbTx, func(tx *bolt.Tx) error {
		batch, err := getBatch(tx, token, nonce)
		if err != nil {
			return err
		}

		set, _, err := b.signers.ValidatorSetAt(tx, batch.Height)
		if err != nil {
			return err
		}

		if !set.Includes(orchestrator) {
			return fmt.Errorf("%w: %s did not sign at height %d", types.ErrUnknownOrchestrator, orchestrator, batch.Height)
		}

		signer, err := crypto.RecoverAddress(batch.Checkpoint[:], signature)
		if err != nil || signer != orchestrator {
			return fmt.Errorf("%w: batch %d of %s signature does not belong to %s",
				types.ErrInvalidSignature, nonce, token, orchestrator)
		}

		bucket, err := tx.Bucket(batchSignaturesBucket).CreateBucketIfNotExists(signaturesKey(token, nonce))
		if err != nil {
			return err
		}

		if bucket.Get(orchestrator[:]) != nil {
			return nil
		}

		return bucket.Put(orchestrator[:], signature)
	})
}

// SignedBatch returns the batch with its signatures and whether the signatures reach quorum
// of the signer set the batch was cut under
func (b *Builder) SignedBatch(dbTx *bolt.Tx, token ethgo.Address, nonce uint64) (
	*types.OutgoingBatch, []*types.BatchSignature, bool, error) {
	var (
		batch      *types.OutgoingBatch
		signatures []*types.BatchSignature
		hasQuorum  bool
	)

	err := state.View(b.db, dbTx, func(tx *bolt.Tx) error {
		var err error

		if batch, err = getBatch(tx, token, nonce); err != nil {
			return err
		}

		set, _, err := b.signers.ValidatorSetAt(tx, batch.Height)
		if err != nil {
			return err
		}

		signers := map[ethgo.Address]struct{}{}

		if bucket := tx.Bucket(batchSignaturesBucket).Bucket(signaturesKey(token, nonce)); bucket != nil {
			err = bucket.ForEach(func(k, v []byte) error {
				addr := ethgo.BytesToAddress(k)
				signers[addr] = struct{}{}
				signatures = append(signatures, &types.BatchSignature{
					Orchestrator: addr,
					Signature:    append([]byte{}, v...),
				})

				return nil
			})
			if err != nil {
				return err
			}
		}

		hasQuorum = set.HasQuorum(signers)

		return nil
	})

	return batch, signatures, hasQuorum, err
}

// Executed finalizes a batch the external contract executed. Reverted transfers become vouchers
// redeemable by their intended recipient, every other transfer is burnt from escrow. Source denoms
// stay escrowed since they back the tokens the external contract released. Older batches of the
// same token can no longer execute and go back to the pool.
func (b *Builder) Executed(dbTx *bolt.Tx, token ethgo.Address, nonce uint64,
	reverted []uint64) ([]*types.RevertedVoucher, error) {
	var vouchers []*types.RevertedVoucher

	err := state.Update(b.db, dbTx, func(tx *bolt.Tx) error {
		batch, err := getBatch(tx, token, nonce)
		if err != nil {
			return err
		}

		revertedIDs := make(map[uint64]struct{}, len(reverted))
		for _, id := range reverted {
			revertedIDs[id] = struct{}{}
		}

		for _, tr := range batch.Transfers {
			burn := tr.Fee

			if _, ok := revertedIDs[tr.ID]; ok {
				voucher, err := b.createVoucher(tx, tr)
				if err != nil {
					return err
				}

				vouchers = append(vouchers, voucher)
			} else {
				burn = new(uint256.Int).Add(tr.Amount, tr.Fee)
			}

			if burn.IsZero() || types.IsSourceDenom(tr.Denom) {
				continue
			}

			if err := b.ledger.Burn(tx, types.ModuleAccount, tr.Denom, burn); err != nil {
				return fmt.Errorf("failed to burn escrow of transfer %d: %w", tr.ID, err)
			}
		}

		if err := deleteBatch(tx, batch); err != nil {
			return err
		}

		older, err := tokenBatches(tx, token)
		if err != nil {
			return err
		}

		for _, o := range older {
			if o.Nonce > nonce {
				continue
			}

			if err := b.returnToPool(tx, o); err != nil {
				return err
			}

			b.logger.Debug("older batch cancelled", "token", token, "nonce", o.Nonce, "executed", nonce)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncrBatchExecuted()
	b.logger.Info("batch executed", "token", token, "nonce", nonce, "reverted", len(vouchers))

	return vouchers, nil
}

// Batches returns every batch that was cut and not yet executed or timed out
func (b *Builder) Batches(dbTx *bolt.Tx) ([]*types.OutgoingBatch, error) {
	var batches []*types.OutgoingBatch

	err := state.View(b.db, dbTx, func(tx *bolt.Tx) error {
		var err error

		batches, err = allBatches(tx)

		return err
	})

	return batches, err
}

// UnsignedBatches returns the batches the orchestrator has not signed yet
func (b *Builder) UnsignedBatches(dbTx *bolt.Tx, orchestrator ethgo.Address) ([]*types.OutgoingBatch, error) {
	var result []*types.OutgoingBatch

	err := state.View(b.db, dbTx, func(tx *bolt.Tx) error {
		batches, err := allBatches(tx)
		if err != nil {
			return err
		}

		for _, batch := range batches {
			bucket := tx.Bucket(batchSignaturesBucket).Bucket(signaturesKey(batch.TokenContract, batch.Nonce))
			if bucket == nil || bucket.Get(orchestrator[:]) == nil {
				result = append(result, batch)
			}
		}

		return nil
	})

	return result, err
}

// PendingTransfers returns the pool transfers of the token, or of every token for the zero address
func (b *Builder) PendingTransfers(dbTx *bolt.Tx, token ethgo.Address) ([]*types.OutgoingTransfer, error) {
	var result []*types.OutgoingTransfer

	err := state.View(b.db, dbTx, func(tx *bolt.Tx) error {
		if token != ethgo.ZeroAddress {
			var err error

			result, err = poolTransfers(tx, token)

			return err
		}

		return tx.Bucket(poolBucket).ForEach(func(k, _ []byte) error {
			transfers, err := poolTransfers(tx, ethgo.BytesToAddress(k))
			if err != nil {
				return err
			}

			result = append(result, transfers...)

			return nil
		})
	})

	return result, err
}

// ObserveExternalHeight records the external chain height of an attested event. The recorded
// height only moves forward and drives batch timeouts.
func (b *Builder) ObserveExternalHeight(dbTx *bolt.Tx, height uint64) error {
	return state.Update(b.db, dbTx, func(tx *bolt.Tx) error {
		if height <= getMeta(tx, lastExternalHeightKey) {
			return nil
		}

		return putMeta(tx, lastExternalHeightKey, height)
	})
}

// LastExternalHeight returns the highest attested external chain height
func (b *Builder) LastExternalHeight(dbTx *bolt.Tx) (uint64, error) {
	var height uint64

	err := state.View(b.db, dbTx, func(tx *bolt.Tx) error {
		height = getMeta(tx, lastExternalHeightKey)

		return nil
	})

	return height, err
}

func (b *Builder) validateTransfer(tx *bolt.Tx, recipient ethgo.Address, denom string, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("%w: amount must be positive", types.ErrInvalidRequest)
	}

	if recipient == ethgo.ZeroAddress {
		return fmt.Errorf("%w: recipient must not be the zero address", types.ErrInvalidRequest)
	}

	_, err := b.resolveToken(tx, denom)

	return err
}

// resolveToken returns the external chain token contract transfers of the denom are paid out in.
// Gravity denoms carry their contract, source denoms need a deployed external token.
func (b *Builder) resolveToken(tx *bolt.Tx, denom string) (ethgo.Address, error) {
	switch {
	case types.IsGravityDenom(denom):
		return types.GravityTokenContract(denom)
	case types.IsSourceDenom(denom):
		token, err := b.tokens.ExternalToken(tx, denom)
		if err != nil {
			return ethgo.ZeroAddress, fmt.Errorf("%w: %w", types.ErrInvalidRequest, err)
		}

		return token, nil
	default:
		return ethgo.ZeroAddress, fmt.Errorf("%w: %s can not be sent to the external chain",
			types.ErrInvalidRequest, denom)
	}
}

func (b *Builder) enqueue(tx *bolt.Tx, sender, recipient ethgo.Address, denom string,
	amount, fee *uint256.Int) (*types.OutgoingTransfer, error) {
	token, err := b.resolveToken(tx, denom)
	if err != nil {
		return nil, err
	}

	if fee == nil {
		fee = new(uint256.Int)
	}

	transfer := &types.OutgoingTransfer{
		ID:            getMeta(tx, lastTransferIDKey) + 1,
		Sender:        sender,
		Recipient:     recipient,
		TokenContract: token,
		Denom:         denom,
		Amount:        amount.Clone(),
		Fee:           fee.Clone(),
	}

	if err := putPoolTransfer(tx, transfer); err != nil {
		return nil, err
	}

	if err := putMeta(tx, lastTransferIDKey, transfer.ID); err != nil {
		return nil, err
	}

	b.logger.Debug("transfer enqueued", "id", transfer.ID, "sender", sender, "token", token, "amount", amount)

	return transfer, nil
}

// returnToPool puts the transfers of a batch back into the pool and drops the batch with its signatures
func (b *Builder) returnToPool(tx *bolt.Tx, batch *types.OutgoingBatch) error {
	for _, tr := range batch.Transfers {
		tr.BatchNonce = 0

		if err := putPoolTransfer(tx, tr); err != nil {
			return err
		}
	}

	return deleteBatch(tx, batch)
}

func poolTransfers(tx *bolt.Tx, token ethgo.Address) ([]*types.OutgoingTransfer, error) {
	bucket := tx.Bucket(poolBucket).Bucket(token[:])
	if bucket == nil {
		return nil, nil
	}

	var transfers []*types.OutgoingTransfer

	err := bucket.ForEach(func(_, v []byte) error {
		var tr *types.OutgoingTransfer
		if err := json.Unmarshal(v, &tr); err != nil {
			return err
		}

		transfers = append(transfers, tr)

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(transfers, func(i, j int) bool {
		if c := transfers[i].Fee.Cmp(transfers[j].Fee); c != 0 {
			return c > 0
		}

		return transfers[i].ID < transfers[j].ID
	})

	return transfers, nil
}

func poolCounts(tx *bolt.Tx) (map[ethgo.Address]int, error) {
	counts := map[ethgo.Address]int{}

	err := tx.Bucket(poolBucket).ForEach(func(k, _ []byte) error {
		if n := tx.Bucket(poolBucket).Bucket(k).Stats().KeyN; n > 0 {
			counts[ethgo.BytesToAddress(k)] = n
		}

		return nil
	})

	return counts, err
}

func findPoolTransfer(tx *bolt.Tx, id uint64) (*types.OutgoingTransfer, *bolt.Bucket, error) {
	key := common.EncodeUint64ToBytes(id)
	pool := tx.Bucket(poolBucket)
	c := pool.Cursor()

	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		bucket := pool.Bucket(k)
		if bucket == nil {
			continue
		}

		if raw := bucket.Get(key); raw != nil {
			var tr *types.OutgoingTransfer
			if err := json.Unmarshal(raw, &tr); err != nil {
				return nil, nil, err
			}

			return tr, bucket, nil
		}
	}

	return nil, nil, fmt.Errorf("%w: transfer %d is not in the pool", types.ErrNotFound, id)
}

func putPoolTransfer(tx *bolt.Tx, tr *types.OutgoingTransfer) error {
	raw, err := json.Marshal(tr)
	if err != nil {
		return err
	}

	bucket, err := tx.Bucket(poolBucket).CreateBucketIfNotExists(tr.TokenContract[:])
	if err != nil {
		return fmt.Errorf("failed to create pool bucket of %s: %w", tr.TokenContract, err)
	}

	return bucket.Put(common.EncodeUint64ToBytes(tr.ID), raw)
}

func getBatch(tx *bolt.Tx, token ethgo.Address, nonce uint64) (*types.OutgoingBatch, error) {
	bucket := tx.Bucket(batchesBucket).Bucket(token[:])
	if bucket == nil {
		return nil, fmt.Errorf("%w: batch %d of %s", types.ErrNotFound, nonce, token)
	}

	raw := bucket.Get(common.EncodeUint64ToBytes(nonce))
	if raw == nil {
		return nil, fmt.Errorf("%w: batch %d of %s", types.ErrNotFound, nonce, token)
	}

	var batch *types.OutgoingBatch
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, err
	}

	return batch, nil
}

func putBatch(tx *bolt.Tx, batch *types.OutgoingBatch) error {
	raw, err := json.Marshal(batch)
	if err != nil {
		return err
	}

	bucket, err := tx.Bucket(batchesBucket).CreateBucketIfNotExists(batch.TokenContract[:])
	if err != nil {
		return fmt.Errorf("failed to create batches bucket of %s: %w", batch.TokenContract, err)
	}

	return bucket.Put(common.EncodeUint64ToBytes(batch.Nonce), raw)
}

func deleteBatch(tx *bolt.Tx, batch *types.OutgoingBatch) error {
	if bucket := tx.Bucket(batchesBucket).Bucket(batch.TokenContract[:]); bucket != nil {
		if err := bucket.Delete(common.EncodeUint64ToBytes(batch.Nonce)); err != nil {
			return err
		}
	}

	key := signaturesKey(batch.TokenContract, batch.Nonce)
	if tx.Bucket(batchSignaturesBucket).Bucket(key) == nil {
		return nil
	}

	return tx.Bucket(batchSignaturesBucket).DeleteBucket(key)
}

func tokenBatches(tx *bolt.Tx, token ethgo.Address) ([]*types.OutgoingBatch, error) {
	bucket := tx.Bucket(batchesBucket).Bucket(token[:])
	if bucket == nil {
		return nil, nil
	}

	var batches []*types.OutgoingBatch

	err := bucket.ForEach(func(_, v []byte) error {
		var batch *types.OutgoingBatch
		if err := json.Unmarshal(v, &batch); err != nil {
			return err
		}

		batches = append(batches, batch)

		return nil
	})

	return batches, err
}

func allBatches(tx *bolt.Tx) ([]*types.OutgoingBatch, error) {
	var batches []*types.OutgoingBatch

	err := tx.Bucket(batchesBucket).ForEach(func(k, _ []byte) error {
		tb, err := tokenBatches(tx, ethgo.BytesToAddress(k))
		if err != nil {
			return err
		}

		batches = append(batches, tb...)

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(batches, func(i, j int) bool {
		return batches[i].Nonce < batches[j].Nonce
	})

	return batches, nil
}

func signaturesKey(token ethgo.Address, nonce uint64) []byte {
	return append(append([]byte{}, token[:]...), common.EncodeUint64ToBytes(nonce)...)
}

func getMeta(tx *bolt.Tx, key []byte) uint64 {
	if v := tx.Bucket(batchMetaBucket).Get(key); v != nil {
		return common.EncodeBytesToUint64(v)
	}

	return 0
}

func putMeta(tx *bolt.Tx, key []byte, value uint64) error {
	return tx.Bucket(batchMetaBucket).Put(key, common.EncodeUint64ToBytes(value))
}
