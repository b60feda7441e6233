package signerset

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/hashicorp/go-hclog"
	bolt "go.etcd.io/bbolt"

	"github.com/furyaxyz/elysium-bridge/bridge/attestation"
	"github.com/furyaxyz/elysium-bridge/bridge/contractsapi"
	"github.com/furyaxyz/elysium-bridge/bridge/params"
	"github.com/furyaxyz/elysium-bridge/bridge/state"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
	"github.com/furyaxyz/elysium-bridge/bridge/validator"
	"github.com/furyaxyz/elysium-bridge/crypto"
	"github.com/furyaxyz/elysium-bridge/helper/common"
)

var (
	// bucket to store checkpoints by nonce
	checkpointsBucket = []byte("checkpoints")
	// bucket to store checkpoint confirmations, nested per nonce
	confirmationsBucket = []byte("checkpointConfirmations")
	// bucket to store activation heights
	activationsBucket = []byte("checkpointActivations")
	// bucket to store last proposed, active and observed nonces
	signerSetMetaBucket = []byte("signerSetMeta")

	lastNonceKey     = []byte("lastNonce")
	activeNonceKey   = []byte("activeNonce")
	observedNonceKey = []byte("observedNonce")

	errNoActiveCheckpoint = errors.New("no active checkpoint")
	// maximum number of signers in a checkpoint
	maxSignerSetSize = 150
)

/*
Bolt DB schema:

checkpoints/
|--> nonce -> *Checkpoint (json marshalled)

checkpoint confirmations/
|--> nonce --> orchestrator -> signature

checkpoint activations/
|--> activation height -> nonce

signer set meta/
|--> "lastNonce" | "activeNonce" | "observedNonce" -> nonce
*/

// Checkpoint is a versioned signer set with the hash the external contract verifies signatures against
type Checkpoint struct {
	Nonce   uint64                `json:"nonce"`
	Members []*types.ValsetMember `json:"members"`
	Hash    ethgo.Hash            `json:"hash"`
	// Height is the block of the proposal
	Height uint64 `json:"height"`
	// Active is set once a quorum of the previously active set confirmed the checkpoint
	Active           bool   `json:"active"`
	ActivationHeight uint64 `json:"activationHeight,omitempty"`
	// Observed is set when the external contract reported the checkpoint
	Observed bool `json:"observed"`
}

// Accounts returns the members as validator metadata
func (c *Checkpoint) Accounts() validator.AccountSet {
	accounts := make(validator.AccountSet, len(c.Members))
	for i, m := range c.Members {
		accounts[i] = validator.NewValidatorMetadata(m.Address, m.Power)
	}

	return accounts
}

// Manager exclusively owns the versioned signer set and its activation history
type Manager struct {
	db           *bolt.DB
	gate         *params.Gate
	attestations *attestation.Store
	logger       hclog.Logger
}

// NewManager creates the signer set manager and its buckets
func NewManager(db *bolt.DB, dbTx *bolt.Tx, gate *params.Gate,
	attestations *attestation.Store, logger hclog.Logger) (*Manager, error) {
	m := &Manager{
		db:           db,
		gate:         gate,
		attestations: attestations,
		logger:       logger.Named("signer_set"),
	}

	return m, state.CreateBuckets(db, dbTx,
		checkpointsBucket, confirmationsBucket, activationsBucket, signerSetMetaBucket)
}

// InitGenesis stores the genesis checkpoint with nonce 0, active from height 0
func (m *Manager) InitGenesis(dbTx *bolt.Tx, members []*types.ValsetMember) (*Checkpoint, error) {
	sorted, err := normalize(members)
	if err != nil {
		return nil, err
	}

	hash, err := contractsapi.NewValsetCheckpoint(0, sorted).Hash()
	if err != nil {
		return nil, err
	}

	cp := &Checkpoint{
		Nonce:    0,
		Members:  sorted,
		Hash:     hash,
		Active:   true,
		Observed: true,
	}

	err = state.Update(m.db, dbTx, func(tx *bolt.Tx) error {
		if err := putCheckpoint(tx, cp); err != nil {
			return err
		}

		if err := tx.Bucket(activationsBucket).Put(
			common.EncodeUint64ToBytes(0), common.EncodeUint64ToBytes(0)); err != nil {
			return err
		}

		meta := tx.Bucket(signerSetMetaBucket)
		for _, key := range [][]byte{lastNonceKey, activeNonceKey, observedNonceKey} {
			if err := meta.Put(key, common.EncodeUint64ToBytes(0)); err != nil {
				return err
			}
		}

		return nil
	})

	return cp, err
}

// CurrentSet returns the active checkpoint
func (m *Manager) CurrentSet(dbTx *bolt.Tx) (*Checkpoint, error) {
	var cp *Checkpoint

	err := state.View(m.db, dbTx, func(tx *bolt.Tx) error {
		raw := tx.Bucket(signerSetMetaBucket).Get(activeNonceKey)
		if raw == nil {
			return errNoActiveCheckpoint
		}

		var err error

		cp, err = getCheckpoint(tx, common.EncodeBytesToUint64(raw))

		return err
	})

	return cp, err
}

// ValidatorSet returns the active checkpoint as a validator set with the current quorum
func (m *Manager) ValidatorSet(dbTx *bolt.Tx) (validator.ValidatorSet, error) {
	cp, err := m.CurrentSet(dbTx)
	if err != nil {
		return nil, err
	}

	return m.toValidatorSet(dbTx, cp)
}

// SetAt returns the checkpoint that was active at the given height
func (m *Manager) SetAt(dbTx *bolt.Tx, height uint64) (*Checkpoint, error) {
	var cp *Checkpoint

	err := state.View(m.db, dbTx, func(tx *bolt.Tx) error {
		key := common.EncodeUint64ToBytes(height)
		c := tx.Bucket(activationsBucket).Cursor()

		k, v := c.Seek(key)
		if k == nil || common.EncodeBytesToUint64(k) > height {
			k, v = c.Prev()
		}

		if k == nil {
			return fmt.Errorf("%w: at height %d", errNoActiveCheckpoint, height)
		}

		var err error

		cp, err = getCheckpoint(tx, common.EncodeBytesToUint64(v))

		return err
	})

	return cp, err
}

// ValidatorSetAt returns the validator set that was active at the given height
func (m *Manager) ValidatorSetAt(dbTx *bolt.Tx, height uint64) (validator.ValidatorSet, *Checkpoint, error) {
	cp, err := m.SetAt(dbTx, height)
	if err != nil {
		return nil, nil, err
	}

	set, err := m.toValidatorSet(dbTx, cp)

	return set, cp, err
}

// ProposeUpdate creates the next checkpoint from the given members.
// A proposal equal to the active set is rejected.
func (m *Manager) ProposeUpdate(dbTx *bolt.Tx, members []*types.ValsetMember, height uint64) (*Checkpoint, error) {
	sorted, err := normalize(members)
	if err != nil {
		return nil, err
	}

	current, err := m.CurrentSet(dbTx)
	if err != nil {
		return nil, err
	}

	if current.Accounts().Equals(toAccounts(sorted)) {
		return nil, fmt.Errorf("%w: proposed signer set equals the active checkpoint %d",
			types.ErrInvalidRequest, current.Nonce)
	}

	var cp *Checkpoint

	err = state.Update(m.db, dbTx, func(tx *bolt.Tx) error {
		nonce := getMeta(tx, lastNonceKey) + 1

		hash, err := contractsapi.NewValsetCheckpoint(nonce, sorted).Hash()
		if err != nil {
			return err
		}

		cp = &Checkpoint{Nonce: nonce, Members: sorted, Hash: hash, Height: height}

		if err := putCheckpoint(tx, cp); err != nil {
			return err
		}

		return putMeta(tx, lastNonceKey, nonce)
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("signer set update proposed", "nonce", cp.Nonce, "members", len(cp.Members), "hash", cp.Hash)

	return cp, nil
}

// ConfirmValset records the signature of an orchestrator of the active set over a pending checkpoint.
// The checkpoint activates once the confirmations reach quorum, superseding lower pending nonces.
func (m *Manager) ConfirmValset(dbTx *bolt.Tx, orchestrator ethgo.Address, nonce uint64,
	signature []byte, height uint64) (*Checkpoint, bool, error) {
	var (
		cp        *Checkpoint
		activated bool
	)

	err := state.Update(m.db, dbTx, func(tx *bolt.Tx) error {
		var err error

		if cp, err = getCheckpoint(tx, nonce); err != nil {
			return err
		}

		if cp.Active || nonce <= getMeta(tx, activeNonceKey) {
			return fmt.Errorf("%w: checkpoint %d is not pending", types.ErrInvalidRequest, nonce)
		}

		signer, err := crypto.RecoverAddress(cp.Hash[:], signature)
		if err != nil || signer != orchestrator {
			return fmt.Errorf("%w: checkpoint %d signature does not belong to %s",
				types.ErrInvalidSignature, nonce, orchestrator)
		}

		set, err := m.ValidatorSet(tx)
		if err != nil {
			return err
		}

		claim, err := json.Marshal(nonce)
		if err != nil {
			return err
		}

		res, err := m.attestations.SubmitVote(tx, types.ValsetSpace, nonce, orchestrator, cp.Hash, claim, set, height)
		if err != nil {
			return err
		}

		bucket, err := tx.Bucket(confirmationsBucket).CreateBucketIfNotExists(common.EncodeUint64ToBytes(nonce))
		if err != nil {
			return err
		}

		if err := bucket.Put(orchestrator[:], signature); err != nil {
			return err
		}

		if !res.Resolved {
			return nil
		}

		activated = true

		return m.attestations.ApplySuperseding(tx, types.ValsetSpace, nonce,
			func(tx *bolt.Tx, _ *attestation.Attestation, _ json.RawMessage) error {
				return m.activate(tx, cp, height)
			})
	})
	if err != nil {
		return nil, false, err
	}

	if activated {
		m.logger.Info("checkpoint activated", "nonce", cp.Nonce, "height", height, "hash", cp.Hash)
	}

	return cp, activated, nil
}

// Confirmations returns the signatures collected for a checkpoint
func (m *Manager) Confirmations(dbTx *bolt.Tx, nonce uint64) (map[ethgo.Address][]byte, error) {
	result := map[ethgo.Address][]byte{}

	err := state.View(m.db, dbTx, func(tx *bolt.Tx) error {
		bucket := tx.Bucket(confirmationsBucket).Bucket(common.EncodeUint64ToBytes(nonce))
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			result[ethgo.BytesToAddress(k)] = append([]byte{}, v...)

			return nil
		})
	})

	return result, err
}

// Pending returns the checkpoints that are waiting for confirmations and were not signed by the orchestrator
func (m *Manager) Pending(dbTx *bolt.Tx, orchestrator ethgo.Address) ([]*Checkpoint, error) {
	var result []*Checkpoint

	err := state.View(m.db, dbTx, func(tx *bolt.Tx) error {
		active := getMeta(tx, activeNonceKey)
		c := tx.Bucket(checkpointsBucket).Cursor()

		for k, v := c.Seek(common.EncodeUint64ToBytes(active + 1)); k != nil; k, v = c.Next() {
			nonce := common.EncodeBytesToUint64(k)

			if confirmations := tx.Bucket(confirmationsBucket).Bucket(k); confirmations != nil &&
				confirmations.Get(orchestrator[:]) != nil {
				continue
			}

			var cp *Checkpoint
			if err := json.Unmarshal(v, &cp); err != nil {
				return fmt.Errorf("failed to decode checkpoint %d: %w", nonce, err)
			}

			result = append(result, cp)
		}

		return nil
	})

	return result, err
}

// MarkObserved records that the external contract switched to the checkpoint
func (m *Manager) MarkObserved(dbTx *bolt.Tx, nonce uint64, members []*types.ValsetMember) error {
	return state.Update(m.db, dbTx, func(tx *bolt.Tx) error {
		cp, err := getCheckpoint(tx, nonce)
		if err != nil {
			return err
		}

		if !toAccounts(cp.Members).Equals(toAccounts(members)) {
			m.logger.Warn("observed checkpoint members differ from the proposal", "nonce", nonce)
		}

		cp.Observed = true

		if err := putCheckpoint(tx, cp); err != nil {
			return err
		}

		if nonce > getMeta(tx, observedNonceKey) {
			return putMeta(tx, observedNonceKey, nonce)
		}

		return nil
	})
}

// Checkpoint returns the checkpoint with the given nonce
func (m *Manager) Checkpoint(dbTx *bolt.Tx, nonce uint64) (*Checkpoint, error) {
	var cp *Checkpoint

	err := state.View(m.db, dbTx, func(tx *bolt.Tx) error {
		var err error

		cp, err = getCheckpoint(tx, nonce)

		return err
	})

	return cp, err
}

// LastObservedNonce returns the highest checkpoint nonce reported by the external contract
func (m *Manager) LastObservedNonce(dbTx *bolt.Tx) (uint64, error) {
	var nonce uint64

	err := state.View(m.db, dbTx, func(tx *bolt.Tx) error {
		nonce = getMeta(tx, observedNonceKey)

		return nil
	})

	return nonce, err
}

func (m *Manager) activate(tx *bolt.Tx, cp *Checkpoint, height uint64) error {
	cp.Active = true
	cp.ActivationHeight = height

	if err := putCheckpoint(tx, cp); err != nil {
		return err
	}

	if err := tx.Bucket(activationsBucket).Put(
		common.EncodeUint64ToBytes(height), common.EncodeUint64ToBytes(cp.Nonce)); err != nil {
		return err
	}

	return putMeta(tx, activeNonceKey, cp.Nonce)
}

func (m *Manager) toValidatorSet(dbTx *bolt.Tx, cp *Checkpoint) (validator.ValidatorSet, error) {
	p, err := m.gate.Params(dbTx)
	if err != nil {
		return nil, err
	}

	return validator.NewValidatorSet(cp.Accounts(), p.Quorum()), nil
}

// normalize validates the members and orders them by power desc, then address
func normalize(members []*types.ValsetMember) ([]*types.ValsetMember, error) {
	accounts := toAccounts(members)
	if err := accounts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidRequest, err)
	}

	if len(accounts) > maxSignerSetSize {
		return nil, fmt.Errorf("%w: signer set size %d exceeds %d", types.ErrInvalidRequest, len(accounts), maxSignerSetSize)
	}

	sorted := validator.NewValidatorStakeMap(accounts).GetSorted(maxSignerSetSize)
	result := make([]*types.ValsetMember, len(sorted))

	for i, v := range sorted {
		result[i] = &types.ValsetMember{Address: v.Address, Power: v.VotingPower.Uint64()}
	}

	return result, nil
}

func toAccounts(members []*types.ValsetMember) validator.AccountSet {
	accounts := make(validator.AccountSet, len(members))
	for i, m := range members {
		accounts[i] = &validator.ValidatorMetadata{
			Address:     m.Address,
			VotingPower: new(big.Int).SetUint64(m.Power),
			IsActive:    m.Power > 0,
		}
	}

	return accounts
}

func getCheckpoint(tx *bolt.Tx, nonce uint64) (*Checkpoint, error) {
	raw := tx.Bucket(checkpointsBucket).Get(common.EncodeUint64ToBytes(nonce))
	if raw == nil {
		return nil, fmt.Errorf("%w: checkpoint %d", types.ErrNotFound, nonce)
	}

	var cp *Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %d: %w", nonce, err)
	}

	return cp, nil
}

func putCheckpoint(tx *bolt.Tx, cp *Checkpoint) error {
	raw, err := json.Marshal(cp)
	if err != nil {
		return err
	}

	return tx.Bucket(checkpointsBucket).Put(common.EncodeUint64ToBytes(cp.Nonce), raw)
}

func getMeta(tx *bolt.Tx, key []byte) uint64 {
	if v := tx.Bucket(signerSetMetaBucket).Get(key); v != nil {
		return common.EncodeBytesToUint64(v)
	}

	return 0
}

func putMeta(tx *bolt.Tx, key []byte, nonce uint64) error {
	return tx.Bucket(signerSetMetaBucket).Put(key, common.EncodeUint64ToBytes(nonce))
}
