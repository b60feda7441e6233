package attestation

import (
	"encoding/json"
	"fmt"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/hashicorp/go-hclog"
	bolt "go.etcd.io/bbolt"

	"github.com/furyaxyz/elysium-bridge/bridge/state"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
	"github.com/furyaxyz/elysium-bridge/bridge/validator"
	"github.com/furyaxyz/elysium-bridge/helper/common"
)

var (
	// bucket to store attestations, nested per nonce space
	attestationsBucket = []byte("attestations")
	// bucket to store the last applied nonce per nonce space
	lastAppliedBucket = []byte("lastAppliedNonce")
)

/*
Bolt DB schema:

attestations/
|--> space --> nonce -> *Attestation (json marshalled)

last applied nonce/
|--> space -> nonce
*/

// SubmitResult is the outcome of an accepted claim
type SubmitResult struct {
	Accepted bool
	Resolved bool
	// Halted is set when this vote moved the attestation into the halted state
	Halted bool
	Hash   ethgo.Hash
	Status Status
}

// ApplyFn applies a resolved claim to chain state. It is invoked at most once per nonce.
type ApplyFn func(tx *bolt.Tx, att *Attestation, claim json.RawMessage) error

// Store exclusively owns attestation records and the applied flags of every nonce space
type Store struct {
	db     *bolt.DB
	logger hclog.Logger
}

// NewStore creates the attestation store and its buckets
func NewStore(db *bolt.DB, dbTx *bolt.Tx, logger hclog.Logger) (*Store, error) {
	s := &Store{db: db, logger: logger.Named("attestation")}

	return s, state.CreateBuckets(db, dbTx, attestationsBucket, lastAppliedBucket)
}

// SubmitVote records the claim of an orchestrator for a nonce of a space.
// The validator set is bound to the nonce when its first claim arrives.
func (s *Store) SubmitVote(dbTx *bolt.Tx, space string, nonce uint64, orchestrator ethgo.Address,
	hash ethgo.Hash, claim json.RawMessage, set validator.ValidatorSet, height uint64) (*SubmitResult, error) {
	lastApplied, err := s.LastAppliedNonce(dbTx, space)
	if err != nil {
		return nil, err
	}

	if nonce <= lastApplied {
		return nil, fmt.Errorf("%w: nonce %d of %s is already applied (last applied %d)",
			types.ErrDuplicateClaim, nonce, space, lastApplied)
	}

	att, err := s.Get(dbTx, space, nonce)
	if err != nil {
		return nil, err
	}

	if att == nil {
		att = newAttestation(space, nonce, set, height)
	}

	if !att.Validators.ContainsAddress(orchestrator) {
		return nil, fmt.Errorf("%w: %s on nonce %d of %s",
			types.ErrUnknownOrchestrator, orchestrator, nonce, space)
	}

	if att.HasVoted(orchestrator) {
		return nil, fmt.Errorf("%w: %s already voted on nonce %d of %s",
			types.ErrDuplicateClaim, orchestrator, nonce, space)
	}

	att.Votes = append(att.Votes, &Vote{Orchestrator: orchestrator, Hash: hash, Height: height})

	if _, exists := att.Claims[hash]; !exists {
		att.Claims[hash] = claim
	}

	prevStatus := att.Status
	halted := att.tally()

	if err := s.put(dbTx, att); err != nil {
		return nil, err
	}

	if halted {
		s.logger.Error("conflicting attestation, nonce processing halted",
			"critical", true, "space", space, "nonce", nonce, "hashes", att.HaltedHashes)
	} else if prevStatus == StatusPending && att.Status == StatusResolved {
		s.logger.Debug("attestation resolved", "space", space, "nonce", nonce, "hash", att.ResolvedHash)
	}

	return &SubmitResult{
		Accepted: true,
		Resolved: att.Status == StatusResolved,
		Halted:   halted,
		Hash:     hash,
		Status:   att.Status,
	}, nil
}

// CheckStream returns ErrConflictingAttestation when the next nonce of the space is halted
func (s *Store) CheckStream(dbTx *bolt.Tx, space string) error {
	lastApplied, err := s.LastAppliedNonce(dbTx, space)
	if err != nil {
		return err
	}

	att, err := s.Get(dbTx, space, lastApplied+1)
	if err != nil {
		return err
	}

	if att != nil && att.Status == StatusHalted {
		return fmt.Errorf("%w: nonce %d of %s, hashes %v",
			types.ErrConflictingAttestation, att.Nonce, space, att.HaltedHashes)
	}

	return nil
}

// ProcessObserved applies resolved attestations strictly in nonce order, starting right after
// the last applied nonce and stopping at the first nonce that is missing, pending or halted.
func (s *Store) ProcessObserved(dbTx *bolt.Tx, space string, apply ApplyFn) ([]uint64, error) {
	var applied []uint64

	err := state.Update(s.db, dbTx, func(tx *bolt.Tx) error {
		lastApplied, err := s.LastAppliedNonce(tx, space)
		if err != nil {
			return err
		}

		for nonce := lastApplied + 1; ; nonce++ {
			att, err := s.Get(tx, space, nonce)
			if err != nil {
				return err
			}

			if att == nil || att.Status != StatusResolved || att.Applied {
				return nil
			}

			if claim, ok := att.ResolvedClaim(); ok {
				if err := apply(tx, att, claim); err != nil {
					return fmt.Errorf("failed to apply nonce %d of %s: %w", nonce, space, err)
				}
			}

			att.Applied = true

			if err := s.put(tx, att); err != nil {
				return err
			}

			if err := s.setLastApplied(tx, space, nonce); err != nil {
				return err
			}

			applied = append(applied, nonce)
		}
	})

	return applied, err
}

// ApplySuperseding applies a resolved attestation that supersedes every lower nonce of the space.
// Lower nonces that were never applied can no longer be claimed.
func (s *Store) ApplySuperseding(dbTx *bolt.Tx, space string, nonce uint64, apply ApplyFn) error {
	return state.Update(s.db, dbTx, func(tx *bolt.Tx) error {
		lastApplied, err := s.LastAppliedNonce(tx, space)
		if err != nil {
			return err
		}

		if nonce <= lastApplied {
			return fmt.Errorf("%w: nonce %d of %s is already superseded", types.ErrDuplicateClaim, nonce, space)
		}

		att, err := s.Get(tx, space, nonce)
		if err != nil {
			return err
		}

		if att == nil || att.Status != StatusResolved {
			return fmt.Errorf("%w: nonce %d of %s is not resolved", types.ErrInvalidRequest, nonce, space)
		}

		if claim, ok := att.ResolvedClaim(); ok {
			if err := apply(tx, att, claim); err != nil {
				return fmt.Errorf("failed to apply nonce %d of %s: %w", nonce, space, err)
			}
		}

		att.Applied = true

		if err := s.put(tx, att); err != nil {
			return err
		}

		return s.setLastApplied(tx, space, nonce)
	})
}

// ResolveHalted is the manual recovery of a halted nonce. The zero hash skips the nonce.
func (s *Store) ResolveHalted(dbTx *bolt.Tx, space string, nonce uint64, hash ethgo.Hash) error {
	att, err := s.Get(dbTx, space, nonce)
	if err != nil {
		return err
	}

	if att == nil {
		return fmt.Errorf("%w: attestation %d of %s", types.ErrNotFound, nonce, space)
	}

	if att.Status != StatusHalted {
		return fmt.Errorf("%w: attestation %d of %s is %s", types.ErrInvalidRequest, nonce, space, att.Status)
	}

	if hash != ethgo.ZeroHash {
		if _, ok := att.Claims[hash]; !ok {
			return fmt.Errorf("%w: hash %s was not claimed on nonce %d", types.ErrInvalidRequest, hash, nonce)
		}
	}

	att.Status = StatusResolved
	att.ResolvedHash = hash

	s.logger.Warn("halted attestation resolved manually", "space", space, "nonce", nonce, "hash", hash)

	return s.put(dbTx, att)
}

// Get returns the attestation of a nonce, nil if no claim was submitted
func (s *Store) Get(dbTx *bolt.Tx, space string, nonce uint64) (*Attestation, error) {
	var att *Attestation

	err := state.View(s.db, dbTx, func(tx *bolt.Tx) error {
		bucket := tx.Bucket(attestationsBucket).Bucket([]byte(space))
		if bucket == nil {
			return nil
		}

		raw := bucket.Get(common.EncodeUint64ToBytes(nonce))
		if raw == nil {
			return nil
		}

		return json.Unmarshal(raw, &att)
	})

	return att, err
}

// List returns all attestations of a space ordered by nonce
func (s *Store) List(dbTx *bolt.Tx, space string) ([]*Attestation, error) {
	result := []*Attestation{}

	err := state.View(s.db, dbTx, func(tx *bolt.Tx) error {
		bucket := tx.Bucket(attestationsBucket).Bucket([]byte(space))
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(_, v []byte) error {
			var att *Attestation
			if err := json.Unmarshal(v, &att); err != nil {
				return err
			}

			result = append(result, att)

			return nil
		})
	})

	return result, err
}

// LastAppliedNonce returns the last nonce of the space that was applied
func (s *Store) LastAppliedNonce(dbTx *bolt.Tx, space string) (uint64, error) {
	var nonce uint64

	err := state.View(s.db, dbTx, func(tx *bolt.Tx) error {
		if v := tx.Bucket(lastAppliedBucket).Get([]byte(space)); v != nil {
			nonce = common.EncodeBytesToUint64(v)
		}

		return nil
	})

	return nonce, err
}

// SetLastAppliedNonce moves the applied cursor of a space, used by genesis import
func (s *Store) SetLastAppliedNonce(dbTx *bolt.Tx, space string, nonce uint64) error {
	return state.Update(s.db, dbTx, func(tx *bolt.Tx) error {
		return s.setLastApplied(tx, space, nonce)
	})
}

// Prune deletes applied attestations of a space with a nonce lower than below
func (s *Store) Prune(dbTx *bolt.Tx, space string, below uint64) (int, error) {
	pruned := 0

	err := state.Update(s.db, dbTx, func(tx *bolt.Tx) error {
		bucket := tx.Bucket(attestationsBucket).Bucket([]byte(space))
		if bucket == nil {
			return nil
		}

		lastApplied, err := s.LastAppliedNonce(tx, space)
		if err != nil {
			return err
		}

		var keys [][]byte

		c := bucket.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			nonce := common.EncodeBytesToUint64(k)
			if nonce >= below || nonce > lastApplied {
				break
			}

			keys = append(keys, k)
		}

		for _, k := range keys {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}

		pruned = len(keys)

		return nil
	})

	return pruned, err
}

func (s *Store) setLastApplied(tx *bolt.Tx, space string, nonce uint64) error {
	return tx.Bucket(lastAppliedBucket).Put([]byte(space), common.EncodeUint64ToBytes(nonce))
}

func (s *Store) put(dbTx *bolt.Tx, att *Attestation) error {
	raw, err := json.Marshal(att)
	if err != nil {
		return err
	}

	return state.Update(s.db, dbTx, func(tx *bolt.Tx) error {
		bucket, err := tx.Bucket(attestationsBucket).CreateBucketIfNotExists([]byte(att.Space))
		if err != nil {
			return fmt.Errorf("failed to create bucket space=%s: %w", att.Space, err)
		}

		return bucket.Put(common.EncodeUint64ToBytes(att.Nonce), raw)
	})
}
