package state

import (
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/furyaxyz/elysium-bridge/helper/common"
)

var (
	chainMetaBucket      = []byte("chainMeta")
	lastBlockHeightKey   = []byte("lastBlockHeight")
	genesisInitializeKey = []byte("genesisInitialized")
)

// State represents the persistence layer of the bridge core. Every component store
// keeps its buckets in the same bolt database, so a single write transaction
// spans one whole state transition.
type State struct {
	db *bolt.DB
}

// NewState creates new instance of State
func NewState(path string) (*State, error) {
	db, err := bolt.Open(path, 0666, nil)
	if err != nil {
		return nil, err
	}

	s := &State{db: db}

	err = s.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(chainMetaBucket); err != nil {
			return fmt.Errorf("cannot create bucket: %w", err)
		}

		return nil
	})

	return s, err
}

// InsertLastBlockHeight inserts the height of the last finished block
func (s *State) InsertLastBlockHeight(height uint64, dbTx *bolt.Tx) error {
	insertFn := func(tx *bolt.Tx) error {
		return tx.Bucket(chainMetaBucket).Put(lastBlockHeightKey, common.EncodeUint64ToBytes(height))
	}

	if dbTx == nil {
		return s.db.Update(func(tx *bolt.Tx) error {
			return insertFn(tx)
		})
	}

	return insertFn(dbTx)
}

// GetLastBlockHeight gets the height of the last finished block
func (s *State) GetLastBlockHeight(dbTx *bolt.Tx) (uint64, error) {
	var (
		height uint64
		err    error
	)

	getFn := func(tx *bolt.Tx) {
		value := tx.Bucket(chainMetaBucket).Get(lastBlockHeightKey)
		if value != nil {
			height = common.EncodeBytesToUint64(value)
		}
	}

	if dbTx == nil {
		err = s.db.View(func(tx *bolt.Tx) error {
			getFn(tx)

			return nil
		})
	} else {
		getFn(dbTx)
	}

	return height, err
}

// MarkGenesisInitialized records that genesis state was loaded
func (s *State) MarkGenesisInitialized(dbTx *bolt.Tx) error {
	return dbTx.Bucket(chainMetaBucket).Put(genesisInitializeKey, []byte{1})
}

// IsGenesisInitialized reports whether genesis state was already loaded
func (s *State) IsGenesisInitialized() (bool, error) {
	initialized := false

	err := s.db.View(func(tx *bolt.Tx) error {
		initialized = tx.Bucket(chainMetaBucket).Get(genesisInitializeKey) != nil

		return nil
	})

	return initialized, err
}

func (s *State) DB() *bolt.DB {
	return s.db
}

// Close closes the state
func (s *State) Close() error {
	return s.db.Close()
}

// BeginDBTransaction creates and begins a transaction on BoltDB
// Note that transaction needs to be manually rollback or committed
func (s *State) BeginDBTransaction(isWriteTx bool) (*bolt.Tx, error) {
	return s.db.Begin(isWriteTx)
}

// BucketStats returns stats for the given bucket in db
func BucketStats(bucketName []byte, db *bolt.DB) (*bolt.BucketStats, error) {
	var stats *bolt.BucketStats

	err := db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return fmt.Errorf("bucket %s does not exist", string(bucketName))
		}

		s := bucket.Stats()
		stats = &s

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("cannot check bucket stats. Bucket name=%s: %w", string(bucketName), err)
	}

	return stats, nil
}

// Update runs fn in the given write transaction, or in a new one when dbTx is nil
func Update(db *bolt.DB, dbTx *bolt.Tx, fn func(tx *bolt.Tx) error) error {
	if dbTx == nil {
		return db.Update(fn)
	}

	return fn(dbTx)
}

// View runs fn in the given transaction, or in a new read transaction when dbTx is nil
func View(db *bolt.DB, dbTx *bolt.Tx, fn func(tx *bolt.Tx) error) error {
	if dbTx == nil {
		return db.View(fn)
	}

	return fn(dbTx)
}

// CreateBuckets creates the given top level buckets
func CreateBuckets(db *bolt.DB, dbTx *bolt.Tx, buckets ...[]byte) error {
	return Update(db, dbTx, func(tx *bolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket=%s: %w", string(b), err)
			}
		}

		return nil
	})
}
