package tokenmap

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru"
	bolt "go.etcd.io/bbolt"

	"github.com/furyaxyz/elysium-bridge/bridge/state"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
	"github.com/furyaxyz/elysium-bridge/crypto"
	"github.com/furyaxyz/elysium-bridge/helper/common"
)

const defaultCacheSize = 1024

var (
	// bucket to store mappings by denom
	mappingsBucket = []byte("tokenMappings")
	// bucket to store the reverse index from contract to denom
	contractsBucket = []byte("contractToDenom")
	// bucket to store auto deployment requests
	autoDeployBucket = []byte("autoDeployRequests")
	// bucket to store the external chain token representing a source denom
	externalTokensBucket = []byte("externalTokens")
	// bucket to store the reverse index from external token to source denom
	externalDenomsBucket = []byte("externalDenoms")
)

/*
Bolt DB schema:

token mappings/
|--> denom -> *types.TokenMapping (json marshalled)

contract to denom/
|--> contract (20 bytes) -> denom

auto deploy requests/
|--> sequence -> *types.AutoDeployRequest (json marshalled)

external tokens/
|--> source denom -> external token contract (20 bytes)

external denoms/
|--> external token contract (20 bytes) -> source denom
*/

// Store owns the TokenMapping table. Committed reads are served from an LRU cache
// which is purged after every commit that touched a mapping.
type Store struct {
	db     *bolt.DB
	logger hclog.Logger

	cache *lru.Cache
	dirty atomic.Bool

	// generation is bumped together with every purge. A read that started under an older
	// generation may have seen a replaced mapping and must not populate the cache.
	cacheLock  sync.Mutex
	generation uint64
}

// NewStore creates the token mapping store and its buckets
func NewStore(db *bolt.DB, dbTx *bolt.Tx, logger hclog.Logger) (*Store, error) {
	cache, err := lru.New(defaultCacheSize)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:     db,
		logger: logger.Named("tokenmap"),
		cache:  cache,
	}

	return s, state.CreateBuckets(db, dbTx,
		mappingsBucket, contractsBucket, autoDeployBucket, externalTokensBucket, externalDenomsBucket)
}

// AutoContractAddress returns the deterministic address of the auto deployed contract of a denom
func AutoContractAddress(denom string) ethgo.Address {
	return ethgo.BytesToAddress(crypto.Keccak256(types.ModuleAccount[:], []byte(denom))[12:])
}

// SetMapping inserts or replaces the mapping of a denom. Existing balances are not touched.
func (s *Store) SetMapping(dbTx *bolt.Tx, mapping *types.TokenMapping) error {
	if !types.IsValidBridgeDenom(mapping.Denom) {
		return fmt.Errorf("%w: denom %s can not be mapped", types.ErrInvalidRequest, mapping.Denom)
	}

	if mapping.Contract == ethgo.ZeroAddress {
		return fmt.Errorf("%w: contract address is empty", types.ErrInvalidRequest)
	}

	mapping.Source = types.IsSourceDenom(mapping.Denom)

	raw, err := json.Marshal(mapping)
	if err != nil {
		return err
	}

	s.dirty.Store(true)

	return state.Update(s.db, dbTx, func(tx *bolt.Tx) error {
		contracts := tx.Bucket(contractsBucket)

		if owner := contracts.Get(mapping.Contract[:]); owner != nil && string(owner) != mapping.Denom {
			return fmt.Errorf("%w: contract %s is already mapped to %s",
				types.ErrInvalidRequest, mapping.Contract, string(owner))
		}

		if old := tx.Bucket(mappingsBucket).Get([]byte(mapping.Denom)); old != nil {
			var prev types.TokenMapping
			if err := json.Unmarshal(old, &prev); err != nil {
				return err
			}

			if err := contracts.Delete(prev.Contract[:]); err != nil {
				return err
			}
		}

		if err := contracts.Put(mapping.Contract[:], []byte(mapping.Denom)); err != nil {
			return err
		}

		return tx.Bucket(mappingsBucket).Put([]byte(mapping.Denom), raw)
	})
}

// DeleteMapping removes the mapping of a denom
func (s *Store) DeleteMapping(dbTx *bolt.Tx, denom string) error {
	s.dirty.Store(true)

	return state.Update(s.db, dbTx, func(tx *bolt.Tx) error {
		raw := tx.Bucket(mappingsBucket).Get([]byte(denom))
		if raw == nil {
			return fmt.Errorf("%w: %s", types.ErrMappingNotFound, denom)
		}

		var prev types.TokenMapping
		if err := json.Unmarshal(raw, &prev); err != nil {
			return err
		}

		if err := tx.Bucket(contractsBucket).Delete(prev.Contract[:]); err != nil {
			return err
		}

		return tx.Bucket(mappingsBucket).Delete([]byte(denom))
	})
}

// ContractByDenom returns the mapping of the denom
func (s *Store) ContractByDenom(dbTx *bolt.Tx, denom string) (*types.TokenMapping, error) {
	if dbTx == nil {
		if cached, ok := s.cache.Get(denom); ok {
			m := *cached.(*types.TokenMapping) //nolint:forcetypeassert

			return &m, nil
		}
	}

	var (
		mapping *types.TokenMapping
		gen     = s.cacheGeneration()
	)

	err := state.View(s.db, dbTx, func(tx *bolt.Tx) error {
		raw := tx.Bucket(mappingsBucket).Get([]byte(denom))
		if raw == nil {
			return fmt.Errorf("%w: denom %s", types.ErrMappingNotFound, denom)
		}

		return json.Unmarshal(raw, &mapping)
	})
	if err != nil {
		return nil, err
	}

	if dbTx == nil {
		cp := *mapping
		s.cacheAdd(gen, denom, &cp)
	}

	return mapping, nil
}

// DenomByContract returns the denom mapped to the contract
func (s *Store) DenomByContract(dbTx *bolt.Tx, contract ethgo.Address) (string, error) {
	if dbTx == nil {
		if cached, ok := s.cache.Get(contract); ok {
			return cached.(string), nil //nolint:forcetypeassert
		}
	}

	var (
		denom string
		gen   = s.cacheGeneration()
	)

	err := state.View(s.db, dbTx, func(tx *bolt.Tx) error {
		raw := tx.Bucket(contractsBucket).Get(contract[:])
		if raw == nil {
			return fmt.Errorf("%w: contract %s", types.ErrMappingNotFound, contract)
		}

		denom = string(raw)

		return nil
	})
	if err != nil {
		return "", err
	}

	if dbTx == nil {
		s.cacheAdd(gen, contract, denom)
	}

	return denom, nil
}

// Mappings returns all token mappings ordered by denom
func (s *Store) Mappings(dbTx *bolt.Tx) ([]*types.TokenMapping, error) {
	mappings := []*types.TokenMapping{}

	err := state.View(s.db, dbTx, func(tx *bolt.Tx) error {
		return tx.Bucket(mappingsBucket).ForEach(func(_, v []byte) error {
			var m *types.TokenMapping
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}

			mappings = append(mappings, m)

			return nil
		})
	})

	return mappings, err
}

// AddAutoDeployRequest records a request for the host EVM to deploy the contract of a denom
func (s *Store) AddAutoDeployRequest(dbTx *bolt.Tx, req *types.AutoDeployRequest) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return err
	}

	return state.Update(s.db, dbTx, func(tx *bolt.Tx) error {
		bucket := tx.Bucket(autoDeployBucket)

		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}

		return bucket.Put(common.EncodeUint64ToBytes(seq), raw)
	})
}

// AutoDeployRequests returns all auto deployment requests in creation order
func (s *Store) AutoDeployRequests(dbTx *bolt.Tx) ([]*types.AutoDeployRequest, error) {
	requests := []*types.AutoDeployRequest{}

	err := state.View(s.db, dbTx, func(tx *bolt.Tx) error {
		return tx.Bucket(autoDeployBucket).ForEach(func(_, v []byte) error {
			var req *types.AutoDeployRequest
			if err := json.Unmarshal(v, &req); err != nil {
				return err
			}

			requests = append(requests, req)

			return nil
		})
	})

	return requests, err
}

// SetExternalToken registers the external chain token contract deployed for a source denom.
// Both the denom and the contract can be registered only once.
func (s *Store) SetExternalToken(dbTx *bolt.Tx, denom string, contract ethgo.Address) error {
	if !types.IsSourceDenom(denom) {
		return fmt.Errorf("%w: %s is not a source denom", types.ErrInvalidRequest, denom)
	}

	if contract == ethgo.ZeroAddress {
		return fmt.Errorf("%w: external token contract is empty", types.ErrInvalidRequest)
	}

	return state.Update(s.db, dbTx, func(tx *bolt.Tx) error {
		tokens, denoms := tx.Bucket(externalTokensBucket), tx.Bucket(externalDenomsBucket)

		if existing := tokens.Get([]byte(denom)); existing != nil {
			return fmt.Errorf("%w: %s is already represented by %s",
				types.ErrInvalidRequest, denom, ethgo.BytesToAddress(existing))
		}

		if owner := denoms.Get(contract[:]); owner != nil {
			return fmt.Errorf("%w: external token %s already represents %s",
				types.ErrInvalidRequest, contract, string(owner))
		}

		if err := tokens.Put([]byte(denom), contract[:]); err != nil {
			return err
		}

		return denoms.Put(contract[:], []byte(denom))
	})
}

// ExternalToken returns the external chain token contract of a source denom
func (s *Store) ExternalToken(dbTx *bolt.Tx, denom string) (ethgo.Address, error) {
	var contract ethgo.Address

	err := state.View(s.db, dbTx, func(tx *bolt.Tx) error {
		raw := tx.Bucket(externalTokensBucket).Get([]byte(denom))
		if raw == nil {
			return fmt.Errorf("%w: no external token for %s", types.ErrMappingNotFound, denom)
		}

		contract = ethgo.BytesToAddress(raw)

		return nil
	})

	return contract, err
}

// SourceDenomByExternalToken returns the source denom an external chain token contract represents
func (s *Store) SourceDenomByExternalToken(dbTx *bolt.Tx, contract ethgo.Address) (string, bool, error) {
	var denom string

	err := state.View(s.db, dbTx, func(tx *bolt.Tx) error {
		if raw := tx.Bucket(externalDenomsBucket).Get(contract[:]); raw != nil {
			denom = string(raw)
		}

		return nil
	})

	return denom, denom != "", err
}

// ExternalTokens returns every registered external chain token ordered by denom
func (s *Store) ExternalTokens(dbTx *bolt.Tx) ([]*types.ExternalToken, error) {
	var tokens []*types.ExternalToken

	err := state.View(s.db, dbTx, func(tx *bolt.Tx) error {
		return tx.Bucket(externalTokensBucket).ForEach(func(k, v []byte) error {
			tokens = append(tokens, &types.ExternalToken{Denom: string(k), Contract: ethgo.BytesToAddress(v)})

			return nil
		})
	})

	return tokens, err
}

// AfterCommit drops cached entries once a transaction that changed mappings finished
func (s *Store) AfterCommit() {
	if s.dirty.CompareAndSwap(true, false) {
		s.cacheLock.Lock()
		defer s.cacheLock.Unlock()

		s.generation++
		s.cache.Purge()
	}
}

func (s *Store) cacheGeneration() uint64 {
	s.cacheLock.Lock()
	defer s.cacheLock.Unlock()

	return s.generation
}

// cacheAdd caches a value read under the given generation unless a purge happened since
func (s *Store) cacheAdd(gen uint64, key, value interface{}) {
	s.cacheLock.Lock()
	defer s.cacheLock.Unlock()

	if gen != s.generation {
		return
	}

	s.cache.Add(key, value)
}
