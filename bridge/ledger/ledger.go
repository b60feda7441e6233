package ledger

import (
	"bytes"
	"fmt"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/hashicorp/go-hclog"
	"github.com/holiman/uint256"
	bolt "go.etcd.io/bbolt"

	"github.com/furyaxyz/elysium-bridge/bridge/state"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
)

var (
	// bucket to store account balances
	balancesBucket = []byte("balances")
	// bucket to store total supply per asset
	supplyBucket = []byte("supply")
)

/*
Bolt DB schema:

balances/
|--> account (20 bytes) ++ asset -> amount (32 bytes big endian)

supply/
|--> asset -> amount (32 bytes big endian)
*/

// Ledger keeps 256-bit balances of bridged assets keyed by asset name, usually a coin denom.
// Coins converted into an EVM token are held by the token contract's own account.
type Ledger struct {
	db     *bolt.DB
	logger hclog.Logger
}

// New creates the ledger and its buckets
func New(db *bolt.DB, dbTx *bolt.Tx, logger hclog.Logger) (*Ledger, error) {
	l := &Ledger{db: db, logger: logger.Named("ledger")}

	return l, state.CreateBuckets(db, dbTx, balancesBucket, supplyBucket)
}

// Balance returns the balance of the account
func (l *Ledger) Balance(dbTx *bolt.Tx, account ethgo.Address, asset string) (*uint256.Int, error) {
	balance := new(uint256.Int)

	err := state.View(l.db, dbTx, func(tx *bolt.Tx) error {
		balance = getAmount(tx.Bucket(balancesBucket), balanceKey(account, asset))

		return nil
	})

	return balance, err
}

// Balances returns every non zero balance of the account
func (l *Ledger) Balances(dbTx *bolt.Tx, account ethgo.Address) (map[string]*uint256.Int, error) {
	result := map[string]*uint256.Int{}

	err := state.View(l.db, dbTx, func(tx *bolt.Tx) error {
		c := tx.Bucket(balancesBucket).Cursor()
		prefix := account[:]

		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			result[string(k[20:])] = new(uint256.Int).SetBytes(v)
		}

		return nil
	})

	return result, err
}

// Entry is a single non zero balance
type Entry struct {
	Account ethgo.Address `json:"account"`
	Asset   string        `json:"asset"`
	Amount  *uint256.Int  `json:"amount"`
}

// All returns every non zero balance ordered by account and asset
func (l *Ledger) All(dbTx *bolt.Tx) ([]*Entry, error) {
	var entries []*Entry

	err := state.View(l.db, dbTx, func(tx *bolt.Tx) error {
		return tx.Bucket(balancesBucket).ForEach(func(k, v []byte) error {
			entries = append(entries, &Entry{
				Account: ethgo.BytesToAddress(k[:20]),
				Asset:   string(k[20:]),
				Amount:  new(uint256.Int).SetBytes(v),
			})

			return nil
		})
	})

	return entries, err
}

// Supply returns the total supply of the asset
func (l *Ledger) Supply(dbTx *bolt.Tx, asset string) (*uint256.Int, error) {
	supply := new(uint256.Int)

	err := state.View(l.db, dbTx, func(tx *bolt.Tx) error {
		supply = getAmount(tx.Bucket(supplyBucket), []byte(asset))

		return nil
	})

	return supply, err
}

// CanMint reports whether minting amount keeps the supply representable
func (l *Ledger) CanMint(dbTx *bolt.Tx, asset string, amount *uint256.Int) (bool, error) {
	supply, err := l.Supply(dbTx, asset)
	if err != nil {
		return false, err
	}

	_, overflow := new(uint256.Int).AddOverflow(supply, amount)

	return !overflow, nil
}

// Mint creates new coins of the asset on the account
func (l *Ledger) Mint(dbTx *bolt.Tx, account ethgo.Address, asset string, amount *uint256.Int) error {
	return state.Update(l.db, dbTx, func(tx *bolt.Tx) error {
		supplyB := tx.Bucket(supplyBucket)

		supply, overflow := new(uint256.Int).AddOverflow(getAmount(supplyB, []byte(asset)), amount)
		if overflow {
			return fmt.Errorf("%w: minting %s %s", types.ErrOverflowSupply, amount, asset)
		}

		if err := putAmount(supplyB, []byte(asset), supply); err != nil {
			return err
		}

		// a balance never exceeds the supply, so it cannot overflow here
		if err := addBalance(tx, account, asset, amount); err != nil {
			return err
		}

		l.logger.Debug("minted", "account", account, "asset", asset, "amount", amount)

		return nil
	})
}

// Burn destroys coins of the asset held by the account
func (l *Ledger) Burn(dbTx *bolt.Tx, account ethgo.Address, asset string, amount *uint256.Int) error {
	return state.Update(l.db, dbTx, func(tx *bolt.Tx) error {
		if err := subBalance(tx, account, asset, amount); err != nil {
			return err
		}

		supplyB := tx.Bucket(supplyBucket)
		supply := getAmount(supplyB, []byte(asset))

		return putAmount(supplyB, []byte(asset), supply.Sub(supply, amount))
	})
}

// Transfer moves coins between accounts
func (l *Ledger) Transfer(dbTx *bolt.Tx, from, to ethgo.Address, asset string, amount *uint256.Int) error {
	return state.Update(l.db, dbTx, func(tx *bolt.Tx) error {
		if err := subBalance(tx, from, asset, amount); err != nil {
			return err
		}

		return addBalance(tx, to, asset, amount)
	})
}

func addBalance(tx *bolt.Tx, account ethgo.Address, asset string, amount *uint256.Int) error {
	bucket := tx.Bucket(balancesBucket)
	key := balanceKey(account, asset)

	balance, overflow := new(uint256.Int).AddOverflow(getAmount(bucket, key), amount)
	if overflow {
		return fmt.Errorf("%w: balance of %s in %s", types.ErrOverflowSupply, account, asset)
	}

	return putAmount(bucket, key, balance)
}

func subBalance(tx *bolt.Tx, account ethgo.Address, asset string, amount *uint256.Int) error {
	bucket := tx.Bucket(balancesBucket)
	key := balanceKey(account, asset)

	balance, underflow := new(uint256.Int).SubOverflow(getAmount(bucket, key), amount)
	if underflow {
		return fmt.Errorf("%w: %s has less than %s %s", types.ErrInsufficientFunds, account, amount, asset)
	}

	return putAmount(bucket, key, balance)
}

func balanceKey(account ethgo.Address, asset string) []byte {
	key := make([]byte, 0, len(account)+len(asset))
	key = append(key, account[:]...)

	return append(key, []byte(asset)...)
}

func getAmount(bucket *bolt.Bucket, key []byte) *uint256.Int {
	v := bucket.Get(key)
	if v == nil {
		return new(uint256.Int)
	}

	return new(uint256.Int).SetBytes(v)
}

func putAmount(bucket *bolt.Bucket, key []byte, amount *uint256.Int) error {
	if amount.IsZero() {
		return bucket.Delete(key)
	}

	raw := amount.Bytes32()

	return bucket.Put(key, raw[:])
}
