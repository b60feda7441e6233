package params

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/hashicorp/go-hclog"
	bolt "go.etcd.io/bbolt"

	"github.com/furyaxyz/elysium-bridge/bridge/config"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
)

var (
	// bucket to store the params record
	paramsBucket = []byte("params")
	paramsKey    = []byte("current")

	errParamsNotInitialized = errors.New("bridge params are not initialized")
)

/*
Bolt DB schema:

params/
|--> "current" -> config.Params (json marshalled)
*/

// Gate holds the versioned params record every other component consults before acting
type Gate struct {
	db     *bolt.DB
	logger hclog.Logger
}

// NewGate creates the params gate and its bucket
func NewGate(db *bolt.DB, dbTx *bolt.Tx, logger hclog.Logger) (*Gate, error) {
	g := &Gate{db: db, logger: logger.Named("params")}

	initFn := func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(paramsBucket); err != nil {
			return fmt.Errorf("failed to create bucket=%s: %w", string(paramsBucket), err)
		}

		return nil
	}

	var err error

	if dbTx == nil {
		err = db.Update(initFn)
	} else {
		err = initFn(dbTx)
	}

	return g, err
}

// Init stores the genesis params record
func (g *Gate) Init(dbTx *bolt.Tx, p config.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}

	return g.put(dbTx, p)
}

// Params returns the current params record
func (g *Gate) Params(dbTx *bolt.Tx) (config.Params, error) {
	var (
		p   config.Params
		err error
	)

	getFn := func(tx *bolt.Tx) error {
		raw := tx.Bucket(paramsBucket).Get(paramsKey)
		if raw == nil {
			return errParamsNotInitialized
		}

		return json.Unmarshal(raw, &p)
	}

	if dbTx == nil {
		err = g.db.View(getFn)
	} else {
		err = getFn(dbTx)
	}

	return p, err
}

// RequireActive returns ErrBridgeInactive when the bridge is turned off
func (g *Gate) RequireActive(dbTx *bolt.Tx) error {
	p, err := g.Params(dbTx)
	if err != nil {
		return err
	}

	if !p.BridgeActive {
		return types.ErrBridgeInactive
	}

	return nil
}

// IsAdmin reports whether the signer is the configured admin
func (g *Gate) IsAdmin(dbTx *bolt.Tx, signer ethgo.Address) (bool, error) {
	p, err := g.Params(dbTx)
	if err != nil {
		return false, err
	}

	return p.ElysiumAdmin != ethgo.ZeroAddress && p.ElysiumAdmin == signer, nil
}

// Authorize allows the admin or a passed governance proposal
func (g *Gate) Authorize(dbTx *bolt.Tx, signer ethgo.Address) error {
	if signer == types.GovernanceAuthority {
		return nil
	}

	isAdmin, err := g.IsAdmin(dbTx, signer)
	if err != nil {
		return err
	}

	if !isAdmin {
		return fmt.Errorf("%w: %s is not the bridge admin", types.ErrPermissionDenied, signer)
	}

	return nil
}

// UpdateParams replaces the params record, only governance may do so
func (g *Gate) UpdateParams(dbTx *bolt.Tx, authority ethgo.Address, p config.Params) (config.Params, error) {
	if authority != types.GovernanceAuthority {
		return config.Params{}, fmt.Errorf("%w: invalid authority %s, expected %s",
			types.ErrPermissionDenied, authority, types.GovernanceAuthority)
	}

	if err := p.Validate(); err != nil {
		return config.Params{}, err
	}

	current, err := g.Params(dbTx)
	if err != nil {
		return config.Params{}, err
	}

	p.Version = current.Version + 1

	if err := g.put(dbTx, p); err != nil {
		return config.Params{}, err
	}

	g.logger.Info("params updated", "version", p.Version, "active", p.BridgeActive,
		"admin", p.ElysiumAdmin, "autoDeployment", p.EnableAutoDeployment)

	return p, nil
}

// TurnBridge toggles the bridge, only the admin may do so
func (g *Gate) TurnBridge(dbTx *bolt.Tx, signer ethgo.Address, active bool) (config.Params, error) {
	p, err := g.Params(dbTx)
	if err != nil {
		return config.Params{}, err
	}

	if p.ElysiumAdmin == ethgo.ZeroAddress || p.ElysiumAdmin != signer {
		return config.Params{}, fmt.Errorf("%w: %s is not the bridge admin", types.ErrPermissionDenied, signer)
	}

	p.BridgeActive = active
	p.Version++

	if err := g.put(dbTx, p); err != nil {
		return config.Params{}, err
	}

	g.logger.Info("bridge turned", "active", active, "version", p.Version)

	return p, nil
}

func (g *Gate) put(dbTx *bolt.Tx, p config.Params) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}

	insertFn := func(tx *bolt.Tx) error {
		return tx.Bucket(paramsBucket).Put(paramsKey, raw)
	}

	if dbTx == nil {
		return g.db.Update(insertFn)
	}

	return insertFn(dbTx)
}
