package claims

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/hashicorp/go-hclog"
	"github.com/holiman/uint256"
	bolt "go.etcd.io/bbolt"

	"github.com/furyaxyz/elysium-bridge/bridge/attestation"
	"github.com/furyaxyz/elysium-bridge/bridge/batch"
	"github.com/furyaxyz/elysium-bridge/bridge/ledger"
	"github.com/furyaxyz/elysium-bridge/bridge/metrics"
	"github.com/furyaxyz/elysium-bridge/bridge/params"
	"github.com/furyaxyz/elysium-bridge/bridge/signerset"
	"github.com/furyaxyz/elysium-bridge/bridge/state"
	"github.com/furyaxyz/elysium-bridge/bridge/tokenmap"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
	"github.com/furyaxyz/elysium-bridge/helper/common"
)

var (
	// bucket to store attested events that could not be applied, nested per nonce space
	invalidClaimsBucket = []byte("invalidClaims")
	// bucket to store the last executed logic call nonce per invalidation id
	logicCallsBucket = []byte("logicCallNonces")
)

/*
Bolt DB schema:

invalid claims/
|--> space --> nonce -> *types.InvalidClaim (json marshalled)

logic call nonces/
|--> invalidation id -> invalidation nonce
*/

// Status is the outcome of applying an attested event
type Status uint8

const (
	StatusApplied Status = iota
	StatusInvalid
)

func (s Status) String() string {
	if s == StatusApplied {
		return "applied"
	}

	return "invalid"
}

// Result describes the effects of an applied event
type Result struct {
	Status Status
	// Reason is set for invalid events
	Reason        string
	Notifications []types.Notification
}

// errInvalidClaim marks failures that invalidate the event instead of aborting the transaction
var errInvalidClaim = errors.New("invalid claim")

// Processor applies resolved attestations to chain state. It never runs for a pending or halted nonce.
type Processor struct {
	db      *bolt.DB
	gate    *params.Gate
	ledger  *ledger.Ledger
	tokens  *tokenmap.Store
	batches *batch.Builder
	signers *signerset.Manager
	logger  hclog.Logger
}

// NewProcessor creates the claim processor and its buckets
func NewProcessor(db *bolt.DB, dbTx *bolt.Tx, gate *params.Gate, l *ledger.Ledger, tokens *tokenmap.Store,
	batches *batch.Builder, signers *signerset.Manager, logger hclog.Logger) (*Processor, error) {
	p := &Processor{
		db:      db,
		gate:    gate,
		ledger:  l,
		tokens:  tokens,
		batches: batches,
		signers: signers,
		logger:  logger.Named("claims"),
	}

	return p, state.CreateBuckets(db, dbTx, invalidClaimsBucket, logicCallsBucket)
}

// ApplyFn returns the attestation callback that applies the resolved event of a nonce
func (p *Processor) ApplyFn(height uint64, results *[]*Result) attestation.ApplyFn {
	return func(tx *bolt.Tx, att *attestation.Attestation, claim json.RawMessage) error {
		var event *types.Event
		if err := json.Unmarshal(claim, &event); err != nil {
			return fmt.Errorf("failed to decode claim of nonce %d: %w", att.Nonce, err)
		}

		res, err := p.Apply(tx, event, height)
		if err != nil {
			return err
		}

		*results = append(*results, res)

		return nil
	}
}

// Apply applies an attested event. Events that can not be applied are recorded as invalid claims
// without touching any other state and the bridge stays active. The external height of every
// attested event is recorded for batch timeouts.
func (p *Processor) Apply(dbTx *bolt.Tx, event *types.Event, height uint64) (*Result, error) {
	var res *Result

	err := state.Update(p.db, dbTx, func(tx *bolt.Tx) error {
		if err := p.batches.ObserveExternalHeight(tx, event.Height); err != nil {
			return err
		}

		var err error

		switch event.Kind {
		case types.EventDeposit:
			res, err = p.applyDeposit(tx, event, height)
		case types.EventBatchExecuted:
			res, err = p.applyBatchExecuted(tx, event, height)
		case types.EventLogicCallExecuted:
			res, err = p.applyLogicCall(tx, event, height)
		case types.EventValsetUpdated:
			res, err = p.applyValsetUpdated(tx, event, height)
		case types.EventERC20Deployed:
			res, err = p.applyERC20Deployed(tx, event, height)
		default:
			err = fmt.Errorf("%w: unknown event kind %s", errInvalidClaim, event.Kind)
		}

		if err == nil {
			return nil
		}

		if !errors.Is(err, errInvalidClaim) && !errors.Is(err, types.ErrOverflowSupply) {
			return err
		}

		res = &Result{Status: StatusInvalid, Reason: err.Error()}

		return p.recordInvalid(tx, event, res.Reason, height)
	})
	if err != nil {
		return nil, err
	}

	kind := event.Kind.String()

	if res.Status == StatusInvalid {
		metrics.IncrClaimInvalid(kind)
		p.logger.Warn("attested event is invalid", "space", event.Space(), "nonce", event.Nonce,
			"kind", kind, "reason", res.Reason)

		res.Notifications = append(res.Notifications, types.NewNotification(types.NotifyClaimInvalid, height,
			"space", event.Space(), "nonce", strconv.FormatUint(event.Nonce, 10), "reason", res.Reason))
	} else {
		metrics.IncrAttestationObserved(kind)
		p.logger.Debug("attested event applied", "space", event.Space(), "nonce", event.Nonce, "kind", kind)

		res.Notifications = append(res.Notifications, types.NewNotification(types.NotifyClaimApplied, height,
			"space", event.Space(), "nonce", strconv.FormatUint(event.Nonce, 10), "kind", kind))
	}

	metrics.SetLastObservedNonce(event.Space(), event.Nonce)

	return res, nil
}

// InvalidClaims returns the invalid claims recorded for a nonce space
func (p *Processor) InvalidClaims(dbTx *bolt.Tx, space string) ([]*types.InvalidClaim, error) {
	result := []*types.InvalidClaim{}

	err := state.View(p.db, dbTx, func(tx *bolt.Tx) error {
		bucket := tx.Bucket(invalidClaimsBucket).Bucket([]byte(space))
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(_, v []byte) error {
			var ic *types.InvalidClaim
			if err := json.Unmarshal(v, &ic); err != nil {
				return err
			}

			result = append(result, ic)

			return nil
		})
	})

	return result, err
}

// LastLogicCallNonce returns the last executed invalidation nonce of a logic call id
func (p *Processor) LastLogicCallNonce(dbTx *bolt.Tx, invalidationID ethgo.Hash) (uint64, error) {
	var nonce uint64

	err := state.View(p.db, dbTx, func(tx *bolt.Tx) error {
		if v := tx.Bucket(logicCallsBucket).Get(invalidationID[:]); v != nil {
			nonce = common.EncodeBytesToUint64(v)
		}

		return nil
	})

	return nonce, err
}

func (p *Processor) applyDeposit(tx *bolt.Tx, event *types.Event, height uint64) (*Result, error) {
	deposit := event.Deposit

	receiver, err := parseReceiver(deposit.Receiver)
	if err != nil {
		return nil, err
	}

	sourceDenom, isSource, err := p.tokens.SourceDenomByExternalToken(tx, deposit.TokenContract)
	if err != nil {
		return nil, err
	}

	if isSource {
		return p.releaseSource(tx, receiver, sourceDenom, deposit.Amount, height)
	}

	denom := types.GravityDenom(deposit.TokenContract)

	canMint, err := p.ledger.CanMint(tx, denom, deposit.Amount)
	if err != nil {
		return nil, err
	}

	if !canMint {
		return nil, fmt.Errorf("%w: deposit of %s %s", types.ErrOverflowSupply, deposit.Amount, denom)
	}

	if err := p.ledger.Mint(tx, receiver, denom, deposit.Amount); err != nil {
		return nil, err
	}

	res := &Result{Status: StatusApplied}
	res.Notifications = append(res.Notifications, types.NewNotification(types.NotifyBalanceChanged, height,
		"account", receiver.String(), "asset", denom, "amount", deposit.Amount.Dec()))

	mapping, err := p.mappingForDeposit(tx, denom, height)
	if err != nil {
		return nil, err
	}

	if mapping == nil {
		return res, nil
	}

	if err := p.convert(tx, receiver, denom, mapping.Contract, deposit.Amount); err != nil {
		return nil, err
	}

	res.Notifications = append(res.Notifications, types.NewNotification(types.NotifyBalanceChanged, height,
		"account", receiver.String(), "asset", types.ContractAsset(mapping.Contract),
		"amount", deposit.Amount.Dec()))

	return res, nil
}

// releaseSource pays out a deposit of the external token deployed for a source denom from the
// module escrow. With a mapping the escrowed coins are burnt and the host token contract credits
// the receiver, since source coins are minted when host tokens leave.
func (p *Processor) releaseSource(tx *bolt.Tx, receiver ethgo.Address, denom string,
	amount *uint256.Int, height uint64) (*Result, error) {
	escrow, err := p.ledger.Balance(tx, types.ModuleAccount, denom)
	if err != nil {
		return nil, err
	}

	if escrow.Lt(amount) {
		return nil, fmt.Errorf("%w: deposit of %s %s exceeds the escrowed %s", errInvalidClaim, amount, denom, escrow)
	}

	asset := denom

	mapping, err := p.tokens.ContractByDenom(tx, denom)

	switch {
	case err == nil:
		asset = types.ContractAsset(mapping.Contract)
		err = p.ledger.Burn(tx, types.ModuleAccount, denom, amount)
	case errors.Is(err, types.ErrMappingNotFound):
		err = p.ledger.Transfer(tx, types.ModuleAccount, receiver, denom, amount)
	}

	if err != nil {
		return nil, err
	}

	return &Result{
		Status: StatusApplied,
		Notifications: []types.Notification{
			types.NewNotification(types.NotifyBalanceChanged, height,
				"account", receiver.String(), "asset", asset, "amount", amount.Dec()),
		},
	}, nil
}

// mappingForDeposit returns the mapping deposits of the denom are converted into.
// With auto deployment enabled a missing mapping is created with a deterministic contract address.
func (p *Processor) mappingForDeposit(tx *bolt.Tx, denom string, height uint64) (*types.TokenMapping, error) {
	mapping, err := p.tokens.ContractByDenom(tx, denom)
	if err == nil {
		return mapping, nil
	}

	if !errors.Is(err, types.ErrMappingNotFound) {
		return nil, err
	}

	pp, err := p.gate.Params(tx)
	if err != nil {
		return nil, err
	}

	if !pp.EnableAutoDeployment {
		return nil, nil
	}

	mapping = &types.TokenMapping{
		Denom:        denom,
		Contract:     tokenmap.AutoContractAddress(denom),
		AutoContract: true,
	}

	if err := p.tokens.SetMapping(tx, mapping); err != nil {
		return nil, err
	}

	if err := p.tokens.AddAutoDeployRequest(tx, &types.AutoDeployRequest{
		Denom:    denom,
		Contract: mapping.Contract,
		Height:   height,
	}); err != nil {
		return nil, err
	}

	p.logger.Info("token contract auto deployment requested", "denom", denom, "contract", mapping.Contract)

	return mapping, nil
}

// convert escrows native coins at the mapped token contract, the host EVM credits the account
// with the same amount of contract tokens. The escrow of a contract always backs its token supply.
func (p *Processor) convert(tx *bolt.Tx, account ethgo.Address, denom string,
	contract ethgo.Address, amount *uint256.Int) error {
	return p.ledger.Transfer(tx, account, contract, denom, amount)
}

func (p *Processor) applyBatchExecuted(tx *bolt.Tx, event *types.Event, height uint64) (*Result, error) {
	payload := event.BatchExecuted

	vouchers, err := p.batches.Executed(tx, payload.TokenContract, payload.BatchNonce, payload.RevertedTransferIDs)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", errInvalidClaim, err)
		}

		return nil, err
	}

	res := &Result{Status: StatusApplied}
	res.Notifications = append(res.Notifications, types.NewNotification(types.NotifyBatchExecuted, height,
		"token", payload.TokenContract.String(), "nonce", strconv.FormatUint(payload.BatchNonce, 10)))

	for _, v := range vouchers {
		res.Notifications = append(res.Notifications, types.NewNotification(types.NotifyVoucherCreated, height,
			"nonce", strconv.FormatUint(v.Nonce, 10), "recipient", v.Recipient.String(), "amount", v.Amount.Dec()))
	}

	return res, nil
}

func (p *Processor) applyLogicCall(tx *bolt.Tx, event *types.Event, _ uint64) (*Result, error) {
	payload := event.LogicCall
	bucket := tx.Bucket(logicCallsBucket)

	if v := bucket.Get(payload.InvalidationID[:]); v != nil {
		if last := common.EncodeBytesToUint64(v); payload.InvalidationNonce <= last {
			return nil, fmt.Errorf("%w: logic call %s nonce %d is not above %d",
				errInvalidClaim, payload.InvalidationID, payload.InvalidationNonce, last)
		}
	}

	if err := bucket.Put(payload.InvalidationID[:], common.EncodeUint64ToBytes(payload.InvalidationNonce)); err != nil {
		return nil, err
	}

	return &Result{Status: StatusApplied}, nil
}

func (p *Processor) applyValsetUpdated(tx *bolt.Tx, event *types.Event, _ uint64) (*Result, error) {
	payload := event.ValsetUpdated

	if err := p.signers.MarkObserved(tx, payload.ValsetNonce, payload.Members); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", errInvalidClaim, err)
		}

		return nil, err
	}

	return &Result{Status: StatusApplied}, nil
}

// applyERC20Deployed registers the external chain token deployed for a mapped source denom.
// The token must match the metadata of the mapping.
func (p *Processor) applyERC20Deployed(tx *bolt.Tx, event *types.Event, height uint64) (*Result, error) {
	payload := event.ERC20Deployed

	if !types.IsSourceDenom(payload.Denom) {
		return nil, fmt.Errorf("%w: %s is not a source denom", errInvalidClaim, payload.Denom)
	}

	mapping, err := p.tokens.ContractByDenom(tx, payload.Denom)
	if err != nil {
		if errors.Is(err, types.ErrMappingNotFound) {
			return nil, fmt.Errorf("%w: %w", errInvalidClaim, err)
		}

		return nil, err
	}

	if mapping.Decimals != payload.Decimals {
		return nil, fmt.Errorf("%w: %s has %d decimals, deployed token has %d",
			errInvalidClaim, payload.Denom, mapping.Decimals, payload.Decimals)
	}

	if mapping.Symbol != "" && mapping.Symbol != payload.Symbol {
		return nil, fmt.Errorf("%w: %s has symbol %q, deployed token has %q",
			errInvalidClaim, payload.Denom, mapping.Symbol, payload.Symbol)
	}

	if err := p.tokens.SetExternalToken(tx, payload.Denom, payload.TokenContract); err != nil {
		if errors.Is(err, types.ErrInvalidRequest) {
			return nil, fmt.Errorf("%w: %w", errInvalidClaim, err)
		}

		return nil, err
	}

	p.logger.Info("external token registered", "denom", payload.Denom, "token", payload.TokenContract)

	res := &Result{Status: StatusApplied}
	res.Notifications = append(res.Notifications, types.NewNotification(types.NotifyERC20Deployed, height,
		"denom", payload.Denom, "token", payload.TokenContract.String()))

	return res, nil
}

func (p *Processor) recordInvalid(tx *bolt.Tx, event *types.Event, reason string, height uint64) error {
	raw, err := json.Marshal(&types.InvalidClaim{
		Space:  event.Space(),
		Nonce:  event.Nonce,
		Reason: reason,
		Height: height,
	})
	if err != nil {
		return err
	}

	bucket, err := tx.Bucket(invalidClaimsBucket).CreateBucketIfNotExists([]byte(event.Space()))
	if err != nil {
		return err
	}

	return bucket.Put(common.EncodeUint64ToBytes(event.Nonce), raw)
}

func parseReceiver(receiver string) (ethgo.Address, error) {
	var addr ethgo.Address

	if len(receiver) != 42 {
		return addr, fmt.Errorf("%w: invalid receiver %q", errInvalidClaim, receiver)
	}

	if err := addr.UnmarshalText([]byte(receiver)); err != nil || addr == ethgo.ZeroAddress {
		return addr, fmt.Errorf("%w: invalid receiver %q", errInvalidClaim, receiver)
	}

	return addr, nil
}
