package batch

import (
	"encoding/json"
	"fmt"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/holiman/uint256"
	bolt "go.etcd.io/bbolt"

	"github.com/furyaxyz/elysium-bridge/bridge/metrics"
	"github.com/furyaxyz/elysium-bridge/bridge/state"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
	"github.com/furyaxyz/elysium-bridge/helper/common"
)

var (
	// bucket to store unredeemed vouchers by nonce
	vouchersBucket = []byte("revertedVouchers")
	// bucket to store nonces of redeemed vouchers
	redeemedBucket = []byte("redeemedVouchers")

	lastRevertedNonceKey = []byte("lastRevertedNonce")
)

/*
Bolt DB schema:

reverted vouchers/
|--> voucher nonce -> *types.RevertedVoucher (json marshalled)

redeemed vouchers/
|--> voucher nonce -> redeemer
*/

// createVoucher records a voucher for a transfer the destination rejected. The voucher belongs to
// the intended recipient and the escrowed amount stays with the module account until it is redeemed.
func (b *Builder) createVoucher(tx *bolt.Tx, tr *types.OutgoingTransfer) (*types.RevertedVoucher, error) {
	voucher := &types.RevertedVoucher{
		Nonce:     getMeta(tx, lastRevertedNonceKey) + 1,
		Token:     tr.TokenContract,
		Denom:     tr.Denom,
		Recipient: tr.Recipient,
		Amount:    tr.Amount.Clone(),
	}

	raw, err := json.Marshal(voucher)
	if err != nil {
		return nil, err
	}

	if err := tx.Bucket(vouchersBucket).Put(common.EncodeUint64ToBytes(voucher.Nonce), raw); err != nil {
		return nil, err
	}

	if err := putMeta(tx, lastRevertedNonceKey, voucher.Nonce); err != nil {
		return nil, err
	}

	metrics.IncrVoucherCreated()
	b.logger.Info("reverted voucher created", "nonce", voucher.Nonce, "transfer", tr.ID,
		"recipient", voucher.Recipient, "amount", voucher.Amount)

	return voucher, nil
}

// RedeemVoucher consumes a voucher of the caller and re-sends its amount to the chosen recipient
func (b *Builder) RedeemVoucher(dbTx *bolt.Tx, caller ethgo.Address, nonce uint64, recipient ethgo.Address,
	fee *uint256.Int) (*types.OutgoingTransfer, error) {
	if err := b.gate.RequireActive(dbTx); err != nil {
		return nil, err
	}

	var transfer *types.OutgoingTransfer

	err := state.Update(b.db, dbTx, func(tx *bolt.Tx) error {
		key := common.EncodeUint64ToBytes(nonce)

		if tx.Bucket(redeemedBucket).Get(key) != nil {
			return fmt.Errorf("%w: voucher %d", types.ErrVoucherRedeemed, nonce)
		}

		voucher, err := getVoucher(tx, nonce)
		if err != nil {
			return err
		}

		if voucher.Recipient != caller {
			return fmt.Errorf("%w: voucher %d belongs to %s", types.ErrPermissionDenied, nonce, voucher.Recipient)
		}

		if fee == nil {
			fee = new(uint256.Int)
		}

		amount, underflow := new(uint256.Int).SubOverflow(voucher.Amount, fee)
		if underflow || amount.IsZero() {
			return fmt.Errorf("%w: fee %s exceeds voucher amount %s", types.ErrInvalidRequest, fee, voucher.Amount)
		}

		if err := tx.Bucket(vouchersBucket).Delete(key); err != nil {
			return err
		}

		if err := tx.Bucket(redeemedBucket).Put(key, caller[:]); err != nil {
			return err
		}

		if err := b.validateTransfer(tx, recipient, voucher.Denom, amount); err != nil {
			return err
		}

		transfer, err = b.enqueue(tx, caller, recipient, voucher.Denom, amount, fee)

		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.IncrVoucherRedeemed()
	b.logger.Info("reverted voucher redeemed", "nonce", nonce, "transfer", transfer.ID, "recipient", recipient)

	return transfer, nil
}

// Voucher returns an unredeemed voucher
func (b *Builder) Voucher(dbTx *bolt.Tx, nonce uint64) (*types.RevertedVoucher, error) {
	var voucher *types.RevertedVoucher

	err := state.View(b.db, dbTx, func(tx *bolt.Tx) error {
		if tx.Bucket(redeemedBucket).Get(common.EncodeUint64ToBytes(nonce)) != nil {
			return fmt.Errorf("%w: voucher %d", types.ErrVoucherRedeemed, nonce)
		}

		var err error

		voucher, err = getVoucher(tx, nonce)

		return err
	})

	return voucher, err
}

// Vouchers returns every unredeemed voucher ordered by nonce
func (b *Builder) Vouchers(dbTx *bolt.Tx) ([]*types.RevertedVoucher, error) {
	var vouchers []*types.RevertedVoucher

	err := state.View(b.db, dbTx, func(tx *bolt.Tx) error {
		return tx.Bucket(vouchersBucket).ForEach(func(_, v []byte) error {
			var voucher *types.RevertedVoucher
			if err := json.Unmarshal(v, &voucher); err != nil {
				return err
			}

			vouchers = append(vouchers, voucher)

			return nil
		})
	})

	return vouchers, err
}

// LastRevertedNonce returns the nonce of the last created voucher
func (b *Builder) LastRevertedNonce(dbTx *bolt.Tx) (uint64, error) {
	var nonce uint64

	err := state.View(b.db, dbTx, func(tx *bolt.Tx) error {
		nonce = getMeta(tx, lastRevertedNonceKey)

		return nil
	})

	return nonce, err
}

func getVoucher(tx *bolt.Tx, nonce uint64) (*types.RevertedVoucher, error) {
	raw := tx.Bucket(vouchersBucket).Get(common.EncodeUint64ToBytes(nonce))
	if raw == nil {
		return nil, fmt.Errorf("%w: voucher %d", types.ErrNotFound, nonce)
	}

	var voucher *types.RevertedVoucher
	if err := json.Unmarshal(raw, &voucher); err != nil {
		return nil, err
	}

	return voucher, nil
}
