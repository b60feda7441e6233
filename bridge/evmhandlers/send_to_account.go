package evmhandlers

import (
	"fmt"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/hashicorp/go-hclog"
	bolt "go.etcd.io/bbolt"

	"github.com/furyaxyz/elysium-bridge/bridge/contractsapi"
	"github.com/furyaxyz/elysium-bridge/bridge/ledger"
	"github.com/furyaxyz/elysium-bridge/bridge/state"
	"github.com/furyaxyz/elysium-bridge/bridge/tokenmap"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
)

var _ Handler = (*SendToAccountHandler)(nil)

// SendToAccountHandler handles `__ElysiumSendToAccount` logs, converting contract tokens back into native coins.
// The contract burnt the tokens, the coins are released from the escrow held at the contract address.
// Host tokens of source denoms have no escrow, their coins are minted instead.
type SendToAccountHandler struct {
	db     *bolt.DB
	ledger *ledger.Ledger
	tokens *tokenmap.Store
	logger hclog.Logger
}

func NewSendToAccountHandler(db *bolt.DB, l *ledger.Ledger, tokens *tokenmap.Store,
	logger hclog.Logger) *SendToAccountHandler {
	return &SendToAccountHandler{
		db:     db,
		ledger: l,
		tokens: tokens,
		logger: logger.Named("send_to_account"),
	}
}

func (h *SendToAccountHandler) EventID() ethgo.Hash {
	return new(contractsapi.SendToAccountEvent).Sig()
}

func (h *SendToAccountHandler) Handle(dbTx *bolt.Tx, ctx LogContext, log *ethgo.Log) (*Result, error) {
	var event contractsapi.SendToAccountEvent
	if _, err := event.ParseLog(log); err != nil {
		h.logger.Error("log signature matches but failed to decode", "contract", log.Address, "err", err)

		return nil, nil
	}

	amount, err := contractsapi.ToUint256(event.Amount)
	if err != nil {
		return nil, err
	}

	var denom string

	err = state.Update(h.db, dbTx, func(tx *bolt.Tx) error {
		denom, err = h.tokens.DenomByContract(tx, log.Address)
		if err != nil {
			return err
		}

		if !types.IsSourceDenom(denom) {
			return h.ledger.Transfer(tx, log.Address, event.Recipient, denom, amount)
		}

		canMint, err := h.ledger.CanMint(tx, denom, amount)
		if err != nil {
			return err
		}

		if !canMint {
			return fmt.Errorf("%w: minting %s %s", types.ErrOverflowSupply, amount, denom)
		}

		return h.ledger.Mint(tx, event.Recipient, denom, amount)
	})
	if err != nil {
		return nil, err
	}

	h.logger.Debug("send to account", "contract", log.Address, "tx_sender", ctx.TxSender,
		"recipient", event.Recipient, "amount", amount)

	return &Result{
		Notifications: []types.Notification{
			types.NewNotification(types.NotifyBalanceChanged, ctx.Height,
				"account", event.Recipient.String(), "asset", denom, "amount", amount.Dec()),
		},
	}, nil
}
