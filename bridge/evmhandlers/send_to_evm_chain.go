package evmhandlers

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/hashicorp/go-hclog"
	"github.com/holiman/uint256"
	bolt "go.etcd.io/bbolt"

	"github.com/furyaxyz/elysium-bridge/bridge/batch"
	"github.com/furyaxyz/elysium-bridge/bridge/contractsapi"
	"github.com/furyaxyz/elysium-bridge/bridge/ledger"
	"github.com/furyaxyz/elysium-bridge/bridge/params"
	"github.com/furyaxyz/elysium-bridge/bridge/state"
	"github.com/furyaxyz/elysium-bridge/bridge/tokenmap"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
)

var _ Handler = (*SendToEvmChainHandler)(nil)

// SendToEvmChainHandler handles `__ElysiumSendToEvmChain` logs. The token contract burnt amount
// plus fee from the sender, the underlying denom moves from the escrow held at the contract address
// into the module escrow and joins the outgoing pool. Host tokens of source denoms have no escrow,
// their coins are minted into the module escrow where they back the external token.
type SendToEvmChainHandler struct {
	gate    *params.Gate
	ledger  *ledger.Ledger
	tokens  *tokenmap.Store
	batches *batch.Builder
	db      *bolt.DB
	// external chain the bridge contract is deployed on
	chainID uint64
	logger  hclog.Logger
}

// NewSendToEvmChainHandler creates the handler for the given external chain
func NewSendToEvmChainHandler(db *bolt.DB, gate *params.Gate, l *ledger.Ledger, tokens *tokenmap.Store,
	batches *batch.Builder, chainID uint64, logger hclog.Logger) *SendToEvmChainHandler {
	return &SendToEvmChainHandler{
		gate:    gate,
		ledger:  l,
		tokens:  tokens,
		batches: batches,
		db:      db,
		chainID: chainID,
		logger:  logger.Named("send_to_evm_chain"),
	}
}

func (h *SendToEvmChainHandler) EventID() ethgo.Hash {
	return new(contractsapi.SendToEvmChainEvent).Sig()
}

func (h *SendToEvmChainHandler) Handle(dbTx *bolt.Tx, ctx LogContext, log *ethgo.Log) (*Result, error) {
	var event contractsapi.SendToEvmChainEvent
	if _, err := event.ParseLog(log); err != nil {
		h.logger.Error("log signature matches but failed to decode", "contract", log.Address, "err", err)

		return nil, nil
	}

	if err := h.gate.RequireActive(dbTx); err != nil {
		return nil, err
	}

	if event.ChainID == nil || !event.ChainID.IsUint64() || event.ChainID.Uint64() != h.chainID {
		return nil, fmt.Errorf("%w: unsupported destination chain %s", types.ErrInvalidRequest, event.ChainID)
	}

	amount, err := contractsapi.ToUint256(event.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidRequest, err)
	}

	fee, err := contractsapi.ToUint256(event.BridgeFee)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidRequest, err)
	}

	total, overflow := new(uint256.Int).AddOverflow(amount, fee)
	if overflow {
		return nil, fmt.Errorf("%w: amount plus fee overflows", types.ErrInvalidRequest)
	}

	var result *Result

	err = state.Update(h.db, dbTx, func(tx *bolt.Tx) error {
		denom, err := h.tokens.DenomByContract(tx, log.Address)
		if err != nil {
			return err
		}

		if err := h.escrow(tx, log.Address, denom, total); err != nil {
			return err
		}

		transfer, err := h.batches.EnqueueEscrowed(tx, event.Sender, event.Recipient, denom, amount, fee)
		if err != nil {
			return err
		}

		response, err := (&contractsapi.SendToEvmChainResponseEvent{
			ID: new(big.Int).SetUint64(transfer.ID),
		}).Log(log.Address)
		if err != nil {
			return err
		}

		result = &Result{
			Logs: []*ethgo.Log{response},
			Notifications: []types.Notification{
				types.NewNotification(types.NotifyTransferQueued, ctx.Height,
					"id", strconv.FormatUint(transfer.ID, 10), "sender", event.Sender.String(),
					"denom", denom, "amount", amount.Dec(), "fee", fee.Dec()),
			},
		}

		h.logger.Debug("send to evm chain", "id", transfer.ID, "contract", log.Address, "sender", event.Sender)

		return nil
	})

	return result, err
}

func (h *SendToEvmChainHandler) escrow(tx *bolt.Tx, contract ethgo.Address, denom string, total *uint256.Int) error {
	if !types.IsSourceDenom(denom) {
		return h.ledger.Transfer(tx, contract, types.ModuleAccount, denom, total)
	}

	canMint, err := h.ledger.CanMint(tx, denom, total)
	if err != nil {
		return err
	}

	if !canMint {
		return fmt.Errorf("%w: minting %s %s", types.ErrOverflowSupply, total, denom)
	}

	return h.ledger.Mint(tx, types.ModuleAccount, denom, total)
}
