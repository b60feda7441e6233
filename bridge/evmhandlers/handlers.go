package evmhandlers

import (
	"fmt"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/hashicorp/go-hclog"
	bolt "go.etcd.io/bbolt"

	"github.com/furyaxyz/elysium-bridge/bridge/types"
)

// LogContext describes the host EVM transaction that emitted the logs
type LogContext struct {
	TxSender ethgo.Address
	Height   uint64
}

// Result holds the effects of a handled log
type Result struct {
	// Logs are appended to the receipt of the transaction that emitted the handled log
	Logs          []*ethgo.Log
	Notifications []types.Notification
}

// Handler handles a single log signature emitted by an auto-deployed token contract
type Handler interface {
	// EventID returns the log signature the handler is registered for
	EventID() ethgo.Hash
	// Handle applies the log. An error reverts the whole transaction.
	Handle(dbTx *bolt.Tx, ctx LogContext, log *ethgo.Log) (*Result, error)
}

// Handlers dispatches host EVM logs to the registered handlers by their first topic
type Handlers struct {
	handlers map[ethgo.Hash]Handler
	logger   hclog.Logger
}

// NewHandlers registers the given handlers
func NewHandlers(logger hclog.Logger, handlers ...Handler) (*Handlers, error) {
	h := &Handlers{
		handlers: make(map[ethgo.Hash]Handler, len(handlers)),
		logger:   logger.Named("evm_handlers"),
	}

	for _, handler := range handlers {
		if _, exists := h.handlers[handler.EventID()]; exists {
			return nil, fmt.Errorf("duplicate handler for log signature %s", handler.EventID())
		}

		h.handlers[handler.EventID()] = handler
	}

	return h, nil
}

// HandleLogs runs the handlers of every matching log in order. Logs without a handler are skipped.
func (h *Handlers) HandleLogs(dbTx *bolt.Tx, ctx LogContext, logs []*ethgo.Log) (*Result, error) {
	result := &Result{}

	for i, log := range logs {
		if len(log.Topics) == 0 {
			continue
		}

		handler, ok := h.handlers[log.Topics[0]]
		if !ok {
			continue
		}

		res, err := handler.Handle(dbTx, ctx, log)
		if err != nil {
			return nil, fmt.Errorf("failed to handle log %d of %s: %w", i, log.Address, err)
		}

		if res != nil {
			result.Logs = append(result.Logs, res.Logs...)
			result.Notifications = append(result.Notifications, res.Notifications...)
		}
	}

	return result, nil
}
