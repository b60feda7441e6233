package bridge

import (
	"errors"
	"fmt"
	"strconv"

	bolt "go.etcd.io/bbolt"

	"github.com/furyaxyz/elysium-bridge/bridge/evmhandlers"
	"github.com/furyaxyz/elysium-bridge/bridge/metrics"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
)

func (b *Bridge) handle(tx *bolt.Tx, height uint64, msg Msg) (*outcome, error) {
	switch m := msg.(type) {
	case *MsgSendToEthereum:
		return b.sendToEthereum(tx, height, m)
	case *MsgCancelSendToEthereum:
		return b.cancelSendToEthereum(tx, height, m)
	case *MsgSubmitClaim:
		return b.submitClaim(tx, height, m)
	case *MsgConfirmBatch:
		return b.confirmBatch(tx, m)
	case *MsgConfirmValset:
		return b.confirmValset(tx, height, m)
	case *MsgProposeValset:
		return b.proposeValset(tx, height, m)
	case *MsgTurnBridge:
		return b.turnBridge(tx, height, m)
	case *MsgUpdateParams:
		return b.updateParams(tx, height, m)
	case *MsgUpdateTokenMapping:
		return b.updateTokenMapping(tx, height, m)
	case *MsgExecLegacyContent:
		return b.execLegacyContent(tx, height, m)
	case *MsgRedeemVoucher:
		return b.redeemVoucher(tx, height, m)
	case *MsgResolveHalted:
		return b.resolveHalted(tx, m)
	case *MsgEvmTx:
		return b.handleEvmTx(tx, height, m)
	default:
		return nil, fmt.Errorf("%w: unknown message %T", types.ErrInvalidRequest, msg)
	}
}

func (b *Bridge) sendToEthereum(tx *bolt.Tx, height uint64, m *MsgSendToEthereum) (*outcome, error) {
	transfer, err := b.batches.Enqueue(tx, m.Sender, m.Recipient, m.Denom, m.Amount, m.Fee)
	if err != nil {
		return nil, err
	}

	return &outcome{
		data: transfer.ID,
		notifications: []types.Notification{
			types.NewNotification(types.NotifyTransferQueued, height,
				"id", strconv.FormatUint(transfer.ID, 10), "sender", m.Sender.String(),
				"denom", m.Denom, "amount", transfer.Amount.Dec(), "fee", transfer.Fee.Dec()),
		},
	}, nil
}

func (b *Bridge) cancelSendToEthereum(tx *bolt.Tx, height uint64, m *MsgCancelSendToEthereum) (*outcome, error) {
	transfer, err := b.batches.Cancel(tx, m.Sender, m.TransferID)
	if err != nil {
		return nil, err
	}

	return &outcome{
		data: transfer.ID,
		notifications: []types.Notification{
			types.NewNotification(types.NotifyTransferCancelled, height,
				"id", strconv.FormatUint(transfer.ID, 10), "sender", m.Sender.String()),
		},
	}, nil
}

func (b *Bridge) submitClaim(tx *bolt.Tx, height uint64, m *MsgSubmitClaim) (*outcome, error) {
	event := m.Event
	kind := event.Kind.String()

	if event.SourceChainID != b.chainID || event.Contract != b.contract {
		metrics.IncrClaimRejected("unknown_contract")

		return nil, fmt.Errorf("%w: event of %s is not from the bridge contract",
			types.ErrInvalidRequest, event.Space())
	}

	set, err := b.signers.ValidatorSet(tx)
	if err != nil {
		return nil, err
	}

	hash, err := event.ClaimHash()
	if err != nil {
		return nil, err
	}

	claim, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	res, err := b.attestations.SubmitVote(tx, event.Space(), event.Nonce, m.Orchestrator, hash, claim, set, height)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrDuplicateClaim):
			metrics.IncrClaimRejected("duplicate")
		case errors.Is(err, types.ErrUnknownOrchestrator):
			metrics.IncrClaimRejected("unknown_orchestrator")
		}

		return nil, err
	}

	metrics.IncrClaimSubmitted(kind)

	out := &outcome{data: res}

	if res.Halted {
		metrics.IncrAttestationHalted()

		out.notifications = append(out.notifications, types.NewNotification(types.NotifyAttestationHalted, height,
			"space", event.Space(), "nonce", strconv.FormatUint(event.Nonce, 10)))
		out.failure = fmt.Errorf("%w: nonce %d of %s is halted", types.ErrConflictingAttestation,
			event.Nonce, event.Space())
	}

	return out, nil
}

func (b *Bridge) confirmBatch(tx *bolt.Tx, m *MsgConfirmBatch) (*outcome, error) {
	if err := b.batches.Confirm(tx, m.Orchestrator, m.TokenContract, m.Nonce, m.Signature); err != nil {
		return nil, err
	}

	_, _, hasQuorum, err := b.batches.SignedBatch(tx, m.TokenContract, m.Nonce)
	if err != nil {
		return nil, err
	}

	return &outcome{data: hasQuorum}, nil
}

func (b *Bridge) confirmValset(tx *bolt.Tx, height uint64, m *MsgConfirmValset) (*outcome, error) {
	cp, activated, err := b.signers.ConfirmValset(tx, m.Orchestrator, m.Nonce, m.Signature, height)
	if err != nil {
		return nil, err
	}

	out := &outcome{data: activated}

	if activated {
		out.notifications = append(out.notifications, types.NewNotification(types.NotifyValsetActivated, height,
			"nonce", strconv.FormatUint(cp.Nonce, 10), "hash", cp.Hash.String()))
	}

	return out, nil
}

func (b *Bridge) proposeValset(tx *bolt.Tx, height uint64, m *MsgProposeValset) (*outcome, error) {
	if err := b.gate.Authorize(tx, m.Authority); err != nil {
		return nil, err
	}

	cp, err := b.signers.ProposeUpdate(tx, m.Members, height)
	if err != nil {
		return nil, err
	}

	return &outcome{
		data: cp.Nonce,
		notifications: []types.Notification{
			types.NewNotification(types.NotifyValsetProposed, height,
				"nonce", strconv.FormatUint(cp.Nonce, 10), "hash", cp.Hash.String()),
		},
	}, nil
}

func (b *Bridge) turnBridge(tx *bolt.Tx, height uint64, m *MsgTurnBridge) (*outcome, error) {
	p, err := b.gate.TurnBridge(tx, m.Signer, m.Enable)
	if err != nil {
		return nil, err
	}

	metrics.SetBridgeActive(p.BridgeActive)

	return &outcome{
		notifications: []types.Notification{
			types.NewNotification(types.NotifyBridgeToggled, height,
				"active", strconv.FormatBool(p.BridgeActive)),
		},
	}, nil
}

func (b *Bridge) updateParams(tx *bolt.Tx, height uint64, m *MsgUpdateParams) (*outcome, error) {
	p, err := b.gate.UpdateParams(tx, m.Authority, m.Params)
	if err != nil {
		return nil, err
	}

	metrics.SetBridgeActive(p.BridgeActive)

	return &outcome{
		data: p.Version,
		notifications: []types.Notification{
			types.NewNotification(types.NotifyParamsUpdated, height,
				"version", strconv.FormatUint(p.Version, 10)),
		},
	}, nil
}

func (b *Bridge) updateTokenMapping(tx *bolt.Tx, height uint64, m *MsgUpdateTokenMapping) (*outcome, error) {
	isAdmin, err := b.gate.IsAdmin(tx, m.Sender)
	if err != nil {
		return nil, err
	}

	if !isAdmin {
		return nil, fmt.Errorf("%w: %s is not the bridge admin", types.ErrPermissionDenied, m.Sender)
	}

	return b.setMapping(tx, height, &types.TokenMapping{
		Denom:    m.Denom,
		Contract: m.Contract,
		Symbol:   m.Symbol,
		Decimals: m.Decimals,
	})
}

func (b *Bridge) setMapping(tx *bolt.Tx, height uint64, mapping *types.TokenMapping) (*outcome, error) {
	if err := b.tokens.SetMapping(tx, mapping); err != nil {
		return nil, err
	}

	return &outcome{
		notifications: []types.Notification{
			types.NewNotification(types.NotifyMappingUpdated, height,
				"denom", mapping.Denom, "contract", mapping.Contract.String()),
		},
	}, nil
}

func (b *Bridge) redeemVoucher(tx *bolt.Tx, height uint64, m *MsgRedeemVoucher) (*outcome, error) {
	transfer, err := b.batches.RedeemVoucher(tx, m.Sender, m.Nonce, m.Recipient, m.Fee)
	if err != nil {
		return nil, err
	}

	return &outcome{
		data: transfer.ID,
		notifications: []types.Notification{
			types.NewNotification(types.NotifyVoucherRedeemed, height,
				"nonce", strconv.FormatUint(m.Nonce, 10), "recipient", m.Recipient.String(),
				"transfer", strconv.FormatUint(transfer.ID, 10)),
		},
	}, nil
}

func (b *Bridge) resolveHalted(tx *bolt.Tx, m *MsgResolveHalted) (*outcome, error) {
	if m.Authority != types.GovernanceAuthority {
		return nil, fmt.Errorf("%w: invalid authority %s", types.ErrPermissionDenied, m.Authority)
	}

	if err := b.attestations.ResolveHalted(tx, m.Space, m.Nonce, m.Hash); err != nil {
		return nil, err
	}

	b.logger.Warn("halted attestation resolved by governance", "space", m.Space, "nonce", m.Nonce, "hash", m.Hash)

	return &outcome{}, nil
}

func (b *Bridge) handleEvmTx(tx *bolt.Tx, height uint64, m *MsgEvmTx) (*outcome, error) {
	res, err := b.evmHandlers.HandleLogs(tx, evmhandlers.LogContext{TxSender: m.TxSender, Height: height}, m.Logs)
	if err != nil {
		return nil, err
	}

	return &outcome{data: res.Logs, notifications: res.Notifications}, nil
}
