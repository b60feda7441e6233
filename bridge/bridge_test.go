package bridge

import (
	"math/big"
	"testing"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/hashicorp/go-hclog"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/furyaxyz/elysium-bridge/bridge/attestation"
	"github.com/furyaxyz/elysium-bridge/bridge/config"
	"github.com/furyaxyz/elysium-bridge/bridge/contractsapi"
	"github.com/furyaxyz/elysium-bridge/bridge/state"
	"github.com/furyaxyz/elysium-bridge/bridge/tokenmap"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
	"github.com/furyaxyz/elysium-bridge/crypto"
)

const testChainID = 1

var (
	bridgeContract = ethgo.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	tokenContract  = ethgo.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	user           = ethgo.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	externalUser   = ethgo.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	admin          = ethgo.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906")
	denom          = types.GravityDenom(tokenContract)
)

type testBridge struct {
	*Bridge
	keys []*crypto.Key
}

func newTestBridge(t *testing.T, mutate func(g *GenesisState)) *testBridge {
	t.Helper()

	keys := make([]*crypto.Key, 4)
	valset := make([]*types.ValsetMember, len(keys))

	for i := range keys {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)

		keys[i] = key
		valset[i] = &types.ValsetMember{Address: key.Address(), Power: 25}
	}

	b, err := New(state.NewTestState(t), config.Bridge{
		ExternalChainID:    testChainID,
		BridgeContractAddr: bridgeContract,
	}, hclog.NewNullLogger())
	require.NoError(t, err)

	g := DefaultGenesis(valset)
	g.Params.ElysiumAdmin = admin

	if mutate != nil {
		mutate(g)
	}

	require.NoError(t, b.InitGenesis(g))

	return &testBridge{Bridge: b, keys: keys}
}

func (b *testBridge) deliverOK(t *testing.T, height uint64, msg Msg) *Response {
	t.Helper()

	res := b.Deliver(height, msg)
	require.True(t, res.IsOK(), "%s failed with code %d: %s", msg.Type(), res.Code, res.Log)

	return res
}

// attest submits the event from the first n orchestrators
func (b *testBridge) attest(t *testing.T, height uint64, event *types.Event, n int) {
	t.Helper()

	for _, key := range b.keys[:n] {
		b.deliverOK(t, height, &MsgSubmitClaim{Orchestrator: key.Address(), Event: event})
	}
}

func (b *testBridge) endBlock(t *testing.T, height uint64) *EndBlockResult {
	t.Helper()

	res, err := b.EndBlock(height)
	require.NoError(t, err)

	return res
}

func (b *testBridge) balance(t *testing.T, account ethgo.Address, asset string) uint64 {
	t.Helper()

	balance, err := b.QueryBalance(account, asset)
	require.NoError(t, err)

	return balance.Uint64()
}

func depositEvent(nonce uint64, token ethgo.Address, amount *uint256.Int) *types.Event {
	return &types.Event{
		SourceChainID: testChainID,
		Contract:      bridgeContract,
		Nonce:         nonce,
		Kind:          types.EventDeposit,
		Height:        1000 + nonce,
		Deposit: &types.DepositPayload{
			TokenContract: token,
			Sender:        externalUser,
			Receiver:      user.String(),
			Amount:        amount,
		},
	}
}

func batchExecutedEvent(nonce, batchNonce uint64, reverted ...uint64) *types.Event {
	return &types.Event{
		SourceChainID: testChainID,
		Contract:      bridgeContract,
		Nonce:         nonce,
		Kind:          types.EventBatchExecuted,
		Height:        1000 + nonce,
		BatchExecuted: &types.BatchExecutedPayload{
			TokenContract:       tokenContract,
			BatchNonce:          batchNonce,
			RevertedTransferIDs: reverted,
		},
	}
}

func everyBlock(g *GenesisState) {
	g.Params.BatchInterval = 1
}

func TestBridge_DepositAppliedExactlyOnce(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t, nil)
	event := depositEvent(1, tokenContract, uint256.NewInt(500))

	b.attest(t, 1, event, 3)

	res := b.Deliver(1, &MsgSubmitClaim{Orchestrator: b.keys[0].Address(), Event: event})
	require.Equal(t, types.ResultCode(types.ErrDuplicateClaim), res.Code)

	block := b.endBlock(t, 1)
	require.Equal(t, []uint64{1}, block.Applied)
	require.Equal(t, uint64(500), b.balance(t, user, denom))

	for _, key := range b.keys {
		res := b.Deliver(2, &MsgSubmitClaim{Orchestrator: key.Address(), Event: event})
		require.Equal(t, types.ResultCode(types.ErrDuplicateClaim), res.Code)
	}

	block = b.endBlock(t, 2)
	require.Empty(t, block.Applied)
	require.Equal(t, uint64(500), b.balance(t, user, denom))

	supply, err := b.QuerySupply(denom)
	require.NoError(t, err)
	require.Equal(t, uint64(500), supply.Uint64())

	nonce, err := b.LastAppliedNonce(b.EventSpace())
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)
}

func TestBridge_ClaimsAppliedInNonceOrder(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t, nil)

	b.attest(t, 1, depositEvent(2, tokenContract, uint256.NewInt(200)), 4)

	block := b.endBlock(t, 1)
	require.Empty(t, block.Applied)
	require.Zero(t, b.balance(t, user, denom))

	b.attest(t, 2, depositEvent(1, tokenContract, uint256.NewInt(100)), 3)

	block = b.endBlock(t, 2)
	require.Equal(t, []uint64{1, 2}, block.Applied)
	require.Equal(t, uint64(300), b.balance(t, user, denom))
}

func TestBridge_ClaimWithoutQuorumIsNotApplied(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t, nil)

	b.attest(t, 1, depositEvent(1, tokenContract, uint256.NewInt(100)), 2)

	block := b.endBlock(t, 1)
	require.Empty(t, block.Applied)

	att, err := b.QueryAttestation(b.EventSpace(), 1)
	require.NoError(t, err)
	require.Equal(t, attestation.StatusPending, att.Status)
	require.Len(t, att.Votes, 2)
}

func TestBridge_SubmitClaimRejections(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t, nil)

	foreign := depositEvent(1, tokenContract, uint256.NewInt(1))
	foreign.Contract = tokenContract

	outsider, err := crypto.GenerateKey()
	require.NoError(t, err)

	cases := []struct {
		name string
		msg  *MsgSubmitClaim
		code uint32
	}{
		{
			name: "foreign contract",
			msg:  &MsgSubmitClaim{Orchestrator: b.keys[0].Address(), Event: foreign},
			code: types.ResultCode(types.ErrInvalidRequest),
		},
		{
			name: "unknown orchestrator",
			msg:  &MsgSubmitClaim{Orchestrator: outsider.Address(), Event: depositEvent(1, tokenContract, uint256.NewInt(1))},
			code: types.ResultCode(types.ErrUnknownOrchestrator),
		},
		{
			name: "missing payload",
			msg: &MsgSubmitClaim{Orchestrator: b.keys[0].Address(), Event: &types.Event{
				SourceChainID: testChainID, Contract: bridgeContract, Nonce: 1, Kind: types.EventDeposit,
			}},
			code: types.ResultCode(types.ErrInvalidRequest),
		},
	}

	for _, c := range cases {
		res := b.Deliver(1, c.msg)
		require.Equal(t, c.code, res.Code, c.name)
		require.Error(t, res.Err(), c.name)
	}

	_, err = b.QueryAttestation(b.EventSpace(), 1)
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestBridge_RoundTrip(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t, everyBlock)

	b.attest(t, 1, depositEvent(1, tokenContract, uint256.NewInt(1000)), 3)
	b.endBlock(t, 1)

	res := b.deliverOK(t, 2, &MsgSendToEthereum{
		Sender:    user,
		Recipient: externalUser,
		Denom:     denom,
		Amount:    uint256.NewInt(600),
		Fee:       uint256.NewInt(10),
	})
	require.Equal(t, uint64(1), res.Data)
	require.Equal(t, uint64(390), b.balance(t, user, denom))
	require.Equal(t, uint64(610), b.balance(t, types.ModuleAccount, denom))

	block := b.endBlock(t, 2)
	require.Len(t, block.Cut, 1)

	batch := block.Cut[0]
	require.Equal(t, uint64(1), batch.Nonce)
	require.Equal(t, tokenContract, batch.TokenContract)
	require.Len(t, batch.Transfers, 1)

	for i, key := range b.keys[:3] {
		sig, err := key.Sign(batch.Checkpoint[:])
		require.NoError(t, err)

		res := b.deliverOK(t, 3, &MsgConfirmBatch{
			Orchestrator:  key.Address(),
			TokenContract: tokenContract,
			Nonce:         batch.Nonce,
			Signature:     sig,
		})
		require.Equal(t, i == 2, res.Data)
	}

	signed, err := b.QuerySignedBatch(tokenContract, batch.Nonce)
	require.NoError(t, err)
	require.True(t, signed.HasQuorum)
	require.Len(t, signed.Signatures, 3)

	b.attest(t, 3, batchExecutedEvent(2, batch.Nonce), 3)
	block = b.endBlock(t, 3)
	require.Equal(t, []uint64{2}, block.Applied)

	batches, err := b.QueryBatches()
	require.NoError(t, err)
	require.Empty(t, batches)

	supply, err := b.QuerySupply(denom)
	require.NoError(t, err)
	require.Equal(t, uint64(390), supply.Uint64())
	require.Zero(t, b.balance(t, types.ModuleAccount, denom))
}

func TestBridge_CancelSendToEthereum(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t, nil)

	b.attest(t, 1, depositEvent(1, tokenContract, uint256.NewInt(100)), 3)
	b.endBlock(t, 1)

	b.deliverOK(t, 2, &MsgSendToEthereum{
		Sender: user, Recipient: externalUser, Denom: denom, Amount: uint256.NewInt(50), Fee: uint256.NewInt(1),
	})

	res := b.Deliver(2, &MsgCancelSendToEthereum{Sender: externalUser, TransferID: 1})
	require.Equal(t, types.ResultCode(types.ErrPermissionDenied), res.Code)

	b.deliverOK(t, 2, &MsgCancelSendToEthereum{Sender: user, TransferID: 1})
	require.Equal(t, uint64(100), b.balance(t, user, denom))

	pending, err := b.QueryPendingTransfers(ethgo.ZeroAddress)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestBridge_MaxValueDeposit(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t, nil)
	maxAmount := new(uint256.Int).SetAllOne()
	otherToken := ethgo.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")

	b.attest(t, 1, depositEvent(1, tokenContract, maxAmount), 3)
	b.attest(t, 1, depositEvent(2, tokenContract, uint256.NewInt(1)), 3)
	b.attest(t, 1, depositEvent(3, otherToken, uint256.NewInt(7)), 3)
	b.attest(t, 1, depositEvent(4, tokenContract, maxAmount), 3)

	block := b.endBlock(t, 1)
	require.Equal(t, []uint64{1, 2, 3, 4}, block.Applied)

	// the second max value deposit can not be minted on top of the first one
	balance, err := b.QueryBalance(user, denom)
	require.NoError(t, err)
	require.Equal(t, maxAmount, balance)

	supply, err := b.QuerySupply(denom)
	require.NoError(t, err)
	require.Equal(t, maxAmount, supply)

	invalid, err := b.QueryInvalidClaims(b.EventSpace())
	require.NoError(t, err)
	require.Len(t, invalid, 2)
	require.Equal(t, uint64(2), invalid[0].Nonce)
	require.Equal(t, uint64(4), invalid[1].Nonce)

	for _, ic := range invalid {
		require.Contains(t, ic.Reason, "overflows")
	}

	p, err := b.QueryGravityParams()
	require.NoError(t, err)
	require.True(t, p.BridgeActive)

	require.Equal(t, uint64(7), b.balance(t, user, types.GravityDenom(otherToken)))

	// the bridge keeps applying claims
	b.attest(t, 2, depositEvent(5, otherToken, uint256.NewInt(3)), 3)

	block = b.endBlock(t, 2)
	require.Equal(t, []uint64{5}, block.Applied)
	require.Equal(t, uint64(10), b.balance(t, user, types.GravityDenom(otherToken)))
}

func TestBridge_TurnBridgeOff(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t, nil)

	b.attest(t, 1, depositEvent(1, tokenContract, uint256.NewInt(100)), 3)
	b.endBlock(t, 1)

	b.deliverOK(t, 2, &MsgSendToEthereum{
		Sender: user, Recipient: externalUser, Denom: denom, Amount: uint256.NewInt(50), Fee: uint256.NewInt(0),
	})

	res := b.Deliver(2, &MsgTurnBridge{Signer: user, Enable: false})
	require.Equal(t, types.ResultCode(types.ErrPermissionDenied), res.Code)

	b.deliverOK(t, 2, &MsgTurnBridge{Signer: admin, Enable: false})

	res = b.Deliver(2, &MsgSendToEthereum{
		Sender: user, Recipient: externalUser, Denom: denom, Amount: uint256.NewInt(10), Fee: uint256.NewInt(0),
	})
	require.Equal(t, types.ResultCode(types.ErrBridgeInactive), res.Code)
	require.Equal(t, uint64(50), b.balance(t, user, denom))

	// claims are still collected but not applied
	b.attest(t, 2, depositEvent(2, tokenContract, uint256.NewInt(5)), 3)

	for height := uint64(2); height <= 15; height++ {
		block := b.endBlock(t, height)
		require.Empty(t, block.Cut)
		require.Empty(t, block.Applied)
	}

	batches, err := b.QueryBatches()
	require.NoError(t, err)
	require.Empty(t, batches)

	b.deliverOK(t, 16, &MsgTurnBridge{Signer: admin, Enable: true})

	block := b.endBlock(t, 16)
	require.Equal(t, []uint64{2}, block.Applied)
	require.Empty(t, block.Cut)

	block = b.endBlock(t, 20)
	require.Len(t, block.Cut, 1)
}

func TestBridge_AutoDeployment(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t, func(g *GenesisState) {
		g.Params.EnableAutoDeployment = true
	})

	b.attest(t, 1, depositEvent(1, tokenContract, uint256.NewInt(1000)), 3)
	b.endBlock(t, 1)

	mapping, err := b.QueryContractByDenom(denom)
	require.NoError(t, err)
	require.True(t, mapping.AutoContract)
	require.Equal(t, tokenmap.AutoContractAddress(denom), mapping.Contract)

	requests, err := b.QueryAutoDeployRequests()
	require.NoError(t, err)
	require.Len(t, requests, 1)
	require.Equal(t, denom, requests[0].Denom)

	// the coins are escrowed at the token contract
	require.Zero(t, b.balance(t, user, denom))
	require.Equal(t, uint64(1000), b.balance(t, mapping.Contract, denom))
	require.Zero(t, b.balance(t, types.ModuleAccount, denom))

	res := b.deliverOK(t, 2, &MsgEvmTx{
		TxSender: user,
		Logs: []*ethgo.Log{
			contractsapi.NewSendToEvmChainLog(mapping.Contract, user, externalUser,
				big.NewInt(400), big.NewInt(10), testChainID),
		},
	})

	logs, ok := res.Data.([]*ethgo.Log)
	require.True(t, ok)
	require.Len(t, logs, 1)
	require.Equal(t, uint64(590), b.balance(t, mapping.Contract, denom))
	require.Equal(t, uint64(410), b.balance(t, types.ModuleAccount, denom))

	pending, err := b.QueryPendingTransfers(tokenContract)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, uint64(400), pending[0].Amount.Uint64())
	require.Equal(t, denom, pending[0].Denom)
}

func TestBridge_EvmTxRevertsWhileInactive(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t, func(g *GenesisState) {
		g.Params.EnableAutoDeployment = true
	})

	b.attest(t, 1, depositEvent(1, tokenContract, uint256.NewInt(100)), 3)
	b.endBlock(t, 1)

	contract := tokenmap.AutoContractAddress(denom)

	b.deliverOK(t, 2, &MsgTurnBridge{Signer: admin, Enable: false})

	res := b.Deliver(2, &MsgEvmTx{
		TxSender: user,
		Logs: []*ethgo.Log{
			contractsapi.NewSendToEvmChainLog(contract, user, externalUser, big.NewInt(40), big.NewInt(0), testChainID),
		},
	})
	require.Equal(t, types.ResultCode(types.ErrBridgeInactive), res.Code)
	require.Equal(t, uint64(100), b.balance(t, contract, denom))
	require.Zero(t, b.balance(t, types.ModuleAccount, denom))
}

func TestBridge_VoucherRedeemedOnce(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t, everyBlock)
	newRecipient := ethgo.HexToAddress("0x15d34AAf54267DB7D7c367839AAf71A00a2C6A65")

	b.attest(t, 1, depositEvent(1, tokenContract, uint256.NewInt(100)), 3)
	b.endBlock(t, 1)

	b.deliverOK(t, 2, &MsgSendToEthereum{
		Sender: user, Recipient: externalUser, Denom: denom, Amount: uint256.NewInt(60), Fee: uint256.NewInt(5),
	})

	block := b.endBlock(t, 2)
	require.Len(t, block.Cut, 1)

	b.attest(t, 3, batchExecutedEvent(2, block.Cut[0].Nonce, 1), 3)
	b.endBlock(t, 3)

	last, err := b.QueryLastRevertedNonce()
	require.NoError(t, err)
	require.Equal(t, uint64(1), last)

	// the voucher belongs to the intended recipient of the reverted transfer
	voucher, err := b.QueryRevertedVoucher(1)
	require.NoError(t, err)
	require.Equal(t, externalUser, voucher.Recipient)
	require.Equal(t, tokenContract, voucher.Token)
	require.Equal(t, uint64(60), voucher.Amount.Uint64())

	// the sender of the reverted transfer can not redeem it
	res := b.Deliver(4, &MsgRedeemVoucher{Sender: user, Nonce: 1, Recipient: newRecipient})
	require.Equal(t, types.ResultCode(types.ErrPermissionDenied), res.Code)

	res = b.deliverOK(t, 4, &MsgRedeemVoucher{Sender: externalUser, Nonce: 1, Recipient: newRecipient})
	require.Equal(t, uint64(2), res.Data)

	res = b.Deliver(4, &MsgRedeemVoucher{Sender: externalUser, Nonce: 1, Recipient: newRecipient})
	require.Equal(t, types.ResultCode(types.ErrVoucherRedeemed), res.Code)

	res = b.Deliver(4, &MsgRedeemVoucher{Sender: user, Nonce: 1, Recipient: newRecipient})
	require.Equal(t, types.ResultCode(types.ErrVoucherRedeemed), res.Code)

	_, err = b.QueryRevertedVoucher(1)
	require.ErrorIs(t, err, types.ErrVoucherRedeemed)

	pending, err := b.QueryPendingTransfers(tokenContract)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, externalUser, pending[0].Sender)
	require.Equal(t, newRecipient, pending[0].Recipient)
	require.Equal(t, uint64(60), pending[0].Amount.Uint64())

	// the fee was paid out, the voucher amount is still escrowed
	require.Equal(t, uint64(60), b.balance(t, types.ModuleAccount, denom))
}

func TestBridge_SourceTokenRoundTrip(t *testing.T) {
	t.Parallel()

	hostToken := ethgo.HexToAddress("0xa513E6E4b8f2a923D98304ec87F64353C4D5C853")
	sourceDenom := types.SourceDenomPrefix + hostToken.String()
	externalToken := ethgo.HexToAddress("0x2279B7A0a67DB372996a5FaB50D91eAA73d2eBe6")

	b := newTestBridge(t, func(g *GenesisState) {
		everyBlock(g)
		g.TokenMappings = []*types.TokenMapping{{Denom: sourceDenom, Contract: hostToken, Symbol: "ELY", Decimals: 18}}
	})

	sendOut := &MsgEvmTx{
		TxSender: user,
		Logs: []*ethgo.Log{
			contractsapi.NewSendToEvmChainLog(hostToken, user, externalUser, big.NewInt(300), big.NewInt(10), testChainID),
		},
	}

	// host tokens can not leave before the external token is deployed
	res := b.Deliver(1, sendOut)
	require.Equal(t, types.ResultCode(types.ErrInvalidRequest), res.Code)

	b.attest(t, 1, &types.Event{
		SourceChainID: testChainID,
		Contract:      bridgeContract,
		Nonce:         1,
		Kind:          types.EventERC20Deployed,
		Height:        1001,
		ERC20Deployed: &types.ERC20DeployedPayload{
			Denom: sourceDenom, TokenContract: externalToken, Name: "Elysium", Symbol: "ELY", Decimals: 18,
		},
	}, 3)
	require.Equal(t, []uint64{1}, b.endBlock(t, 1).Applied)

	token, err := b.QueryExternalToken(sourceDenom)
	require.NoError(t, err)
	require.Equal(t, externalToken, token)

	// burnt host tokens are minted into the module escrow and queued
	b.deliverOK(t, 2, sendOut)
	require.Equal(t, uint64(310), b.balance(t, types.ModuleAccount, sourceDenom))

	block := b.endBlock(t, 2)
	require.Len(t, block.Cut, 1)
	require.Equal(t, externalToken, block.Cut[0].TokenContract)

	executed := batchExecutedEvent(2, block.Cut[0].Nonce)
	executed.BatchExecuted.TokenContract = externalToken

	b.attest(t, 3, executed, 3)
	require.Equal(t, []uint64{2}, b.endBlock(t, 3).Applied)

	// executed source transfers stay escrowed, they back the external token supply
	require.Equal(t, uint64(310), b.balance(t, types.ModuleAccount, sourceDenom))

	supply, err := b.QuerySupply(sourceDenom)
	require.NoError(t, err)
	require.Equal(t, uint64(310), supply.Uint64())

	// depositing the external token back releases the escrow into host tokens
	b.attest(t, 4, depositEvent(3, externalToken, uint256.NewInt(100)), 3)
	b.attest(t, 4, depositEvent(4, externalToken, uint256.NewInt(500)), 3)
	require.Equal(t, []uint64{3, 4}, b.endBlock(t, 4).Applied)

	require.Equal(t, uint64(210), b.balance(t, types.ModuleAccount, sourceDenom))
	require.Zero(t, b.balance(t, user, sourceDenom))
	require.Zero(t, b.balance(t, user, types.GravityDenom(externalToken)))

	supply, err = b.QuerySupply(sourceDenom)
	require.NoError(t, err)
	require.Equal(t, uint64(210), supply.Uint64())

	// more than the escrow holds is an invalid claim
	invalid, err := b.QueryInvalidClaims(b.EventSpace())
	require.NoError(t, err)
	require.Len(t, invalid, 1)
	require.Equal(t, uint64(4), invalid[0].Nonce)
	require.Contains(t, invalid[0].Reason, "exceeds the escrowed")

	p, err := b.QueryGravityParams()
	require.NoError(t, err)
	require.True(t, p.BridgeActive)
}

func TestBridge_BatchTimeoutFollowsExternalHeight(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t, func(g *GenesisState) {
		everyBlock(g)
		g.Params.BatchTimeoutBlocks = 10
	})

	b.attest(t, 1, depositEvent(1, tokenContract, uint256.NewInt(100)), 3)
	b.endBlock(t, 1)

	height, err := b.QueryLastExternalHeight()
	require.NoError(t, err)
	require.Equal(t, uint64(1001), height)

	b.deliverOK(t, 2, &MsgSendToEthereum{
		Sender: user, Recipient: externalUser, Denom: denom, Amount: uint256.NewInt(50), Fee: uint256.NewInt(1),
	})

	block := b.endBlock(t, 2)
	require.Len(t, block.Cut, 1)
	require.Equal(t, uint64(1011), block.Cut[0].Timeout)

	// local blocks do not expire the batch
	for h := uint64(3); h < 30; h++ {
		require.Empty(t, b.endBlock(t, h).TimedOut)
	}

	// an attested event from past the timeout does
	ev := depositEvent(2, tokenContract, uint256.NewInt(1))
	ev.Height = 1011

	b.attest(t, 30, ev, 3)

	block = b.endBlock(t, 30)
	require.Equal(t, []uint64{2}, block.Applied)
	require.Len(t, block.TimedOut, 1)
	require.Equal(t, uint64(1), block.TimedOut[0].Nonce)
}

func TestBridge_ConflictingAttestationHalts(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t, nil)
	honest := depositEvent(1, tokenContract, uint256.NewInt(100))
	forged := depositEvent(1, tokenContract, uint256.NewInt(200))

	notifications, cancel := b.Subscribe(16)
	defer cancel()

	for _, key := range b.keys[:2] {
		b.deliverOK(t, 1, &MsgSubmitClaim{Orchestrator: key.Address(), Event: honest})
	}

	b.deliverOK(t, 1, &MsgSubmitClaim{Orchestrator: b.keys[2].Address(), Event: forged})

	res := b.Deliver(1, &MsgSubmitClaim{Orchestrator: b.keys[3].Address(), Event: forged})
	require.Equal(t, types.ResultCode(types.ErrConflictingAttestation), res.Code)
	require.ErrorIs(t, res.Err(), types.ErrConflictingAttestation)

	submit, ok := res.Data.(*attestation.SubmitResult)
	require.True(t, ok)
	require.True(t, submit.Halted)

	n := <-notifications
	require.Equal(t, types.NotifyAttestationHalted, n.Kind)

	att, err := b.QueryAttestation(b.EventSpace(), 1)
	require.NoError(t, err)
	require.Equal(t, attestation.StatusHalted, att.Status)
	require.Len(t, att.Votes, 4)

	block := b.endBlock(t, 1)
	require.True(t, block.Halted)
	require.Empty(t, block.Applied)
	require.Zero(t, b.balance(t, user, denom))

	hash, err := honest.ClaimHash()
	require.NoError(t, err)

	res = b.Deliver(2, &MsgResolveHalted{Authority: admin, Space: b.EventSpace(), Nonce: 1, Hash: hash})
	require.Equal(t, types.ResultCode(types.ErrPermissionDenied), res.Code)

	b.deliverOK(t, 2, &MsgResolveHalted{
		Authority: types.GovernanceAuthority, Space: b.EventSpace(), Nonce: 1, Hash: hash,
	})

	block = b.endBlock(t, 2)
	require.False(t, block.Halted)
	require.Equal(t, []uint64{1}, block.Applied)
	require.Equal(t, uint64(100), b.balance(t, user, denom))
}

func TestBridge_Notifications(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t, nil)

	notifications, cancel := b.Subscribe(16)
	full, cancelFull := b.Subscribe(0)

	defer cancelFull()

	b.attest(t, 1, depositEvent(1, tokenContract, uint256.NewInt(100)), 3)
	b.endBlock(t, 1)

	n := <-notifications
	require.Equal(t, types.NotifyBalanceChanged, n.Kind)
	require.Equal(t, uint64(1), n.Height)
	require.Equal(t, "100", n.Attributes["amount"])

	n = <-notifications
	require.Equal(t, types.NotifyClaimApplied, n.Kind)
	require.Equal(t, "deposit", n.Attributes["kind"])

	select {
	case <-full:
		t.Fatal("unbuffered subscriber must not receive notifications")
	default:
	}

	cancel()

	_, open := <-notifications
	require.False(t, open)
}

func TestBridge_TokenMappingPermissions(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t, nil)
	contract := ethgo.HexToAddress("0xa513E6E4b8f2a923D98304ec87F64353C4D5C853")

	msg := &MsgUpdateTokenMapping{Sender: user, Denom: denom, Contract: contract, Symbol: "TKN", Decimals: 18}

	res := b.Deliver(1, msg)
	require.Equal(t, types.ResultCode(types.ErrPermissionDenied), res.Code)

	_, err := b.QueryContractByDenom(denom)
	require.ErrorIs(t, err, types.ErrMappingNotFound)

	msg.Sender = admin
	b.deliverOK(t, 1, msg)

	mapping, err := b.QueryContractByDenom(denom)
	require.NoError(t, err)
	require.Equal(t, contract, mapping.Contract)
	require.False(t, mapping.AutoContract)

	mapped, err := b.QueryDenomByContract(contract)
	require.NoError(t, err)
	require.Equal(t, denom, mapped)
}

func TestBridge_LegacyTokenMappingProposal(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t, nil)
	contract := "0xa513E6E4b8f2a923D98304ec87F64353C4D5C853"

	content := func(contract string) map[string]interface{} {
		return map[string]interface{}{
			"@type":    TokenMappingChangeProposalType,
			"title":    "map token",
			"denom":    denom,
			"contract": contract,
			"symbol":   "TKN",
			"decimal":  "18",
		}
	}

	res := b.Deliver(1, &MsgExecLegacyContent{Authority: admin, Content: content(contract)})
	require.Equal(t, types.ResultCode(types.ErrPermissionDenied), res.Code)

	unknown := content(contract)
	unknown["@type"] = "/elysium.Unknown"

	res = b.Deliver(1, &MsgExecLegacyContent{Authority: types.GovernanceAuthority, Content: unknown})
	require.Equal(t, types.ResultCode(types.ErrInvalidRequest), res.Code)

	b.deliverOK(t, 1, &MsgExecLegacyContent{Authority: types.GovernanceAuthority, Content: content(contract)})

	mapping, err := b.QueryContractByDenom(denom)
	require.NoError(t, err)
	require.Equal(t, ethgo.HexToAddress(contract), mapping.Contract)

	mappings, err := b.QueryTokenMappings()
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	require.Equal(t, uint8(18), mappings[0].Decimals)

	b.deliverOK(t, 2, &MsgExecLegacyContent{Authority: types.GovernanceAuthority, Content: content("")})

	_, err = b.QueryContractByDenom(denom)
	require.ErrorIs(t, err, types.ErrMappingNotFound)
}

func TestBridge_UpdateParams(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t, nil)

	p, err := b.QueryGravityParams()
	require.NoError(t, err)

	p.EnableAutoDeployment = true

	res := b.Deliver(1, &MsgUpdateParams{Authority: admin, Params: p})
	require.Equal(t, types.ResultCode(types.ErrPermissionDenied), res.Code)

	invalid := p
	invalid.QuorumNumerator = 0

	res = b.Deliver(1, &MsgUpdateParams{Authority: types.GovernanceAuthority, Params: invalid})
	require.Equal(t, types.ResultCode(types.ErrInvalidParams), res.Code)

	res = b.deliverOK(t, 1, &MsgUpdateParams{Authority: types.GovernanceAuthority, Params: p})
	require.Equal(t, p.Version+1, res.Data)

	elysium, err := b.QueryParams()
	require.NoError(t, err)
	require.True(t, elysium.EnableAutoDeployment)
	require.Equal(t, admin, elysium.ElysiumAdmin)
	require.Equal(t, config.DefaultIbcElyDenom, elysium.IbcElyDenom)
	require.Equal(t, config.DefaultIbcTimeout, elysium.IbcTimeout)
}

func TestBridge_ValsetRotation(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t, nil)

	newcomer, err := crypto.GenerateKey()
	require.NoError(t, err)

	members := []*types.ValsetMember{
		{Address: b.keys[0].Address(), Power: 10},
		{Address: b.keys[1].Address(), Power: 10},
		{Address: newcomer.Address(), Power: 10},
	}

	res := b.Deliver(1, &MsgProposeValset{Authority: user, Members: members})
	require.Equal(t, types.ResultCode(types.ErrPermissionDenied), res.Code)

	res = b.deliverOK(t, 1, &MsgProposeValset{Authority: admin, Members: members})
	require.Equal(t, uint64(1), res.Data)

	pending, err := b.QueryPendingValsets(b.keys[0].Address())
	require.NoError(t, err)
	require.Len(t, pending, 1)

	for i, key := range b.keys[:3] {
		sig, err := key.Sign(pending[0].Hash[:])
		require.NoError(t, err)

		res := b.deliverOK(t, 2, &MsgConfirmValset{Orchestrator: key.Address(), Nonce: 1, Signature: sig})
		require.Equal(t, i == 2, res.Data)
	}

	current, err := b.QueryValset()
	require.NoError(t, err)
	require.Equal(t, uint64(1), current.Nonce)
	require.True(t, current.Active)

	res = b.Deliver(3, &MsgSubmitClaim{
		Orchestrator: b.keys[3].Address(),
		Event:        depositEvent(1, tokenContract, uint256.NewInt(1)),
	})
	require.Equal(t, types.ResultCode(types.ErrUnknownOrchestrator), res.Code)
}

func TestBridge_Genesis(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t, func(g *GenesisState) {
		g.TokenMappings = []*types.TokenMapping{{
			Denom:    denom,
			Contract: ethgo.HexToAddress("0xa513E6E4b8f2a923D98304ec87F64353C4D5C853"),
		}}
	})

	require.ErrorIs(t, b.InitGenesis(DefaultGenesis([]*types.ValsetMember{{Address: user, Power: 1}})),
		errGenesisInitialized)

	b.attest(t, 1, depositEvent(1, tokenContract, uint256.NewInt(500)), 3)
	b.endBlock(t, 1)

	exported, err := b.ExportGenesis()
	require.NoError(t, err)
	require.NoError(t, exported.Validate())
	require.Len(t, exported.Valset, 4)
	require.Len(t, exported.TokenMappings, 1)
	require.Equal(t, map[string]uint64{b.EventSpace(): 1}, exported.LastAppliedNonces)

	path := t.TempDir() + "/genesis.json"
	require.NoError(t, exported.Save(path))

	loaded, err := LoadGenesis(path)
	require.NoError(t, err)

	imported, err := New(state.NewTestState(t), config.Bridge{
		ExternalChainID:    testChainID,
		BridgeContractAddr: bridgeContract,
	}, hclog.NewNullLogger())
	require.NoError(t, err)
	require.NoError(t, imported.InitGenesis(loaded))

	for _, entry := range exported.Balances {
		balance, err := imported.QueryBalance(entry.Account, entry.Asset)
		require.NoError(t, err)
		require.Equal(t, entry.Amount, balance)
	}

	res := imported.Deliver(2, &MsgSubmitClaim{
		Orchestrator: b.keys[0].Address(),
		Event:        depositEvent(1, tokenContract, uint256.NewInt(500)),
	})
	require.Equal(t, types.ResultCode(types.ErrDuplicateClaim), res.Code)
}

func TestGenesisState_Validate(t *testing.T) {
	t.Parallel()

	g := DefaultGenesis(nil)
	g.Params.BatchInterval = 0
	g.TokenMappings = []*types.TokenMapping{{Denom: "uatom"}}

	err := g.Validate()
	require.Error(t, err)
	require.ErrorIs(t, err, types.ErrInvalidParams)
	require.ErrorIs(t, err, types.ErrInvalidRequest)
}

func TestBridge_EndBlockHeight(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t, nil)

	b.endBlock(t, 1)

	height, err := b.CurrentHeight()
	require.NoError(t, err)
	require.Equal(t, uint64(2), height)

	_, err = b.EndBlock(1)
	require.ErrorIs(t, err, types.ErrInvalidRequest)
}
