package bridge_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/pokt-network/bridge-core/bridge"
	"github.com/pokt-network/bridge-core/contract"
	"github.com/pokt-network/bridge-core/entity"
	"github.com/pokt-network/bridge-core/logging"
)

var (
	wpoktAddr   = common.HexToAddress("0x4000000000000000000000000000000000000004")
	xpoktAddr   = common.HexToAddress("0x5000000000000000000000000000000000000005")
	lockboxAddr = common.HexToAddress("0x6000000000000000000000000000000000000006")
	adapterAddr = common.HexToAddress("0x7000000000000000000000000000000000000007")
	recipient   = common.HexToAddress("0x8000000000000000000000000000000000000008")
)

func newTestEVMFlow(gw *mockGateway) *bridge.EVMFlow {
	return bridge.NewEVMFlow(bridge.EVMFlowConfig{
		SourceChain:       entity.ChainEthereum,
		DestChain:         entity.ChainBase,
		WPOKT:             wpoktAddr,
		XPOKT:             xpoktAddr,
		Lockbox:           lockboxAddr,
		BridgeAdapter:     adapterAddr,
		DestBridgeChainID: 30,
	}, gw, logging.New())
}

func TestEVMFlowBridgeWithConversion(t *testing.T) {
	t.Parallel()

	gw := newMockGateway(entity.ChainBase)
	gw.setBalance(wpoktAddr, 7_000000)
	gw.setBalance(xpoktAddr, 3_000000)
	gw.setCallResult(adapterAddr, big.NewInt(1234))
	flow := newTestEVMFlow(gw)

	bridgeHash, err := flow.Bridge(context.Background(), "10", recipient)
	require.NoError(t, err)
	require.NotZero(t, bridgeHash)

	// The flow switched to the source chain before doing anything else.
	require.Equal(t, entity.ChainEthereum, gw.ActiveChain())

	txs := gw.transactions()
	require.Len(t, txs, 4)
	require.Equal(t, wpoktAddr, txs[0].To)
	require.Equal(t, contract.PackApprove(lockboxAddr, big.NewInt(7_000000)), txs[0].Calldata)
	require.Equal(t, lockboxAddr, txs[1].To)
	require.Equal(t, contract.PackLockboxDeposit(big.NewInt(7_000000)), txs[1].Calldata)
	require.Equal(t, xpoktAddr, txs[2].To)
	require.Equal(t, contract.PackApprove(adapterAddr, big.NewInt(10_000000)), txs[2].Calldata)
	require.Equal(t, adapterAddr, txs[3].To)
	require.Equal(t, contract.PackBridge(big.NewInt(30), big.NewInt(10_000000), recipient), txs[3].Calldata)
	// The relay fee is forwarded exactly as quoted.
	require.Equal(t, int64(1234), txs[3].Value.Int64())

	state := flow.State()
	require.Equal(t, bridge.StepWaitingRelay, state.Step)
	require.True(t, state.NeedsConversion)
	require.Equal(t, int64(7_000000), state.ConvertAmount.Int64())
	require.Equal(t, int64(3_000000), state.DirectAmount.Int64())
	require.NotZero(t, state.TxHashes.WPOKTApprove)
	require.NotZero(t, state.TxHashes.LockboxDeposit)
	require.NotZero(t, state.TxHashes.XPOKTApprove)
	require.Equal(t, bridgeHash, state.TxHashes.Bridge)
	require.Equal(t, bridge.EVMFlowOrder, flow.StepOrder())

	flow.MarkComplete(bridgeHash)
	require.Equal(t, bridge.StepComplete, flow.State().Step)

	flow.Reset()
	require.Equal(t, bridge.StepIdle, flow.State().Step)
}

func TestEVMFlowMarkCompleteIgnoresSupersededRun(t *testing.T) {
	t.Parallel()

	gw := newMockGateway(entity.ChainEthereum)
	gw.setBalance(xpoktAddr, 100_000000)
	gw.setAllowance(xpoktAddr, adapterAddr, 100_000000)
	gw.setCallResult(adapterAddr, big.NewInt(50))
	flow := newTestEVMFlow(gw)

	firstHash, err := flow.Bridge(context.Background(), "10", recipient)
	require.NoError(t, err)

	flow.Reset()

	// A delivery watcher from before the reset must not touch the idle flow.
	flow.MarkComplete(firstHash)
	require.Equal(t, bridge.StepIdle, flow.State().Step)

	secondHash, err := flow.Bridge(context.Background(), "10", recipient)
	require.NoError(t, err)
	require.NotEqual(t, firstHash, secondHash)

	// Nor a later run that is still waiting on its own relay.
	flow.MarkComplete(firstHash)
	require.Equal(t, bridge.StepWaitingRelay, flow.State().Step)

	flow.MarkComplete(secondHash)
	require.Equal(t, bridge.StepComplete, flow.State().Step)
}

func TestEVMFlowBridgeDirect(t *testing.T) {
	t.Parallel()

	gw := newMockGateway(entity.ChainEthereum)
	gw.setBalance(xpoktAddr, 20_000000)
	gw.setAllowance(xpoktAddr, adapterAddr, 100_000000)
	gw.setCallResult(adapterAddr, big.NewInt(50))
	flow := newTestEVMFlow(gw)

	_, err := flow.Bridge(context.Background(), "10", recipient)
	require.NoError(t, err)

	// Allowance was already sufficient, so a single bridge transaction.
	txs := gw.transactions()
	require.Len(t, txs, 1)
	require.Equal(t, adapterAddr, txs[0].To)

	state := flow.State()
	require.False(t, state.NeedsConversion)
	require.Equal(t, bridge.EVMFlowOrderDirect, flow.StepOrder())
}

func TestEVMFlowBridgeInsufficientFunds(t *testing.T) {
	t.Parallel()

	gw := newMockGateway(entity.ChainEthereum)
	gw.setBalance(wpoktAddr, 1_000000)
	gw.setBalance(xpoktAddr, 1_000000)
	flow := newTestEVMFlow(gw)

	_, err := flow.Bridge(context.Background(), "10", recipient)
	require.ErrorIs(t, err, bridge.ErrInsufficientFunds)

	// The failure stays pinned to the step it happened on.
	state := flow.State()
	require.Equal(t, bridge.StepCheckingBalances, state.Step)
	require.True(t, state.Failed)
	require.NotEmpty(t, state.Err)
	require.Empty(t, gw.transactions())

	statuses := bridge.DeriveStepStatuses(flow.StepOrder(), state.Step, state.Failed)
	require.Equal(t, bridge.StepStatusComplete, statuses[0])
	require.Equal(t, bridge.StepStatusError, statuses[1])
	for _, status := range statuses[2:] {
		require.Equal(t, bridge.StepStatusPending, status)
	}
}

func TestEVMFlowRejectsBadAmount(t *testing.T) {
	t.Parallel()

	gw := newMockGateway(entity.ChainEthereum)
	flow := newTestEVMFlow(gw)

	_, err := flow.Bridge(context.Background(), "not-a-number", recipient)
	require.ErrorIs(t, err, bridge.ErrValidation)
}
