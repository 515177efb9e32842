package bridge_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pokt-network/bridge-core/bridge"
	"github.com/pokt-network/bridge-core/entity"
	"github.com/pokt-network/bridge-core/logging"
)

func TestEVMFlowPreview(t *testing.T) {
	t.Parallel()

	gw := newMockGateway(entity.ChainEthereum)
	gw.setBalance(wpoktAddr, 7_000000)
	gw.setBalance(xpoktAddr, 3_000000)
	flow := newTestEVMFlow(gw)

	preview, err := flow.Preview(context.Background(), "10")
	require.NoError(t, err)
	require.True(t, preview.NeedsConversion)
	require.Equal(t, big.NewInt(3_000000), preview.DirectAmount)
	require.Equal(t, big.NewInt(7_000000), preview.ConvertAmount)
	require.Equal(t, 4, preview.SignatureCount)
	require.Len(t, preview.Steps, 5)
	require.Empty(t, gw.transactions(), "preview must not submit anything")
}

func TestEVMFlowPreviewDirect(t *testing.T) {
	t.Parallel()

	gw := newMockGateway(entity.ChainEthereum)
	gw.setBalance(xpoktAddr, 20_000000)
	flow := newTestEVMFlow(gw)

	preview, err := flow.Preview(context.Background(), "5")
	require.NoError(t, err)
	require.False(t, preview.NeedsConversion)
	require.Equal(t, 2, preview.SignatureCount)
	require.Len(t, preview.Steps, 3)
}

func TestEVMFlowPreviewInsufficient(t *testing.T) {
	t.Parallel()

	gw := newMockGateway(entity.ChainEthereum)
	gw.setBalance(xpoktAddr, 1_000000)
	flow := newTestEVMFlow(gw)

	_, err := flow.Preview(context.Background(), "5")
	require.ErrorIs(t, err, bridge.ErrInsufficientFunds)
}

func TestAltToEVMFlowPreview(t *testing.T) {
	t.Parallel()

	gw := newMockGateway(entity.ChainEthereum)
	alt := &mockAltGateway{balance: big.NewInt(10_000000)}
	flow := bridge.NewAltToEVMFlow(bridge.FromAltFlowConfig{
		DestChain:   entity.ChainEthereum,
		WPOKT:       wpoktAddr,
		XPOKT:       xpoktAddr,
		Lockbox:     lockboxAddr,
		TokenBridge: tokenBridgeAddr,
	}, gw, alt, newTestStore(t), &stubWaiter{}, logging.New())

	preview, err := flow.Preview(context.Background(), "4", altRecipient, entity.DestTokenWPOKT)
	require.NoError(t, err)
	require.True(t, preview.NeedsConversion)
	require.Equal(t, 4, preview.SignatureCount)

	preview, err = flow.Preview(context.Background(), "4", altRecipient, entity.DestTokenXPOKT)
	require.NoError(t, err)
	require.False(t, preview.NeedsConversion)
	require.Equal(t, 2, preview.SignatureCount)

	_, err = flow.Preview(context.Background(), "11", altRecipient, entity.DestTokenXPOKT)
	require.ErrorIs(t, err, bridge.ErrInsufficientFunds)
}
