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
	testToken   = common.HexToAddress("0x2000000000000000000000000000000000000002")
	testSpender = common.HexToAddress("0x3000000000000000000000000000000000000003")
)

func TestEnsureAllowanceSkipsWhenSufficient(t *testing.T) {
	t.Parallel()

	gw := newMockGateway(entity.ChainEthereum)
	gw.setAllowance(testToken, testSpender, 10_000000)
	manager := bridge.NewAllowanceManager(gw, logging.New())

	res, err := manager.EnsureAllowance(context.Background(), entity.ChainEthereum, testToken, testSpender, big.NewInt(10_000000))
	require.NoError(t, err)
	require.False(t, res.WasTxSent)
	require.Empty(t, gw.transactions())
}

func TestEnsureAllowanceApprovesWhenInsufficient(t *testing.T) {
	t.Parallel()

	gw := newMockGateway(entity.ChainEthereum)
	gw.setAllowance(testToken, testSpender, 5_000000)
	manager := bridge.NewAllowanceManager(gw, logging.New())

	res, err := manager.EnsureAllowance(context.Background(), entity.ChainEthereum, testToken, testSpender, big.NewInt(10_000000))
	require.NoError(t, err)
	require.True(t, res.WasTxSent)
	require.NotZero(t, res.TxHash)

	txs := gw.transactions()
	require.Len(t, txs, 1)
	require.Equal(t, testToken, txs[0].To)
	require.Equal(t, contract.PackApprove(testSpender, big.NewInt(10_000000)), txs[0].Calldata)
}
