package bridge_test

import (
	"context"
	"encoding/base64"
	"errors"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/pokt-network/bridge-core/bridge"
	"github.com/pokt-network/bridge-core/entity"
	"github.com/pokt-network/bridge-core/logging"
	"github.com/pokt-network/bridge-core/txstore"
)

var (
	tokenBridgeAddr = common.HexToAddress("0x9000000000000000000000000000000000000009")
	altRecipient    = "8dDCc1DZu3HwSRLAAvqxHDd1Tw1GjLMXGoEBCbQxRKLo"
)

func newTestStore(t *testing.T) *txstore.Store {
	t.Helper()
	store, err := txstore.NewStore(filepath.Join(t.TempDir(), "transfers.json"), 100, logging.New())
	require.NoError(t, err)
	return store
}

func testAttestation() *entity.AttestationInfo {
	return &entity.AttestationInfo{
		EmitterChain:   2,
		EmitterAddress: "000000000000000000000000" + tokenBridgeAddr.Hex()[2:],
		Sequence:       "12345",
		Payload:        base64.StdEncoding.EncodeToString([]byte("signed-attestation")),
	}
}

func TestCompoundAltFlowInitiate(t *testing.T) {
	t.Parallel()

	gw := newMockGateway(entity.ChainEthereum)
	gw.setBalance(wpoktAddr, 7_000000)
	gw.setBalance(xpoktAddr, 3_000000)
	store := newTestStore(t)
	flow := bridge.NewCompoundAltFlow(bridge.ToAltFlowConfig{
		SourceChain: entity.ChainEthereum,
		WPOKT:       wpoktAddr,
		XPOKT:       xpoktAddr,
		Lockbox:     lockboxAddr,
		TokenBridge: tokenBridgeAddr,
		AltChainID:  1,
	}, gw, &mockAltGateway{}, store, &stubWaiter{}, logging.New())

	record, err := flow.InitiateTransfer(context.Background(), "10", altRecipient)
	require.NoError(t, err)
	require.Equal(t, entity.TxStatusWaitingAttestation, record.Status)
	require.Equal(t, entity.ChainEthereum, record.SourceChain)
	require.Equal(t, entity.ChainSolana, record.DestChain)
	require.Equal(t, "10", record.Amount)
	require.Equal(t, "10000000", record.AmountRaw)
	require.NotNil(t, record.PreConversion)
	require.True(t, record.PreConversion.Required)
	require.NotEmpty(t, record.PreConversion.ApproveTxHash)
	require.NotEmpty(t, record.PreConversion.DepositTxHash)
	require.Equal(t, gw.SignerAddress().Hex(), record.InitiatorAddress)

	txs := gw.transactions()
	require.Len(t, txs, 4)
	require.Equal(t, wpoktAddr, txs[0].To)
	require.Equal(t, lockboxAddr, txs[1].To)
	require.Equal(t, xpoktAddr, txs[2].To)
	require.Equal(t, tokenBridgeAddr, txs[3].To)
	require.Equal(t, common.BigToHash(big.NewInt(4)).Hex(), record.SourceTxHash)

	state := flow.State()
	require.Equal(t, bridge.StepWaitingVAA, state.Step)
	require.Empty(t, state.Err)
	require.False(t, state.Failed)
}

func TestCompoundAltFlowInitiateFailureKeepsStep(t *testing.T) {
	t.Parallel()

	gw := newMockGateway(entity.ChainEthereum)
	store := newTestStore(t)
	flow := bridge.NewCompoundAltFlow(bridge.ToAltFlowConfig{
		SourceChain: entity.ChainEthereum,
		WPOKT:       wpoktAddr,
		XPOKT:       xpoktAddr,
		Lockbox:     lockboxAddr,
		TokenBridge: tokenBridgeAddr,
		AltChainID:  1,
	}, gw, &mockAltGateway{}, store, &stubWaiter{}, logging.New())

	_, err := flow.InitiateTransfer(context.Background(), "10", altRecipient)
	require.ErrorIs(t, err, bridge.ErrInsufficientFunds)

	state := flow.State()
	require.Equal(t, bridge.StepCheckingBalances, state.Step)
	require.True(t, state.Failed)
	require.NotEmpty(t, state.Err)

	statuses := bridge.DeriveStepStatuses(bridge.ToAltFlowOrder, state.Step, state.Failed)
	require.Equal(t, bridge.StepStatusError, statuses[0])
	for _, status := range statuses[1:] {
		require.Equal(t, bridge.StepStatusPending, status)
	}
}

func TestCompoundAltFlowClaim(t *testing.T) {
	t.Parallel()

	gw := newMockGateway(entity.ChainEthereum)
	store := newTestStore(t)
	alt := &mockAltGateway{claimHash: "solana-claim-signature"}
	waiter := &stubWaiter{info: testAttestation()}
	flow := bridge.NewCompoundAltFlow(bridge.ToAltFlowConfig{
		SourceChain: entity.ChainEthereum,
		XPOKT:       xpoktAddr,
		TokenBridge: tokenBridgeAddr,
		AltChainID:  1,
	}, gw, alt, store, waiter, logging.New())

	record, err := store.Add(entity.StoredTransaction{
		SourceChain:  entity.ChainEthereum,
		DestChain:    entity.ChainSolana,
		Amount:       "5",
		AmountRaw:    "5000000",
		Status:       entity.TxStatusWaitingAttestation,
		SourceTxHash: "0xabc",
	})
	require.NoError(t, err)

	att, err := flow.WaitForAttestation(context.Background(), record.ID)
	require.NoError(t, err)
	require.NotEmpty(t, att.Payload)

	stored, err := store.Get(record.ID)
	require.NoError(t, err)
	require.Equal(t, entity.TxStatusAttestationReady, stored.Status)

	claimHash, err := flow.CompleteTransfer(context.Background(), record.ID, altRecipient)
	require.NoError(t, err)
	require.Equal(t, "solana-claim-signature", claimHash)

	stored, err = store.Get(record.ID)
	require.NoError(t, err)
	require.Equal(t, entity.TxStatusComplete, stored.Status)
	require.Equal(t, claimHash, stored.DestTxHash)
}

func TestAltToEVMFlowInitiate(t *testing.T) {
	t.Parallel()

	gw := newMockGateway(entity.ChainEthereum)
	store := newTestStore(t)
	alt := &mockAltGateway{balance: big.NewInt(5_000000), burnHash: "burn-signature"}
	flow := bridge.NewAltToEVMFlow(bridge.FromAltFlowConfig{
		DestChain:   entity.ChainEthereum,
		WPOKT:       wpoktAddr,
		XPOKT:       xpoktAddr,
		Lockbox:     lockboxAddr,
		TokenBridge: tokenBridgeAddr,
	}, gw, alt, store, &stubWaiter{}, logging.New())

	record, err := flow.InitiateTransfer(context.Background(), "5", altRecipient, entity.DestTokenWPOKT)
	require.NoError(t, err)
	require.Equal(t, entity.TxStatusWaitingAttestation, record.Status)
	require.Equal(t, "burn-signature", record.SourceTxHash)
	require.Equal(t, entity.DestTokenWPOKT, record.DestToken)

	// Burning more than the alt-chain balance is rejected up front.
	flow.Reset()
	_, err = flow.InitiateTransfer(context.Background(), "6", altRecipient, entity.DestTokenWPOKT)
	require.ErrorIs(t, err, bridge.ErrInsufficientFunds)
}

func TestAltToEVMFlowClaimPartialSuccess(t *testing.T) {
	t.Parallel()

	gw := newMockGateway(entity.ChainBase)
	gw.submitErrs[lockboxAddr] = errors.New("lockbox withdrawal reverted")
	store := newTestStore(t)
	flow := bridge.NewAltToEVMFlow(bridge.FromAltFlowConfig{
		DestChain:   entity.ChainEthereum,
		WPOKT:       wpoktAddr,
		XPOKT:       xpoktAddr,
		Lockbox:     lockboxAddr,
		TokenBridge: tokenBridgeAddr,
	}, gw, &mockAltGateway{}, store, &stubWaiter{}, logging.New())

	record, err := store.Add(entity.StoredTransaction{
		SourceChain:  entity.ChainSolana,
		DestChain:    entity.ChainEthereum,
		Amount:       "5",
		AmountRaw:    "5000000",
		Status:       entity.TxStatusAttestationReady,
		SourceTxHash: "burn-signature",
		DestToken:    entity.DestTokenWPOKT,
		Attestation:  testAttestation(),
	})
	require.NoError(t, err)

	_, err = flow.CompleteTransfer(context.Background(), record.ID)
	require.Error(t, err)

	var partial *bridge.PartialSuccessError
	require.ErrorAs(t, err, &partial)
	require.NotEmpty(t, partial.ClaimTxHash)
	require.Contains(t, partial.Error(), "can be converted manually")

	// The claim itself landed and is on file even though conversion failed.
	stored, err := store.Get(record.ID)
	require.NoError(t, err)
	require.Equal(t, partial.ClaimTxHash, stored.DestTxHash)
	require.Equal(t, entity.TxStatusConverting, stored.Status)
	require.Equal(t, entity.ChainEthereum, gw.ActiveChain())
}

func TestAltToEVMFlowClaimToXPOKT(t *testing.T) {
	t.Parallel()

	gw := newMockGateway(entity.ChainEthereum)
	store := newTestStore(t)
	flow := bridge.NewAltToEVMFlow(bridge.FromAltFlowConfig{
		DestChain:   entity.ChainEthereum,
		XPOKT:       xpoktAddr,
		Lockbox:     lockboxAddr,
		TokenBridge: tokenBridgeAddr,
	}, gw, &mockAltGateway{}, store, &stubWaiter{}, logging.New())

	record, err := store.Add(entity.StoredTransaction{
		SourceChain:  entity.ChainSolana,
		DestChain:    entity.ChainEthereum,
		Amount:       "5",
		AmountRaw:    "5000000",
		Status:       entity.TxStatusAttestationReady,
		SourceTxHash: "burn-signature",
		DestToken:    entity.DestTokenXPOKT,
		Attestation:  testAttestation(),
	})
	require.NoError(t, err)

	claimHash, err := flow.CompleteTransfer(context.Background(), record.ID)
	require.NoError(t, err)
	require.NotZero(t, claimHash)

	// No conversion legs: a single completeTransfer submission.
	txs := gw.transactions()
	require.Len(t, txs, 1)
	require.Equal(t, tokenBridgeAddr, txs[0].To)

	stored, err := store.Get(record.ID)
	require.NoError(t, err)
	require.Equal(t, entity.TxStatusComplete, stored.Status)
}
