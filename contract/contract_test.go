package contract_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/pokt-network/bridge-core/contract"
	"github.com/pokt-network/bridge-core/contract/abi"
)

var (
	alice   = common.HexToAddress("0x01")
	bob     = common.HexToAddress("0x02")
	amount  = big.NewInt(1_000000)
	chainID = big.NewInt(30)
)

func methodID(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

func TestPackSelectors(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		Name      string
		Calldata  []byte
		Signature string
	}{
		{"balanceOf", contract.PackBalanceOf(alice), "balanceOf(address)"},
		{"allowance", contract.PackAllowance(alice, bob), "allowance(address,address)"},
		{"approve", contract.PackApprove(bob, amount), "approve(address,uint256)"},
		{"deposit", contract.PackLockboxDeposit(amount), "deposit(uint256)"},
		{"withdraw", contract.PackLockboxWithdraw(amount), "withdraw(uint256)"},
		{"bridgeCost", contract.PackBridgeCost(chainID), "bridgeCost(uint256)"},
		{"bridge", contract.PackBridge(chainID, amount, bob), "bridge(uint256,uint256,address)"},
		{"completeTransfer", contract.PackCompleteTransfer([]byte{1, 2, 3}), "completeTransfer(bytes)"},
	} {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, methodID(test.Signature), test.Calldata[:4])
		})
	}
}

func TestPackTransferTokens(t *testing.T) {
	t.Parallel()

	var recipient [32]byte
	recipient[31] = 0x7f
	calldata := contract.PackTransferTokens(alice, amount, 1, recipient, big.NewInt(0), 42)
	require.Equal(t, methodID("transferTokens(address,uint256,uint16,bytes32,uint256,uint32)"), calldata[:4])

	args, err := abi.TokenBridgeABI.Methods["transferTokens"].Inputs.Unpack(calldata[4:])
	require.NoError(t, err)
	require.Equal(t, alice, args[0])
	require.Equal(t, amount, args[1])
	require.Equal(t, uint16(1), args[2])
	require.Equal(t, recipient, args[3])
	require.Equal(t, uint32(42), args[5])
}

func TestUnpackUint256(t *testing.T) {
	t.Parallel()

	fee := big.NewInt(987654321)
	data := common.LeftPadBytes(fee.Bytes(), 32)
	res, err := contract.UnpackUint256(abi.BridgeAdapterABI, "bridgeCost", data)
	require.NoError(t, err)
	require.Equal(t, fee, res)

	_, err = contract.UnpackUint256(abi.BridgeAdapterABI, "bridgeCost", []byte{1})
	require.Error(t, err)
}
