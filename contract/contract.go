package contract

import (
	"fmt"
	"math/big"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/pokt-network/bridge-core/contract/abi"
)

// Calldata builders for the contracts the bridge core interacts with. The
// contracts themselves are opaque to the orchestrators beyond these method
// signatures.

func PackBalanceOf(owner common.Address) []byte {
	return mustPack(abi.ERC20ABI, "balanceOf", owner)
}

func PackAllowance(owner, spender common.Address) []byte {
	return mustPack(abi.ERC20ABI, "allowance", owner, spender)
}

func PackApprove(spender common.Address, amount *big.Int) []byte {
	return mustPack(abi.ERC20ABI, "approve", spender, amount)
}

func PackLockboxDeposit(amount *big.Int) []byte {
	return mustPack(abi.LockboxABI, "deposit", amount)
}

func PackLockboxWithdraw(amount *big.Int) []byte {
	return mustPack(abi.LockboxABI, "withdraw", amount)
}

func PackBridgeCost(dstChainID *big.Int) []byte {
	return mustPack(abi.BridgeAdapterABI, "bridgeCost", dstChainID)
}

func PackBridge(dstChainID, amount *big.Int, to common.Address) []byte {
	return mustPack(abi.BridgeAdapterABI, "bridge", dstChainID, amount, to)
}

func PackTransferTokens(token common.Address, amount *big.Int, recipientChain uint16, recipient [32]byte, arbiterFee *big.Int, nonce uint32) []byte {
	return mustPack(abi.TokenBridgeABI, "transferTokens", token, amount, recipientChain, recipient, arbiterFee, nonce)
}

func PackCompleteTransfer(encodedVM []byte) []byte {
	return mustPack(abi.TokenBridgeABI, "completeTransfer", encodedVM)
}

// UnpackUint256 decodes a single uint256 return value of a view method.
func UnpackUint256(contractABI ethabi.ABI, method string, data []byte) (*big.Int, error) {
	res, err := contractABI.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("can't decode %s(...) result: %w", method, err)
	}
	if len(res) != 1 {
		return nil, fmt.Errorf("unexpected %s(...) result arity %d", method, len(res))
	}
	v, ok := res[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s(...) result type %T", method, res[0])
	}
	return v, nil
}

func mustPack(contractABI ethabi.ABI, method string, args ...interface{}) []byte {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		// all calldata shapes are fixed at compile time
		panic(fmt.Errorf("cannot encode %s(...) calldata: %w", method, err))
	}
	return data
}
