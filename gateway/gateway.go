package gateway

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pokt-network/bridge-core/entity"
)

var (
	// ErrChainSwitchUnsupported is returned when the active signing context
	// cannot be moved to the requested chain programmatically.
	ErrChainSwitchUnsupported = errors.New("can't switch to the requested chain, switch manually and retry")
	// ErrTransactionRejected means the signer declined to sign.
	ErrTransactionRejected = errors.New("transaction rejected by signer")
	// ErrTransactionReverted means on-chain execution failed.
	ErrTransactionReverted = errors.New("transaction reverted on-chain")
	// ErrNetwork marks a transient RPC failure; callers decide whether to retry.
	ErrNetwork = errors.New("network failure")
)

// Gateway is the core's only window onto the EVM chains: balance and
// allowance reads, read-only contract calls, transaction submission and
// confirmation waits. Implementations encode nothing about bridge flows.
type Gateway interface {
	ReadBalance(ctx context.Context, chain entity.Chain, token, owner common.Address) (*big.Int, error)
	ReadAllowance(ctx context.Context, chain entity.Chain, token, owner, spender common.Address) (*big.Int, error)
	Call(ctx context.Context, chain entity.Chain, to common.Address, calldata []byte) ([]byte, error)
	Submit(ctx context.Context, chain entity.Chain, to common.Address, calldata []byte, value *big.Int) (common.Hash, error)
	WaitForConfirmation(ctx context.Context, chain entity.Chain, txHash common.Hash) error
	SwitchActiveChain(chain entity.Chain) error
	ActiveChain() entity.Chain
	SignerAddress() common.Address
}

// AltChainGateway abstracts the non-EVM chain's wallet and token program.
// Address derivation and transaction signing on that chain require its own
// SDK and wallet, so they live behind this interface; the orchestrators only
// sequence the calls.
type AltChainGateway interface {
	ReadTokenBalance(ctx context.Context, owner string) (*big.Int, error)
	// DeriveTokenAccount resolves the 32-byte token-account recipient for a
	// wallet address. Token-bridge deliveries land on the derived token
	// account, not the wallet itself.
	DeriveTokenAccount(owner string) ([32]byte, error)
	SubmitBurn(ctx context.Context, amount *big.Int, owner string, evmRecipient common.Address) (string, error)
	SubmitClaim(ctx context.Context, attestation []byte, recipient string) (string, error)
}
