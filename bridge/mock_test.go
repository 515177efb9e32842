package bridge_test

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pokt-network/bridge-core/entity"
)

type submittedTx struct {
	Chain    entity.Chain
	To       common.Address
	Calldata []byte
	Value    *big.Int
}

// mockGateway is a scriptable in-memory Gateway. Balances and allowances
// are keyed by token (and spender) address, call results by contract
// address. Submissions are recorded in order.
type mockGateway struct {
	mu          sync.Mutex
	signer      common.Address
	active      entity.Chain
	balances    map[common.Address]*big.Int
	allowances  map[string]*big.Int
	callResults map[common.Address][]byte
	submitErrs  map[common.Address]error
	submitted   []submittedTx
}

func newMockGateway(active entity.Chain) *mockGateway {
	return &mockGateway{
		signer:      common.HexToAddress("0x1000000000000000000000000000000000000001"),
		active:      active,
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[string]*big.Int),
		callResults: make(map[common.Address][]byte),
		submitErrs:  make(map[common.Address]error),
	}
}

func (g *mockGateway) setBalance(token common.Address, v int64) {
	g.balances[token] = big.NewInt(v)
}

func (g *mockGateway) setAllowance(token, spender common.Address, v int64) {
	g.allowances[token.Hex()+"|"+spender.Hex()] = big.NewInt(v)
}

func (g *mockGateway) setCallResult(to common.Address, v *big.Int) {
	g.callResults[to] = common.LeftPadBytes(v.Bytes(), 32)
}

func (g *mockGateway) ReadBalance(ctx context.Context, chain entity.Chain, token, owner common.Address) (*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if b, ok := g.balances[token]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (g *mockGateway) ReadAllowance(ctx context.Context, chain entity.Chain, token, owner, spender common.Address) (*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if a, ok := g.allowances[token.Hex()+"|"+spender.Hex()]; ok {
		return new(big.Int).Set(a), nil
	}
	return new(big.Int), nil
}

func (g *mockGateway) Call(ctx context.Context, chain entity.Chain, to common.Address, calldata []byte) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if res, ok := g.callResults[to]; ok {
		return res, nil
	}
	return make([]byte, 32), nil
}

func (g *mockGateway) Submit(ctx context.Context, chain entity.Chain, to common.Address, calldata []byte, value *big.Int) (common.Hash, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err, ok := g.submitErrs[to]; ok {
		return common.Hash{}, err
	}
	g.submitted = append(g.submitted, submittedTx{Chain: chain, To: to, Calldata: calldata, Value: value})
	return common.BigToHash(big.NewInt(int64(len(g.submitted)))), nil
}

func (g *mockGateway) WaitForConfirmation(ctx context.Context, chain entity.Chain, txHash common.Hash) error {
	return nil
}

func (g *mockGateway) SwitchActiveChain(chain entity.Chain) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = chain
	return nil
}

func (g *mockGateway) ActiveChain() entity.Chain {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

func (g *mockGateway) SignerAddress() common.Address {
	return g.signer
}

func (g *mockGateway) transactions() []submittedTx {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]submittedTx, len(g.submitted))
	copy(out, g.submitted)
	return out
}

// mockAltGateway is a scriptable alt-chain gateway.
type mockAltGateway struct {
	balance   *big.Int
	burnHash  string
	claimHash string
	claimErr  error
}

func (g *mockAltGateway) ReadTokenBalance(ctx context.Context, owner string) (*big.Int, error) {
	if g.balance == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(g.balance), nil
}

func (g *mockAltGateway) DeriveTokenAccount(owner string) ([32]byte, error) {
	var out [32]byte
	copy(out[:], owner)
	return out, nil
}

func (g *mockAltGateway) SubmitBurn(ctx context.Context, amount *big.Int, owner string, evmRecipient common.Address) (string, error) {
	return g.burnHash, nil
}

func (g *mockAltGateway) SubmitClaim(ctx context.Context, attestation []byte, recipient string) (string, error) {
	return g.claimHash, g.claimErr
}

// stubWaiter returns a canned attestation, optionally reporting coordinates
// first.
type stubWaiter struct {
	coords *entity.AttestationInfo
	info   *entity.AttestationInfo
	err    error
}

func (w *stubWaiter) WaitForAttestation(ctx context.Context, sourceTxHash string, known *entity.AttestationInfo, onCoordinates func(entity.AttestationInfo)) (*entity.AttestationInfo, error) {
	if w.coords != nil && onCoordinates != nil {
		onCoordinates(*w.coords)
	}
	return w.info, w.err
}
