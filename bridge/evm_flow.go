package bridge

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/pokt-network/bridge-core/contract"
	"github.com/pokt-network/bridge-core/contract/abi"
	"github.com/pokt-network/bridge-core/entity"
	"github.com/pokt-network/bridge-core/gateway"
	"github.com/pokt-network/bridge-core/logging"
)

// EVMFlowConfig pins an EVM-to-EVM route: the source-chain contracts and the
// destination's attestation-network chain id. WPOKT and Lockbox stay zero on
// chains that only carry xPOKT.
type EVMFlowConfig struct {
	SourceChain       entity.Chain
	DestChain         entity.Chain
	WPOKT             common.Address
	XPOKT             common.Address
	Lockbox           common.Address
	BridgeAdapter     common.Address
	DestBridgeChainID uint16
}

// EVMFlowTxHashes accumulates the transactions of one flow run.
type EVMFlowTxHashes struct {
	WPOKTApprove   common.Hash `json:"wpoktApprove,omitempty"`
	LockboxDeposit common.Hash `json:"lockboxDeposit,omitempty"`
	XPOKTApprove   common.Hash `json:"xpoktApprove,omitempty"`
	Bridge         common.Hash `json:"bridge,omitempty"`
}

type EVMFlowState struct {
	Step            Step
	NeedsConversion bool
	ConvertAmount   *big.Int
	DirectAmount    *big.Int
	TxHashes        EVMFlowTxHashes
	Err             string
	// Failed pins the error to Step, which keeps the failing position.
	Failed bool
}

// EVMFlow sequences the adapter-based transfer between the two EVM chains:
// optional Lockbox conversion, approval, and the fee-quoted bridge call.
// Delivery on the destination chain happens through an automatic relay and
// is observed by the relay poller, which drives MarkComplete.
type EVMFlow struct {
	cfg       EVMFlowConfig
	gw        gateway.Gateway
	allowance *AllowanceManager
	logger    logging.Logger

	mu    sync.Mutex
	gen   int
	busy  bool
	state EVMFlowState
}

func NewEVMFlow(cfg EVMFlowConfig, gw gateway.Gateway, logger logging.Logger) *EVMFlow {
	return &EVMFlow{
		cfg:       cfg,
		gw:        gw,
		allowance: NewAllowanceManager(gw, logger),
		logger:    logger.WithField("flow", "evm").WithField("route", fmt.Sprintf("%s->%s", cfg.SourceChain, cfg.DestChain)),
		state:     EVMFlowState{Step: StepIdle},
	}
}

func (f *EVMFlow) State() EVMFlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// StepOrder returns the order array matching the current run's variant.
func (f *EVMFlow) StepOrder() []Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.NeedsConversion {
		return EVMFlowOrder
	}
	return EVMFlowOrderDirect
}

// Bridge runs the full flow and returns the bridge transaction hash once the
// flow reaches the waiting-relay state. Only one run can be active at a time.
func (f *EVMFlow) Bridge(ctx context.Context, amount string, recipient common.Address) (common.Hash, error) {
	f.mu.Lock()
	if f.busy {
		f.mu.Unlock()
		return common.Hash{}, ErrFlowBusy
	}
	f.busy = true
	f.state = EVMFlowState{Step: StepIdle}
	gen := f.gen
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.busy = false
		f.mu.Unlock()
	}()

	hash, err := f.run(ctx, gen, amount, recipient)
	if err != nil {
		f.fail(gen, err)
		return common.Hash{}, err
	}
	return hash, nil
}

func (f *EVMFlow) run(ctx context.Context, gen int, amount string, recipient common.Address) (common.Hash, error) {
	raw, err := ValidateAmount(amount, nil)
	if err != nil {
		return common.Hash{}, err
	}

	f.setStep(gen, StepSwitchingChain)
	if f.gw.ActiveChain() != f.cfg.SourceChain {
		if err = f.gw.SwitchActiveChain(f.cfg.SourceChain); err != nil {
			return common.Hash{}, err
		}
	}

	f.setStep(gen, StepCheckingBalances)
	balances, err := f.readBalances(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	plan, err := PlanSplit(raw, balances)
	if err != nil {
		return common.Hash{}, err
	}
	f.setState(gen, func(s *EVMFlowState) {
		s.NeedsConversion = plan.NeedsConversion
		s.ConvertAmount = plan.Converted
		s.DirectAmount = plan.Direct
	})

	if plan.NeedsConversion {
		f.setStep(gen, StepApprovingWPOKT)
		res, err2 := f.allowance.EnsureAllowance(ctx, f.cfg.SourceChain, f.cfg.WPOKT, f.cfg.Lockbox, plan.Converted)
		if err2 != nil {
			return common.Hash{}, err2
		}
		if res.WasTxSent {
			f.setState(gen, func(s *EVMFlowState) { s.TxHashes.WPOKTApprove = res.TxHash })
		}

		f.setStep(gen, StepConvertingLockbox)
		depositHash, err2 := f.submitAndWait(ctx, f.cfg.Lockbox, contract.PackLockboxDeposit(plan.Converted), nil)
		if err2 != nil {
			return common.Hash{}, err2
		}
		f.setState(gen, func(s *EVMFlowState) { s.TxHashes.LockboxDeposit = depositHash })
	}

	f.setStep(gen, StepApprovingXPOKT)
	res, err := f.allowance.EnsureAllowance(ctx, f.cfg.SourceChain, f.cfg.XPOKT, f.cfg.BridgeAdapter, raw)
	if err != nil {
		return common.Hash{}, err
	}
	if res.WasTxSent {
		f.setState(gen, func(s *EVMFlowState) { s.TxHashes.XPOKTApprove = res.TxHash })
	}

	// The adapter enforces msg.value == bridgeCost() exactly, so the quote is
	// taken right before submission and passed through without any buffer.
	f.setStep(gen, StepBridging)
	fee, err := f.quoteRelayFee(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	dstChainID := new(big.Int).SetUint64(uint64(f.cfg.DestBridgeChainID))
	bridgeHash, err := f.submitAndWait(ctx, f.cfg.BridgeAdapter, contract.PackBridge(dstChainID, raw, recipient), fee)
	if err != nil {
		return common.Hash{}, err
	}
	f.setState(gen, func(s *EVMFlowState) {
		s.TxHashes.Bridge = bridgeHash
		s.Step = StepWaitingRelay
	})
	f.logger.WithFields(logrus.Fields{
		"tx_hash": bridgeHash,
		"amount":  raw,
		"fee":     fee,
	}).Info("bridge transaction confirmed, waiting for relay delivery")
	return bridgeHash, nil
}

func (f *EVMFlow) readBalances(ctx context.Context) (TokenBalances, error) {
	owner := f.gw.SignerAddress()
	xpokt, err := f.gw.ReadBalance(ctx, f.cfg.SourceChain, f.cfg.XPOKT, owner)
	if err != nil {
		return TokenBalances{}, fmt.Errorf("can't read xPOKT balance: %w", err)
	}
	wpokt := new(big.Int)
	if f.cfg.WPOKT != (common.Address{}) {
		wpokt, err = f.gw.ReadBalance(ctx, f.cfg.SourceChain, f.cfg.WPOKT, owner)
		if err != nil {
			return TokenBalances{}, fmt.Errorf("can't read wPOKT balance: %w", err)
		}
	}
	return TokenBalances{WPOKT: wpokt, XPOKT: xpokt}, nil
}

func (f *EVMFlow) quoteRelayFee(ctx context.Context) (*big.Int, error) {
	dstChainID := new(big.Int).SetUint64(uint64(f.cfg.DestBridgeChainID))
	res, err := f.gw.Call(ctx, f.cfg.SourceChain, f.cfg.BridgeAdapter, contract.PackBridgeCost(dstChainID))
	if err != nil {
		return nil, fmt.Errorf("can't quote relay fee: %w", err)
	}
	return contract.UnpackUint256(abi.BridgeAdapterABI, "bridgeCost", res)
}

func (f *EVMFlow) submitAndWait(ctx context.Context, to common.Address, calldata []byte, value *big.Int) (common.Hash, error) {
	hash, err := f.gw.Submit(ctx, f.cfg.SourceChain, to, calldata, value)
	if err != nil {
		return common.Hash{}, err
	}
	if err = f.gw.WaitForConfirmation(ctx, f.cfg.SourceChain, hash); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// MarkComplete is driven by the relay poller once delivery of the given
// bridge transaction is confirmed on the destination chain. A hash from a
// run that was reset or superseded in the meantime is ignored, so a relay
// watcher left over from an earlier run can't complete a later one.
func (f *EVMFlow) MarkComplete(bridgeTx common.Hash) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Step == StepWaitingRelay && f.state.TxHashes.Bridge == bridgeTx {
		f.state.Step = StepComplete
	}
}

// Reset returns the flow to idle and discards results of any still-running
// network call: late writes from a previous generation are dropped.
func (f *EVMFlow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	f.state = EVMFlowState{Step: StepIdle}
}

func (f *EVMFlow) setStep(gen int, step Step) {
	f.setState(gen, func(s *EVMFlowState) { s.Step = step })
}

func (f *EVMFlow) fail(gen int, err error) {
	f.setState(gen, func(s *EVMFlowState) {
		s.Failed = true
		s.Err = err.Error()
	})
}

func (f *EVMFlow) setState(gen int, fn func(s *EVMFlowState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gen != gen {
		return
	}
	fn(&f.state)
}
