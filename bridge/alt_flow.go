package bridge

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/big"
	"math/rand"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/pokt-network/bridge-core/contract"
	"github.com/pokt-network/bridge-core/entity"
	"github.com/pokt-network/bridge-core/gateway"
	"github.com/pokt-network/bridge-core/logging"
	"github.com/pokt-network/bridge-core/txstore"
)

// AttestationWaiter blocks until the signed attestation for a source
// transaction is available. The onCoordinates callback fires as soon as the
// emitter coordinates are known, which may be well before the signature
// quorum is reached.
type AttestationWaiter interface {
	WaitForAttestation(ctx context.Context, sourceTxHash string, known *entity.AttestationInfo, onCoordinates func(entity.AttestationInfo)) (*entity.AttestationInfo, error)
}

// stepTracker is the shared mutable core of the attestation-based flows: a
// current step, a busy latch and a generation counter that invalidates late
// writes after a Reset.
type stepTracker struct {
	mu     sync.Mutex
	gen    int
	busy   bool
	step   Step
	err    string
	failed bool
}

func (t *stepTracker) begin() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.busy {
		return 0, ErrFlowBusy
	}
	t.busy = true
	t.err = ""
	t.failed = false
	return t.gen, nil
}

func (t *stepTracker) end() {
	t.mu.Lock()
	t.busy = false
	t.mu.Unlock()
}

func (t *stepTracker) set(gen int, step Step) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen {
		return
	}
	t.step = step
}

// fail pins the failure to the step the run was on; the step itself is kept
// so the display can show where the flow stopped.
func (t *stepTracker) fail(gen int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen {
		return
	}
	t.failed = true
	t.err = err.Error()
}

func (t *stepTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	t.step = StepIdle
	t.err = ""
	t.failed = false
}

func (t *stepTracker) snapshot() FlowState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return FlowState{Step: t.step, Err: t.err, Failed: t.failed}
}

// ToAltFlowConfig pins the EVM-to-alt-chain route. The token bridge contract
// lives on the EVM source chain; AltChainID is the attestation network's id
// for the destination.
type ToAltFlowConfig struct {
	SourceChain entity.Chain
	WPOKT       common.Address
	XPOKT       common.Address
	Lockbox     common.Address
	TokenBridge common.Address
	AltChainID  uint16
}

// CompoundAltFlow moves tokens from the EVM source chain to the alternate
// chain: optional Lockbox conversion, approval, the lock-and-mint bridge
// call, then attestation wait and a claim submitted through the alt-chain
// gateway. Every stage is persisted so a restart can pick the transfer back
// up from the attestation wait onward.
type CompoundAltFlow struct {
	cfg       ToAltFlowConfig
	gw        gateway.Gateway
	alt       gateway.AltChainGateway
	store     *txstore.Store
	waiter    AttestationWaiter
	allowance *AllowanceManager
	logger    logging.Logger

	tracker stepTracker
}

func NewCompoundAltFlow(cfg ToAltFlowConfig, gw gateway.Gateway, alt gateway.AltChainGateway, store *txstore.Store, waiter AttestationWaiter, logger logging.Logger) *CompoundAltFlow {
	return &CompoundAltFlow{
		cfg:       cfg,
		gw:        gw,
		alt:       alt,
		store:     store,
		waiter:    waiter,
		allowance: NewAllowanceManager(gw, logger),
		logger:    logger.WithField("flow", "to-alt"),
		tracker:   stepTracker{step: StepIdle},
	}
}

func (f *CompoundAltFlow) State() FlowState  { return f.tracker.snapshot() }
func (f *CompoundAltFlow) Reset()            { f.tracker.reset() }
func (f *CompoundAltFlow) StepOrder() []Step { return ToAltFlowOrder }

// InitiateTransfer runs the flow up to and including the bridge transaction
// and records the transfer at waiting-attestation. It does not wait for the
// attestation itself.
func (f *CompoundAltFlow) InitiateTransfer(ctx context.Context, amount, altRecipient string) (*entity.StoredTransaction, error) {
	gen, err := f.tracker.begin()
	if err != nil {
		return nil, err
	}
	defer f.tracker.end()

	record, err := f.initiate(ctx, gen, amount, altRecipient)
	if err != nil {
		f.tracker.fail(gen, err)
		return nil, err
	}
	return record, nil
}

func (f *CompoundAltFlow) initiate(ctx context.Context, gen int, amount, altRecipient string) (*entity.StoredTransaction, error) {
	raw, err := ValidateAmount(amount, nil)
	if err != nil {
		return nil, err
	}
	if err = ValidateAltChainAddress(altRecipient); err != nil {
		return nil, err
	}

	if f.gw.ActiveChain() != f.cfg.SourceChain {
		if err = f.gw.SwitchActiveChain(f.cfg.SourceChain); err != nil {
			return nil, err
		}
	}

	f.tracker.set(gen, StepCheckingBalances)
	balances, err := f.readBalances(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := PlanSplit(raw, balances)
	if err != nil {
		return nil, err
	}

	pre := &entity.PreConversionInfo{Required: plan.NeedsConversion}
	if plan.NeedsConversion {
		f.tracker.set(gen, StepApprovingWPOKT)
		res, err2 := f.allowance.EnsureAllowance(ctx, f.cfg.SourceChain, f.cfg.WPOKT, f.cfg.Lockbox, plan.Converted)
		if err2 != nil {
			return nil, err2
		}
		if res.WasTxSent {
			pre.ApproveTxHash = res.TxHash.Hex()
		}

		f.tracker.set(gen, StepConvertingLockbox)
		depositHash, err2 := f.gw.Submit(ctx, f.cfg.SourceChain, f.cfg.Lockbox, contract.PackLockboxDeposit(plan.Converted), nil)
		if err2 != nil {
			return nil, err2
		}
		if err2 = f.gw.WaitForConfirmation(ctx, f.cfg.SourceChain, depositHash); err2 != nil {
			return nil, err2
		}
		pre.DepositTxHash = depositHash.Hex()
	}

	f.tracker.set(gen, StepInitiating)
	if _, err = f.allowance.EnsureAllowance(ctx, f.cfg.SourceChain, f.cfg.XPOKT, f.cfg.TokenBridge, raw); err != nil {
		return nil, err
	}
	recipient, err := f.alt.DeriveTokenAccount(altRecipient)
	if err != nil {
		return nil, fmt.Errorf("can't derive recipient token account: %w", err)
	}
	calldata := contract.PackTransferTokens(f.cfg.XPOKT, raw, f.cfg.AltChainID, recipient, big.NewInt(0), rand.Uint32())
	bridgeHash, err := f.gw.Submit(ctx, f.cfg.SourceChain, f.cfg.TokenBridge, calldata, nil)
	if err != nil {
		return nil, err
	}
	if err = f.gw.WaitForConfirmation(ctx, f.cfg.SourceChain, bridgeHash); err != nil {
		return nil, err
	}

	f.tracker.set(gen, StepWaitingVAA)
	record, err := f.store.Add(entity.StoredTransaction{
		SourceChain:      f.cfg.SourceChain,
		DestChain:        entity.ChainSolana,
		Amount:           entity.FormatAmount(raw),
		AmountRaw:        raw.String(),
		Status:           entity.TxStatusWaitingAttestation,
		SourceTxHash:     bridgeHash.Hex(),
		PreConversion:    pre,
		InitiatorAddress: f.gw.SignerAddress().Hex(),
	})
	if err != nil {
		return nil, err
	}
	f.logger.WithFields(logrus.Fields{
		"id":      record.ID,
		"tx_hash": record.SourceTxHash,
	}).Info("bridge transaction confirmed, waiting for attestation")
	return record, nil
}

func (f *CompoundAltFlow) readBalances(ctx context.Context) (TokenBalances, error) {
	owner := f.gw.SignerAddress()
	xpokt, err := f.gw.ReadBalance(ctx, f.cfg.SourceChain, f.cfg.XPOKT, owner)
	if err != nil {
		return TokenBalances{}, fmt.Errorf("can't read xPOKT balance: %w", err)
	}
	wpokt, err := f.gw.ReadBalance(ctx, f.cfg.SourceChain, f.cfg.WPOKT, owner)
	if err != nil {
		return TokenBalances{}, fmt.Errorf("can't read wPOKT balance: %w", err)
	}
	return TokenBalances{WPOKT: wpokt, XPOKT: xpokt}, nil
}

// WaitForAttestation blocks until the signed attestation for the stored
// transfer is available, persisting emitter coordinates as soon as they are
// discovered so a later resume can skip the slow lookup path.
func (f *CompoundAltFlow) WaitForAttestation(ctx context.Context, txID string) (*entity.AttestationInfo, error) {
	gen, err := f.tracker.begin()
	if err != nil {
		return nil, err
	}
	defer f.tracker.end()
	f.tracker.set(gen, StepWaitingVAA)

	att, err := waitAndRecord(ctx, f.waiter, f.store, txID)
	if err != nil {
		f.tracker.fail(gen, err)
		return nil, err
	}
	return att, nil
}

// CompleteTransfer submits the claim on the alternate chain and finishes the
// stored transfer.
func (f *CompoundAltFlow) CompleteTransfer(ctx context.Context, txID, altRecipient string) (string, error) {
	gen, err := f.tracker.begin()
	if err != nil {
		return "", err
	}
	defer f.tracker.end()

	hash, err := f.claim(ctx, gen, txID, altRecipient)
	if err != nil {
		f.tracker.fail(gen, err)
		return "", err
	}
	f.tracker.set(gen, StepComplete)
	return hash, nil
}

func (f *CompoundAltFlow) claim(ctx context.Context, gen int, txID, altRecipient string) (string, error) {
	record, err := f.store.Get(txID)
	if err != nil {
		return "", err
	}
	payload, err := attestationPayload(record)
	if err != nil {
		return "", err
	}

	f.tracker.set(gen, StepClaiming)
	if err = markStatus(f.store, txID, entity.TxStatusClaiming); err != nil {
		return "", err
	}
	claimHash, err := f.alt.SubmitClaim(ctx, payload, altRecipient)
	if err != nil {
		return "", err
	}

	status := entity.TxStatusComplete
	if _, err = f.store.Update(txID, txstore.Patch{Status: &status, DestTxHash: &claimHash}); err != nil {
		return "", err
	}
	f.logger.WithFields(logrus.Fields{
		"id":      txID,
		"tx_hash": claimHash,
	}).Info("claim confirmed, transfer complete")
	return claimHash, nil
}

// FromAltFlowConfig pins the alt-chain-to-EVM route. The token bridge and
// Lockbox contracts live on the EVM destination chain.
type FromAltFlowConfig struct {
	DestChain   entity.Chain
	WPOKT       common.Address
	XPOKT       common.Address
	Lockbox     common.Address
	TokenBridge common.Address
}

// AltToEVMFlow moves tokens from the alternate chain back to an EVM chain: a
// burn submitted through the alt-chain gateway, attestation wait, the claim
// on the EVM token bridge, and an optional Lockbox withdrawal when the user
// asked for wPOKT.
type AltToEVMFlow struct {
	cfg       FromAltFlowConfig
	gw        gateway.Gateway
	alt       gateway.AltChainGateway
	store     *txstore.Store
	waiter    AttestationWaiter
	allowance *AllowanceManager
	logger    logging.Logger

	tracker stepTracker
}

func NewAltToEVMFlow(cfg FromAltFlowConfig, gw gateway.Gateway, alt gateway.AltChainGateway, store *txstore.Store, waiter AttestationWaiter, logger logging.Logger) *AltToEVMFlow {
	return &AltToEVMFlow{
		cfg:       cfg,
		gw:        gw,
		alt:       alt,
		store:     store,
		waiter:    waiter,
		allowance: NewAllowanceManager(gw, logger),
		logger:    logger.WithField("flow", "from-alt"),
		tracker:   stepTracker{step: StepIdle},
	}
}

func (f *AltToEVMFlow) State() FlowState  { return f.tracker.snapshot() }
func (f *AltToEVMFlow) Reset()            { f.tracker.reset() }
func (f *AltToEVMFlow) StepOrder() []Step { return FromAltFlowOrder }

// InitiateTransfer burns on the alternate chain and records the transfer at
// waiting-attestation. destToken picks the variant the claim should end in.
func (f *AltToEVMFlow) InitiateTransfer(ctx context.Context, amount, altOwner string, destToken entity.DestToken) (*entity.StoredTransaction, error) {
	gen, err := f.tracker.begin()
	if err != nil {
		return nil, err
	}
	defer f.tracker.end()

	record, err := f.initiate(ctx, gen, amount, altOwner, destToken)
	if err != nil {
		f.tracker.fail(gen, err)
		return nil, err
	}
	return record, nil
}

func (f *AltToEVMFlow) initiate(ctx context.Context, gen int, amount, altOwner string, destToken entity.DestToken) (*entity.StoredTransaction, error) {
	raw, err := ValidateAmount(amount, nil)
	if err != nil {
		return nil, err
	}
	if err = ValidateAltChainAddress(altOwner); err != nil {
		return nil, err
	}
	if destToken != entity.DestTokenWPOKT && destToken != entity.DestTokenXPOKT {
		return nil, fmt.Errorf("%w: unknown destination token %q", ErrValidation, destToken)
	}

	balance, err := f.alt.ReadTokenBalance(ctx, altOwner)
	if err != nil {
		return nil, fmt.Errorf("can't read alt-chain balance: %w", err)
	}
	if balance.Cmp(raw) < 0 {
		return nil, fmt.Errorf("%w: have %s, requested %s", ErrInsufficientFunds, balance, raw)
	}

	f.tracker.set(gen, StepInitiating)
	evmRecipient := f.gw.SignerAddress()
	burnTxHash, err := f.alt.SubmitBurn(ctx, raw, altOwner, evmRecipient)
	if err != nil {
		return nil, err
	}

	f.tracker.set(gen, StepWaitingVAA)
	record, err := f.store.Add(entity.StoredTransaction{
		SourceChain:      entity.ChainSolana,
		DestChain:        f.cfg.DestChain,
		Amount:           entity.FormatAmount(raw),
		AmountRaw:        raw.String(),
		Status:           entity.TxStatusWaitingAttestation,
		SourceTxHash:     burnTxHash,
		DestToken:        destToken,
		InitiatorAddress: evmRecipient.Hex(),
	})
	if err != nil {
		return nil, err
	}
	f.logger.WithFields(logrus.Fields{
		"id":      record.ID,
		"tx_hash": record.SourceTxHash,
	}).Info("burn submitted, waiting for attestation")
	return record, nil
}

// WaitForAttestation blocks until the signed attestation for the stored
// transfer is available.
func (f *AltToEVMFlow) WaitForAttestation(ctx context.Context, txID string) (*entity.AttestationInfo, error) {
	gen, err := f.tracker.begin()
	if err != nil {
		return nil, err
	}
	defer f.tracker.end()
	f.tracker.set(gen, StepWaitingVAA)

	att, err := waitAndRecord(ctx, f.waiter, f.store, txID)
	if err != nil {
		f.tracker.fail(gen, err)
		return nil, err
	}
	return att, nil
}

// CompleteTransfer claims on the EVM destination chain. When the stored
// transfer asked for wPOKT, the claim is followed by a Lockbox withdrawal; a
// failure in that second leg is reported as a PartialSuccessError because
// the claimed xPOKT has already landed.
func (f *AltToEVMFlow) CompleteTransfer(ctx context.Context, txID string) (common.Hash, error) {
	gen, err := f.tracker.begin()
	if err != nil {
		return common.Hash{}, err
	}
	defer f.tracker.end()

	hash, err := f.claim(ctx, gen, txID)
	if err != nil {
		f.tracker.fail(gen, err)
		return common.Hash{}, err
	}
	f.tracker.set(gen, StepComplete)
	return hash, nil
}

func (f *AltToEVMFlow) claim(ctx context.Context, gen int, txID string) (common.Hash, error) {
	record, err := f.store.Get(txID)
	if err != nil {
		return common.Hash{}, err
	}
	payload, err := attestationPayload(record)
	if err != nil {
		return common.Hash{}, err
	}

	if f.gw.ActiveChain() != f.cfg.DestChain {
		if err = f.gw.SwitchActiveChain(f.cfg.DestChain); err != nil {
			return common.Hash{}, err
		}
	}

	f.tracker.set(gen, StepClaiming)
	if err = markStatus(f.store, txID, entity.TxStatusClaiming); err != nil {
		return common.Hash{}, err
	}
	claimHash, err := f.gw.Submit(ctx, f.cfg.DestChain, f.cfg.TokenBridge, contract.PackCompleteTransfer(payload), nil)
	if err != nil {
		return common.Hash{}, err
	}
	if err = f.gw.WaitForConfirmation(ctx, f.cfg.DestChain, claimHash); err != nil {
		return common.Hash{}, err
	}
	claimHex := claimHash.Hex()
	if _, err = f.store.Update(txID, txstore.Patch{DestTxHash: &claimHex}); err != nil {
		return common.Hash{}, err
	}

	if record.DestToken == entity.DestTokenWPOKT {
		if err = f.convert(ctx, gen, txID, record); err != nil {
			// The claim itself landed; surface the partial success instead of
			// rolling the whole transfer into an error.
			return claimHash, &PartialSuccessError{ClaimTxHash: claimHex, Err: err}
		}
	}

	if err = markStatus(f.store, txID, entity.TxStatusComplete); err != nil {
		return common.Hash{}, err
	}
	f.logger.WithFields(logrus.Fields{
		"id":      txID,
		"tx_hash": claimHex,
	}).Info("claim confirmed, transfer complete")
	return claimHash, nil
}

func (f *AltToEVMFlow) convert(ctx context.Context, gen int, txID string, record *entity.StoredTransaction) error {
	amount, ok := new(big.Int).SetString(record.AmountRaw, 10)
	if !ok {
		return fmt.Errorf("can't parse stored amount %q", record.AmountRaw)
	}

	f.tracker.set(gen, StepApprovingLockbox)
	if err := markStatus(f.store, txID, entity.TxStatusConverting); err != nil {
		return err
	}
	if _, err := f.allowance.EnsureAllowance(ctx, f.cfg.DestChain, f.cfg.XPOKT, f.cfg.Lockbox, amount); err != nil {
		return err
	}

	f.tracker.set(gen, StepWithdrawingLockbox)
	withdrawHash, err := f.gw.Submit(ctx, f.cfg.DestChain, f.cfg.Lockbox, contract.PackLockboxWithdraw(amount), nil)
	if err != nil {
		return err
	}
	if err = f.gw.WaitForConfirmation(ctx, f.cfg.DestChain, withdrawHash); err != nil {
		return err
	}
	withdrawHex := withdrawHash.Hex()
	_, err = f.store.Update(txID, txstore.Patch{ConversionTxHash: &withdrawHex})
	return err
}

// waitAndRecord runs the attestation wait for a stored transfer, persisting
// coordinates the moment they are known and the payload once it arrives.
func waitAndRecord(ctx context.Context, waiter AttestationWaiter, store *txstore.Store, txID string) (*entity.AttestationInfo, error) {
	record, err := store.Get(txID)
	if err != nil {
		return nil, err
	}
	if record.Attestation != nil && record.Attestation.Payload != "" {
		return record.Attestation, nil
	}

	att, err := waiter.WaitForAttestation(ctx, record.SourceTxHash, record.Attestation, func(coords entity.AttestationInfo) {
		store.Update(txID, txstore.Patch{Attestation: &coords}) //nolint:errcheck
	})
	if err != nil {
		return nil, err
	}
	status := entity.TxStatusAttestationReady
	if _, err = store.Update(txID, txstore.Patch{Status: &status, Attestation: att}); err != nil {
		return nil, err
	}
	return att, nil
}

func attestationPayload(record *entity.StoredTransaction) ([]byte, error) {
	if record.Attestation == nil || record.Attestation.Payload == "" {
		return nil, fmt.Errorf("transfer %s has no attestation payload yet", record.ID)
	}
	payload, err := base64.StdEncoding.DecodeString(record.Attestation.Payload)
	if err != nil {
		return nil, fmt.Errorf("can't decode attestation payload: %w", err)
	}
	return payload, nil
}

func markStatus(store *txstore.Store, txID string, status entity.TxStatus) error {
	_, err := store.Update(txID, txstore.Patch{Status: &status})
	return err
}
