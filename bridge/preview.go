package bridge

import (
	"context"
	"fmt"
	"math/big"

	"github.com/pokt-network/bridge-core/entity"
)

// BridgePreview describes what a flow run would do for a requested amount
// before anything is submitted: how the request splits between the directly
// bridgeable balance and the part that must be converted first, the ordered
// user-facing step descriptions, and how many transactions will need signing.
type BridgePreview struct {
	Amount          *big.Int `json:"amount"`
	DirectAmount    *big.Int `json:"directAmount"`
	ConvertAmount   *big.Int `json:"convertAmount"`
	NeedsConversion bool     `json:"needsConversion"`
	Steps           []string `json:"steps"`
	SignatureCount  int      `json:"signatureCount"`
}

func previewFromPlan(raw *big.Int, plan *SplitPlan) *BridgePreview {
	return &BridgePreview{
		Amount:          raw,
		DirectAmount:    plan.Direct,
		ConvertAmount:   plan.Converted,
		NeedsConversion: plan.NeedsConversion,
	}
}

func (p *BridgePreview) addStep(description string, needsSignature bool) {
	p.Steps = append(p.Steps, description)
	if needsSignature {
		p.SignatureCount++
	}
}

// Preview reports the transactions a Bridge call for the given amount would
// submit. It reads balances but sends nothing; approvals are counted even
// when an existing allowance might cover them.
func (f *EVMFlow) Preview(ctx context.Context, amount string) (*BridgePreview, error) {
	raw, err := ValidateAmount(amount, nil)
	if err != nil {
		return nil, err
	}
	balances, err := f.readBalances(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := PlanSplit(raw, balances)
	if err != nil {
		return nil, err
	}

	preview := previewFromPlan(raw, plan)
	if plan.NeedsConversion {
		preview.addStep(fmt.Sprintf("Approve %s wPOKT for the Lockbox", entity.FormatAmount(plan.Converted)), true)
		preview.addStep(fmt.Sprintf("Convert %s wPOKT to xPOKT", entity.FormatAmount(plan.Converted)), true)
	}
	preview.addStep(fmt.Sprintf("Approve %s xPOKT for the bridge adapter", entity.FormatAmount(raw)), true)
	preview.addStep(fmt.Sprintf("Bridge %s xPOKT to %s", entity.FormatAmount(raw), f.cfg.DestChain), true)
	preview.addStep(fmt.Sprintf("Wait for relay delivery on %s", f.cfg.DestChain), false)
	return preview, nil
}

// Preview reports the transactions an InitiateTransfer call for the given
// amount would submit, plus the attestation wait and claim that follow.
func (f *CompoundAltFlow) Preview(ctx context.Context, amount string) (*BridgePreview, error) {
	raw, err := ValidateAmount(amount, nil)
	if err != nil {
		return nil, err
	}
	balances, err := f.readBalances(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := PlanSplit(raw, balances)
	if err != nil {
		return nil, err
	}

	preview := previewFromPlan(raw, plan)
	if plan.NeedsConversion {
		preview.addStep(fmt.Sprintf("Approve %s wPOKT for the Lockbox", entity.FormatAmount(plan.Converted)), true)
		preview.addStep(fmt.Sprintf("Convert %s wPOKT to xPOKT", entity.FormatAmount(plan.Converted)), true)
	}
	preview.addStep(fmt.Sprintf("Approve %s xPOKT for the token bridge", entity.FormatAmount(raw)), true)
	preview.addStep(fmt.Sprintf("Lock %s xPOKT for transfer to %s", entity.FormatAmount(raw), entity.ChainSolana), true)
	preview.addStep("Wait for the transfer attestation", false)
	preview.addStep(fmt.Sprintf("Claim the tokens on %s", entity.ChainSolana), true)
	return preview, nil
}

// Preview reports the steps of a transfer back from the alternate chain for
// the given amount and destination token preference.
func (f *AltToEVMFlow) Preview(ctx context.Context, amount, altOwner string, destToken entity.DestToken) (*BridgePreview, error) {
	raw, err := ValidateAmount(amount, nil)
	if err != nil {
		return nil, err
	}
	balance, err := f.alt.ReadTokenBalance(ctx, altOwner)
	if err != nil {
		return nil, err
	}
	if raw.Cmp(balance) > 0 {
		return nil, fmt.Errorf("requested %s exceeds balance %s: %w",
			entity.FormatAmount(raw), entity.FormatAmount(balance), ErrInsufficientFunds)
	}

	preview := &BridgePreview{
		Amount:        raw,
		DirectAmount:  raw,
		ConvertAmount: new(big.Int),
	}
	preview.addStep(fmt.Sprintf("Burn %s on %s", entity.FormatAmount(raw), entity.ChainSolana), true)
	preview.addStep("Wait for the transfer attestation", false)
	preview.addStep(fmt.Sprintf("Claim xPOKT on %s", f.cfg.DestChain), true)
	if destToken == entity.DestTokenWPOKT {
		preview.NeedsConversion = true
		preview.addStep("Approve xPOKT for the Lockbox", true)
		preview.addStep("Withdraw wPOKT from the Lockbox", true)
	}
	return preview, nil
}
