package bridge

import (
	"fmt"
	"math/big"
)

// TokenBalances holds the two source-chain balances a transfer can draw on:
// wPOKT must pass through the Lockbox before bridging, xPOKT is accepted by
// the bridge contracts directly.
type TokenBalances struct {
	WPOKT *big.Int
	XPOKT *big.Int
}

// SplitPlan describes how a requested amount is covered: Direct is spent as
// xPOKT without conversion, Converted is the wPOKT remainder that must go
// through the Lockbox first. Direct + Converted always equals the request.
type SplitPlan struct {
	Direct          *big.Int
	Converted       *big.Int
	NeedsConversion bool
}

// PlanSplit computes the conversion split for a requested raw amount.
// xPOKT is drained first; wPOKT covers only the remainder. This keeps the
// transaction count minimal: a transfer fully covered by xPOKT needs no
// Lockbox leg at all.
func PlanSplit(requested *big.Int, balances TokenBalances) (*SplitPlan, error) {
	wpokt := balances.WPOKT
	if wpokt == nil {
		wpokt = new(big.Int)
	}
	xpokt := balances.XPOKT
	if xpokt == nil {
		xpokt = new(big.Int)
	}

	if xpokt.Cmp(requested) >= 0 {
		return &SplitPlan{
			Direct:    new(big.Int).Set(requested),
			Converted: new(big.Int),
		}, nil
	}

	converted := new(big.Int).Sub(requested, xpokt)
	if converted.Cmp(wpokt) > 0 {
		total := new(big.Int).Add(wpokt, xpokt)
		return nil, fmt.Errorf("have %s, requested %s: %w", total, requested, ErrInsufficientFunds)
	}
	return &SplitPlan{
		Direct:          new(big.Int).Set(xpokt),
		Converted:       converted,
		NeedsConversion: true,
	}, nil
}
