package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad user input; it is resolved locally and never
	// reaches the network.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientFunds is returned by the split planner when the two
	// source balances combined cannot cover the requested amount.
	ErrInsufficientFunds = errors.New("insufficient combined POKT balance")
	// ErrFlowBusy is returned when a bridge operation is invoked while a
	// previous one on the same orchestrator is still running.
	ErrFlowBusy = errors.New("a bridge operation is already in progress")
)

// PartialSuccessError reports a claim that landed while the follow-up token
// conversion failed. The funds arrived on the destination chain as the
// bridge-native token; this must never be presented as a total failure.
type PartialSuccessError struct {
	ClaimTxHash string
	Err         error
}

func (e *PartialSuccessError) Error() string {
	return fmt.Sprintf("claim succeeded (tx %s) but conversion failed: %v; the funds arrived as xPOKT and can be converted manually", e.ClaimTxHash, e.Err)
}

func (e *PartialSuccessError) Unwrap() error {
	return e.Err
}
