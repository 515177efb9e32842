package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/pokt-network/bridge-core/entity"
	"github.com/pokt-network/bridge-core/logging"
)

// Direction selects which leg of the alt-chain bridge a unified flow drives.
type Direction string

const (
	DirectionToAlt   Direction = "to-alt"
	DirectionFromAlt Direction = "from-alt"
)

func (d Direction) Valid() bool {
	return d == DirectionToAlt || d == DirectionFromAlt
}

// UnifiedFlow presents the two attestation-based flows behind one surface.
// Switching direction resets both underlying flows; a stored transfer can be
// resumed in either direction regardless of the current one.
type UnifiedFlow struct {
	toAlt   *CompoundAltFlow
	fromAlt *AltToEVMFlow
	logger  logging.Logger

	mu        sync.Mutex
	direction Direction
}

func NewUnifiedFlow(toAlt *CompoundAltFlow, fromAlt *AltToEVMFlow, logger logging.Logger) *UnifiedFlow {
	return &UnifiedFlow{
		toAlt:     toAlt,
		fromAlt:   fromAlt,
		logger:    logger.WithField("flow", "unified"),
		direction: DirectionToAlt,
	}
}

func (f *UnifiedFlow) Direction() Direction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.direction
}

// SetDirection switches the active leg and resets both flows to idle.
func (f *UnifiedFlow) SetDirection(d Direction) error {
	if !d.Valid() {
		return fmt.Errorf("%w: unknown direction %q", ErrValidation, d)
	}
	f.mu.Lock()
	f.direction = d
	f.mu.Unlock()
	f.toAlt.Reset()
	f.fromAlt.Reset()
	return nil
}

func (f *UnifiedFlow) StepOrder() []Step {
	if f.Direction() == DirectionToAlt {
		return f.toAlt.StepOrder()
	}
	return f.fromAlt.StepOrder()
}

func (f *UnifiedFlow) State() FlowState {
	if f.Direction() == DirectionToAlt {
		return f.toAlt.State()
	}
	return f.fromAlt.State()
}

func (f *UnifiedFlow) Reset() {
	f.toAlt.Reset()
	f.fromAlt.Reset()
}

// InitiateTransfer starts a transfer in the current direction. altAddress is
// the alt-chain recipient when bridging out, or the alt-chain owner whose
// balance is burned when bridging back. destToken only applies when bridging
// back to an EVM chain.
func (f *UnifiedFlow) InitiateTransfer(ctx context.Context, amount, altAddress string, destToken entity.DestToken) (*entity.StoredTransaction, error) {
	if f.Direction() == DirectionToAlt {
		return f.toAlt.InitiateTransfer(ctx, amount, altAddress)
	}
	return f.fromAlt.InitiateTransfer(ctx, amount, altAddress, destToken)
}

// Preview reports the steps of a transfer in the current direction without
// submitting anything. altAddress and destToken follow the InitiateTransfer
// conventions.
func (f *UnifiedFlow) Preview(ctx context.Context, amount, altAddress string, destToken entity.DestToken) (*BridgePreview, error) {
	if f.Direction() == DirectionToAlt {
		return f.toAlt.Preview(ctx, amount)
	}
	return f.fromAlt.Preview(ctx, amount, altAddress, destToken)
}

func (f *UnifiedFlow) WaitForAttestation(ctx context.Context, txID string) (*entity.AttestationInfo, error) {
	if f.Direction() == DirectionToAlt {
		return f.toAlt.WaitForAttestation(ctx, txID)
	}
	return f.fromAlt.WaitForAttestation(ctx, txID)
}

// CompleteTransfer claims the transfer on its destination chain. The
// direction is taken from the stored record, not the current direction, so a
// resume always claims on the right side.
func (f *UnifiedFlow) CompleteTransfer(ctx context.Context, txID, altAddress string) (string, error) {
	record, err := f.record(txID)
	if err != nil {
		return "", err
	}
	if record.DestChain.IsEVM() {
		hash, err2 := f.fromAlt.CompleteTransfer(ctx, txID)
		if err2 != nil {
			return "", err2
		}
		return hash.Hex(), nil
	}
	return f.toAlt.CompleteTransfer(ctx, txID, altAddress)
}

// ResumeFromAttestation picks a stored transfer back up: it waits out the
// attestation if the payload is not persisted yet and then claims.
func (f *UnifiedFlow) ResumeFromAttestation(ctx context.Context, txID, altAddress string) (string, error) {
	record, err := f.record(txID)
	if err != nil {
		return "", err
	}
	if !record.Resumable() {
		return "", fmt.Errorf("%w: transfer %s is at status %q and can't be resumed", ErrValidation, txID, record.Status)
	}
	f.logger.WithField("id", txID).Info("resuming stored transfer")

	if record.Attestation == nil || record.Attestation.Payload == "" {
		if record.DestChain.IsEVM() {
			_, err = f.fromAlt.WaitForAttestation(ctx, txID)
		} else {
			_, err = f.toAlt.WaitForAttestation(ctx, txID)
		}
		if err != nil {
			return "", err
		}
	}
	return f.CompleteTransfer(ctx, txID, altAddress)
}

func (f *UnifiedFlow) record(txID string) (*entity.StoredTransaction, error) {
	// Both flows share the same store.
	return f.toAlt.store.Get(txID)
}
