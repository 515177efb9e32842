package bridge

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/pokt-network/bridge-core/contract"
	"github.com/pokt-network/bridge-core/entity"
	"github.com/pokt-network/bridge-core/gateway"
	"github.com/pokt-network/bridge-core/logging"
	"github.com/pokt-network/bridge-core/utils"
)

const (
	allowanceWaitRetries = 3
	allowanceWaitBackoff = 5 * time.Second
)

// ApprovalResult reports whether EnsureAllowance had to send an approval
// transaction at all.
type ApprovalResult struct {
	WasTxSent bool
	TxHash    common.Hash
}

// AllowanceManager makes sure a spender contract holds sufficient ERC20
// allowance before a transfer, skipping the approval transaction entirely
// when the existing allowance already covers the amount. Skipping both saves
// gas on retries and avoids interleaving a fresh approval with a pending one.
type AllowanceManager struct {
	gw     gateway.Gateway
	logger logging.Logger
}

func NewAllowanceManager(gw gateway.Gateway, logger logging.Logger) *AllowanceManager {
	return &AllowanceManager{gw: gw, logger: logger}
}

func (m *AllowanceManager) EnsureAllowance(ctx context.Context, chain entity.Chain, token, spender common.Address, amount *big.Int) (*ApprovalResult, error) {
	owner := m.gw.SignerAddress()
	allowance, err := m.gw.ReadAllowance(ctx, chain, token, owner, spender)
	if err != nil {
		return nil, fmt.Errorf("can't read current allowance: %w", err)
	}
	if allowance.Cmp(amount) >= 0 {
		m.logger.WithFields(logrus.Fields{
			"token":     token,
			"spender":   spender,
			"allowance": allowance,
			"amount":    amount,
		}).Debug("sufficient allowance, skipping approval")
		return &ApprovalResult{WasTxSent: false}, nil
	}

	txHash, err := m.gw.Submit(ctx, chain, token, contract.PackApprove(spender, amount), nil)
	if err != nil {
		return nil, fmt.Errorf("can't submit approval: %w", err)
	}

	// transient receipt-poll failures get a bounded fixed-backoff retry;
	// rejections and reverts propagate immediately
	for attempt := 0; ; attempt++ {
		err = m.gw.WaitForConfirmation(ctx, chain, txHash)
		if err == nil {
			break
		}
		if !errors.Is(err, gateway.ErrNetwork) || attempt >= allowanceWaitRetries {
			return nil, fmt.Errorf("approval confirmation failed: %w", err)
		}
		m.logger.WithError(err).WithField("tx_hash", txHash).Warn("approval confirmation poll failed, retrying")
		if utils.ContextSleep(ctx, allowanceWaitBackoff) == nil {
			return nil, ctx.Err()
		}
	}

	m.logger.WithFields(logrus.Fields{
		"token":   token,
		"spender": spender,
		"tx_hash": txHash,
	}).Info("approval confirmed")
	return &ApprovalResult{WasTxSent: true, TxHash: txHash}, nil
}
