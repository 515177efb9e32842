package attestation

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pokt-network/bridge-core/logging"
	"github.com/pokt-network/bridge-core/utils"
)

// ErrDeliveryTimeout means the relay did not land the destination
// transaction within the wait budget. The relay operates independently, so
// delivery may still happen after the poller gives up.
var ErrDeliveryTimeout = errors.New("gave up waiting for relay delivery, the transfer may still complete later")

const (
	DefaultRelayPollInterval = 15 * time.Second
	DefaultRelayTimeout      = 45 * time.Minute
)

// RelayPoller watches the indexer's operations view for the destination
// transaction of an adapter-based transfer. Relay delivery is automatic, so
// no user action depends on the result; the poller only confirms it.
type RelayPoller struct {
	client   *Client
	interval time.Duration
	timeout  time.Duration
	logger   logging.Logger
}

func NewRelayPoller(client *Client, interval, timeout time.Duration, logger logging.Logger) *RelayPoller {
	if interval <= 0 {
		interval = DefaultRelayPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultRelayTimeout
	}
	return &RelayPoller{
		client:   client,
		interval: interval,
		timeout:  timeout,
		logger:   logger.WithField("component", "relay_poller"),
	}
}

// WaitForDelivery polls until the relay lands the destination transaction
// for the given source transaction. onDelivered fires exactly once, before
// the method returns the delivery.
func (p *RelayPoller) WaitForDelivery(ctx context.Context, sourceTxHash string, onDelivered func(Delivery)) (*Delivery, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	logger := p.logger.WithField("tx_hash", sourceTxHash)
	delivered := false
	for {
		delivery, err := p.client.Operation(ctx, sourceTxHash)
		switch {
		case err == nil:
			logger.WithFields(logrus.Fields{
				"target_tx_hash": delivery.TargetTxHash,
				"delivered_at":   delivery.Timestamp,
			}).Info("relay delivery confirmed")
			if !delivered && onDelivered != nil {
				delivered = true
				onDelivered(*delivery)
			}
			return delivery, nil
		case errors.Is(err, ErrNotFound):
			// Not landed yet, keep polling.
		case ctx.Err() != nil:
			// Fall through to the sleep which reports the cancellation.
		default:
			logger.WithError(err).Warn("delivery lookup failed, will retry")
		}

		if utils.ContextSleep(ctx, p.interval) == nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrDeliveryTimeout
			}
			return nil, ctx.Err()
		}
	}
}
