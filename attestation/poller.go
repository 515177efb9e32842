package attestation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pokt-network/bridge-core/entity"
	"github.com/pokt-network/bridge-core/logging"
	"github.com/pokt-network/bridge-core/utils"
)

var (
	// ErrAttestationTimeout means the poller gave up before the signature
	// quorum was observed. The attestation may still materialize later, so
	// the transfer stays resumable.
	ErrAttestationTimeout = errors.New("gave up waiting for attestation, the transfer may still complete later")
	// ErrPollInProgress guards against overlapping waits for the same
	// source transaction. Waits for different transactions run
	// independently.
	ErrPollInProgress = errors.New("an attestation poll for this transaction is already in progress")
)

const (
	DefaultPollInterval = 30 * time.Second
	DefaultMaxAttempts  = 240
)

// Poller waits for signed attestations. Each tick it races the two indexer
// lookup paths: by source transaction hash and, once emitter coordinates are
// known, the faster direct lookup by coordinates. Lookup errors are logged
// and retried, only the attempt budget terminates the wait.
type Poller struct {
	client      *Client
	interval    time.Duration
	maxAttempts int
	logger      logging.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
	coords   map[string]*entity.AttestationInfo
}

func NewPoller(client *Client, interval time.Duration, maxAttempts int, logger logging.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Poller{
		client:      client,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger.WithField("component", "attestation_poller"),
		inflight:    make(map[string]struct{}),
		coords:      make(map[string]*entity.AttestationInfo),
	}
}

type lookupResult struct {
	info *entity.AttestationInfo
	err  error
}

// WaitForAttestation blocks until the signed payload for the given source
// transaction is available, the attempt budget runs out, or ctx is
// cancelled. Waits are single-flight per source transaction; waits for
// distinct transactions proceed concurrently. onCoordinates fires at most
// once, as soon as emitter coordinates are discovered.
func (p *Poller) WaitForAttestation(ctx context.Context, sourceTxHash string, known *entity.AttestationInfo, onCoordinates func(entity.AttestationInfo)) (*entity.AttestationInfo, error) {
	if err := p.acquire(sourceTxHash); err != nil {
		return nil, err
	}
	defer p.release(sourceTxHash)

	coords := known
	if !coords.HasCoordinates() {
		coords = p.cachedCoords(sourceTxHash)
	}
	coordsReported := coords.HasCoordinates()
	logger := p.logger.WithField("tx_hash", sourceTxHash)

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		observeAttempt(coords.HasCoordinates())
		results := make(chan lookupResult, 2)
		lookups := 1
		go func() {
			status, err := p.client.TransactionStatus(ctx, sourceTxHash)
			if err != nil {
				results <- lookupResult{err: err}
				return
			}
			results <- lookupResult{info: status.Info()}
		}()
		if coords.HasCoordinates() {
			lookups++
			go func(c entity.AttestationInfo) {
				payload, err := p.client.AttestationByCoordinates(ctx, c.EmitterChain, c.EmitterAddress, c.Sequence)
				if err != nil {
					results <- lookupResult{err: err}
					return
				}
				c.Payload = payload
				results <- lookupResult{info: &c}
			}(*coords)
		}

		var resolved *entity.AttestationInfo
		for i := 0; i < lookups; i++ {
			res := <-results
			if res.err != nil {
				if !errors.Is(res.err, ErrNotFound) && ctx.Err() == nil {
					logger.WithError(res.err).Warn("attestation lookup failed, will retry")
				}
				continue
			}
			if res.info.HasCoordinates() && !coords.HasCoordinates() {
				coords = res.info
				p.cacheCoords(sourceTxHash, coords)
			}
			if resolved == nil && res.info.Payload != "" {
				resolved = res.info
			}
		}

		if coords.HasCoordinates() && !coordsReported {
			coordsReported = true
			if onCoordinates != nil {
				onCoordinates(*coords)
			}
			logger.WithFields(logrus.Fields{
				"emitter_chain": coords.EmitterChain,
				"sequence":      coords.Sequence,
			}).Info("emitter coordinates discovered")
		}
		if resolved != nil {
			logger.WithField("attempts", attempt).Info("signed attestation received")
			return resolved, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if utils.ContextSleep(ctx, p.interval) == nil {
			return nil, ctx.Err()
		}
	}
	return nil, ErrAttestationTimeout
}

func (p *Poller) acquire(txHash string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.inflight[txHash]; ok {
		return ErrPollInProgress
	}
	p.inflight[txHash] = struct{}{}
	return nil
}

func (p *Poller) release(txHash string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, txHash)
}

func (p *Poller) cachedCoords(txHash string) *entity.AttestationInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.coords[txHash]
}

func (p *Poller) cacheCoords(txHash string, info *entity.AttestationInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.coords[txHash] = info
}
