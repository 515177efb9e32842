package balances

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/pokt-network/bridge-core/entity"
	"github.com/pokt-network/bridge-core/logging"
	"github.com/pokt-network/bridge-core/utils"
)

const DefaultRefreshInterval = 30 * time.Second

// ReadFunc fetches the current raw balance for one tracked key.
type ReadFunc func(ctx context.Context) (*big.Int, error)

// Balance is a settled snapshot of one tracked balance.
type Balance struct {
	Raw       *big.Int  `json:"raw"`
	Formatted string    `json:"formatted"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Tracker periodically refreshes a set of registered balances and exposes
// only settled values: a snapshot is replaced solely when a fetch completes,
// never cleared while one is in flight, so readers don't observe transient
// zeroes during refresh.
type Tracker struct {
	interval time.Duration
	logger   logging.Logger

	mu      sync.RWMutex
	readers map[string]ReadFunc
	settled map[string]Balance
}

func NewTracker(interval time.Duration, logger logging.Logger) *Tracker {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Tracker{
		interval: interval,
		logger:   logger.WithField("component", "balances"),
		readers:  make(map[string]ReadFunc),
		settled:  make(map[string]Balance),
	}
}

// Register adds a balance under the given key. Register before Start; keys
// registered later are picked up only by manual Refresh calls.
func (t *Tracker) Register(key string, read ReadFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readers[key] = read
}

// Start launches one refresh loop per registered key and blocks until ctx is
// cancelled. Loops are isolated: a slow or failing balance never delays the
// others.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.RLock()
	keys := make([]string, 0, len(t.readers))
	for key := range t.readers {
		keys = append(keys, key)
	}
	t.mu.RUnlock()

	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			t.loop(ctx, key)
		}(key)
	}
	wg.Wait()
}

func (t *Tracker) loop(ctx context.Context, key string) {
	for {
		if err := t.Refresh(ctx, key); err != nil && ctx.Err() == nil {
			t.logger.WithError(err).WithField("key", key).Warn("balance refresh failed, keeping previous value")
		}
		if utils.ContextSleep(ctx, t.interval) == nil {
			return
		}
	}
}

// Refresh fetches the balance for one key and replaces its settled snapshot.
// On failure the previous snapshot stays in place.
func (t *Tracker) Refresh(ctx context.Context, key string) error {
	t.mu.RLock()
	read, ok := t.readers[key]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no balance registered under key %q", key)
	}

	raw, err := read(ctx)
	if err != nil {
		return fmt.Errorf("can't read balance %q: %w", key, err)
	}
	t.mu.Lock()
	t.settled[key] = Balance{
		Raw:       raw,
		Formatted: entity.FormatAmount(raw),
		UpdatedAt: time.Now(),
	}
	t.mu.Unlock()
	return nil
}

// RefreshAll refreshes every registered balance once, sequentially.
func (t *Tracker) RefreshAll(ctx context.Context) {
	t.mu.RLock()
	keys := make([]string, 0, len(t.readers))
	for key := range t.readers {
		keys = append(keys, key)
	}
	t.mu.RUnlock()

	for _, key := range keys {
		if err := t.Refresh(ctx, key); err != nil && ctx.Err() == nil {
			t.logger.WithError(err).WithField("key", key).Warn("balance refresh failed, keeping previous value")
		}
	}
}

// Get returns the settled snapshot for one key.
func (t *Tracker) Get(key string) (Balance, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.settled[key]
	return b, ok
}

// Settled returns a copy of all settled snapshots.
func (t *Tracker) Settled() map[string]Balance {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]Balance, len(t.settled))
	for key, b := range t.settled {
		out[key] = b
	}
	return out
}
