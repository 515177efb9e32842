package txstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pokt-network/bridge-core/entity"
	"github.com/pokt-network/bridge-core/logging"
)

const DefaultMaxEntries = 100

var ErrNotFound = errors.New("transfer not found")

// Patch is a partial update to a stored transfer. Nil fields are left
// untouched.
type Patch struct {
	Status           *entity.TxStatus
	DestToken        *entity.DestToken
	PreConversion    *entity.PreConversionInfo
	Attestation      *entity.AttestationInfo
	DestTxHash       *string
	ConversionTxHash *string
}

// Store is the durable record of in-flight bridge transfers, persisted as a
// single JSON array. Every mutation rewrites the file atomically so a crash
// never leaves a torn write behind.
type Store struct {
	path       string
	maxEntries int
	logger     logging.Logger

	mu      sync.Mutex
	entries []entity.StoredTransaction

	// onChange fires after every successful mutation, outside the lock.
	onChange func(entity.StoredTransaction)
}

func NewStore(path string, maxEntries int, logger logging.Logger) (*Store, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	s := &Store{
		path:       path,
		maxEntries: maxEntries,
		logger:     logger.WithField("component", "txstore"),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// OnChange registers a hook invoked with a copy of the entry after every
// add or update. Set it before the store is shared between goroutines.
func (s *Store) OnChange(fn func(entity.StoredTransaction)) {
	s.onChange = fn
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("can't read transfer store: %w", err)
	}
	var raw []json.RawMessage
	if err = json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("can't decode transfer store: %w", err)
	}

	// Entries are validated one by one so a single corrupt record does not
	// take the rest of the store down with it.
	dropped := 0
	for _, msg := range raw {
		var tx entity.StoredTransaction
		if err = json.Unmarshal(msg, &tx); err != nil {
			dropped++
			continue
		}
		if err = tx.Validate(); err != nil {
			s.logger.WithError(err).WithField("id", tx.ID).Warn("dropping invalid transfer entry")
			dropped++
			continue
		}
		s.entries = append(s.entries, tx)
	}
	if dropped > 0 {
		s.logger.WithFields(logrus.Fields{
			"dropped": dropped,
			"kept":    len(s.entries),
		}).Warn("some transfer entries were corrupt and have been dropped")
	}
	StoredEntries.Set(float64(len(s.entries)))
	return nil
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("can't encode transfer store: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".txstore-*")
	if err != nil {
		return fmt.Errorf("can't create temp store file: %w", err)
	}
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("can't write transfer store: %w", err)
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("can't close transfer store: %w", err)
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("can't replace transfer store: %w", err)
	}
	StoredEntries.Set(float64(len(s.entries)))
	return nil
}

func newID(now time.Time) string {
	return fmt.Sprintf("tx-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

// Add stamps the transfer with an id and timestamps and persists it. When the
// store is at capacity the oldest entry is evicted first.
func (s *Store) Add(tx entity.StoredTransaction) (*entity.StoredTransaction, error) {
	now := time.Now()
	tx.ID = newID(now)
	tx.CreatedAt = now.UnixMilli()
	tx.UpdatedAt = tx.CreatedAt
	if tx.Status == "" {
		tx.Status = entity.TxStatusPending
	}
	if err := tx.Validate(); err != nil {
		return nil, fmt.Errorf("can't add transfer: %w", err)
	}

	s.mu.Lock()
	if len(s.entries) >= s.maxEntries {
		evicted := len(s.entries) - s.maxEntries + 1
		s.entries = append([]entity.StoredTransaction(nil), s.entries[evicted:]...)
	}
	s.entries = append(s.entries, tx)
	err := s.save()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.notify(tx)
	return &tx, nil
}

// Update applies the patch to the entry with the given id. Status changes
// that would move backwards through the lifecycle are rejected. The patch is
// applied to a copy and committed only once it is on disk, so a failed save
// leaves the in-memory entry matching the file.
func (s *Store) Update(id string, patch Patch) (*entity.StoredTransaction, error) {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	tx := s.entries[idx]
	if patch.Status != nil {
		if !tx.Status.CanAdvanceTo(*patch.Status) {
			s.mu.Unlock()
			return nil, fmt.Errorf("can't move transfer %s from %q to %q", id, tx.Status, *patch.Status)
		}
		tx.Status = *patch.Status
	}
	if patch.DestToken != nil {
		tx.DestToken = *patch.DestToken
	}
	if patch.PreConversion != nil {
		tx.PreConversion = patch.PreConversion
	}
	if patch.Attestation != nil {
		tx.Attestation = patch.Attestation
	}
	if patch.DestTxHash != nil {
		tx.DestTxHash = *patch.DestTxHash
	}
	if patch.ConversionTxHash != nil {
		tx.ConversionTxHash = *patch.ConversionTxHash
	}
	tx.UpdatedAt = time.Now().UnixMilli()

	prev := s.entries[idx]
	s.entries[idx] = tx
	if err := s.save(); err != nil {
		s.entries[idx] = prev
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	s.notify(tx)
	return &tx, nil
}

// Remove deletes the entry with the given id. Dismissal is the only way an
// entry ever leaves the store.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return ErrNotFound
	}
	s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
	return s.save()
}

func (s *Store) Get(id string) (*entity.StoredTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return nil, ErrNotFound
	}
	tx := s.entries[idx]
	return &tx, nil
}

// List returns all entries, newest first.
func (s *Store) List() []entity.StoredTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.StoredTransaction, len(s.entries))
	for i, tx := range s.entries {
		out[len(s.entries)-1-i] = tx
	}
	return out
}

// VisibleTo returns the entries the given wallet is allowed to see, newest
// first.
func (s *Store) VisibleTo(address string) []entity.StoredTransaction {
	return s.filter(func(tx *entity.StoredTransaction) bool {
		return tx.VisibleTo(address)
	})
}

// Resumable returns the entries parked at a user-resumable status that are
// visible to the given wallet, newest first.
func (s *Store) Resumable(address string) []entity.StoredTransaction {
	return s.filter(func(tx *entity.StoredTransaction) bool {
		return tx.Resumable() && tx.VisibleTo(address)
	})
}

// Pending returns all non-terminal entries, newest first.
func (s *Store) Pending() []entity.StoredTransaction {
	return s.filter(func(tx *entity.StoredTransaction) bool {
		return tx.Pending()
	})
}

func (s *Store) filter(keep func(*entity.StoredTransaction) bool) []entity.StoredTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.StoredTransaction
	for i := len(s.entries) - 1; i >= 0; i-- {
		if keep(&s.entries[i]) {
			out = append(out, s.entries[i])
		}
	}
	return out
}

func (s *Store) indexOf(id string) int {
	for i := range s.entries {
		if s.entries[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) notify(tx entity.StoredTransaction) {
	if s.onChange != nil {
		s.onChange(tx)
	}
}
