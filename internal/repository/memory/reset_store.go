package memory

import (
	"context"
	"sync"
	"time"

	"github.com/arklim/auth-core/internal/core/domain"
	"github.com/arklim/auth-core/internal/core/port"
	"github.com/arklim/auth-core/internal/repository"
)

// DefaultResetCapacity bounds the in-memory reset store when no capacity is
// configured.
const DefaultResetCapacity = 1000

// ResetStore is an in-process port.ResetRepository with a hard capacity.
// When full, the oldest record is evicted FIFO; a user whose request was
// evicted simply asks for a new code. Suitable for single-node deployments
// where reset state may die with the process.
type ResetStore struct {
	mu       sync.Mutex
	capacity int
	records  map[string]domain.PasswordResetRecord
	order    []string
}

// NewResetStore constructs a ResetStore holding at most capacity records.
func NewResetStore(capacity int) *ResetStore {
	if capacity <= 0 {
		capacity = DefaultResetCapacity
	}
	return &ResetStore{
		capacity: capacity,
		records:  make(map[string]domain.PasswordResetRecord, capacity),
	}
}

// Create stores a record, evicting the oldest one at capacity.
func (s *ResetStore) Create(_ context.Context, record domain.PasswordResetRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.order) >= s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.records, oldest)
	}

	s.records[record.ID] = record
	s.order = append(s.order, record.ID)
	return nil
}

// GetLatestByEmail returns the newest record for the email, consumed or not.
// The caller decides what a used record means.
func (s *ResetStore) GetLatestByEmail(_ context.Context, email string) (*domain.PasswordResetRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.order) - 1; i >= 0; i-- {
		record, ok := s.records[s.order[i]]
		if !ok {
			continue
		}
		if record.Email == email {
			out := record
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

// GetByTokenHash returns the record holding the token hash.
func (s *ResetStore) GetByTokenHash(_ context.Context, tokenHash string) (*domain.PasswordResetRecord, error) {
	if tokenHash == "" {
		return nil, repository.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.records {
		if record.TokenHash == tokenHash {
			out := record
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

// MarkVerified attaches the reset token to a code-verified record.
func (s *ResetStore) MarkVerified(_ context.Context, id string, tokenHash string, tokenExpiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return repository.ErrNotFound
	}

	record.Verified = true
	record.TokenHash = tokenHash
	record.TokenExpiresAt = &tokenExpiresAt
	s.records[id] = record
	return nil
}

// MarkUsed stamps consumption; a second call for the same record fails.
func (s *ResetStore) MarkUsed(_ context.Context, id string, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok || record.UsedAt != nil {
		return repository.ErrNotFound
	}

	stamp := usedAt
	record.UsedAt = &stamp
	s.records[id] = record
	return nil
}

// Delete removes a record.
func (s *ResetStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.records, id)
	s.dropFromOrder(id)
	return nil
}

// InvalidatePending removes every unconsumed record for the email.
func (s *ResetStore) InvalidatePending(_ context.Context, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for id, record := range s.records {
		if record.Email == email && record.UsedAt == nil {
			delete(s.records, id)
			s.dropFromOrder(id)
			dropped++
		}
	}
	return dropped, nil
}

// Len reports the number of stored records.
func (s *ResetStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *ResetStore) dropFromOrder(id string) {
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

var _ port.ResetRepository = (*ResetStore)(nil)
