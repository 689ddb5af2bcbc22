package memory

import (
	"context"
	"sync"
	"time"

	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/store"
	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/types"
)

type StudentStore struct {
	mu       sync.Mutex
	nextID   int64
	students map[int64]types.Student
}

func NewStudentStore() *StudentStore {
	return &StudentStore{students: make(map[int64]types.Student)}
}

func (s *StudentStore) Create(_ context.Context, st types.Student) (types.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	st.ID = s.nextID
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	s.students[st.ID] = st
	return st, nil
}

func (s *StudentStore) GetByID(_ context.Context, id int64) (types.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.students[id]
	if !ok {
		return types.Student{}, store.ErrStudentNotFound
	}
	return st, nil
}

func (s *StudentStore) GetBySID(_ context.Context, sid string) (types.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range s.students {
		if st.SID == sid {
			return st, nil
		}
	}
	return types.Student{}, store.ErrStudentNotFound
}

type MenuStore struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]types.MenuItem
}

func NewMenuStore() *MenuStore {
	return &MenuStore{items: make(map[int64]types.MenuItem)}
}

func (s *MenuStore) Create(_ context.Context, item types.MenuItem) (types.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	item.ID = s.nextID
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.items[item.ID] = item
	return item, nil
}

func (s *MenuStore) Update(_ context.Context, item types.MenuItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.ID]; !ok {
		return store.ErrMenuItemNotFound
	}
	s.items[item.ID] = item
	return nil
}

func (s *MenuStore) GetByID(_ context.Context, id int64) (types.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return types.MenuItem{}, store.ErrMenuItemNotFound
	}
	return item, nil
}

func (s *MenuStore) ListAvailable(_ context.Context) ([]types.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []types.MenuItem
	for _, item := range s.items {
		if item.IsAvailable {
			out = append(out, item)
		}
	}
	return out, nil
}

type OperatorStore struct {
	mu        sync.Mutex
	nextID    int64
	operators map[string]types.Operator // keyed by username
}

func NewOperatorStore() *OperatorStore {
	return &OperatorStore{operators: make(map[string]types.Operator)}
}

func (s *OperatorStore) Create(_ context.Context, op types.Operator) (types.Operator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	op.ID = s.nextID
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now().UTC()
	}
	s.operators[op.Username] = op
	return op, nil
}

func (s *OperatorStore) GetByUsername(_ context.Context, username string) (types.Operator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.operators[username]
	if !ok {
		return types.Operator{}, store.ErrOperatorNotFound
	}
	return op, nil
}

// AuditStore is an in-memory append-only log of operator actions.
// It is intended for use in tests and dev environments.
type AuditStore struct {
	mu      sync.Mutex
	records []store.AuditRecord
}

func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

func (s *AuditStore) RecordAction(_ context.Context, rec store.AuditRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Records returns a copy of all recorded actions.  Test-only helper.
func (s *AuditStore) Records() []store.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.AuditRecord, len(s.records))
	copy(out, s.records)
	return out
}
