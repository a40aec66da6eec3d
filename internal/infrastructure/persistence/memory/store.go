// Package memory provides an in-process analytics.Store. It is the default
// driver when no database is configured and the store used by unit tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alem-hub/study-analytics/internal/domain/analytics"
	"github.com/alem-hub/study-analytics/internal/domain/shared"
)

type key struct {
	userID string
	date   string
}

// Store keeps rows in a map guarded by a mutex. Returned rows are copies.
type Store struct {
	mu   sync.RWMutex
	rows map[key]analytics.DailyAggregate
	now  func() time.Time
}

var _ analytics.Store = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		rows: make(map[key]analytics.DailyAggregate),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// GetDay returns the row for one day.
func (s *Store) GetDay(_ context.Context, userID, date string) (*analytics.DailyAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[key{userID, date}]
	if !ok {
		return nil, shared.NewDomainError("store", "GetDay", shared.ErrNotFound,
			fmt.Sprintf("no row for %s on %s", userID, date))
	}
	c := row.Clone()
	return &c, nil
}

// GetRange returns rows in [from, to], ascending.
func (s *Store) GetRange(_ context.Context, userID, from, to string) ([]analytics.DailyAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]analytics.DailyAggregate, 0)
	for k, row := range s.rows {
		if k.userID == userID && k.date >= from && k.date <= to {
			out = append(out, row.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// GetRecent returns the most recent rows, descending.
func (s *Store) GetRecent(_ context.Context, userID string, limit int) ([]analytics.DailyAggregate, error) {
	if limit <= 0 {
		limit = 30
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]analytics.DailyAggregate, 0)
	for k, row := range s.rows {
		if k.userID == userID {
			out = append(out, row.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteDay removes one row.
func (s *Store) DeleteDay(_ context.Context, userID, date string) error {
	s.mu.Lock()
	delete(s.rows, key{userID, date})
	s.mu.Unlock()
	return nil
}

// UpsertDay inserts or fully replaces the row.
func (s *Store) UpsertDay(_ context.Context, row analytics.DailyAggregate) error {
	if err := row.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{row.UserID, row.Date}
	now := s.now()
	if existing, ok := s.rows[k]; ok {
		row.CreatedAt = existing.CreatedAt
	} else if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	s.rows[k] = row.Clone()
	return nil
}

// IncrementDay applies delta under the write lock.
func (s *Store) IncrementDay(_ context.Context, userID, date string, delta analytics.Delta) (*analytics.DailyAggregate, error) {
	if err := delta.Validate(); err != nil {
		return nil, err
	}
	if err := analytics.NewEmptyDay(userID, date).Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	k := key{userID, date}
	row, ok := s.rows[k]
	if !ok {
		row = analytics.NewEmptyDay(userID, date)
		row.CreatedAt = now
	} else {
		row = row.Clone()
	}

	var prev *analytics.DailyAggregate
	if p, ok := s.rows[key{userID, analytics.PreviousDate(date)}]; ok {
		prev = &p
	}

	delta.ApplyTo(&row)
	row.Refresh(prev)
	row.UpdatedAt = now
	s.rows[k] = row

	out := row.Clone()
	return &out, nil
}

// ConsistentReads is always true for the in-memory store.
func (s *Store) ConsistentReads() bool {
	return true
}

// Len returns the number of stored rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
