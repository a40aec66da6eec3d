package analytics

import "context"

// Store defines persistence for daily rows keyed by (user, date).
// This interface is implemented by the infrastructure layer.
//
// Dates are YYYY-MM-DD keys. Implementations must return an error matching
// shared.ErrNotFound from GetDay when no row exists, and wrap every I/O or
// query failure so that it matches shared.ErrStore.
type Store interface {
	// GetDay returns the row for one day.
	GetDay(ctx context.Context, userID, date string) (*DailyAggregate, error)

	// GetRange returns rows with from <= date <= to, ascending by date.
	// Missing days are simply absent.
	GetRange(ctx context.Context, userID, from, to string) ([]DailyAggregate, error)

	// GetRecent returns up to limit most recent rows, descending by date.
	// This is the streak calculator's input.
	GetRecent(ctx context.Context, userID string, limit int) ([]DailyAggregate, error)

	// DeleteDay removes the row for one day. Deleting a missing row is not an error.
	DeleteDay(ctx context.Context, userID, date string) error

	// UpsertDay inserts or fully replaces the row keyed by (row.UserID, row.Date).
	UpsertDay(ctx context.Context, row DailyAggregate) error

	// IncrementDay atomically adds delta to the day's row, creating it when
	// absent, and refreshes the derived fields in the same unit of work.
	// It returns the row as written.
	IncrementDay(ctx context.Context, userID, date string, delta Delta) (*DailyAggregate, error)

	// ConsistentReads reports whether a read issued after a successful write
	// is guaranteed to observe it.
	ConsistentReads() bool
}
