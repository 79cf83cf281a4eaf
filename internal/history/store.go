// Package history keeps the session's inspection records and derives the
// dashboard aggregates from them on read.
package history

import (
	"errors"
	"fmt"
	"sync"

	"github.com/xelth-com/spectraq/internal/inspection"
)

var (
	// ErrNotFound is returned for an unknown record id
	ErrNotFound = errors.New("record not found")
	// ErrTicketClosed is returned when a ticket transition is not allowed
	ErrTicketClosed = errors.New("ticket is not open")
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status inspection.Status
	Ticket inspection.TicketStatus
	Limit  int
}

// Store is the in-memory, newest-first inspection history
type Store struct {
	mu      sync.RWMutex
	records []inspection.Record
}

// NewStore creates an empty history
func NewStore() *Store {
	return &Store{}
}

// Append inserts a record at the head. Records land in completion order.
func (s *Store) Append(rec inspection.Record) {
	rec = rec.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]inspection.Record, 0, len(s.records)+1)
	next = append(next, rec)
	next = append(next, s.records...)
	s.records = next
}

// Get returns a copy of the record with the given id
func (s *Store) Get(id string) (inspection.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.ID == id {
			return r.Clone(), nil
		}
	}
	return inspection.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// UpdateByID applies fn to a copy of the record and stores the result.
// If fn returns an error the history is left unchanged.
func (s *Store) UpdateByID(id string, fn func(*inspection.Record) error) (inspection.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.records {
		if r.ID != id {
			continue
		}
		updated := r.Clone()
		if err := fn(&updated); err != nil {
			return r.Clone(), err
		}
		// identity fields stay fixed
		updated.ID = r.ID
		updated.Timestamp = r.Timestamp
		updated.InspectionType = r.InspectionType
		updated.Temperature = r.Temperature
		updated.Noise = r.Noise

		next := make([]inspection.Record, len(s.records))
		copy(next, s.records)
		next[i] = updated
		s.records = next
		return updated.Clone(), nil
	}
	return inspection.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Resolve closes an open ticket
func (s *Store) Resolve(id string) (inspection.Record, error) {
	return s.UpdateByID(id, func(r *inspection.Record) error {
		if !r.TicketStatus.CanTransition(inspection.TicketResolved) {
			return fmt.Errorf("%w: %s is %s", ErrTicketClosed, r.ID, r.TicketStatus)
		}
		r.TicketStatus = inspection.TicketResolved
		return nil
	})
}

// Assign reassigns the inspector of a record that has not been resolved
func (s *Store) Assign(id, inspectorID string) (inspection.Record, error) {
	return s.UpdateByID(id, func(r *inspection.Record) error {
		if r.TicketStatus == inspection.TicketResolved {
			return fmt.Errorf("%w: %s is resolved", ErrTicketClosed, r.ID)
		}
		r.InspectorID = inspectorID
		return nil
	})
}

// List returns records newest first
func (s *Store) List(f Filter) []inspection.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]inspection.Record, 0, len(s.records))
	for _, r := range s.records {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.Ticket != "" && r.TicketStatus != f.Ticket {
			continue
		}
		out = append(out, r.Clone())
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// Recent returns the n newest records
func (s *Store) Recent(n int) []inspection.Record {
	return s.List(Filter{Limit: n})
}

// Len returns the number of records
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// snapshot returns the backing slice. Mutations always replace the slice, so
// the returned value is safe to read without holding the lock.
func (s *Store) snapshot() []inspection.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records
}
