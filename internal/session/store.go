// Package session holds parsed row data between the upload and export
// steps of the import flow.
//
// Nothing here touches disk: uploaded file contents live only in process
// memory and disappear on export, on TTL expiry, or on restart. That loss
// is deliberate; a session is cheap to recreate by re-uploading.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dokflow/dokflow/internal/core"
	"github.com/dokflow/dokflow/internal/ingest"
)

// Data is the mutable payload of one session. RawBuffer keeps the original
// file bytes for formats that support sub-section re-selection, so the
// server can re-ingest a different sheet or XML collection without a
// second upload.
type Data struct {
	Rows           core.RowMatrix
	HeaderRowIndex int
	SourceName     string
	Format         ingest.Format
	RawBuffer      []byte
	SubSections    []core.SubSection
}

// Session is one stored upload. CreatedAt is fixed at insertion; the TTL
// is measured from creation, never from last access.
type Session struct {
	ID        string
	Data      Data
	CreatedAt time.Time
}

// Update is a partial session update. Nil fields are left untouched;
// non-nil fields are shallow-merged into the stored session.
type Update struct {
	Rows           *core.RowMatrix
	HeaderRowIndex *int
	SubSections    *[]core.SubSection
}

// Store is an in-memory session store keyed by opaque id. Construct one
// per process with New and pass it by reference; there is no package-level
// singleton. Concurrent access to distinct ids is fully independent.
// Concurrent writers of the same id race last-write-wins, which is
// acceptable for a single-user, single-tab flow.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time
}

// New creates a Store that evicts sessions older than ttl, checked every
// sweepInterval by Run.
func New(ttl, sweepInterval time.Duration) *Store {
	return &Store{
		sessions:      make(map[string]*Session),
		ttl:           ttl,
		sweepInterval: sweepInterval,
		now:           time.Now,
	}
}

// Create stores data under the caller-supplied id. The id must be random
// and unguessable; the store does not generate it.
func (s *Store) Create(id string, data Data) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &Session{
		ID:        id,
		Data:      data,
		CreatedAt: s.now(),
	}
}

// Get returns a copy of the session, or ok=false when the id is unknown
// or expired. A missing session is a normal outcome, not an error.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Update shallow-merges upd into the stored session. Returns false when
// the id is unknown. Used for header-row reselection and sub-section
// re-ingestion, both of which replace the row matrix in place.
func (s *Store) Update(id string, upd Update) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	if upd.Rows != nil {
		sess.Data.Rows = *upd.Rows
	}
	if upd.HeaderRowIndex != nil {
		sess.Data.HeaderRowIndex = *upd.HeaderRowIndex
	}
	if upd.SubSections != nil {
		sess.Data.SubSections = *upd.SubSections
	}
	return true
}

// Remove deletes the session and reports whether it existed. Called exactly
// once per session, on successful export, so row data never outlives its
// single intended use.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Run executes the TTL sweep every sweepInterval until ctx is cancelled.
// Start it as a goroutine owned by the process entry point.
func (s *Store) Run(ctx context.Context) {
	slog.Info("session sweeper started",
		"ttl", s.ttl.String(),
		"sweep_interval", s.sweepInterval.String(),
	)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				slog.Info("expired sessions evicted", "count", removed)
			}
		}
	}
}

// Sweep removes every session older than the TTL, regardless of access
// pattern, and returns how many were evicted.
func (s *Store) Sweep() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.CreatedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
