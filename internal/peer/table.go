// Package peer maintains the set of sibling daemons currently visible on
// the LAN, as reported by the discovery service.
package peer

import (
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/lanshare/internal/models"
)

// Identity is this daemon's own peer_id and hostname, generated once at
// startup and never stored as a row in the Table.
type Identity struct {
	ID       uuid.UUID
	Hostname string
}

// NewIdentity generates a fresh local identity. Hostname falls back to
// "unknown-host" if the OS lookup fails, matching the teacher's
// best-effort hostname resolution.
func NewIdentity() Identity {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-host"
	}
	return Identity{ID: uuid.New(), Hostname: host}
}

// Table is the Peer Table: a concurrency-safe map of peer_id to the most
// recently observed record for that peer. The local identity is never
// present as a row, per upsert's invariant below.
type Table struct {
	mu    sync.RWMutex
	local Identity
	rows  map[uuid.UUID]models.Peer
}

// NewTable constructs an empty table bound to the given local identity.
func NewTable(local Identity) *Table {
	return &Table{
		local: local,
		rows:  make(map[uuid.UUID]models.Peer),
	}
}

// LocalIdentity returns this daemon's own peer_id and hostname.
func (t *Table) LocalIdentity() Identity {
	return t.local
}

// Upsert inserts or refreshes a peer record. It is a no-op, returning
// false, when id equals the local identity — the table never tracks
// itself. Otherwise the record is stored (or its LastSeen bumped) and
// true is returned.
func (t *Table) Upsert(rec models.Peer) bool {
	if rec.ID == t.local.ID {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows[rec.ID] = rec
	return true
}

// Remove deletes a peer by id. It is a no-op if the id is not present.
func (t *Table) Remove(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rows, id)
}

// Get returns a copy of the record for id, if present.
func (t *Table) Get(id uuid.UUID) (models.Peer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.rows[id]
	return rec, ok
}

// List returns a snapshot of every tracked peer, in no particular order.
func (t *Table) List() []models.Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]models.Peer, 0, len(t.rows))
	for _, rec := range t.rows {
		out = append(out, rec)
	}
	return out
}

// Sweep removes every peer whose LastSeen is older than timeout and
// returns the ids that were dropped, so the caller can notify the
// Session Layer of each departure.
func (t *Table) Sweep(timeout time.Duration) []uuid.UUID {
	cutoff := time.Now().Add(-timeout)

	t.mu.Lock()
	defer t.mu.Unlock()

	var removed []uuid.UUID
	for id, rec := range t.rows {
		if rec.LastSeen.Before(cutoff) {
			delete(t.rows, id)
			removed = append(removed, id)
		}
	}
	return removed
}
