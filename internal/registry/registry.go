// Package registry tracks the lifecycle of every transfer the daemon
// has initiated or accepted: an active set keyed by transfer id, and a
// bounded FIFO of completed records for history queries.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/lanshare/internal/models"
)

// completedCap bounds the completed FIFO; the oldest record is evicted
// once it fills.
const completedCap = 1000

// Registry is the Transfer Registry: an active map plus a capped
// completed history, protected by a single exclusive hold during
// structural mutation.
type Registry struct {
	mu        sync.RWMutex
	active    map[uuid.UUID]*models.Transfer
	completed []*models.Transfer
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{active: make(map[uuid.UUID]*models.Transfer)}
}

// Start creates a new active record and returns its clone.
func (r *Registry) Start(t *models.Transfer) *models.Transfer {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[t.TransferID] = t
	return t.Clone()
}

// Get returns a clone of the active record for id, if any.
func (r *Registry) Get(id uuid.UUID) (*models.Transfer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.active[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Complete moves an active record to completed with status Completed,
// stamping ended_at, duration and speed, and recording checksum/verified.
func (r *Registry) Complete(id uuid.UUID, checksum string, verified bool) (*models.Transfer, bool) {
	return r.finish(id, models.StatusCompleted, &checksum, verified, "")
}

// Fail moves an active record to completed with status Failed, recording
// the error message.
func (r *Registry) Fail(id uuid.UUID, reason string) (*models.Transfer, bool) {
	return r.finish(id, models.StatusFailed, nil, false, reason)
}

// Cancel moves an active record to completed with status Cancelled.
func (r *Registry) Cancel(id uuid.UUID) (*models.Transfer, bool) {
	return r.finish(id, models.StatusCancelled, nil, false, "")
}

func (r *Registry) finish(id uuid.UUID, status models.Status, checksum *string, verified bool, reason string) (*models.Transfer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.active[id]
	if !ok {
		return nil, false
	}
	delete(r.active, id)

	now := time.Now()
	t.Status = status
	t.EndedAt = &now
	duration := int64(now.Sub(t.CreatedAt).Seconds())
	if duration < 0 {
		duration = 0
	}
	t.DurationSeconds = &duration
	if status == models.StatusCompleted {
		denom := duration
		if denom < 1 {
			denom = 1
		}
		speed := t.FileSize / denom
		t.SpeedBytesPerSec = &speed
	}
	if checksum != nil {
		t.FileChecksum = checksum
	}
	t.Verified = verified
	if reason != "" {
		t.Error = reason
	}

	r.completed = append(r.completed, t)
	if len(r.completed) > completedCap {
		r.completed = r.completed[len(r.completed)-completedCap:]
	}

	return t.Clone(), true
}

// Pause and Resume mutate status in place without moving the record out
// of active.
func (r *Registry) Pause(id uuid.UUID) (*models.Transfer, bool) {
	return r.setStatus(id, models.StatusPaused)
}

func (r *Registry) Resume(id uuid.UUID) (*models.Transfer, bool) {
	return r.setStatus(id, models.StatusInProgress)
}

func (r *Registry) setStatus(id uuid.UUID, status models.Status) (*models.Transfer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.active[id]
	if !ok {
		return nil, false
	}
	t.Status = status
	return t.Clone(), true
}

// History returns active ∪ completed, sorted by CreatedAt descending.
func (r *Registry) History() []*models.Transfer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Transfer, 0, len(r.active)+len(r.completed))
	for _, t := range r.active {
		out = append(out, t.Clone())
	}
	for _, t := range r.completed {
		out = append(out, t.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
