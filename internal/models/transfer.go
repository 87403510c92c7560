package models

import (
	"time"

	"github.com/google/uuid"
)

// Direction is a closed set of transfer directions, serialized to the
// lowercase strings the wire protocol expects.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// Status is a closed set of transfer lifecycle states.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Transfer is a single logical file send, identified by a UUID, tracked
// by the Transfer Registry for the lifetime of its lifecycle.
type Transfer struct {
	TransferID       uuid.UUID  `json:"transferId"`
	PeerID           *uuid.UUID `json:"peerId,omitempty"`
	PeerHostname     string     `json:"peerHostname,omitempty"`
	Filename         string     `json:"filename"`
	FileSize         int64      `json:"fileSize"`
	Direction        Direction  `json:"direction"`
	Status           Status     `json:"status"`
	CreatedAt        time.Time  `json:"createdAt"`
	EndedAt          *time.Time `json:"endedAt,omitempty"`
	DurationSeconds  *int64     `json:"durationSeconds,omitempty"`
	SpeedBytesPerSec *int64     `json:"speedBytesPerSec,omitempty"`
	FileChecksum     *string    `json:"fileChecksum,omitempty"`
	Verified         bool       `json:"verified"`
	Error            string     `json:"error,omitempty"`
}

// Clone returns a deep-enough copy safe to hand to a reader outside the
// registry's lock.
func (t *Transfer) Clone() *Transfer {
	c := *t
	return &c
}
