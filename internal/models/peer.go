// Package models holds the data records shared across the daemon's
// subsystems: peers, transfers and the wire protocol exchanged with UI
// clients over the WebSocket session layer.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Peer is a sibling daemon discovered on the LAN.
type Peer struct {
	ID       uuid.UUID `json:"id"`
	Address  string    `json:"address"`
	Hostname string    `json:"hostname"`
	LastSeen time.Time `json:"lastSeen"`
}
