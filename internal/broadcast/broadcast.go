// Package broadcast fans a single file out to every currently known
// peer, sequentially, aggregating per-peer outcomes into progress
// events for the initiating client.
package broadcast

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/example/lanshare/internal/models"
	"github.com/example/lanshare/internal/transfer"
	"github.com/example/lanshare/internal/transferutil"
)

// ErrNoPeers is returned when the coordinator is asked to broadcast with
// an empty peer list.
var ErrNoPeers = errors.New("broadcast: no peers known")

// Sender performs a single file send to one peer address. Implemented by
// the Transfer Engine in production, and faked in tests.
type Sender interface {
	Send(ctx context.Context, peerAddr, filePath string, onProgress transfer.SendProgress) (transfer.Result, error)
}

// Notifier pushes broadcast lifecycle events to the initiating client.
// Implemented by the Session Layer.
type Notifier interface {
	BroadcastStarted(clientID string, broadcastID uuid.UUID, totalPeers int)
	BroadcastProgress(clientID string, broadcastID uuid.UUID, completedPeers, successfulPeers, failedPeers int, peer models.Peer, err error)
	BroadcastFinished(clientID string, broadcastID uuid.UUID, successfulPeers, failedPeers int)

	// PeerTransferProgress reports per-chunk progress of the send to a
	// single peer within a broadcast fan-out.
	PeerTransferProgress(clientID string, broadcastID, transferID uuid.UUID, p models.Peer, sent, total int64)
}

// Coordinator runs broadcast fan-outs.
type Coordinator struct {
	sender   Sender
	notifier Notifier
}

// New constructs a Coordinator.
func New(sender Sender, notifier Notifier) *Coordinator {
	return &Coordinator{sender: sender, notifier: notifier}
}

// Start validates that peers is non-empty, announces the broadcast
// synchronously, then runs the sequential fan-out on a new goroutine.
// Returns the broadcast id and peer count for the caller's synchronous
// reply, or an error if there are no known peers.
func (c *Coordinator) Start(ctx context.Context, clientID, filePath string, peers []models.Peer) (uuid.UUID, int, error) {
	if len(peers) == 0 {
		return uuid.Nil, 0, ErrNoPeers
	}

	broadcastID := uuid.New()
	c.notifier.BroadcastStarted(clientID, broadcastID, len(peers))

	go c.run(ctx, clientID, broadcastID, filePath, peers)

	return broadcastID, len(peers), nil
}

func (c *Coordinator) run(ctx context.Context, clientID string, broadcastID uuid.UUID, filePath string, peers []models.Peer) {
	var completed, successful, failed int
	size := fileSize(filePath)

	for _, p := range peers {
		transferID := uuid.New()
		start := time.Now()
		onProgress := func(sent int64) {
			c.notifier.PeerTransferProgress(clientID, broadcastID, transferID, p, sent, size)
		}

		_, err := c.sender.Send(ctx, p.Address, filePath, onProgress)
		completed++
		if err != nil {
			failed++
			log.Printf("broadcast %s: send to %s failed: %v", broadcastID, p.Hostname, err)
		} else {
			successful++
			elapsed := time.Since(start).Seconds()
			var speed int64
			if elapsed > 0 {
				speed = int64(float64(size) / elapsed)
			}
			log.Printf("broadcast %s: sent %s to %s (%s)", broadcastID, transferutil.FormatBytes(size), p.Hostname, transferutil.FormatSpeed(speed))
		}
		c.notifier.BroadcastProgress(clientID, broadcastID, completed, successful, failed, p, err)
	}

	c.notifier.BroadcastFinished(clientID, broadcastID, successful, failed)
}

// fileSize returns filePath's size, or 0 if it cannot be stat'd. It only
// feeds progress and log reporting; each per-peer send opens the file
// itself, so a failure here does not stop the transfer.
func fileSize(filePath string) int64 {
	info, err := os.Stat(filePath)
	if err != nil {
		return 0
	}
	return info.Size()
}
