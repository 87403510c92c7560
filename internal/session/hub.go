// Package session implements the WebSocket session layer: it multiplexes
// a typed request/response protocol over per-client connections, fans
// out discovery and broadcast events, and drives the Transfer Engine and
// Broadcast Coordinator on behalf of connected UI clients.
package session

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/lanshare/internal/models"
	"github.com/example/lanshare/internal/peer"
	"github.com/example/lanshare/internal/registry"
	"github.com/example/lanshare/internal/transfer"
	"github.com/example/lanshare/internal/transferutil"
)

// outboundQueueSize bounds each client's outbound frame queue. A client
// that falls behind this far is torn down rather than allowed to grow
// the queue without bound.
const outboundQueueSize = 256

// Sender performs a single file send. Implemented by *transfer.Engine.
type Sender interface {
	Send(ctx context.Context, peerAddr, filePath string, onProgress transfer.SendProgress) (transfer.Result, error)
}

// Broadcaster fans a file out to every known peer. Implemented by
// *broadcast.Coordinator.
type Broadcaster interface {
	Start(ctx context.Context, clientID, filePath string, peers []models.Peer) (uuid.UUID, int, error)
}

// Hub owns every connected client and dispatches both inbound commands
// and the asynchronous events produced by the rest of the daemon.
type Hub struct {
	peers     *peer.Table
	registry  *registry.Registry
	sender    Sender
	broadcast Broadcaster
	local     peer.Identity

	mu      sync.RWMutex
	clients map[uuid.UUID]*Client

	cancelMu sync.Mutex
	cancels  map[uuid.UUID]context.CancelFunc

	register   chan *Client
	unregister chan *Client
}

// NewHub constructs a Hub bound to the given shared subsystems.
func NewHub(peers *peer.Table, reg *registry.Registry, sender Sender, broadcaster Broadcaster) *Hub {
	return &Hub{
		peers:      peers,
		registry:   reg,
		sender:     sender,
		broadcast:  broadcaster,
		local:      peers.LocalIdentity(),
		clients:    make(map[uuid.UUID]*Client),
		cancels:    make(map[uuid.UUID]context.CancelFunc),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// SetCollaborators wires the Transfer Engine and Broadcast Coordinator
// into the hub after construction, breaking the initialization cycle
// where both of those also depend on the hub as their observer/notifier.
func (h *Hub) SetCollaborators(sender Sender, broadcaster Broadcaster) {
	h.sender = sender
	h.broadcast = broadcaster
}

// Run drives client registration bookkeeping until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[uuid.UUID]*Client)
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
			}
			h.mu.Unlock()
		}
	}
}

// sendTo enqueues msg on client id's outbound queue. If the queue is
// full the client is dropped: a slow reader must not be allowed to grow
// memory without bound.
func (h *Hub) sendTo(id uuid.UUID, msg models.ServerMessage) {
	h.mu.RLock()
	c, ok := h.clients[id]
	h.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		log.Printf("session: client %s outbound queue full, disconnecting", id)
		h.unregister <- c
	}
}

// reply enqueues msg on c's own outbound queue, applying the same
// drop-and-disconnect policy as sendTo rather than risking readPump
// blocking forever on a full queue.
func (h *Hub) reply(c *Client, msg models.ServerMessage) {
	select {
	case c.send <- msg:
	default:
		log.Printf("session: client %s outbound queue full, disconnecting", c.id)
		h.unregister <- c
	}
}

// broadcastAll enqueues msg on every connected client's outbound queue.
func (h *Hub) broadcastAll(msg models.ServerMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			log.Printf("session: client %s outbound queue full during fan-out, disconnecting", c.id)
			go func(c *Client) { h.unregister <- c }(c)
		}
	}
}

// --- discovery.Notifier ---

// PeerDiscovered fans out a PeerDiscovered push to every session.
func (h *Hub) PeerDiscovered(p models.Peer) {
	h.broadcastAll(models.ServerMessage{Type: models.TypePeerDiscovered, Peer: &p})
}

// PeerRemoved fans out a PeerRemoved push to every session.
func (h *Hub) PeerRemoved(id uuid.UUID) {
	h.broadcastAll(models.ServerMessage{Type: models.TypePeerRemoved, PeerID: &id})
}

// --- transfer.ReceiveObserver ---

// TransferAccepted registers an inbound transfer in the registry.
func (h *Hub) TransferAccepted(transferID uuid.UUID, peerAddr, filename string, size int64) {
	h.registry.Start(&models.Transfer{
		TransferID:   transferID,
		PeerHostname: peerAddr,
		Filename:     filename,
		FileSize:     size,
		Direction:    models.DirectionReceived,
		Status:       models.StatusInProgress,
		CreatedAt:    time.Now(),
	})
}

// TransferProgress is a no-op: inbound progress has no originating
// client session to notify.
func (h *Hub) TransferProgress(uuid.UUID, int64) {}

// TransferFinished moves the inbound record to its terminal state.
func (h *Hub) TransferFinished(transferID uuid.UUID, result transfer.Result, err error) {
	if err != nil {
		h.registry.Fail(transferID, err.Error())
		return
	}
	h.registry.Complete(transferID, result.FileChecksum, result.Verified)
}

// --- broadcast.Notifier ---

// BroadcastStarted pushes BroadcastTransferStart to the initiating client.
func (h *Hub) BroadcastStarted(clientID string, broadcastID uuid.UUID, totalPeers int) {
	id, err := uuid.Parse(clientID)
	if err != nil {
		return
	}
	h.sendTo(id, models.ServerMessage{Type: models.TypeBroadcastTransferStart, BroadcastID: broadcastID, TotalPeers: totalPeers})
}

// BroadcastProgress pushes BroadcastTransferProgress to the initiating
// client, and emits FileTransferError on a per-peer failure.
func (h *Hub) BroadcastProgress(clientID string, broadcastID uuid.UUID, completed, successful, failed int, p models.Peer, err error) {
	id, parseErr := uuid.Parse(clientID)
	if parseErr != nil {
		return
	}
	if err != nil {
		h.sendTo(id, models.ServerMessage{Type: models.TypeFileTransferError, PeerID: &p.ID, Message: err.Error()})
	}
	h.sendTo(id, models.ServerMessage{
		Type:            models.TypeBroadcastTransferProgress,
		BroadcastID:     broadcastID,
		CompletedPeers:  completed,
		SuccessfulPeers: successful,
		FailedPeers:     failed,
	})
}

// PeerTransferProgress pushes FileTransferProgress to the initiating
// client for one peer's send within a broadcast fan-out.
func (h *Hub) PeerTransferProgress(clientID string, broadcastID, transferID uuid.UUID, p models.Peer, sent, total int64) {
	id, err := uuid.Parse(clientID)
	if err != nil {
		return
	}
	h.sendTo(id, models.ServerMessage{
		Type:        models.TypeFileTransferProgress,
		TransferID:  transferID,
		BroadcastID: broadcastID,
		PeerID:      &p.ID,
		Progress:    sent,
		Total:       total,
	})
}

// BroadcastFinished pushes BroadcastTransferComplete to the initiating client.
func (h *Hub) BroadcastFinished(clientID string, broadcastID uuid.UUID, successful, failed int) {
	id, err := uuid.Parse(clientID)
	if err != nil {
		return
	}
	h.sendTo(id, models.ServerMessage{
		Type:            models.TypeBroadcastTransferComplete,
		BroadcastID:     broadcastID,
		SuccessfulPeers: successful,
		FailedPeers:     failed,
	})
}

// --- dispatch ---

func (h *Hub) dispatch(c *Client, msg models.ClientMessage) {
	switch msg.Type {
	case models.TypeGetPeers:
		h.reply(c, models.ServerMessage{Type: models.TypePeersList, Peers: h.peers.List()})

	case models.TypeGetLocalInfo:
		h.reply(c, models.ServerMessage{Type: models.TypeLocalInfo, PeerID: &h.local.ID, Hostname: h.local.Hostname})

	case models.TypePing:
		h.reply(c, models.ServerMessage{Type: models.TypePong})

	case models.TypeSendFile:
		h.handleSendFile(c, msg)

	case models.TypeBroadcastFile:
		h.handleBroadcastFile(c, msg)

	case models.TypeSendChat:
		h.handleSendChat(c, msg)

	case models.TypeGetTransferHistory:
		h.reply(c, models.ServerMessage{Type: models.TypeTransferHistory, Transfers: h.registry.History()})

	case models.TypeGetTransferStats:
		h.handleGetTransferStats(c, msg)

	case models.TypeCancelTransfer:
		h.handleCancelTransfer(c, msg)

	case models.TypePauseTransfer:
		h.handlePauseResume(c, msg, true)

	case models.TypeResumeTransfer:
		h.handlePauseResume(c, msg, false)

	case models.TypeSendDirectory, models.TypeBroadcastDirectory:
		h.reply(c, models.NewError("directory transfers are not supported by this daemon"))

	default:
		h.reply(c, models.NewError("unknown message type: "+msg.Type))
	}
}

func (h *Hub) handleSendFile(c *Client, msg models.ClientMessage) {
	if msg.PeerID == nil {
		h.reply(c, models.NewError("peer_id is required"))
		return
	}
	info, err := os.Stat(msg.FilePath)
	if err != nil || info.IsDir() {
		h.reply(c, models.NewError("File not found: "+msg.FilePath))
		return
	}

	target, ok := h.peers.Get(*msg.PeerID)
	if !ok {
		h.reply(c, models.NewError("unknown peer"))
		return
	}

	transferID := uuid.New()
	record := &models.Transfer{
		TransferID:   transferID,
		PeerID:       msg.PeerID,
		PeerHostname: target.Hostname,
		Filename:     info.Name(),
		FileSize:     info.Size(),
		Direction:    models.DirectionSent,
		Status:       models.StatusInProgress,
		CreatedAt:    time.Now(),
	}
	h.registry.Start(record)

	h.reply(c, models.ServerMessage{
		Type:       models.TypeFileTransferRequest,
		TransferID: transferID,
		Filename:   record.Filename,
		FileSize:   record.FileSize,
		PeerID:     msg.PeerID,
	})

	ctx, cancel := context.WithCancel(context.Background())
	h.cancelMu.Lock()
	h.cancels[transferID] = cancel
	h.cancelMu.Unlock()

	clientID := c.id
	start := time.Now()
	onProgress := func(sent int64) {
		progress := models.ServerMessage{
			Type:       models.TypeFileTransferProgress,
			TransferID: transferID,
			Progress:   sent,
			Total:      record.FileSize,
		}
		if elapsed := time.Since(start).Seconds(); elapsed > 0 {
			speed := int64(float64(sent) / elapsed)
			progress.SpeedBytesPerSec = &speed
			if eta, ok := transferutil.CalculateETA(record.FileSize-sent, speed); ok {
				progress.ETASeconds = &eta
			}
		}
		h.sendTo(clientID, progress)
	}

	go func() {
		defer func() {
			h.cancelMu.Lock()
			delete(h.cancels, transferID)
			h.cancelMu.Unlock()
		}()

		result, err := h.sender.Send(ctx, target.Address, msg.FilePath, onProgress)
		if err != nil {
			h.registry.Fail(transferID, err.Error())
			h.sendTo(clientID, models.ServerMessage{Type: models.TypeFileTransferError, TransferID: transferID, Message: err.Error()})
			return
		}
		h.registry.Complete(transferID, result.FileChecksum, result.Verified)
		h.sendTo(clientID, models.ServerMessage{
			Type:         models.TypeFileTransferComplete,
			TransferID:   transferID,
			FileChecksum: result.FileChecksum,
			Verified:     result.Verified,
		})
	}()
}

func (h *Hub) handleBroadcastFile(c *Client, msg models.ClientMessage) {
	info, err := os.Stat(msg.FilePath)
	if err != nil || info.IsDir() {
		h.reply(c, models.NewError("File not found: "+msg.FilePath))
		return
	}

	peers := h.peers.List()
	_, _, err = h.broadcast.Start(context.Background(), c.id.String(), msg.FilePath, peers)
	if err != nil {
		h.reply(c, models.NewError(err.Error()))
	}
}

func (h *Hub) handleSendChat(c *Client, msg models.ClientMessage) {
	chat := models.ServerMessage{
		Type:         models.TypeChatMessage,
		FromPeerID:   &h.local.ID,
		FromHostname: h.local.Hostname,
		ToPeerID:     msg.PeerID,
		Message:      msg.Message,
		Timestamp:    time.Now().Unix(),
	}

	if msg.PeerID == nil {
		h.broadcastAll(chat)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, other := range h.clients {
		if other.id == c.id || other.peerID == *msg.PeerID {
			select {
			case other.send <- chat:
			default:
			}
		}
	}
}

func (h *Hub) handleGetTransferStats(c *Client, msg models.ClientMessage) {
	t, ok := h.registry.Get(msg.TransferID)
	if !ok {
		h.reply(c, models.NewError("unknown transfer id"))
		return
	}
	h.reply(c, models.ServerMessage{
		Type:             models.TypeTransferStats,
		TransferID:       t.TransferID,
		Filename:         t.Filename,
		FileSize:         t.FileSize,
		Status:           t.Status,
		SpeedBytesPerSec: t.SpeedBytesPerSec,
		CreatedAt:        t.CreatedAt.Format(time.RFC3339),
	})
}

func (h *Hub) handleCancelTransfer(c *Client, msg models.ClientMessage) {
	h.cancelMu.Lock()
	cancel, ok := h.cancels[msg.TransferID]
	h.cancelMu.Unlock()
	if ok {
		cancel()
	}

	if _, found := h.registry.Cancel(msg.TransferID); !found {
		h.reply(c, models.NewError("unknown transfer id"))
		return
	}
	h.reply(c, models.ServerMessage{Type: models.TypeTransferCancelled, TransferID: msg.TransferID})
}

func (h *Hub) handlePauseResume(c *Client, msg models.ClientMessage, pause bool) {
	var (
		t  *models.Transfer
		ok bool
	)
	if pause {
		t, ok = h.registry.Pause(msg.TransferID)
	} else {
		t, ok = h.registry.Resume(msg.TransferID)
	}
	if !ok {
		h.reply(c, models.NewError("unknown transfer id"))
		return
	}

	replyType := models.TypeTransferPaused
	if !pause {
		replyType = models.TypeTransferResumed
	}
	h.reply(c, models.ServerMessage{Type: replyType, TransferID: t.TransferID})
}
