package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/google/uuid"

	"github.com/example/lanshare/internal/models"
	"github.com/example/lanshare/internal/peer"
	"github.com/example/lanshare/internal/registry"
	"github.com/example/lanshare/internal/transfer"
)

type stubSender struct{}

func (stubSender) Send(context.Context, string, string, transfer.SendProgress) (transfer.Result, error) {
	return transfer.Result{}, nil
}

type stubBroadcaster struct{}

func (stubBroadcaster) Start(context.Context, string, string, []models.Peer) (uuid.UUID, int, error) {
	return uuid.New(), 0, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *Hub, func()) {
	t.Helper()
	table := peer.NewTable(peer.NewIdentity())
	reg := registry.New()
	hub := NewHub(table, reg, stubSender{}, stubBroadcaster{})

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, w, r)
	})
	server := httptest.NewServer(mux)

	return server, hub, func() {
		cancel()
		server.Close()
	}
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	return conn
}

func TestPingPong(t *testing.T) {
	server, _, cleanup := newTestServer(t)
	defer cleanup()

	conn := dial(t, server)
	defer conn.Close()

	if err := conn.WriteJSON(models.ClientMessage{Type: models.TypePing}); err != nil {
		t.Fatalf("failed to write ping: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply models.ServerMessage
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("failed to read pong: %v", err)
	}
	if reply.Type != models.TypePong {
		t.Errorf("expected Pong, got %s", reply.Type)
	}
}

func TestGetPeersEmpty(t *testing.T) {
	server, _, cleanup := newTestServer(t)
	defer cleanup()

	conn := dial(t, server)
	defer conn.Close()

	if err := conn.WriteJSON(models.ClientMessage{Type: models.TypeGetPeers}); err != nil {
		t.Fatalf("failed to write request: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply models.ServerMessage
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("failed to read reply: %v", err)
	}
	if reply.Type != models.TypePeersList {
		t.Errorf("expected PeersList, got %s", reply.Type)
	}
	if len(reply.Peers) != 0 {
		t.Errorf("expected no known peers, got %d", len(reply.Peers))
	}
}

func TestSendFileRejectsMissingFile(t *testing.T) {
	server, _, cleanup := newTestServer(t)
	defer cleanup()

	conn := dial(t, server)
	defer conn.Close()

	peerID := uuid.New()
	if err := conn.WriteJSON(models.ClientMessage{Type: models.TypeSendFile, PeerID: &peerID, FilePath: "/does/not/exist"}); err != nil {
		t.Fatalf("failed to write request: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply models.ServerMessage
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("failed to read reply: %v", err)
	}
	if reply.Type != models.TypeError {
		t.Errorf("expected Error, got %s", reply.Type)
	}
	if !strings.Contains(reply.Message, "File not found") {
		t.Errorf("expected message to mention File not found, got %q", reply.Message)
	}
}

func TestGetTransferHistoryEmpty(t *testing.T) {
	server, _, cleanup := newTestServer(t)
	defer cleanup()

	conn := dial(t, server)
	defer conn.Close()

	if err := conn.WriteJSON(models.ClientMessage{Type: models.TypeGetTransferHistory}); err != nil {
		t.Fatalf("failed to write request: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply models.ServerMessage
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("failed to read reply: %v", err)
	}
	if reply.Type != models.TypeTransferHistory {
		t.Errorf("expected TransferHistory, got %s", reply.Type)
	}
	if len(reply.Transfers) != 0 {
		t.Errorf("expected empty history, got %d", len(reply.Transfers))
	}
}
