package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/example/lanshare/internal/models"
	"github.com/example/lanshare/internal/transfer"
)

type fakeSender struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (f *fakeSender) Send(_ context.Context, peerAddr, _ string, _ transfer.SendProgress) (transfer.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, peerAddr)
	f.mu.Unlock()

	if f.fail[peerAddr] {
		return transfer.Result{}, errors.New("simulated failure")
	}
	return transfer.Result{}, nil
}

type recordedProgress struct {
	completed, successful, failed int
}

type fakeNotifier struct {
	mu        sync.Mutex
	started   int
	progress  []recordedProgress
	done      chan struct{}
	successes int
	failures  int
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{done: make(chan struct{})}
}

func (n *fakeNotifier) BroadcastStarted(string, uuid.UUID, int) {
	n.mu.Lock()
	n.started++
	n.mu.Unlock()
}

func (n *fakeNotifier) BroadcastProgress(_ string, _ uuid.UUID, completed, successful, failed int, _ models.Peer, _ error) {
	n.mu.Lock()
	n.progress = append(n.progress, recordedProgress{completed, successful, failed})
	n.mu.Unlock()
}

func (n *fakeNotifier) BroadcastFinished(_ string, _ uuid.UUID, successful, failed int) {
	n.mu.Lock()
	n.successes, n.failures = successful, failed
	n.mu.Unlock()
	close(n.done)
}

func (n *fakeNotifier) PeerTransferProgress(string, uuid.UUID, uuid.UUID, models.Peer, int64, int64) {}

func TestStartRejectsEmptyPeerList(t *testing.T) {
	c := New(&fakeSender{}, newFakeNotifier())
	if _, _, err := c.Start(context.Background(), "client-1", "x.bin", nil); !errors.Is(err, ErrNoPeers) {
		t.Fatalf("expected ErrNoPeers, got %v", err)
	}
}

func TestBroadcastSequentialProgress(t *testing.T) {
	sender := &fakeSender{fail: map[string]bool{"peer-b": true}}
	notifier := newFakeNotifier()
	c := New(sender, notifier)

	peers := []models.Peer{
		{ID: uuid.New(), Address: "peer-a", Hostname: "a"},
		{ID: uuid.New(), Address: "peer-b", Hostname: "b"},
		{ID: uuid.New(), Address: "peer-c", Hostname: "c"},
	}

	_, total, err := c.Start(context.Background(), "client-1", "x.bin", peers)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 peers, got %d", total)
	}

	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast to finish")
	}

	if notifier.successes != 2 || notifier.failures != 1 {
		t.Errorf("expected 2 successes and 1 failure, got %d/%d", notifier.successes, notifier.failures)
	}
	if len(notifier.progress) != 3 {
		t.Fatalf("expected 3 progress events, got %d", len(notifier.progress))
	}
	for i, p := range notifier.progress {
		if p.completed != i+1 {
			t.Errorf("expected completed_peers %d at step %d, got %d", i+1, i, p.completed)
		}
	}

	if len(sender.calls) != 3 || sender.calls[0] != "peer-a" || sender.calls[2] != "peer-c" {
		t.Errorf("expected sequential calls in peer order, got %v", sender.calls)
	}
}
