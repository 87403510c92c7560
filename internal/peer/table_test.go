package peer

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/example/lanshare/internal/models"
)

func TestUpsertRejectsLocalIdentity(t *testing.T) {
	local := NewIdentity()
	table := NewTable(local)

	ok := table.Upsert(models.Peer{ID: local.ID, Hostname: local.Hostname, LastSeen: time.Now()})
	if ok {
		t.Fatal("expected upsert of the local identity to be rejected")
	}
	if len(table.List()) != 0 {
		t.Fatalf("expected table to remain empty, got %d rows", len(table.List()))
	}
}

func TestUpsertGetRemove(t *testing.T) {
	table := NewTable(NewIdentity())
	id := uuid.New()
	rec := models.Peer{ID: id, Address: "192.168.1.20:7878", Hostname: "bob", LastSeen: time.Now()}

	if !table.Upsert(rec) {
		t.Fatal("expected upsert of a new peer to succeed")
	}

	got, ok := table.Get(id)
	if !ok {
		t.Fatal("expected to find the upserted peer")
	}
	if got.Hostname != "bob" {
		t.Errorf("expected hostname bob, got %s", got.Hostname)
	}

	table.Remove(id)
	if _, ok := table.Get(id); ok {
		t.Fatal("expected peer to be gone after remove")
	}
}

func TestSweepRemovesStalePeers(t *testing.T) {
	table := NewTable(NewIdentity())
	stale := uuid.New()
	fresh := uuid.New()

	table.Upsert(models.Peer{ID: stale, Hostname: "stale", LastSeen: time.Now().Add(-time.Minute)})
	table.Upsert(models.Peer{ID: fresh, Hostname: "fresh", LastSeen: time.Now()})

	removed := table.Sweep(10 * time.Second)
	if len(removed) != 1 || removed[0] != stale {
		t.Fatalf("expected only the stale peer to be swept, got %v", removed)
	}

	if _, ok := table.Get(stale); ok {
		t.Error("expected stale peer to be removed")
	}
	if _, ok := table.Get(fresh); !ok {
		t.Error("expected fresh peer to remain")
	}
}

func TestListIsASnapshot(t *testing.T) {
	table := NewTable(NewIdentity())
	table.Upsert(models.Peer{ID: uuid.New(), Hostname: "a", LastSeen: time.Now()})
	table.Upsert(models.Peer{ID: uuid.New(), Hostname: "b", LastSeen: time.Now()})

	snapshot := table.List()
	if got := len(snapshot); got != 2 {
		t.Fatalf("expected 2 peers, got %d", got)
	}

	snapshot[0].Hostname = "changed"
	if got, _ := table.Get(snapshot[0].ID); got.Hostname == "changed" {
		t.Error("expected editing the snapshot to leave the table unchanged")
	}
}
