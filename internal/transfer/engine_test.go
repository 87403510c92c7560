package transfer

import (
	"context"
	"crypto/rand"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/example/lanshare/internal/storage"
)

type recordingObserver struct {
	finished chan Result
	errs     chan error
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{finished: make(chan Result, 1), errs: make(chan error, 1)}
}

func (o *recordingObserver) TransferAccepted(uuid.UUID, string, string, int64) {}
func (o *recordingObserver) TransferProgress(uuid.UUID, int64)                 {}
func (o *recordingObserver) TransferFinished(_ uuid.UUID, result Result, err error) {
	if err != nil {
		o.errs <- err
		return
	}
	o.finished <- result
}

func newLoopbackListener() (net.Listener, error) {
	return net.Listen("tcp4", "127.0.0.1:0")
}

func writeRandomFile(t *testing.T, path string, size int) {
	t.Helper()
	data := make([]byte, size)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("failed to generate random data: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write source file: %v", err)
	}
}

func TestSendReceiveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "source.bin")
	writeRandomFile(t, srcPath, 200*1024+37)

	observer := newRecordingObserver()
	downloads := storage.NewDownloads(filepath.Join(dir, "downloads"))
	receiverEngine := NewEngine(downloads, 5, 64*1024, observer)
	senderEngine := NewEngine(downloads, 5, 64*1024, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener, err := newLoopbackListener()
	if err != nil {
		t.Fatalf("failed to bind loopback listener: %v", err)
	}
	defer listener.Close()

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go receiverEngine.handleReceive(ctx, conn)
		}
	}()

	result, err := senderEngine.Send(ctx, listener.Addr().String(), srcPath, nil)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case finished := <-observer.finished:
		if finished.FileChecksum != result.FileChecksum {
			t.Errorf("checksum mismatch: sender %s receiver %s", result.FileChecksum, finished.FileChecksum)
		}
		if !finished.Verified {
			t.Error("expected receiver to report verified")
		}
	case err := <-observer.errs:
		t.Fatalf("receiver reported error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for receiver to finish")
	}

	receivedPath := filepath.Join(dir, "downloads", "source.bin")
	original, err := os.ReadFile(srcPath)
	if err != nil {
		t.Fatalf("failed to read source: %v", err)
	}
	received, err := os.ReadFile(receivedPath)
	if err != nil {
		t.Fatalf("failed to read received file: %v", err)
	}
	if string(original) != string(received) {
		t.Error("received file does not match source byte-for-byte")
	}
}

func TestSendRejectsMissingFile(t *testing.T) {
	dir := t.TempDir()
	downloads := storage.NewDownloads(filepath.Join(dir, "downloads"))
	engine := NewEngine(downloads, 5, 64*1024, nil)

	_, err := engine.Send(context.Background(), "127.0.0.1:1", filepath.Join(dir, "missing.bin"), nil)
	if err == nil {
		t.Fatal("expected an error for a nonexistent source file")
	}
}

func TestEmptyFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "empty.bin")
	if err := os.WriteFile(srcPath, nil, 0644); err != nil {
		t.Fatalf("failed to write empty source file: %v", err)
	}

	observer := newRecordingObserver()
	downloads := storage.NewDownloads(filepath.Join(dir, "downloads"))
	receiverEngine := NewEngine(downloads, 5, 64*1024, observer)
	senderEngine := NewEngine(downloads, 5, 64*1024, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener, err := newLoopbackListener()
	if err != nil {
		t.Fatalf("failed to bind loopback listener: %v", err)
	}
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		receiverEngine.handleReceive(ctx, conn)
	}()

	if _, err := senderEngine.Send(ctx, listener.Addr().String(), srcPath, nil); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case finished := <-observer.finished:
		if finished.FileSize != 0 {
			t.Errorf("expected zero-byte receive, got %d", finished.FileSize)
		}
		if !finished.Verified {
			t.Error("expected empty file to verify")
		}
	case err := <-observer.errs:
		t.Fatalf("receiver reported error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for receiver to finish")
	}
}
