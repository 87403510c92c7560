package transfer

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/example/lanshare/internal/storage"
)

const (
	connectTimeout = 10 * time.Second
	requestTimeout = 30 * time.Second
	chunkTimeout   = 60 * time.Second
)

// Result describes the outcome of a completed (or failed) transfer, from
// whichever side ran it.
type Result struct {
	TransferID   uuid.UUID
	Filename     string
	FileSize     int64
	FileChecksum string
	Verified     bool
}

// ReceiveObserver is notified of inbound transfers as the receiver state
// machine progresses, so the daemon can mirror them into the Transfer
// Registry. All methods must return quickly; they run on the connection's
// own goroutine.
type ReceiveObserver interface {
	TransferAccepted(transferID uuid.UUID, peerAddr, filename string, size int64)
	TransferProgress(transferID uuid.UUID, received int64)
	TransferFinished(transferID uuid.UUID, result Result, err error)
}

// Engine runs the framed TCP transfer protocol. Both the sender and
// receiver paths acquire a permit from the same semaphore before doing
// I/O, per the shared MAX_CONCURRENT guardrail.
type Engine struct {
	sem       *semaphore.Weighted
	downloads *storage.Downloads
	chunkSize int
	observer  ReceiveObserver
}

// NewEngine constructs an Engine. observer may be nil if the caller does
// not need inbound-transfer notifications.
func NewEngine(downloads *storage.Downloads, maxConcurrent int64, chunkSize int, observer ReceiveObserver) *Engine {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Engine{
		sem:       semaphore.NewWeighted(maxConcurrent),
		downloads: downloads,
		chunkSize: chunkSize,
		observer:  observer,
	}
}

// Serve accepts inbound transfer connections on address until ctx is
// cancelled. Each connection blocks on the shared semaphore rather than
// being rejected when capacity is exhausted.
func (e *Engine) Serve(ctx context.Context, address string) error {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp4", address)
	if err != nil {
		return fmt.Errorf("transfer: failed to bind %s: %w", address, err)
	}

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("transfer: accept failed: %v", err)
			continue
		}
		go e.handleReceive(ctx, conn)
	}
}

type noopObserver struct{}

func (noopObserver) TransferAccepted(uuid.UUID, string, string, int64) {}
func (noopObserver) TransferProgress(uuid.UUID, int64)                 {}
func (noopObserver) TransferFinished(uuid.UUID, Result, error)         {}

func (e *Engine) acquire(ctx context.Context) error {
	return e.sem.Acquire(ctx, 1)
}

func (e *Engine) release() {
	e.sem.Release(1)
}

func newFrame(conn net.Conn) (*bufio.Reader, *bufio.Writer) {
	return bufio.NewReaderSize(conn, 128*1024), bufio.NewWriterSize(conn, 128*1024)
}
