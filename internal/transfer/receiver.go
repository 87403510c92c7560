package transfer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"time"
)

// handleReceive drives the receiver state machine for a single inbound
// connection: AwaitingRequest -> Accepting -> Streaming -> Finalizing ->
// Done/Failed.
func (e *Engine) handleReceive(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := e.acquire(ctx); err != nil {
		return
	}
	defer e.release()

	reader, writer := newFrame(conn)

	conn.SetReadDeadline(time.Now().Add(requestTimeout))
	req, err := readMessage(reader)
	if err != nil {
		log.Printf("transfer: failed to read request from %s: %v", conn.RemoteAddr(), err)
		return
	}
	if req.Kind != KindRequest {
		return
	}

	path, err := e.downloads.Resolve(req.Filename, req.TransferID.String())
	if err != nil {
		e.observer.TransferFinished(req.TransferID, Result{}, err)
		return
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		e.observer.TransferFinished(req.TransferID, Result{}, fmt.Errorf("transfer: failed to open %s: %w", path, err))
		return
	}
	defer file.Close()

	if err := writeMessage(writer, Message{Kind: KindAccept, TransferID: req.TransferID}); err != nil {
		e.observer.TransferFinished(req.TransferID, Result{}, err)
		return
	}

	e.observer.TransferAccepted(req.TransferID, conn.RemoteAddr().String(), req.Filename, req.FileSize)

	hasher := sha256.New()
	var received int64
	var expectedIndex int64
	cancelled := false

streaming:
	for {
		conn.SetReadDeadline(time.Now().Add(chunkTimeout))
		msg, err := readMessage(reader)
		if err != nil {
			e.observer.TransferFinished(req.TransferID, Result{}, fmt.Errorf("transfer: stream read failed: %w", err))
			return
		}

		switch msg.Kind {
		case KindChunk:
			if msg.TransferID != req.TransferID || msg.ChunkIndex != expectedIndex {
				continue
			}
			if _, err := file.Write(msg.Data); err != nil {
				e.observer.TransferFinished(req.TransferID, Result{}, fmt.Errorf("transfer: write failed: %w", err))
				return
			}
			hasher.Write(msg.Data)
			received += int64(len(msg.Data))
			expectedIndex++
			e.observer.TransferProgress(req.TransferID, received)
		case KindComplete:
			if msg.TransferID == req.TransferID {
				break streaming
			}
		case KindCancel:
			if msg.TransferID == req.TransferID {
				cancelled = true
				break streaming
			}
		default:
			continue
		}
	}

	if cancelled {
		e.observer.TransferFinished(req.TransferID, Result{TransferID: req.TransferID, Filename: req.Filename}, errors.New("transfer: cancelled by sender"))
		return
	}

	if err := file.Sync(); err != nil {
		e.observer.TransferFinished(req.TransferID, Result{}, fmt.Errorf("transfer: sync failed: %w", err))
		return
	}

	calculated := hex.EncodeToString(hasher.Sum(nil))
	verified := req.FileChecksum == "" || req.FileChecksum == calculated

	result := Result{
		TransferID:   req.TransferID,
		Filename:     req.Filename,
		FileSize:     received,
		FileChecksum: calculated,
		Verified:     verified,
	}
	if !verified {
		log.Printf("transfer: checksum mismatch for %s: expected %s got %s", req.Filename, req.FileChecksum, calculated)
	}
	e.observer.TransferFinished(req.TransferID, result, nil)
}
