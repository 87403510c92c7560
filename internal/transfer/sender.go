package transfer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"mime"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/example/lanshare/internal/transferutil"
)

// SendProgress is invoked after each chunk is written to the wire.
type SendProgress func(sent int64)

// Send drives the sender state machine for one file against one peer:
// Preparing -> Handshaking -> Streaming -> Closing -> Done/Failed. It
// returns the computed Result on success, or an error describing which
// stage failed.
func (e *Engine) Send(ctx context.Context, peerAddr, filePath string, onProgress SendProgress) (Result, error) {
	if onProgress == nil {
		onProgress = func(int64) {}
	}

	transferID := uuid.New()

	if err := e.acquire(ctx); err != nil {
		return Result{}, err
	}
	defer e.release()

	checksum, size, err := precomputeChecksum(filePath)
	if err != nil {
		return Result{}, fmt.Errorf("transfer: failed to read %s: %w", filePath, err)
	}
	filename := filepath.Base(filePath)
	mimeType := mime.TypeByExtension(filepath.Ext(filePath))

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp4", peerAddr)
	if err != nil {
		return Result{}, fmt.Errorf("transfer: failed to connect to %s: %w", peerAddr, err)
	}
	defer conn.Close()

	reader, writer := newFrame(conn)

	request := Message{
		Kind:         KindRequest,
		TransferID:   transferID,
		Filename:     filename,
		FilePath:     filePath,
		FileSize:     size,
		FileChecksum: checksum,
		MimeType:     mimeType,
	}
	if err := writeMessage(writer, request); err != nil {
		return Result{}, fmt.Errorf("transfer: failed to send request: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(requestTimeout))
	resp, err := readMessage(reader)
	if err != nil {
		return Result{}, fmt.Errorf("transfer: failed to read handshake response: %w", err)
	}

	switch resp.Kind {
	case KindAccept:
		if resp.TransferID != transferID {
			return Result{}, ErrTransferIDMismatch
		}
	case KindReject:
		reason := resp.Reason
		if reason == "" {
			reason = "no reason provided"
		}
		return Result{}, fmt.Errorf("%w: %s", ErrRejected, reason)
	default:
		return Result{}, ErrUnexpectedReply
	}

	file, err := os.Open(filePath)
	if err != nil {
		return Result{}, fmt.Errorf("transfer: failed to reopen %s: %w", filePath, err)
	}
	defer file.Close()

	buf := make([]byte, e.chunkSize)
	var sent int64
	var index int64
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			writeMessage(writer, Message{Kind: KindCancel, TransferID: transferID})
			return Result{}, ctx.Err()
		default:
		}

		n, readErr := file.Read(buf)
		if n > 0 {
			chunk := Message{
				Kind:       KindChunk,
				TransferID: transferID,
				ChunkIndex: index,
				Data:       append([]byte(nil), buf[:n]...),
			}
			if err := writeMessage(writer, chunk); err != nil {
				return Result{}, fmt.Errorf("transfer: failed to send chunk %d: %w", index, err)
			}
			sent += int64(n)
			index++
			onProgress(sent)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return Result{}, fmt.Errorf("transfer: failed to read source file: %w", readErr)
		}
	}

	if err := writeMessage(writer, Message{Kind: KindComplete, TransferID: transferID, FileChecksum: checksum}); err != nil {
		return Result{}, fmt.Errorf("transfer: failed to send completion: %w", err)
	}

	elapsed := time.Since(start).Seconds()
	var speed int64
	if elapsed > 0 {
		speed = int64(float64(sent) / elapsed)
	}
	log.Printf("transfer: sent %s to %s in %.1fs (%s)", transferutil.FormatBytes(sent), peerAddr, elapsed, transferutil.FormatSpeed(speed))

	return Result{
		TransferID:   transferID,
		Filename:     filename,
		FileSize:     sent,
		FileChecksum: checksum,
		Verified:     true,
	}, nil
}

func precomputeChecksum(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", 0, err
	}

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), info.Size(), nil
}
