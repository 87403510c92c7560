// Package transfer implements the framed TCP file-transfer protocol:
// newline-delimited JSON messages carrying a request/accept handshake
// followed by a stream of chunks, with SHA-256 integrity verification
// on the receiving side.
package transfer

import (
	"bufio"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Kind discriminates a Message's role on the wire.
type Kind string

const (
	KindRequest  Kind = "Request"
	KindAccept   Kind = "Accept"
	KindReject   Kind = "Reject"
	KindChunk    Kind = "Chunk"
	KindComplete Kind = "Complete"
	KindCancel   Kind = "Cancel"
	KindPause    Kind = "Pause"
	KindResume   Kind = "Resume"
	KindError    Kind = "Error"
)

// Message is the single wire type for both directions of a transfer
// connection. Only the fields relevant to Kind are populated; Data is
// marshaled to base64 by encoding/json, keeping every line newline-free.
type Message struct {
	Kind         Kind      `json:"kind"`
	TransferID   uuid.UUID `json:"transfer_id"`
	Filename     string    `json:"filename,omitempty"`
	FilePath     string    `json:"file_path,omitempty"`
	FileSize     int64     `json:"file_size,omitempty"`
	FileChecksum string    `json:"file_checksum,omitempty"`
	MimeType     string    `json:"mime_type,omitempty"`
	ChunkIndex   int64     `json:"chunk_index,omitempty"`
	Data         []byte    `json:"data,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Message      string    `json:"message,omitempty"`
}

func readMessage(r *bufio.Reader) (Message, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return Message{}, err
	}
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return Message{}, fmt.Errorf("transfer: malformed frame: %w", err)
	}
	return msg, nil
}

func writeMessage(w *bufio.Writer, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("transfer: failed to encode frame: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}
