package models

import (
	"github.com/google/uuid"
)

// ClientMessage is a request sent by a UI client over the WebSocket
// session. Type is the discriminator; only the fields relevant to that
// type are populated.
type ClientMessage struct {
	Type string `json:"type"`

	PeerID     *uuid.UUID `json:"peerId,omitempty"`
	FilePath   string     `json:"filePath,omitempty"`
	DirPath    string     `json:"dirPath,omitempty"`
	Message    string     `json:"message,omitempty"`
	TransferID uuid.UUID  `json:"transferId,omitempty"`
}

// Client message type discriminators.
const (
	TypeGetPeers           = "GetPeers"
	TypeSendFile           = "SendFile"
	TypeSendDirectory      = "SendDirectory"
	TypeBroadcastFile      = "BroadcastFile"
	TypeBroadcastDirectory = "BroadcastDirectory"
	TypeGetLocalInfo       = "GetLocalInfo"
	TypeSendChat           = "SendChat"
	TypeGetTransferHistory = "GetTransferHistory"
	TypeGetTransferStats   = "GetTransferStats"
	TypeCancelTransfer     = "CancelTransfer"
	TypePauseTransfer      = "PauseTransfer"
	TypeResumeTransfer     = "ResumeTransfer"
	TypePing               = "Ping"
)

// ServerMessage is a push or reply sent to a UI client. Like
// ClientMessage, Type selects which of the optional fields apply.
type ServerMessage struct {
	Type string `json:"type"`

	Peers    []Peer     `json:"peers,omitempty"`
	Peer     *Peer      `json:"peer,omitempty"`
	PeerID   *uuid.UUID `json:"peerId,omitempty"`
	Hostname string     `json:"hostname,omitempty"`

	TransferID   uuid.UUID `json:"transferId,omitempty"`
	Filename     string    `json:"filename,omitempty"`
	FilePath     string    `json:"filePath,omitempty"`
	FileSize     int64     `json:"fileSize,omitempty"`
	FileChecksum string    `json:"fileChecksum,omitempty"`
	MimeType     string    `json:"mimeType,omitempty"`
	Verified     bool      `json:"verified,omitempty"`

	Progress         int64  `json:"progress,omitempty"`
	Total            int64  `json:"total,omitempty"`
	SpeedBytesPerSec *int64 `json:"speedBytesPerSec,omitempty"`
	ETASeconds       *int64 `json:"etaSeconds,omitempty"`

	BroadcastID     uuid.UUID `json:"broadcastId,omitempty"`
	TotalPeers      int       `json:"totalPeers,omitempty"`
	CompletedPeers  int       `json:"completedPeers,omitempty"`
	SuccessfulPeers int       `json:"successfulPeers,omitempty"`
	FailedPeers     int       `json:"failedPeers,omitempty"`

	FromPeerID   *uuid.UUID `json:"fromPeerId,omitempty"`
	FromHostname string     `json:"fromHostname,omitempty"`
	ToPeerID     *uuid.UUID `json:"toPeerId,omitempty"`
	Timestamp    int64      `json:"timestamp,omitempty"`

	Transfers []*Transfer `json:"transfers,omitempty"`
	Status    Status      `json:"status,omitempty"`
	CreatedAt string      `json:"createdAt,omitempty"`

	Message string `json:"message,omitempty"`
}

// Server message type discriminators.
const (
	TypePeersList                 = "PeersList"
	TypeLocalInfo                 = "LocalInfo"
	TypePeerDiscovered            = "PeerDiscovered"
	TypePeerRemoved               = "PeerRemoved"
	TypeFileTransferRequest       = "FileTransferRequest"
	TypeFileTransferProgress      = "FileTransferProgress"
	TypeFileTransferComplete      = "FileTransferComplete"
	TypeFileTransferError         = "FileTransferError"
	TypeBroadcastTransferStart    = "BroadcastTransferStart"
	TypeBroadcastTransferProgress = "BroadcastTransferProgress"
	TypeBroadcastTransferComplete = "BroadcastTransferComplete"
	TypeChatMessage               = "ChatMessage"
	TypeTransferHistory           = "TransferHistory"
	TypeTransferStats             = "TransferStats"
	TypeTransferCancelled         = "TransferCancelled"
	TypeTransferPaused            = "TransferPaused"
	TypeTransferResumed           = "TransferResumed"
	TypePong                      = "Pong"
	TypeError                     = "Error"
)

// NewError builds the synchronous Error reply used across every Resource
// and Lookup failure path in the Session Layer.
func NewError(message string) ServerMessage {
	return ServerMessage{Type: TypeError, Message: message}
}
