package transfer

import "errors"

// Sentinel errors returned by the sender state machine when the
// handshake response is not a matching Accept.
var (
	ErrRejected        = errors.New("transfer: rejected by peer")
	ErrUnexpectedReply = errors.New("transfer: unexpected response to request")
	ErrTransferIDMismatch = errors.New("transfer: transfer id mismatch in response")
)
