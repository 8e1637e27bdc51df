package protocol

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
)

var (
	// Connection errors

	ErrConnectionClosed = errors.New("connection is closed")
	ErrNotConnected     = errors.New("transport is not connected")
	ErrAlreadyConnected = errors.New("transport is already connected")
	ErrHandshakeFailed  = errors.New("handshake failed")

	// Peer errors

	ErrPeerNotFound = errors.New("peer not found")

	// Message errors

	ErrInvalidMessage  = errors.New("invalid message")
	ErrMessageTooLarge = errors.New("message too large")

	// Transport errors

	ErrTransportClosed = errors.New("transport is closed")
	ErrAlreadyStarted  = errors.New("transport is already started")
)

// WrapError annotates err with msg, keeping it matchable with errors.Is.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, msg)
}
