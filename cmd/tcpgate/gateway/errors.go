package gateway

import (
	"github.com/pkg/errors"
)

var (
	// ErrWouldBlock is returned by a non-blocking socket operation that
	// cannot make progress right now.
	ErrWouldBlock = errors.New("operation would block")

	// ErrPeerClosed reports that the peer closed the connection and no
	// complete line remains buffered.
	ErrPeerClosed = errors.New("socket closed")

	// ErrUpstreamClosed terminates the gateway loop.
	ErrUpstreamClosed = errors.New("router connection closed")

	ErrBadAddress   = errors.New("malformed channel address")
	ErrBadMessage   = errors.New("malformed message")
	ErrNoSuchClient = errors.New("no such client")
)
