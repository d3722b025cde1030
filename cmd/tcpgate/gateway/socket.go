package gateway

// Socket is the byte transport owned by a Channel.
type Socket interface {
	// Read performs a single non-blocking read. It returns ErrWouldBlock
	// when no data is available and io.EOF once the peer has closed.
	Read(p []byte) (int, error)
	// Write writes the whole of p or fails. Client sockets fail with
	// ErrWouldBlock instead of waiting for buffer space.
	Write(p []byte) (int, error)
	// Fd is the descriptor registered with the poller.
	Fd() int
	Close() error
}
