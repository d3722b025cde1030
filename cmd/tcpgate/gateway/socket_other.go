//go:build !linux

package gateway

import (
	"net"
	"time"

	"github.com/tiechui1994/tcpgate/cmd/tcpgate/poll"
)

type tcpSocket struct{ Socket }

func newTCPSocket(conn net.Conn, timeout time.Duration) (*tcpSocket, error) {
	return nil, poll.ErrUnsupported
}

func newClientSocket(conn net.Conn) (*tcpSocket, error) {
	return nil, poll.ErrUnsupported
}

type tcpListener struct {
	ln net.Listener
}

func newTCPListener(ln net.Listener) (*tcpListener, error) {
	return nil, poll.ErrUnsupported
}

func (l *tcpListener) Accept() (net.Conn, error) {
	return nil, poll.ErrUnsupported
}

func (l *tcpListener) Fd() int {
	return -1
}

func (l *tcpListener) Addr() net.Addr {
	return l.ln.Addr()
}

func (l *tcpListener) Close() error {
	return l.ln.Close()
}
