//go:build linux

package gateway

import (
	"io"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type tcpSocket struct {
	conn    *net.TCPConn
	raw     syscall.RawConn
	fd      int
	timeout time.Duration
	// clients are written with a single non-blocking attempt
	nonBlocking bool
}

func rawDescriptor(c syscall.Conn) (syscall.RawConn, int, error) {
	raw, err := c.SyscallConn()
	if err != nil {
		return nil, -1, err
	}
	fd := -1
	err = raw.Control(func(f uintptr) {
		fd = int(f)
	})
	if err != nil {
		return nil, -1, err
	}
	return raw, fd, nil
}

func newTCPSocket(conn net.Conn, timeout time.Duration) (*tcpSocket, error) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return nil, errors.Errorf("unsupported connection type %T", conn)
	}
	raw, fd, err := rawDescriptor(tc)
	if err != nil {
		return nil, errors.Wrap(err, "raw descriptor")
	}
	return &tcpSocket{conn: tc, raw: raw, fd: fd, timeout: timeout}, nil
}

// newClientSocket wraps a client connection. Its writes never wait: a frame
// the kernel cannot take whole fails with ErrWouldBlock or io.ErrShortWrite.
func newClientSocket(conn net.Conn) (*tcpSocket, error) {
	s, err := newTCPSocket(conn, 0)
	if err != nil {
		return nil, err
	}
	s.nonBlocking = true
	return s, nil
}

func (s *tcpSocket) Read(p []byte) (n int, err error) {
	cerr := s.raw.Read(func(fd uintptr) bool {
		for {
			n, err = unix.Read(int(fd), p)
			if err != unix.EINTR {
				return true
			}
		}
	})
	switch {
	case cerr != nil:
		return 0, cerr
	case err == unix.EAGAIN:
		return 0, ErrWouldBlock
	case err != nil:
		return 0, err
	case n == 0 && len(p) > 0:
		return 0, io.EOF
	}
	return n, nil
}

func (s *tcpSocket) Write(p []byte) (int, error) {
	if s.nonBlocking {
		return s.writeOnce(p)
	}
	if s.timeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
			return 0, err
		}
	}
	return s.conn.Write(p)
}

func (s *tcpSocket) writeOnce(p []byte) (n int, err error) {
	cerr := s.raw.Write(func(fd uintptr) bool {
		for {
			n, err = unix.Write(int(fd), p)
			if err != unix.EINTR {
				return true
			}
		}
	})
	switch {
	case cerr != nil:
		return 0, cerr
	case err == unix.EAGAIN:
		return 0, ErrWouldBlock
	case err != nil:
		return 0, err
	case n < len(p):
		return n, io.ErrShortWrite
	}
	return n, nil
}

func (s *tcpSocket) Fd() int {
	return s.fd
}

func (s *tcpSocket) Close() error {
	return s.conn.Close()
}

type tcpListener struct {
	ln  *net.TCPListener
	raw syscall.RawConn
	fd  int
}

func newTCPListener(ln net.Listener) (*tcpListener, error) {
	tl, ok := ln.(*net.TCPListener)
	if !ok {
		return nil, errors.Errorf("unsupported listener type %T", ln)
	}
	raw, fd, err := rawDescriptor(tl)
	if err != nil {
		return nil, errors.Wrap(err, "raw descriptor")
	}
	return &tcpListener{ln: tl, raw: raw, fd: fd}, nil
}

// Accept takes one pending connection without blocking.
func (l *tcpListener) Accept() (net.Conn, error) {
	var (
		nfd int
		err error
	)
	// a listener RawConn only supports Control; the fd is non-blocking
	cerr := l.raw.Control(func(fd uintptr) {
		for {
			nfd, _, err = unix.Accept4(int(fd), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
			// ECONNABORTED: the peer reset before we got to it
			if err != unix.EINTR && err != unix.ECONNABORTED {
				return
			}
		}
	})
	switch {
	case cerr != nil:
		return nil, cerr
	case err == unix.EAGAIN:
		return nil, ErrWouldBlock
	case err != nil:
		return nil, os.NewSyscallError("accept4", err)
	}

	f := os.NewFile(uintptr(nfd), "tcp")
	defer f.Close()
	return net.FileConn(f)
}

func (l *tcpListener) Fd() int {
	return l.fd
}

func (l *tcpListener) Addr() net.Addr {
	return l.ln.Addr()
}

func (l *tcpListener) Close() error {
	return l.ln.Close()
}
