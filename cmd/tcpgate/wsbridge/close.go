package wsbridge

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
)

var (
	webSocketCloseCode = []int{
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseProtocolError,
		websocket.CloseUnsupportedData,
		websocket.CloseNoStatusReceived,
		websocket.CloseAbnormalClosure,
		websocket.CloseInvalidFramePayloadData,
		websocket.CloseInternalServerErr,
		websocket.CloseServiceRestart,
		websocket.CloseTryAgainLater,
	}
)

func isSyscallError(v syscall.Errno) bool {
	return v.Is(syscall.ECONNABORTED) || v.Is(syscall.ECONNRESET) ||
		v.Is(syscall.ETIMEDOUT) || v.Is(syscall.ECONNREFUSED) ||
		v.Is(syscall.ENETUNREACH) || v.Is(syscall.ENETRESET) ||
		v.Is(syscall.EPIPE)
}

// IsClose reports whether err only means the other side went away.
func IsClose(err error) bool {
	if err == nil {
		return false
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return websocket.IsCloseError(err, webSocketCloseCode...)
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return isSyscallError(errno)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent) {
		return true
	}

	return strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}
