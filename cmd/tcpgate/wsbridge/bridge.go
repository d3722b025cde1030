// Package wsbridge lets WebSocket clients attach to a gateway. Every
// WebSocket connection is relayed onto its own TCP connection to the
// gateway listener: one message per line in each direction.
package wsbridge

import (
	"bufio"
	"bytes"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/pretty"

	"github.com/tiechui1994/tcpgate/log"
)

const (
	SocketBufferLength = 16384

	closeTimeout = time.Second
)

type Bridge struct {
	target   string
	upgrader websocket.Upgrader
	dialer   net.Dialer
	conn     int32 // number of active connections
}

// New returns a bridge relaying to the gateway listening at target.
func New(target string) *Bridge {
	return &Bridge{
		target: target,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  SocketBufferLength,
			WriteBufferSize: SocketBufferLength,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		dialer: net.Dialer{Timeout: 5 * time.Second},
	}
}

func (b *Bridge) Active() int {
	return int(atomic.LoadInt32(&b.conn))
}

func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnln("[WS] upgrade %v error: %v", r.RemoteAddr, err)
		return
	}
	defer ws.Close()

	conn, err := b.dialer.DialContext(r.Context(), "tcp", b.target)
	if err != nil {
		log.Warnln("[WS] dial gateway %v error: %v", b.target, err)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "gateway unavailable"),
			time.Now().Add(closeTimeout))
		return
	}

	log.Infoln("[WS] enter connections:%v, %v -> %v", atomic.AddInt32(&b.conn, +1), r.RemoteAddr, conn.LocalAddr())
	defer func() {
		log.Infoln("[WS] leave connections:%v, %v", atomic.AddInt32(&b.conn, -1), r.RemoteAddr)
	}()

	relay(ws, conn)
}

func relay(ws *websocket.Conn, conn net.Conn) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		toWebSocket(ws, conn)
	}()

	toGateway(ws, conn)
	_ = conn.Close()
	<-done
}

// toGateway forwards each WebSocket message as one line.
func toGateway(ws *websocket.Conn, conn net.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !IsClose(err) {
				log.Warnln("[WS] read %v error: %v", ws.RemoteAddr(), err)
			}
			return
		}

		data = bytes.TrimRight(data, "\r\n")
		if bytes.IndexByte(data, '\n') >= 0 {
			// multi-line JSON; newlines inside valid JSON strings are escaped
			data = pretty.Ugly(data)
		}
		if len(data) == 0 {
			continue
		}
		if _, err := conn.Write(append(data, '\n')); err != nil {
			log.Warnln("[WS] write gateway error: %v", err)
			return
		}
	}
}

// toWebSocket forwards each line from the gateway as one text message.
func toWebSocket(ws *websocket.Conn, conn net.Conn) {
	reader := bufio.NewReaderSize(conn, SocketBufferLength)
	for {
		line, err := reader.ReadBytes('\n')
		if n := len(line); n > 0 && line[n-1] == '\n' {
			if werr := ws.WriteMessage(websocket.TextMessage, line[:n-1]); werr != nil {
				if !IsClose(werr) {
					log.Warnln("[WS] write %v error: %v", ws.RemoteAddr(), werr)
				}
				break
			}
		}
		if err != nil {
			break
		}
	}

	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeTimeout))
	// unblocks toGateway
	_ = ws.UnderlyingConn().SetReadDeadline(time.Now().Add(closeTimeout))
}
