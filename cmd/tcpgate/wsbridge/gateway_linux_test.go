//go:build linux

package wsbridge

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiechui1994/tcpgate/cmd/tcpgate/gateway"
)

func TestWebSocketClientThroughGateway(t *testing.T) {
	rl, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer rl.Close()

	events := make(chan gateway.Event, 16)
	gw, err := gateway.Dial(context.Background(), rl.Addr().String(), "127.0.0.1:0", gateway.Config{
		Prefix: "ws",
		Events: events,
	})
	require.NoError(t, err)

	router, err := rl.Accept()
	require.NoError(t, err)
	routerR := bufio.NewReader(router)
	require.NoError(t, router.SetReadDeadline(time.Now().Add(waitTimeout)))
	hello, err := routerR.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "ws\n", hello)

	done := make(chan error, 1)
	go func() { done <- gw.Serve() }()
	defer func() {
		_ = router.Close()
		<-done
		_ = gw.Close()
	}()

	_, ws := dialBridge(t, gw.Addr().String())
	var index int
	select {
	case ev := <-events:
		require.Equal(t, gateway.EventAccepted, ev.Type)
		index = ev.Index
	case <-time.After(waitTimeout):
		t.Fatal("gateway never accepted the bridge connection")
	}
	assert.Equal(t, 1, index)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"from":{"channel":"chat"}}`)))
	line, err := routerR.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, `{"from":{"channel":"ws:1:chat"}}`+"\n", line)

	_, err = router.Write([]byte(`{"to":{"channel":"ws:1:chat"},"ok":true}` + "\n"))
	require.NoError(t, err)
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(waitTimeout)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"to":{"channel":"chat"},"ok":true}`, string(data))
}
