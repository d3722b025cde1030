//go:build linux

package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

type harness struct {
	t       *testing.T
	gw      *Gateway
	router  net.Conn
	routerR *bufio.Reader
	events  chan Event
	done    chan error
	result  error
	served  bool
}

func newHarness(t *testing.T) *harness {
	rl, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer rl.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := rl.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	events := make(chan Event, 64)
	gw, err := Dial(context.Background(), rl.Addr().String(), "127.0.0.1:0", Config{
		Prefix:       "tcp",
		WriteTimeout: time.Second,
		Events:       events,
	})
	require.NoError(t, err)

	var router net.Conn
	select {
	case router = <-accepted:
	case <-time.After(waitTimeout):
		t.Fatal("router never saw the gateway")
	}

	h := &harness{
		t:       t,
		gw:      gw,
		router:  router,
		routerR: bufio.NewReader(router),
		events:  events,
		done:    make(chan error, 1),
	}
	assert.Equal(t, "tcp\n", h.readRouterLine())
	assert.Equal(t, "tcp", gw.Prefix())

	go func() {
		h.done <- gw.Serve()
	}()
	t.Cleanup(func() {
		_ = router.Close()
		h.wait()
		_ = gw.Close()
	})
	return h
}

func (h *harness) wait() error {
	if h.served {
		return h.result
	}
	select {
	case h.result = <-h.done:
		h.served = true
	case <-time.After(waitTimeout):
		h.t.Fatal("gateway did not stop")
	}
	return h.result
}

func (h *harness) readRouterLine() string {
	require.NoError(h.t, h.router.SetReadDeadline(time.Now().Add(waitTimeout)))
	line, err := h.routerR.ReadString('\n')
	require.NoError(h.t, err)
	return line
}

func (h *harness) sendRouter(lines ...string) {
	for _, line := range lines {
		_, err := h.router.Write([]byte(line + "\n"))
		require.NoError(h.t, err)
	}
}

func (h *harness) waitEvent(typ EventType) Event {
	deadline := time.After(waitTimeout)
	for {
		select {
		case ev := <-h.events:
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			h.t.Fatalf("no %v event", typ)
		}
	}
}

type client struct {
	h     *harness
	conn  net.Conn
	r     *bufio.Reader
	index int
}

func (h *harness) connect() *client {
	conn, err := net.Dial("tcp", h.gw.Addr().String())
	require.NoError(h.t, err)
	h.t.Cleanup(func() { _ = conn.Close() })

	ev := h.waitEvent(EventAccepted)
	assert.Equal(h.t, conn.LocalAddr().String(), ev.Addr)
	return &client{h: h, conn: conn, r: bufio.NewReader(conn), index: ev.Index}
}

func (c *client) send(data string) {
	_, err := c.conn.Write([]byte(data))
	require.NoError(c.h.t, err)
}

func (c *client) readLine() string {
	require.NoError(c.h.t, c.conn.SetReadDeadline(time.Now().Add(waitTimeout)))
	line, err := c.r.ReadString('\n')
	require.NoError(c.h.t, err)
	return line
}

func TestClientToRouterRewrite(t *testing.T) {
	h := newHarness(t)
	clients := []*client{h.connect(), h.connect(), h.connect()}
	for i, c := range clients {
		assert.Equal(t, i+1, c.index)
	}

	clients[2].send(`{"from":{"channel":"room1"}}` + "\n")
	assert.Equal(t, `{"from":{"channel":"tcp:3:room1"}}`+"\n", h.readRouterLine())
}

func TestRouterToClientRewrite(t *testing.T) {
	h := newHarness(t)
	clients := []*client{h.connect(), h.connect(), h.connect()}

	h.sendRouter(`{"to":{"channel":"tcp:3:room1"}}`)
	assert.Equal(t, `{"to":{"channel":"room1"}}`+"\n", clients[2].readLine())

	h.sendRouter(`{"to":{"channel":"tcp:1:room2"},"text":"caf` + "é" + `"}`)
	assert.Equal(t, `{"to":{"channel":"room2"},"text":"caf`+"é"+`"}`+"\n", clients[0].readLine())
}

func TestClientToRouterIsASCII(t *testing.T) {
	h := newHarness(t)
	c := h.connect()

	c.send(`{"from":{"channel":"r"},"text":"caf` + "é \U0001F600" + `"}` + "\n")
	line := h.readRouterLine()
	for i := 0; i < len(line); i++ {
		require.Less(t, line[i], byte(0x80), "byte %d of %q", i, line)
	}

	var msg struct {
		From struct {
			Channel string `json:"channel"`
		} `json:"from"`
		Text string `json:"text"`
	}
	require.NoError(t, json.Unmarshal([]byte(line), &msg))
	assert.Equal(t, "tcp:1:r", msg.From.Channel)
	assert.Equal(t, "café \U0001F600", msg.Text)
}

func TestClientMessagesInOrder(t *testing.T) {
	h := newHarness(t)
	c := h.connect()

	c.send("{\"from\":{\"channel\":\"a\"},\"n\":1}\nnot json\n{\"n\":2}\n{\"from\":{\"chan")
	time.Sleep(50 * time.Millisecond)
	c.send("nel\":\"b\"},\"n\":3}\n")

	assert.Equal(t, `{"from":{"channel":"tcp:1:a"},"n":1}`+"\n", h.readRouterLine())
	assert.Equal(t, `{"from":{"channel":"tcp:1:b"},"n":3}`+"\n", h.readRouterLine())

	ev := h.waitEvent(EventDropped)
	assert.Equal(t, 1, ev.Index)
	assert.True(t, errors.Is(ev.Err, ErrBadMessage))
}

func TestMalformedRouterAddressDropped(t *testing.T) {
	h := newHarness(t)
	c := h.connect()

	h.sendRouter(
		`{"to":{"channel":"bogus"}}`,
		`{"to":{"channel":"tcp:x:room"}}`,
		`{"to":{"channel":"tcp:9:room"}}`,
		`{"to":{"channel":"tcp:0:room"}}`,
		`{"body":"no address"}`,
		`{"to":{"channel":"tcp:1:ok"}}`,
	)
	assert.Equal(t, `{"to":{"channel":"ok"}}`+"\n", c.readLine())

	var causes []error
	for i := 0; i < 5; i++ {
		causes = append(causes, h.waitEvent(EventDropped).Err)
	}
	assert.True(t, errors.Is(causes[0], ErrBadAddress))
	assert.True(t, errors.Is(causes[1], ErrBadAddress))
	assert.True(t, errors.Is(causes[2], ErrNoSuchClient))
	assert.True(t, errors.Is(causes[3], ErrNoSuchClient))
	assert.True(t, errors.Is(causes[4], ErrBadMessage))
}

func TestIndexReuse(t *testing.T) {
	h := newHarness(t)
	h.connect()
	second := h.connect()
	h.connect()
	require.Equal(t, 2, second.index)

	require.NoError(t, second.conn.Close())
	ev := h.waitEvent(EventClosed)
	assert.Equal(t, 2, ev.Index)
	assert.True(t, errors.Is(ev.Err, ErrPeerClosed))

	again := h.connect()
	assert.Equal(t, 2, again.index)

	h.sendRouter(`{"to":{"channel":"tcp:2:x"}}`)
	assert.Equal(t, `{"to":{"channel":"x"}}`+"\n", again.readLine())
}

func TestClientCloseWithPendingMessage(t *testing.T) {
	h := newHarness(t)
	c := h.connect()

	c.send(`{"from":{"channel":"last"}}` + "\n" + `{"partial`)
	require.NoError(t, c.conn.Close())

	assert.Equal(t, `{"from":{"channel":"tcp:1:last"}}`+"\n", h.readRouterLine())
	assert.Equal(t, 1, h.waitEvent(EventClosed).Index)
}

func TestStalledClientDoesNotBlockOthers(t *testing.T) {
	h := newHarness(t)
	stalled := h.connect()
	other := h.connect()
	require.Equal(t, 1, stalled.index)

	// far more than the loopback buffers can hold; stalled never reads
	line := []byte(`{"to":{"channel":"tcp:1:flood"},"data":"` + strings.Repeat("x", 1<<20) + `"}` + "\n")
	start := time.Now()
	go func() {
		for i := 0; i < 32; i++ {
			if _, err := h.router.Write(line); err != nil {
				return
			}
		}
	}()

	ev := h.waitEvent(EventClosed)
	assert.Equal(t, 1, ev.Index)
	assert.True(t, errors.Is(ev.Err, ErrWouldBlock) || errors.Is(ev.Err, io.ErrShortWrite), "%v", ev.Err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	sent := time.Now()
	other.send(`{"from":{"channel":"still-here"}}` + "\n")
	assert.Equal(t, `{"from":{"channel":"tcp:2:still-here"}}`+"\n", h.readRouterLine())
	assert.Less(t, time.Since(sent), 500*time.Millisecond)
}

func TestUpstreamLossIsFatal(t *testing.T) {
	h := newHarness(t)
	c := h.connect()

	require.NoError(t, h.router.Close())
	err := h.wait()
	assert.True(t, errors.Is(err, ErrUpstreamClosed))

	ev := h.waitEvent(EventUpstreamLost)
	assert.Equal(t, 0, ev.Index)

	// the loop is gone: nothing reads the client any more
	c.send(`{"from":{"channel":"late"}}` + "\n")
	select {
	case ev := <-h.events:
		t.Fatalf("unexpected event after upstream loss: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUpstreamLastMessagesDelivered(t *testing.T) {
	h := newHarness(t)
	c := h.connect()

	h.sendRouter(`{"to":{"channel":"tcp:1:bye"}}`)
	require.NoError(t, h.router.Close())

	assert.Equal(t, `{"to":{"channel":"bye"}}`+"\n", c.readLine())
	assert.True(t, errors.Is(h.wait(), ErrUpstreamClosed))
}

func TestNewRejectsBadPrefix(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = New(ln, conn, Config{Prefix: "a:b"})
	assert.Error(t, err)
}

func TestDialRouterUnreachable(t *testing.T) {
	rl, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := rl.Addr().String()
	require.NoError(t, rl.Close())

	_, err = Dial(context.Background(), addr, "127.0.0.1:0", Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect router")
}
