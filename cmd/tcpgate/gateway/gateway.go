package gateway

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/tiechui1994/tcpgate/cmd/tcpgate/poll"
	"github.com/tiechui1994/tcpgate/log"
)

const (
	DefaultPrefix       = "tcp"
	DefaultWriteTimeout = 5 * time.Second

	upstreamIndex = 0
	listenerToken = -1
)

type Config struct {
	// Prefix is announced to the router and embedded in every forwarded
	// from.channel.
	Prefix string
	// WriteTimeout bounds a single frame write to the router. Zero disables
	// it. Client writes never wait.
	WriteTimeout time.Duration
	// MaxEvents caps the readiness events handled per wakeup.
	MaxEvents int
	// Events, if set, receives lifecycle events. Sends never block; events
	// are dropped when the channel is full.
	Events chan<- Event
}

// Gateway multiplexes client connections onto one router connection. All
// of its state is owned by the goroutine running Serve.
type Gateway struct {
	cfg      Config
	listener *tcpListener
	upstream *Channel
	table    *Table
	poller   *poll.Poller
	ready    []poll.Event
	// indices evicted during the current wakeup; their pending events are stale
	evicted map[int]struct{}
	closed  bool
}

// Dial listens on listenAddr, connects to the router at routerAddr and
// announces the gateway prefix.
func Dial(ctx context.Context, routerAddr, listenAddr string, cfg Config) (*Gateway, error) {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %v", listenAddr)
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", routerAddr)
	if err != nil {
		_ = ln.Close()
		return nil, errors.Wrapf(err, "connect router %v", routerAddr)
	}

	g, err := New(ln, conn, cfg)
	if err != nil {
		_ = ln.Close()
		_ = conn.Close()
		return nil, err
	}
	return g, nil
}

// New builds a gateway over an already bound listener and an established
// router connection, and sends the prefix handshake line.
func New(ln net.Listener, upstream net.Conn, cfg Config) (*Gateway, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if strings.ContainsAny(cfg.Prefix, ":\r\n") {
		return nil, errors.Errorf("invalid prefix %q", cfg.Prefix)
	}

	sock, err := newTCPSocket(upstream, cfg.WriteTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "router socket")
	}
	if _, err := sock.Write([]byte(cfg.Prefix + "\n")); err != nil {
		return nil, errors.Wrap(err, "send handshake")
	}

	listener, err := newTCPListener(ln)
	if err != nil {
		return nil, errors.Wrap(err, "listener")
	}

	poller, err := poll.New(cfg.MaxEvents)
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		cfg:      cfg,
		listener: listener,
		upstream: NewChannel(sock, upstream.RemoteAddr().String()),
		table:    NewTable(),
		poller:   poller,
		evicted:  make(map[int]struct{}),
	}
	g.table.Insert(g.upstream)

	if err := poller.Add(listener.Fd(), listenerToken); err != nil {
		_ = poller.Close()
		return nil, err
	}
	if err := poller.Add(sock.Fd(), upstreamIndex); err != nil {
		_ = poller.Close()
		return nil, err
	}
	return g, nil
}

func (g *Gateway) Addr() net.Addr {
	return g.listener.Addr()
}

func (g *Gateway) Prefix() string {
	return g.cfg.Prefix
}

// Serve runs the event loop. It only returns on a fatal error: losing the
// router connection yields ErrUpstreamClosed.
func (g *Gateway) Serve() error {
	log.Infoln("[Gateway] serving on %v as %q", g.Addr(), g.cfg.Prefix)
	for {
		var err error
		g.ready, err = g.poller.Wait(g.ready[:0])
		if err != nil {
			return errors.Wrap(err, "wait readiness")
		}

		for k := range g.evicted {
			delete(g.evicted, k)
		}
		for _, ev := range g.ready {
			if ev.Hangup {
				log.Debugln("[Gateway] hangup on %d", ev.Token)
			}
			switch ev.Token {
			case listenerToken:
				err = g.accept()
			case upstreamIndex:
				err = g.handleUpstream()
			default:
				err = g.handleClient(ev.Token)
			}
			if err != nil {
				return err
			}
		}
	}
}

func (g *Gateway) accept() error {
	for {
		conn, err := g.listener.Accept()
		if errors.Is(err, ErrWouldBlock) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "accept")
		}

		sock, err := newClientSocket(conn)
		if err != nil {
			log.Warnln("[Gateway] reject %v: %v", conn.RemoteAddr(), err)
			_ = conn.Close()
			continue
		}

		addr := conn.RemoteAddr().String()
		c := NewChannel(sock, addr)
		index := g.table.Insert(c)
		if err := g.poller.Add(sock.Fd(), index); err != nil {
			log.Warnln("[Gateway] reject %v: %v", addr, err)
			g.table.Remove(index)
			_ = c.Close()
			continue
		}

		log.Infoln("[Gateway] got connection from %v as %d", addr, index)
		g.notify(Event{Type: EventAccepted, Index: index, Addr: addr})
	}
}

func (g *Gateway) handleUpstream() error {
	msgs, err := g.upstream.Read()
	for _, msg := range msgs {
		g.deliver(msg)
	}
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrPeerClosed) {
		err = ErrUpstreamClosed
	}
	log.Errorln("[Gateway] error from router %v: %v", g.upstream, err)
	g.notify(Event{Type: EventUpstreamLost, Index: upstreamIndex, Err: err})
	return err
}

// deliver routes one router message to the client its to.channel names.
func (g *Gateway) deliver(msg Message) {
	addr, out, err := RouteToClient(msg)
	if err != nil {
		g.drop(upstreamIndex, msg, err)
		return
	}

	c, ok := g.client(addr.Index)
	if !ok {
		g.drop(upstreamIndex, msg, errors.Wrapf(ErrNoSuchClient, "index %d", addr.Index))
		return
	}
	if err := c.WriteRaw(out); err != nil {
		g.evict(addr.Index, err)
	}
}

func (g *Gateway) handleClient(index int) error {
	c, ok := g.client(index)
	if !ok {
		return nil
	}

	msgs, err := c.Read()
	for _, msg := range msgs {
		out, rerr := RouteFromClient(g.cfg.Prefix, index, msg)
		if rerr != nil {
			g.drop(index, msg, rerr)
			continue
		}
		if werr := g.upstream.Write(out); werr != nil {
			log.Errorln("[Gateway] error to router %v: %v", g.upstream, werr)
			g.notify(Event{Type: EventUpstreamLost, Index: upstreamIndex, Err: werr})
			return werr
		}
	}
	if err != nil {
		g.evict(index, err)
	}
	return nil
}

// client returns the live client channel at index. The router slot and
// slots evicted earlier in the same wakeup are never returned.
func (g *Gateway) client(index int) (*Channel, bool) {
	if index == upstreamIndex {
		return nil, false
	}
	if _, gone := g.evicted[index]; gone {
		return nil, false
	}
	return g.table.Get(index)
}

func (g *Gateway) evict(index int, cause error) {
	c, ok := g.table.Remove(index)
	if !ok {
		return
	}
	g.evicted[index] = struct{}{}
	if err := g.poller.Remove(c.sock.Fd()); err != nil {
		log.Warnln("[Gateway] deregister %v: %v", c, err)
	}
	_ = c.Close()

	if errors.Is(cause, ErrPeerClosed) {
		log.Infoln("[Gateway] client %v at %d closed", c, index)
	} else {
		log.Warnln("[Gateway] client %v at %d dropped: %v", c, index, cause)
	}
	g.notify(Event{Type: EventClosed, Index: index, Addr: c.String(), Err: cause})
}

func (g *Gateway) drop(index int, msg Message, cause error) {
	log.Warnln("[Gateway] drop message from %d: %v: %s", index, cause, msg)
	g.notify(Event{Type: EventDropped, Index: index, Err: cause})
}

func (g *Gateway) notify(ev Event) {
	if g.cfg.Events == nil {
		return
	}
	select {
	case g.cfg.Events <- ev:
	default:
	}
}

// Close releases every connection and the poller. It must not be called
// while Serve is running.
func (g *Gateway) Close() error {
	if g.closed {
		return nil
	}
	g.closed = true

	g.table.Range(func(index int, c *Channel) bool {
		_ = g.poller.Remove(c.sock.Fd())
		_ = c.Close()
		return true
	})
	_ = g.poller.Remove(g.listener.Fd())
	err := g.listener.Close()
	_ = g.poller.Close()
	return err
}
