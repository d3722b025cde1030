package gateway

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/tiechui1994/tcpgate/cmd/tcpgate/gateway/buf"
	"github.com/tiechui1994/tcpgate/log"
)

// minReadSpace is the free tail kept in the receive buffer before each read.
const minReadSpace = 128

// Message is one serialized JSON value, without its line terminator.
type Message []byte

// Channel frames a socket as newline-delimited JSON messages.
type Channel struct {
	sock Socket
	in   *buf.Buffer
	name string
}

func NewChannel(sock Socket, name string) *Channel {
	return &Channel{
		sock: sock,
		in:   buf.New(),
		name: name,
	}
}

func (c *Channel) String() string {
	return c.name
}

// Read drains the socket until it would block and returns every complete,
// well-formed line in arrival order. A trailing partial line stays buffered
// for the next call. ErrPeerClosed is returned, possibly together with the
// last messages, once the peer has closed or when nothing at all is
// buffered.
func (c *Channel) Read() ([]Message, error) {
	eof := false
loop:
	for {
		c.in.Reserve(minReadSpace)
		n, err := c.sock.Read(c.in.Tail())
		if n > 0 {
			c.in.Extend(n)
		}
		switch {
		case err == nil:
		case errors.Is(err, ErrWouldBlock):
			break loop
		case errors.Is(err, io.EOF):
			eof = true
			break loop
		default:
			return nil, errors.Wrapf(err, "read %v", c)
		}
	}

	if c.in.IsEmpty() {
		return nil, ErrPeerClosed
	}

	msgs := c.decode()
	if eof {
		if !c.in.IsEmpty() {
			log.Warnln("[Channel] %v closed with partial line: %q", c, c.in.Bytes())
			c.in.Clear()
		}
		return msgs, ErrPeerClosed
	}
	return msgs, nil
}

func (c *Channel) decode() []Message {
	var (
		msgs     []Message
		consumed int
	)
	data := c.in.Bytes()
	for {
		i := bytes.IndexByte(data[consumed:], '\n')
		if i < 0 {
			break
		}
		line := data[consumed : consumed+i]
		consumed += i + 1
		if len(line) == 0 {
			continue
		}
		if !gjson.ValidBytes(line) {
			log.Warnln("[Channel] %v: error parsing json: %q", c, line)
			continue
		}
		msgs = append(msgs, append(Message(nil), line...))
	}
	c.in.Advance(consumed)
	return msgs
}

// Write sends msg as one ASCII-only line.
func (c *Channel) Write(msg Message) error {
	frame := EscapeASCII(make([]byte, 0, len(msg)+16), msg)
	frame = append(frame, '\n')
	_, err := c.sock.Write(frame)
	return errors.Wrapf(err, "write %v", c)
}

// WriteRaw sends msg as one line without escaping.
func (c *Channel) WriteRaw(msg Message) error {
	frame := make([]byte, 0, len(msg)+1)
	frame = append(frame, msg...)
	frame = append(frame, '\n')
	_, err := c.sock.Write(frame)
	return errors.Wrapf(err, "write %v", c)
}

func (c *Channel) Close() error {
	c.in.Release()
	return c.sock.Close()
}
