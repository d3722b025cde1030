package gateway

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	toChannel   = "to.channel"
	fromChannel = "from.channel"
)

// Address is a routing channel name of the form prefix:index:rest. Prefix
// names a gateway, Index a slot in its connection table, and Rest the
// channel as the attached client knows it.
type Address struct {
	Prefix string
	Index  int
	Rest   string
}

func ParseAddress(s string) (Address, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 3 {
		return Address{}, errors.Wrapf(ErrBadAddress, "%q has %d parts", s, len(parts))
	}
	index, err := strconv.ParseUint(parts[1], 10, 31)
	if err != nil {
		return Address{}, errors.Wrapf(ErrBadAddress, "%q: index %q", s, parts[1])
	}
	return Address{Prefix: parts[0], Index: int(index), Rest: parts[2]}, nil
}

func (a Address) String() string {
	return a.Prefix + ":" + strconv.Itoa(a.Index) + ":" + a.Rest
}

// RouteToClient resolves the client a router message is addressed to and
// strips the gateway prefix and index from its to.channel. Everything else
// in the message is left byte-for-byte intact.
func RouteToClient(msg Message) (Address, Message, error) {
	to := gjson.GetBytes(msg, toChannel)
	if to.Type != gjson.String {
		return Address{}, nil, errors.Wrapf(ErrBadMessage, "%s missing or not a string", toChannel)
	}
	addr, err := ParseAddress(to.String())
	if err != nil {
		return Address{}, nil, err
	}
	out, err := sjson.SetBytes(msg, toChannel, addr.Rest)
	if err != nil {
		return Address{}, nil, errors.Wrapf(ErrBadMessage, "rewrite %s: %v", toChannel, err)
	}
	return addr, out, nil
}

// RouteFromClient prefixes a client message's from.channel with the gateway
// prefix and the client's index.
func RouteFromClient(prefix string, index int, msg Message) (Message, error) {
	from := gjson.GetBytes(msg, fromChannel)
	if from.Type != gjson.String {
		return nil, errors.Wrapf(ErrBadMessage, "%s missing or not a string", fromChannel)
	}
	addr := Address{Prefix: prefix, Index: index, Rest: from.String()}
	out, err := sjson.SetBytes(msg, fromChannel, addr.String())
	if err != nil {
		return nil, errors.Wrapf(ErrBadMessage, "rewrite %s: %v", fromChannel, err)
	}
	return out, nil
}
