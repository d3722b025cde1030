// Package poll is a level-triggered readiness poller over raw file
// descriptors. Each registered descriptor carries an integer token that is
// reported back by Wait.
package poll

import (
	"github.com/pkg/errors"
)

var ErrUnsupported = errors.New("poll: readiness poller not supported on this platform")

// Event reports a descriptor ready for reading.
type Event struct {
	Token int
	// Hangup is set when the kernel flagged the peer as gone or the socket
	// as errored. The descriptor is still readable; a read drains it.
	Hangup bool
}
