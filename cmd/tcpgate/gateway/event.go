package gateway

type EventType int

const (
	EventAccepted EventType = iota + 1
	EventClosed
	EventDropped
	EventUpstreamLost
)

func (t EventType) String() string {
	switch t {
	case EventAccepted:
		return "accepted"
	case EventClosed:
		return "closed"
	case EventDropped:
		return "dropped"
	case EventUpstreamLost:
		return "upstream-lost"
	default:
		return "unknown"
	}
}

// Event describes a connection lifecycle change or a dropped message.
type Event struct {
	Type  EventType
	Index int
	Addr  string
	Err   error
}
