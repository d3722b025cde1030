//go:build linux

package poll

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type Poller struct {
	fd     int
	events []unix.EpollEvent
}

// New creates a poller able to report up to maxEvents descriptors per Wait.
func New(maxEvents int) (*Poller, error) {
	if maxEvents <= 0 {
		maxEvents = 1024
	}
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "epoll_create1")
	}
	return &Poller{
		fd:     fd,
		events: make([]unix.EpollEvent, maxEvents),
	}, nil
}

// Add registers fd for read readiness under token.
func (p *Poller) Add(fd, token int) error {
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLRDHUP,
		Fd:     int32(token),
	}
	if err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return errors.Wrapf(err, "epoll_ctl add fd %d", fd)
	}
	return nil
}

// Remove deregisters fd. It must be called before fd is closed.
func (p *Poller) Remove(fd int) error {
	// kernels before 2.6.9 require a non-nil event for EPOLL_CTL_DEL
	var ev unix.EpollEvent
	if err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, &ev); err != nil {
		return errors.Wrapf(err, "epoll_ctl del fd %d", fd)
	}
	return nil
}

// Wait blocks until at least one registered descriptor is ready and appends
// the ready tokens to dst.
func (p *Poller) Wait(dst []Event) ([]Event, error) {
	for {
		n, err := unix.EpollWait(p.fd, p.events, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return dst, errors.Wrap(err, "epoll_wait")
		}
		for _, ev := range p.events[:n] {
			dst = append(dst, Event{
				Token:  int(ev.Fd),
				Hangup: ev.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP|unix.EPOLLERR) != 0,
			})
		}
		return dst, nil
	}
}

func (p *Poller) Close() error {
	return unix.Close(p.fd)
}
