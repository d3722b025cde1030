//go:build !linux

package poll

type Poller struct{}

func New(maxEvents int) (*Poller, error) {
	return nil, ErrUnsupported
}

func (p *Poller) Add(fd, token int) error {
	return ErrUnsupported
}

func (p *Poller) Remove(fd int) error {
	return ErrUnsupported
}

func (p *Poller) Wait(dst []Event) ([]Event, error) {
	return dst, ErrUnsupported
}

func (p *Poller) Close() error {
	return nil
}
