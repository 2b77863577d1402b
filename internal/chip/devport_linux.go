//go:build linux

package chip

import (
	"sync"

	"codeberg.org/mutker/nasfanctl/internal/errors"
	"golang.org/x/sys/unix"
)

const devPortPath = "/dev/port"

// devPort accesses I/O ports through /dev/port, where the file offset is
// the port number. Opening it requires CAP_SYS_RAWIO.
type devPort struct {
	mu sync.Mutex
	fd int
}

// OpenDevPort acquires privileged port access for the life of the process.
func OpenDevPort() (Ports, error) {
	errFactory := errors.New()

	fd, err := unix.Open(devPortPath, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errFactory.Wrap(ErrPrivilege, err)
	}

	return &devPort{fd: fd}, nil
}

func (p *devPort) Out(port uint16, value byte) error {
	errFactory := errors.New()
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fd < 0 {
		return errFactory.New(ErrPortsClosed)
	}

	n, err := unix.Pwrite(p.fd, []byte{value}, int64(port))
	if err != nil {
		return errFactory.Wrap(ErrRegisterWrite, err)
	}
	if n != 1 {
		return errFactory.WithData(ErrRegisterWrite, port)
	}

	return nil
}

func (p *devPort) In(port uint16) (byte, error) {
	errFactory := errors.New()
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fd < 0 {
		return 0, errFactory.New(ErrPortsClosed)
	}

	buf := make([]byte, 1)
	n, err := unix.Pread(p.fd, buf, int64(port))
	if err != nil {
		return 0, errFactory.Wrap(ErrRegisterRead, err)
	}
	if n != 1 {
		return 0, errFactory.WithData(ErrRegisterRead, port)
	}

	return buf[0], nil
}

func (p *devPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fd < 0 {
		return nil
	}

	err := unix.Close(p.fd)
	p.fd = -1
	if err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}
