package telemetry

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"codeberg.org/mutker/nasfanctl/internal/errors"
)

// graphiteSink writes Graphite plaintext lines over a single TCP connection.
// It does not reconnect.
type graphiteSink struct {
	conn    net.Conn
	prefix  string
	timeout time.Duration
	mu      sync.Mutex
	closed  bool
}

// DialGraphite connects to a Graphite plaintext receiver.
func DialGraphite(ctx context.Context, cfg Config) (Sink, error) {
	errFactory := errors.New()
	cfg = cfg.withDefaults()

	dialer := net.Dialer{Timeout: cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.GraphiteServer)
	if err != nil {
		return nil, errFactory.Wrap(ErrConnect, err)
	}

	return &graphiteSink{
		conn:    conn,
		prefix:  cfg.Prefix,
		timeout: cfg.Timeout,
	}, nil
}

func (s *graphiteSink) Send(ctx context.Context, sample Sample) error {
	errFactory := errors.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errFactory.New(ErrSinkClosed)
	}

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return errFactory.Wrap(ErrSendFailed, err)
	}

	if _, err := s.conn.Write(formatLine(s.prefix, sample)); err != nil {
		return errFactory.Wrap(ErrSendFailed, err)
	}

	return nil
}

func (s *graphiteSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.conn.Close(); err != nil {
		return errors.New().Wrap(ErrServiceShutdown, err)
	}
	return nil
}

// formatLine renders "<prefix>.<name> <value> <unix-seconds>\n"
func formatLine(prefix string, sample Sample) []byte {
	line := make([]byte, 0, len(prefix)+len(sample.Name)+32)
	if prefix != "" {
		line = append(line, prefix...)
		line = append(line, '.')
	}
	line = append(line, sample.Name...)
	line = append(line, ' ')
	line = strconv.AppendFloat(line, sample.Value, 'f', -1, 64)
	line = append(line, ' ')
	line = strconv.AppendInt(line, sample.Time.Unix(), 10)
	line = append(line, '\n')

	return line
}
