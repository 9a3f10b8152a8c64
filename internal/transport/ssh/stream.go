package ssh

import (
	"fmt"
	"io"
	"net"

	"go.uber.org/zap"
)

// session is the slice of *ssh.Session the stream depends on, kept narrow so
// tests can substitute a fake.
type session interface {
	Start(cmd string) error
	Close() error
}

// streamState tracks the deferred command dispatch. The remote service
// command is sent exactly once, on the first read or write.
type streamState int

const (
	stateNotConnected streamState = iota
	stateCommandSent
)

// stream is one service exchange over one exec channel. It owns its socket,
// client and channel exclusively; all three are released together by Close.
type stream struct {
	owner  *Subtransport
	conn   net.Conn
	client io.Closer
	sess   session
	stdin  io.WriteCloser
	stdout io.Reader
	log    *zap.Logger

	cmd    string
	url    string
	state  streamState
	closed bool
}

// sendCommand starts the remote service process. Calling it on a stream
// whose command is already running is a programming error.
func (s *stream) sendCommand() error {
	if s.state != stateNotConnected {
		return fmt.Errorf("remote command already dispatched on this stream")
	}

	cmdline, err := genCommand(s.cmd, s.url)
	if err != nil {
		return err
	}
	if s.log != nil {
		s.log.Debug("dispatching remote command", zap.String("cmdline", cmdline))
	}
	if err := s.sess.Start(cmdline); err != nil {
		return fmt.Errorf("dispatching %q: %w", cmdline, err)
	}

	s.state = stateCommandSent
	return nil
}

func (s *stream) Read(p []byte) (int, error) {
	if s.state == stateNotConnected {
		if err := s.sendCommand(); err != nil {
			return 0, err
		}
	}
	return s.stdout.Read(p)
}

func (s *stream) Write(p []byte) (int, error) {
	if s.state == stateNotConnected {
		if err := s.sendCommand(); err != nil {
			return 0, err
		}
	}
	n, err := s.stdin.Write(p)
	if err != nil {
		return n, fmt.Errorf("writing to channel: %w", err)
	}
	return n, nil
}

// Close tears down channel, client and socket in that order, clears the
// subtransport's current-stream pointer, and is safe to call on a partially
// constructed stream. It is idempotent.
func (s *stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if s.owner != nil && s.owner.current == s {
		s.owner.current = nil
	}

	if s.stdin != nil {
		s.stdin.Close()
	}
	if s.sess != nil {
		s.sess.Close()
	}
	if s.client != nil {
		// closing the client also closes the underlying conn
		s.client.Close()
	} else if s.conn != nil {
		s.conn.Close()
	}
	return nil
}
