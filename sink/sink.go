// Package sink opens the line-oriented destination readings are written to.
package sink

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"sync"
	"time"
)

const dialTimeout = 5 * time.Second

// Open resolves target to a writer. "-" and "stdout" mean standard output;
// "tcp://host:port" and "udp://host:port" dial a socket lazily.
func Open(target string) (io.WriteCloser, error) {
	switch target {
	case "", "-", "stdout":
		return nopCloser{os.Stdout}, nil
	}

	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse output %q: %w", target, err)
	}
	switch u.Scheme {
	case "tcp", "udp":
	default:
		return nil, fmt.Errorf("output %q: unsupported scheme %q", target, u.Scheme)
	}
	if _, _, err := net.SplitHostPort(u.Host); err != nil {
		return nil, fmt.Errorf("output %q: %w", target, err)
	}
	return &Socket{network: u.Scheme, addr: u.Host}, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// Socket writes to a TCP or UDP peer, dialling on first use and again after
// a failed write. Over UDP every line travels in its own datagram.
type Socket struct {
	network string
	addr    string

	mu   sync.Mutex
	conn net.Conn
}

// Write sends p, which must hold whole lines.
func (s *Socket) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		conn, err := net.DialTimeout(s.network, s.addr, dialTimeout)
		if err != nil {
			return 0, fmt.Errorf("dial %s %s: %w", s.network, s.addr, err)
		}
		s.conn = conn
	}

	n, err := s.write(p)
	if err != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	return n, err
}

func (s *Socket) write(p []byte) (int, error) {
	if s.network != "udp" {
		return s.conn.Write(p)
	}
	var n int
	for len(p) > 0 {
		line := p
		if i := bytes.IndexByte(p, '\n'); i >= 0 {
			line = p[:i+1]
		}
		w, err := s.conn.Write(line)
		n += w
		if err != nil {
			return n, err
		}
		p = p[len(line):]
	}
	return n, nil
}

// Close releases the connection, if any.
func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
