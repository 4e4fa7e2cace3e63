// SPDX-License-Identifier: MIT
/*
Package udp sends display snapshots as compact binary datagrams to a
single target address, for local visualizer frontends that want the
bar values without JSON overhead.
*/
package udp

import (
	"fmt"
	"net"
	"sync"

	applog "spectro/internal/log"
)

// Sender owns one outbound UDP connection.
type Sender struct {
	conn   *net.UDPConn
	mu     sync.Mutex // guards conn against concurrent Send/Close
	closed bool
}

// NewSender dials the target address ("host:port").
func NewSender(targetAddress string) (*Sender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("resolving UDP target %q: %w", targetAddress, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("dialing UDP target %q: %w", targetAddress, err)
	}

	applog.Infof("UDP: sending to %s", conn.RemoteAddr())
	return &Sender{conn: conn}, nil
}

// Send transmits data as one datagram. Safe for concurrent use.
func (s *Sender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("UDP sender is closed")
	}
	if _, err := s.conn.Write(data); err != nil {
		return fmt.Errorf("sending UDP packet: %w", err)
	}
	return nil
}

// Close closes the connection. Subsequent Sends fail.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}
