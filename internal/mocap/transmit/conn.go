// Package transmit sends encoded frames to a network target at a
// controlled rate.
//
// The scheduler pulls frames from a FrameSource — live channel state or a
// sealed recording — encodes them, and writes each message to the target
// socket best-effort. A failed send is logged and dropped; the next tick
// supersedes it.
package transmit

import (
	"fmt"
	"net"
	"sync"
)

// PacketConn is the outbound socket contract. Abstracting *net.UDPConn
// keeps the scheduler testable without real network connections.
type PacketConn interface {
	// Write sends one datagram.
	Write(b []byte) (int, error)
	// Close releases the socket.
	Close() error
	// RemoteAddr returns the target address.
	RemoteAddr() net.Addr
}

// DialUDP opens a UDP socket to host:port.
func DialUDP(host string, port int) (PacketConn, error) {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target %s:%d: %w", host, port, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to open socket to %s: %w", addr, err)
	}
	return conn, nil
}

// MockPacketConn implements PacketConn for testing, recording every
// datagram written.
type MockPacketConn struct {
	mu sync.Mutex
	// Datagrams holds the payload of every Write, in order.
	Datagrams [][]byte
	// WriteError is returned by Write while set.
	WriteError error
	// Closed indicates whether Close was called.
	Closed bool
}

// NewMockPacketConn creates an empty mock socket.
func NewMockPacketConn() *MockPacketConn { return &MockPacketConn{} }

// Write records the datagram.
func (m *MockPacketConn) Write(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Closed {
		return 0, net.ErrClosed
	}
	if m.WriteError != nil {
		return 0, m.WriteError
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	m.Datagrams = append(m.Datagrams, cp)
	return len(b), nil
}

// Close marks the socket closed.
func (m *MockPacketConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// RemoteAddr returns a fixed loopback address.
func (m *MockPacketConn) RemoteAddr() net.Addr {
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 39539}
}

// Sent returns a snapshot of the datagrams written so far.
func (m *MockPacketConn) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.Datagrams))
	copy(out, m.Datagrams)
	return out
}
