// Package gpio abstracts the digital I/O lines used for pump power, pump
// driver feedback and tank level as plain boolean read/write primitives.
package gpio

import "sync"

// Conn is one connection to the digital I/O hardware. Implementations must
// be safe for use from multiple goroutines.
type Conn interface {
	SetOutput(pin int)
	SetInput(pin int)
	Write(pin int, high bool)
	Read(pin int) bool
	Close() error
}

// Memory is an in-memory line map for hosts without GPIO hardware and for
// tests. Reads return whatever was last written to the pin, false for pins
// never written.
type Memory struct {
	mu     sync.Mutex
	levels map[int]bool
}

// NewMemory returns an empty in-memory connection, all lines low.
func NewMemory() *Memory {
	return &Memory{levels: make(map[int]bool)}
}

func (m *Memory) SetOutput(int) {}
func (m *Memory) SetInput(int)  {}

func (m *Memory) Write(pin int, high bool) {
	m.mu.Lock()
	m.levels[pin] = high
	m.mu.Unlock()
}

func (m *Memory) Read(pin int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin]
}

func (m *Memory) Close() error { return nil }
