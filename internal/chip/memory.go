package chip

import (
	"sync"

	"codeberg.org/mutker/nasfanctl/internal/errors"
)

const floatingBus = 0xff

// PortWrite is one recorded Out call.
type PortWrite struct {
	Port  uint16
	Value byte
}

// MemoryPorts simulates index/data register pairs in memory. A write to a
// port whose predecessor holds a latched value is a data write into the
// predecessor's register file; any other write latches an index.
type MemoryPorts struct {
	mu      sync.Mutex
	latch   map[uint16]byte
	banks   map[uint16]map[byte]byte
	writes  []PortWrite
	closed  bool
	revoked error
}

func NewMemoryPorts() *MemoryPorts {
	return &MemoryPorts{
		latch: make(map[uint16]byte),
		banks: make(map[uint16]map[byte]byte),
	}
}

// NewSimulatedIT87 returns ports preloaded with a chip ID and EC base
// address behind the given Super I/O configuration port.
func NewSimulatedIT87(configPort, chipID, ecBase uint16) *MemoryPorts {
	m := NewMemoryPorts()
	m.Set(configPort, regChipIDHigh, byte(chipID>>8))
	m.Set(configPort, regChipIDLow, byte(chipID))
	m.Set(configPort, regECBaseHigh, byte(ecBase>>8))
	m.Set(configPort, regECBaseLow, byte(ecBase))

	return m
}

// Set preloads a register behind an index port.
func (m *MemoryPorts) Set(indexPort uint16, reg, value byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bank(indexPort)[reg] = value
}

// Register returns a register behind an index port.
func (m *MemoryPorts) Register(indexPort uint16, reg byte) byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.banks[indexPort][reg]; ok {
		return v
	}

	return floatingBus
}

// Writes returns a copy of all recorded Out calls.
func (m *MemoryPorts) Writes() []PortWrite {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]PortWrite, len(m.writes))
	copy(out, m.writes)

	return out
}

// Revoke makes every further access fail with err, as if the port
// privilege had been lost.
func (m *MemoryPorts) Revoke(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.revoked = err
}

func (m *MemoryPorts) Out(port uint16, value byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(); err != nil {
		return err
	}

	m.writes = append(m.writes, PortWrite{Port: port, Value: value})

	if idx, ok := m.latch[port-1]; ok {
		m.bank(port - 1)[idx] = value
		return nil
	}
	m.latch[port] = value

	return nil
}

func (m *MemoryPorts) In(port uint16) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(); err != nil {
		return 0, err
	}

	if idx, ok := m.latch[port-1]; ok {
		if v, ok := m.banks[port-1][idx]; ok {
			return v, nil
		}
	}

	return floatingBus, nil
}

func (m *MemoryPorts) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true

	return nil
}

func (m *MemoryPorts) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closed
}

func (m *MemoryPorts) check() error {
	errFactory := errors.New()
	if m.closed {
		return errFactory.New(ErrPortsClosed)
	}
	if m.revoked != nil {
		return errFactory.Wrap(ErrRegisterWrite, m.revoked)
	}

	return nil
}

func (m *MemoryPorts) bank(indexPort uint16) map[byte]byte {
	b, ok := m.banks[indexPort]
	if !ok {
		b = make(map[byte]byte)
		m.banks[indexPort] = b
	}

	return b
}
