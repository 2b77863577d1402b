package chip

// Ports is byte-wide access to the x86 I/O port space. Holding a Ports
// value means holding the privilege to use it; Close releases it.
type Ports interface {
	Out(port uint16, value byte) error
	In(port uint16) (byte, error)
	Close() error
}

// Controller drives the fans of a Super I/O environment controller
type Controller interface {
	// SetEffort writes the same PWM value to both fan headers
	SetEffort(effort int) error
	// Effort returns the last value written
	Effort() int
	// Identity returns the identity read at Open
	Identity() Identity
	// ReadIdentity reads the chip ID registers again
	ReadIdentity() (Identity, error)
	Close() error
}

// Identity is the Super I/O chip ID
type Identity struct {
	ID   uint16
	Name string
}

// Known reports whether the chip is one this controller was written for
func (i Identity) Known() bool {
	_, ok := knownChips[i.ID]
	return ok
}

var knownChips = map[uint16]string{
	0x8613: "IT8613E",
	0x8772: "IT8772E",
}

func identify(id uint16) Identity {
	name, ok := knownChips[id]
	if !ok {
		name = "unknown"
	}

	return Identity{ID: id, Name: name}
}
