package chip

import (
	"fmt"
	"sync"

	"codeberg.org/mutker/nasfanctl/internal/errors"
	"codeberg.org/mutker/nasfanctl/internal/logger"
)

const (
	DefaultConfigPort = 0x2e
	MaxEffort         = 255

	// Super I/O configuration registers
	regLDN        = 0x07
	regChipIDHigh = 0x20
	regChipIDLow  = 0x21
	regActivate   = 0x30
	regECBaseHigh = 0x60
	regECBaseLow  = 0x61

	ldnEnvironmentController = 0x04

	// Environment controller registers, relative to the EC base address
	ecIndexOffset = 5
	ecDataOffset  = 6

	regFan1PWM     = 0x6b
	regFan2PWM     = 0x73
	regFan1Control = 0x16
	regFan2Control = 0x17

	softwareOperation = 0x00
)

// MB PnP unlock key for ITE chips
var enterConfigKey = []byte{0x87, 0x01, 0x55, 0x55}

var _ Controller = (*IT87)(nil)

type Config struct {
	// ConfigPort is the Super I/O index port, normally 0x2e
	ConfigPort uint16
	// InitialEffort is written to both fans before software control is enabled
	InitialEffort int
}

// IT87 is an ITE IT87xx environment controller with its two fan headers
// under software PWM control.
type IT87 struct {
	ports      Ports
	configPort uint16
	ecBase     uint16
	identity   Identity
	effort     int
	mu         sync.Mutex
	logger     logger.Logger
}

// Open unlocks the chip, locates its environment controller, writes the
// initial effort and switches both fans to software operation. Open does
// not take ownership of ports until it succeeds.
func Open(ports Ports, cfg Config, log logger.Logger) (*IT87, error) {
	errFactory := errors.New()

	if cfg.ConfigPort == 0 {
		cfg.ConfigPort = DefaultConfigPort
	}

	c := &IT87{
		ports:      ports,
		configPort: cfg.ConfigPort,
		logger:     log,
	}

	if err := c.enterConfig(); err != nil {
		return nil, err
	}

	identity, err := c.ReadIdentity()
	if err != nil {
		return nil, err
	}
	c.identity = identity

	if !identity.Known() {
		log.Warn().
			Str("chip_id", fmt.Sprintf("%#04x", identity.ID)).
			Msg("Unrecognized Super I/O chip, continuing with IT87 register layout")
	}

	if err := c.writeConfig(regLDN, ldnEnvironmentController); err != nil {
		return nil, err
	}
	if err := c.writeConfig(regActivate, 0x01); err != nil {
		return nil, err
	}

	high, err := c.readConfig(regECBaseHigh)
	if err != nil {
		return nil, err
	}
	low, err := c.readConfig(regECBaseLow)
	if err != nil {
		return nil, err
	}
	c.ecBase = uint16(high)<<8 | uint16(low)

	if c.ecBase == 0 || c.ecBase == 0xffff {
		return nil, errFactory.WithData(errors.ErrChipAccess, struct {
			Phase  string
			ECBase string
		}{
			Phase:  "read_ec_base",
			ECBase: fmt.Sprintf("%#04x", c.ecBase),
		})
	}

	if err := c.SetEffort(cfg.InitialEffort); err != nil {
		return nil, err
	}

	for _, reg := range []byte{regFan1Control, regFan2Control} {
		if err := c.writeEC(reg, softwareOperation); err != nil {
			return nil, err
		}
	}

	log.Info().
		Str("chip", identity.Name).
		Str("chip_id", fmt.Sprintf("%#04x", identity.ID)).
		Str("ec_base", fmt.Sprintf("%#04x", c.ecBase)).
		Int("effort", cfg.InitialEffort).
		Msg("Fan controller initialized")

	return c, nil
}

// Probe unlocks the Super I/O configuration space and reads the chip ID
// without touching the environment controller.
func Probe(ports Ports, configPort uint16) (Identity, error) {
	if configPort == 0 {
		configPort = DefaultConfigPort
	}

	c := &IT87{ports: ports, configPort: configPort}
	if err := c.enterConfig(); err != nil {
		return Identity{}, err
	}

	return c.ReadIdentity()
}

func (c *IT87) ReadIdentity() (Identity, error) {
	high, err := c.readConfig(regChipIDHigh)
	if err != nil {
		return Identity{}, err
	}
	low, err := c.readConfig(regChipIDLow)
	if err != nil {
		return Identity{}, err
	}

	return identify(uint16(high)<<8 | uint16(low)), nil
}

func (c *IT87) Identity() Identity {
	return c.identity
}

func (c *IT87) ECBase() uint16 {
	return c.ecBase
}

// SetEffort writes effort to both fan PWM registers.
func (c *IT87) SetEffort(effort int) error {
	errFactory := errors.New()

	if effort < 0 || effort > MaxEffort {
		return errFactory.WithData(ErrInvalidEffort, effort)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, reg := range []byte{regFan1PWM, regFan2PWM} {
		if err := c.writeEC(reg, byte(effort)); err != nil {
			return err
		}
	}
	c.effort = effort

	c.logger.Debug().Int("effort", effort).Msg("Set fan effort")

	return nil
}

func (c *IT87) Effort() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.effort
}

// Close releases the port capability. The fans keep the last effort.
func (c *IT87) Close() error {
	return c.ports.Close()
}

func (c *IT87) enterConfig() error {
	for _, b := range enterConfigKey {
		if err := c.ports.Out(c.configPort, b); err != nil {
			return errors.New().Wrap(errors.ErrChipAccess, err)
		}
	}

	return nil
}

func (c *IT87) writeConfig(reg, value byte) error {
	errFactory := errors.New()

	if err := c.ports.Out(c.configPort, reg); err != nil {
		return errFactory.Wrap(errors.ErrChipAccess, err)
	}
	if err := c.ports.Out(c.configPort+1, value); err != nil {
		return errFactory.Wrap(errors.ErrChipAccess, err)
	}

	return nil
}

func (c *IT87) readConfig(reg byte) (byte, error) {
	errFactory := errors.New()

	if err := c.ports.Out(c.configPort, reg); err != nil {
		return 0, errFactory.Wrap(errors.ErrChipAccess, err)
	}
	v, err := c.ports.In(c.configPort + 1)
	if err != nil {
		return 0, errFactory.Wrap(errors.ErrChipAccess, err)
	}

	return v, nil
}

func (c *IT87) writeEC(reg, value byte) error {
	errFactory := errors.New()

	if err := c.ports.Out(c.ecBase+ecIndexOffset, reg); err != nil {
		return errFactory.Wrap(errors.ErrChipAccess, err)
	}
	if err := c.ports.Out(c.ecBase+ecDataOffset, value); err != nil {
		return errFactory.Wrap(errors.ErrChipAccess, err)
	}

	return nil
}
