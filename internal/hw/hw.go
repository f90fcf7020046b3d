// Package hw provides sensor hardware access behind narrow capability interfaces.
// The real implementations use the Linux GPIO character device, I2C through
// periph and the 1-Wire sysfs tree.
// The fake implementations allow testing without hardware.
package hw

import "errors"

// ErrUnsupported is returned by real devices on platforms without the bus.
var ErrUnsupported = errors.New("hw: not supported on this platform (requires Linux)")

// Device is the lifecycle shared by every capability.
type Device interface {
	// Init opens (or reopens) the underlying bus resources.
	// It is safe to call again after a failed Read.
	Init() error

	// Close releases the bus resources.
	Close() error
}

// Probe reads a single raw number (soil temperature, soil moisture ADC).
type Probe interface {
	Device
	Read() (float64, error)
}

// Hygrometer reads relative humidity (%) and air temperature (°C).
type Hygrometer interface {
	Device
	Read() (humidity, temperature float64, err error)
}

// Light is one raw reading of the sunlight sensor.
type Light struct {
	Visible float64
	UV      float64
	IR      float64
}

// LightMeter reads visible, UV and IR light.
type LightMeter interface {
	Device
	Read() (Light, error)
}

// Switch is a discrete output that can also be read back.
type Switch interface {
	Device
	// Read returns true when the output is on.
	Read() (bool, error)
	// Set drives the output.
	Set(on bool) error
}

// Pin and bus defaults (BCM numbering, Grove Base Hat for Raspberry Pi).
const (
	DefaultChip       = "gpiochip0"
	DefaultPinDHT     = 16 // DHT11 air temperature/humidity
	DefaultPinRelay   = 22 // Grove relay
	DefaultADCAddr    = 0x04
	DefaultADCChannel = 0 // capacitive soil moisture on A0
	DefaultLightAddr  = 0x53
	DefaultW1Dir      = "/sys/bus/w1/devices"
)

// Config selects the buses and addresses the real devices use.
type Config struct {
	Chip       string
	PinDHT     int
	PinRelay   int
	I2CBus     string // "" selects the first bus
	ADCAddr    uint16
	ADCChannel int
	LightAddr  uint16
	W1Dir      string
}

// DefaultConfig returns the wiring of the reference FarmBeats kit.
func DefaultConfig() Config {
	return Config{
		Chip:       DefaultChip,
		PinDHT:     DefaultPinDHT,
		PinRelay:   DefaultPinRelay,
		ADCAddr:    DefaultADCAddr,
		ADCChannel: DefaultADCChannel,
		LightAddr:  DefaultLightAddr,
		W1Dir:      DefaultW1Dir,
	}
}

// Devices groups one capability per sensor channel.
type Devices struct {
	SoilTemperature Probe
	SoilMoisture    Probe
	Air             Hygrometer
	Light           LightMeter
	Relay           Switch
}

// NewDevices creates the real devices for cfg. Nothing is opened until Init.
func NewDevices(cfg Config) Devices {
	return Devices{
		SoilTemperature: NewW1Thermometer(cfg.W1Dir),
		SoilMoisture:    NewGroveADC(cfg.I2CBus, cfg.ADCAddr, cfg.ADCChannel),
		Air:             NewDHT11(cfg.Chip, cfg.PinDHT),
		Light:           NewSI1151(cfg.I2CBus, cfg.LightAddr),
		Relay:           NewRelay(cfg.Chip, cfg.PinRelay),
	}
}
