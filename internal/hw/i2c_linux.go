//go:build linux

package hw

import (
	"encoding/binary"
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// i2cDevice holds an opened bus and the device on it.
type i2cDevice struct {
	busName string
	addr    uint16
	bus     i2c.BusCloser
	dev     *i2c.Dev
}

func (d *i2cDevice) open() error {
	d.close()
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("init periph host: %w", err)
	}
	bus, err := i2creg.Open(d.busName)
	if err != nil {
		return fmt.Errorf("open i2c bus %q: %w", d.busName, err)
	}
	d.bus = bus
	d.dev = &i2c.Dev{Bus: bus, Addr: d.addr}
	return nil
}

func (d *i2cDevice) tx(w, r []byte) error {
	if d.dev == nil {
		return fmt.Errorf("i2c device %#02x: bus not open", d.addr)
	}
	return d.dev.Tx(w, r)
}

func (d *i2cDevice) close() error {
	if d.bus == nil {
		return nil
	}
	err := d.bus.Close()
	d.bus = nil
	d.dev = nil
	return err
}

// GroveADC reads one channel of the Grove Base Hat ADC (12-bit, 0-4095).
type GroveADC struct {
	i2cDevice
	channel int
}

const groveRegRaw = 0x10

// NewGroveADC creates an ADC reader for the given bus, address and channel.
func NewGroveADC(bus string, addr uint16, channel int) *GroveADC {
	return &GroveADC{i2cDevice: i2cDevice{busName: bus, addr: addr}, channel: channel}
}

// Init opens the I2C bus.
func (a *GroveADC) Init() error {
	if err := a.open(); err != nil {
		return fmt.Errorf("grove adc: %w", err)
	}
	return nil
}

// Read returns the raw ADC count of the channel.
func (a *GroveADC) Read() (float64, error) {
	buf := make([]byte, 2)
	if err := a.tx([]byte{byte(groveRegRaw + a.channel)}, buf); err != nil {
		return 0, fmt.Errorf("read grove adc channel %d: %w", a.channel, err)
	}
	return float64(binary.LittleEndian.Uint16(buf)), nil
}

// Close releases the bus.
func (a *GroveADC) Close() error {
	return a.close()
}

// SI1151 registers, commands and parameters.
const (
	siRegPartID    = 0x00
	siRegHostIn0   = 0x0a
	siRegCommand   = 0x0b
	siRegResponse0 = 0x11
	siRegHostOut0  = 0x13

	siCmdReset = 0x01
	siCmdForce = 0x11
	siCmdParam = 0x80

	siParamChanList  = 0x01
	siParamADCConfig = 0x02 // ADCCONFIGn = 0x02 + 4n
	siParamADCPost   = 0x04 // ADCPOSTn = 0x04 + 4n

	siPartID = 0x51

	siMuxLargeWhite = 0x0d
	siMuxUV         = 0x18
	siMuxLargeIR    = 0x02

	siConversion = 25 * time.Millisecond
)

// SI1151 reads the Grove sunlight sensor v2.
// Channel 0 is visible, 1 is UV and 2 is IR, each reported as a 16-bit count.
type SI1151 struct {
	i2cDevice
}

// NewSI1151 creates a sunlight sensor reader.
func NewSI1151(bus string, addr uint16) *SI1151 {
	return &SI1151{i2cDevice{busName: bus, addr: addr}}
}

// Init opens the bus, checks the part id and configures three channels.
func (s *SI1151) Init() error {
	if err := s.open(); err != nil {
		return fmt.Errorf("si1151: %w", err)
	}

	id := make([]byte, 1)
	if err := s.tx([]byte{siRegPartID}, id); err != nil {
		return fmt.Errorf("si1151 part id: %w", err)
	}
	if id[0] != siPartID {
		return fmt.Errorf("si1151: unexpected part id %#02x", id[0])
	}

	if err := s.command(siCmdReset); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)

	params := []struct{ addr, value byte }{
		{siParamChanList, 0x07},
		{siParamADCConfig + 0*4, siMuxLargeWhite},
		{siParamADCConfig + 1*4, siMuxUV},
		{siParamADCConfig + 2*4, siMuxLargeIR},
		{siParamADCPost + 0*4, 0x00},
		{siParamADCPost + 1*4, 0x00},
		{siParamADCPost + 2*4, 0x00},
	}
	for _, p := range params {
		if err := s.setParam(p.addr, p.value); err != nil {
			return err
		}
	}
	return nil
}

// Read forces one conversion of all channels.
func (s *SI1151) Read() (Light, error) {
	if err := s.command(siCmdForce); err != nil {
		return Light{}, err
	}
	time.Sleep(siConversion)

	buf := make([]byte, 6)
	if err := s.tx([]byte{siRegHostOut0}, buf); err != nil {
		return Light{}, fmt.Errorf("read si1151: %w", err)
	}
	return Light{
		Visible: float64(binary.BigEndian.Uint16(buf[0:2])),
		UV:      float64(binary.BigEndian.Uint16(buf[2:4])),
		IR:      float64(binary.BigEndian.Uint16(buf[4:6])),
	}, nil
}

// Close releases the bus.
func (s *SI1151) Close() error {
	return s.close()
}

func (s *SI1151) command(cmd byte) error {
	if err := s.tx([]byte{siRegCommand, cmd}, nil); err != nil {
		return fmt.Errorf("si1151 command %#02x: %w", cmd, err)
	}
	return nil
}

func (s *SI1151) setParam(addr, value byte) error {
	if err := s.tx([]byte{siRegHostIn0, value}, nil); err != nil {
		return fmt.Errorf("si1151 param %#02x: hostin0: %w", addr, err)
	}
	if err := s.command(siCmdParam | addr); err != nil {
		return fmt.Errorf("si1151 param %#02x: %w", addr, err)
	}

	// RESPONSE0 carries the command counter; bit 4 flags an error.
	resp := make([]byte, 1)
	if err := s.tx([]byte{siRegResponse0}, resp); err != nil {
		return fmt.Errorf("si1151 response: %w", err)
	}
	if resp[0]&0x10 != 0 {
		return fmt.Errorf("si1151 param %#02x: rejected (response %#02x)", addr, resp[0])
	}
	return nil
}
