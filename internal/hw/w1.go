package hw

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// ErrNoW1Device is returned when no DS18B20 shows up under the 1-Wire tree.
var ErrNoW1Device = errors.New("w1: no ds18b20 device found")

// W1Thermometer reads a DS18B20 through the kernel w1-therm driver.
type W1Thermometer struct {
	dir  string
	path string
}

// NewW1Thermometer creates a thermometer that looks for devices under dir
// (normally /sys/bus/w1/devices).
func NewW1Thermometer(dir string) *W1Thermometer {
	return &W1Thermometer{dir: dir}
}

// Init locates the first DS18B20 (family code 28).
func (w *W1Thermometer) Init() error {
	matches, err := filepath.Glob(filepath.Join(w.dir, "28-*", "w1_slave"))
	if err != nil {
		return fmt.Errorf("w1 glob: %w", err)
	}
	if len(matches) == 0 {
		w.path = ""
		return fmt.Errorf("%w in %s", ErrNoW1Device, w.dir)
	}
	w.path = matches[0]
	return nil
}

// Read returns the temperature in °C.
//
// w1_slave holds two lines; the first ends in YES when the CRC matched and
// the second ends in t=<millidegrees>.
func (w *W1Thermometer) Read() (float64, error) {
	if w.path == "" {
		return 0, fmt.Errorf("read ds18b20: %w", ErrNoW1Device)
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return 0, fmt.Errorf("read ds18b20: %w", err)
	}
	return parseW1Slave(data)
}

// Close forgets the device path.
func (w *W1Thermometer) Close() error {
	w.path = ""
	return nil
}

func parseW1Slave(data []byte) (float64, error) {
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	if len(lines) < 2 {
		return 0, fmt.Errorf("ds18b20: malformed w1_slave %q", data)
	}
	if !bytes.HasSuffix(bytes.TrimSpace(lines[0]), []byte("YES")) {
		return 0, errors.New("ds18b20: crc check failed")
	}
	i := bytes.LastIndex(lines[1], []byte("t="))
	if i < 0 {
		return 0, fmt.Errorf("ds18b20: no temperature in %q", lines[1])
	}
	milli, err := strconv.Atoi(string(bytes.TrimSpace(lines[1][i+2:])))
	if err != nil {
		return 0, fmt.Errorf("ds18b20: parse temperature: %w", err)
	}
	return float64(milli) / 1000, nil
}
