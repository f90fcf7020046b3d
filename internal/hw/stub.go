//go:build !linux

package hw

// Relay is not available on non-Linux platforms.
type Relay struct{}

// NewRelay returns a relay whose Init always fails on non-Linux platforms.
func NewRelay(chip string, offset int) *Relay { return &Relay{} }

// Init is not implemented on non-Linux platforms.
func (r *Relay) Init() error { return ErrUnsupported }

// Read is not implemented on non-Linux platforms.
func (r *Relay) Read() (bool, error) { return false, ErrUnsupported }

// Set is not implemented on non-Linux platforms.
func (r *Relay) Set(on bool) error { return ErrUnsupported }

// Close is a no-op on non-Linux platforms.
func (r *Relay) Close() error { return nil }

// DHT11 is not available on non-Linux platforms.
type DHT11 struct{}

// NewDHT11 returns a reader whose Init always fails on non-Linux platforms.
func NewDHT11(chip string, offset int) *DHT11 { return &DHT11{} }

// Init is not implemented on non-Linux platforms.
func (d *DHT11) Init() error { return ErrUnsupported }

// Read is not implemented on non-Linux platforms.
func (d *DHT11) Read() (float64, float64, error) { return 0, 0, ErrUnsupported }

// Close is a no-op on non-Linux platforms.
func (d *DHT11) Close() error { return nil }

// GroveADC is not available on non-Linux platforms.
type GroveADC struct{}

// NewGroveADC returns an ADC whose Init always fails on non-Linux platforms.
func NewGroveADC(bus string, addr uint16, channel int) *GroveADC { return &GroveADC{} }

// Init is not implemented on non-Linux platforms.
func (a *GroveADC) Init() error { return ErrUnsupported }

// Read is not implemented on non-Linux platforms.
func (a *GroveADC) Read() (float64, error) { return 0, ErrUnsupported }

// Close is a no-op on non-Linux platforms.
func (a *GroveADC) Close() error { return nil }

// SI1151 is not available on non-Linux platforms.
type SI1151 struct{}

// NewSI1151 returns a light meter whose Init always fails on non-Linux platforms.
func NewSI1151(bus string, addr uint16) *SI1151 { return &SI1151{} }

// Init is not implemented on non-Linux platforms.
func (s *SI1151) Init() error { return ErrUnsupported }

// Read is not implemented on non-Linux platforms.
func (s *SI1151) Read() (Light, error) { return Light{}, ErrUnsupported }

// Close is a no-op on non-Linux platforms.
func (s *SI1151) Close() error { return nil }
