package hw

import "errors"

// errNoSamples is returned by a fake with nothing scripted.
var errNoSamples = errors.New("no samples configured")

// fakeDevice carries the lifecycle bookkeeping shared by the fakes.
type fakeDevice struct {
	// InitError, if set, will be returned by Init.
	InitError error

	// InitCalls counts calls to Init.
	InitCalls int

	// Closed tracks if Close was called.
	Closed bool
}

// Init records the call and returns InitError.
func (f *fakeDevice) Init() error {
	f.InitCalls++
	return f.InitError
}

// Close marks the device as closed.
func (f *fakeDevice) Close() error {
	f.Closed = true
	return nil
}

// next returns the index of the sample to use for this call.
// Once samples are exhausted the last one is returned repeatedly.
func next(index *int, n int) int {
	i := *index
	if i < n-1 {
		*index++
	}
	return i
}

// ProbeSample is one scripted Probe reading.
type ProbeSample struct {
	Value float64
	Err   error
}

// FakeProbe is a test double that returns scripted single values.
type FakeProbe struct {
	fakeDevice

	// Samples contains scripted readings. Each call to Read consumes the next.
	Samples []ProbeSample

	index int
}

// NewFakeProbe creates a FakeProbe returning the given values.
func NewFakeProbe(values ...float64) *FakeProbe {
	f := &FakeProbe{}
	for _, v := range values {
		f.Samples = append(f.Samples, ProbeSample{Value: v})
	}
	return f
}

// Read returns the next scripted sample.
func (f *FakeProbe) Read() (float64, error) {
	if len(f.Samples) == 0 {
		return 0, errNoSamples
	}
	s := f.Samples[next(&f.index, len(f.Samples))]
	return s.Value, s.Err
}

// HygroSample is one scripted Hygrometer reading.
type HygroSample struct {
	Humidity    float64
	Temperature float64
	Err         error
}

// FakeHygrometer is a test double that returns scripted humidity/temperature pairs.
type FakeHygrometer struct {
	fakeDevice

	// Samples contains scripted readings. Each call to Read consumes the next.
	Samples []HygroSample

	// ReadCalls counts calls to Read.
	ReadCalls int

	index int
}

// NewFakeHygrometer creates a FakeHygrometer with the given samples.
func NewFakeHygrometer(samples ...HygroSample) *FakeHygrometer {
	return &FakeHygrometer{Samples: samples}
}

// Read returns the next scripted sample.
func (f *FakeHygrometer) Read() (float64, float64, error) {
	f.ReadCalls++
	if len(f.Samples) == 0 {
		return 0, 0, errNoSamples
	}
	s := f.Samples[next(&f.index, len(f.Samples))]
	return s.Humidity, s.Temperature, s.Err
}

// LightSample is one scripted LightMeter reading.
type LightSample struct {
	Light
	Err error
}

// FakeLightMeter is a test double that returns scripted light readings.
type FakeLightMeter struct {
	fakeDevice

	// Samples contains scripted readings. Each call to Read consumes the next.
	Samples []LightSample

	index int
}

// NewFakeLightMeter creates a FakeLightMeter with the given samples.
func NewFakeLightMeter(samples ...LightSample) *FakeLightMeter {
	return &FakeLightMeter{Samples: samples}
}

// Read returns the next scripted sample.
func (f *FakeLightMeter) Read() (Light, error) {
	if len(f.Samples) == 0 {
		return Light{}, errNoSamples
	}
	s := f.Samples[next(&f.index, len(f.Samples))]
	return s.Light, s.Err
}

// SwitchSample is one scripted Switch reading.
type SwitchSample struct {
	On  bool
	Err error
}

// FakeSwitch is a test double for the relay.
// Scripted samples are consumed first; afterwards Read reports State.
type FakeSwitch struct {
	fakeDevice

	// Samples contains scripted readings.
	Samples []SwitchSample

	// State is the driven output; updated by Set and by successful samples.
	State bool

	// SetError, if set, will be returned by Set.
	SetError error

	// SetCalls records every value passed to Set.
	SetCalls []bool

	index int
}

// NewFakeSwitch creates a FakeSwitch with the given samples.
func NewFakeSwitch(samples ...SwitchSample) *FakeSwitch {
	return &FakeSwitch{Samples: samples}
}

// Read returns the next scripted sample, then State.
func (f *FakeSwitch) Read() (bool, error) {
	if f.index < len(f.Samples) {
		s := f.Samples[f.index]
		f.index++
		if s.Err != nil {
			return false, s.Err
		}
		f.State = s.On
	}
	return f.State, nil
}

// Set drives State.
func (f *FakeSwitch) Set(on bool) error {
	f.SetCalls = append(f.SetCalls, on)
	if f.SetError != nil {
		return f.SetError
	}
	f.State = on
	return nil
}

// Reset rewinds every scripted sequence and clears lifecycle bookkeeping.
func (f *FakeSwitch) Reset() {
	f.index = 0
	f.fakeDevice = fakeDevice{}
	f.SetCalls = nil
}

// NewFakeDevices returns fakes with a plausible steady reading on every
// channel, for running the collector on hosts without the sensor buses.
func NewFakeDevices() Devices {
	return Devices{
		SoilTemperature: NewFakeProbe(18.5, 18.6, 18.4, 18.7),
		SoilMoisture:    NewFakeProbe(2100, 2080, 2120, 2090),
		Air: NewFakeHygrometer(
			HygroSample{Humidity: 48, Temperature: 21},
			HygroSample{Humidity: 47, Temperature: 21.2},
		),
		Light: NewFakeLightMeter(LightSample{Light: Light{Visible: 260, UV: 3, IR: 310}}),
		Relay: NewFakeSwitch(),
	}
}
