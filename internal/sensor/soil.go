package sensor

import (
	"github.com/rachmann-alexander/easyfarmbeats/internal/hw"
	"github.com/rachmann-alexander/easyfarmbeats/internal/logging"
	"github.com/rachmann-alexander/easyfarmbeats/internal/logic"
)

// SoilTemperature reads the DS18B20 soil probe in °C.
type SoilTemperature struct {
	base
	probe  hw.Probe
	filter *logic.RollingAverage
}

// NewSoilTemperature creates the soil temperature reader.
func NewSoilTemperature(probe hw.Probe, logger logging.Logger) *SoilTemperature {
	s := &SoilTemperature{
		base:   newBase("soil temperature", probe, logger),
		probe:  probe,
		filter: logic.NewRollingAverage(WindowDefault, Lower, Upper),
	}
	s.init()
	return s
}

// Value samples the probe and returns the smoothed temperature.
func (s *SoilTemperature) Value() logic.Value {
	var raw float64
	ok := s.read(func() (err error) {
		raw, err = s.probe.Read()
		return err
	})
	if !ok {
		return logic.None
	}
	return s.filter.Update(logic.Some(raw))
}

// Read implements Reader.
func (s *SoilTemperature) Read(snap *logic.Snapshot) {
	snap.SoilTemperature = s.Value()
}

// SoilMoisture reads the capacitive soil moisture sensor as a 0..1 wetness.
type SoilMoisture struct {
	base
	adc    hw.Probe
	filter *logic.RollingAverage
}

// NewSoilMoisture creates the soil moisture reader.
func NewSoilMoisture(adc hw.Probe, logger logging.Logger) *SoilMoisture {
	s := &SoilMoisture{
		base:   newBase("soil moisture", adc, logger),
		adc:    adc,
		filter: logic.NewRollingAverage(WindowMoisture, Lower, Upper),
	}
	s.init()
	return s
}

// Value samples the ADC, maps dry..wet onto 0..1 and returns the smoothed value.
func (s *SoilMoisture) Value() logic.Value {
	var raw float64
	ok := s.read(func() (err error) {
		raw, err = s.adc.Read()
		return err
	})
	if !ok {
		return logic.None
	}
	// Dry is the larger count, so it is passed as oldMax.
	wetness := logic.MapRange(raw, MoistureDry, MoistureWet, 0.0, 1.0)
	return s.filter.Update(logic.Some(wetness))
}

// Read implements Reader.
func (s *SoilMoisture) Read(snap *logic.Snapshot) {
	snap.SoilMoisture = s.Value()
}
