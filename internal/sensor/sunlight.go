package sensor

import (
	"github.com/rachmann-alexander/easyfarmbeats/internal/hw"
	"github.com/rachmann-alexander/easyfarmbeats/internal/logging"
	"github.com/rachmann-alexander/easyfarmbeats/internal/logic"
)

// UVScale converts the raw UV count into a UV index.
const UVScale = 100.0

// Sunlight reads the SI1151. Only UV is smoothed; visible and IR are reported
// as read.
type Sunlight struct {
	base
	meter hw.LightMeter
	uv    *logic.RollingAverage
}

// NewSunlight creates the sunlight reader.
func NewSunlight(meter hw.LightMeter, logger logging.Logger) *Sunlight {
	s := &Sunlight{
		base:  newBase("sunlight", meter, logger),
		meter: meter,
		uv:    logic.NewRollingAverage(WindowDefault, Lower, Upper),
	}
	s.init()
	return s
}

// Values samples the sensor.
func (s *Sunlight) Values() (visible, uv, ir logic.Value) {
	var light hw.Light
	ok := s.read(func() (err error) {
		light, err = s.meter.Read()
		return err
	})
	if !ok {
		return logic.None, logic.None, logic.None
	}
	return logic.Some(light.Visible), s.uv.Update(logic.Some(light.UV / UVScale)), logic.Some(light.IR)
}

// Read implements Reader.
func (s *Sunlight) Read(snap *logic.Snapshot) {
	snap.SunlightVisible, snap.SunlightUV, snap.SunlightIR = s.Values()
}
