package sensor

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/rachmann-alexander/easyfarmbeats/internal/hw"
	"github.com/rachmann-alexander/easyfarmbeats/internal/logging"
	"github.com/rachmann-alexander/easyfarmbeats/internal/logic"
)

// RetryDelay is the pause before the DHT11 is read a second time.
const RetryDelay = 100 * time.Millisecond

// AirTempHumidity reads the DHT11. The DHT11 frequently returns zero for one
// channel, so a zero triggers a single retry whose value replaces only the
// zero channels.
type AirTempHumidity struct {
	base
	dev         hw.Hygrometer
	humidity    *logic.RollingAverage
	temperature *logic.RollingAverage
	sleep       func(time.Duration)
}

// NewAirTempHumidity creates the air temperature/humidity reader.
func NewAirTempHumidity(dev hw.Hygrometer, logger logging.Logger, clk clock.Clock) *AirTempHumidity {
	a := &AirTempHumidity{
		base:        newBase("air temperature/humidity", dev, logger),
		dev:         dev,
		humidity:    logic.NewRollingAverage(WindowDefault, Lower, Upper),
		temperature: logic.NewRollingAverage(WindowDefault, Lower, Upper),
		sleep:       clk.Sleep,
	}
	a.init()
	return a
}

// take performs one raw read. A fault yields the null value on both channels.
func (a *AirTempHumidity) take() (humidity, temperature float64, ok bool) {
	ok = a.read(func() (err error) {
		humidity, temperature, err = a.dev.Read()
		return err
	})
	if !ok {
		return logic.NullValue, logic.NullValue, false
	}
	return humidity, temperature, true
}

// sample returns the raw pair after the zero-channel retry.
// ok is false only when both attempts faulted.
func (a *AirTempHumidity) sample() (humidity, temperature float64, ok bool) {
	humidity, temperature, ok = a.take()
	if humidity == logic.NullValue || temperature == logic.NullValue {
		a.sleep(RetryDelay)
		rh, rt, rok := a.take()
		if humidity == logic.NullValue {
			humidity = rh
		}
		if temperature == logic.NullValue {
			temperature = rt
		}
		ok = ok || rok
	}
	return humidity, temperature, ok
}

// Values samples the sensor and returns smoothed humidity and temperature.
func (a *AirTempHumidity) Values() (humidity, temperature logic.Value) {
	h, t, ok := a.sample()
	if !ok {
		return logic.None, logic.None
	}
	return a.humidity.Update(logic.Some(h)), a.temperature.Update(logic.Some(t))
}

// Read implements Reader.
func (a *AirTempHumidity) Read(snap *logic.Snapshot) {
	snap.AirHumidity, snap.AirTemperature = a.Values()
}
