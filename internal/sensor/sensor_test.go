package sensor

import (
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/rachmann-alexander/easyfarmbeats/internal/hw"
	"github.com/rachmann-alexander/easyfarmbeats/internal/logging"
	"github.com/rachmann-alexander/easyfarmbeats/internal/logic"
)

var errBus = errors.New("i2c: remote I/O error")

// panicProbe is a driver that blows up on Read.
type panicProbe struct{ hw.FakeProbe }

func (p *panicProbe) Read() (float64, error) { panic("nil bus handle") }

func TestSoilTemperatureSmooths(t *testing.T) {
	logger, _ := logging.NewObservedTestLogger(t)
	s := NewSoilTemperature(hw.NewFakeProbe(20, 22, 250, 24), logger)
	require.True(t, s.Ready())

	wants := []float64{20, 21, 21, 22} // 250 is rejected, prior mean returned
	for i, want := range wants {
		got := s.Value()
		require.True(t, got.Valid, "read %d", i)
		assert.InDelta(t, want, got.Float, 1e-9, "read %d", i)
	}
}

func TestSoilTemperatureFaultThenReinit(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	probe := &hw.FakeProbe{Samples: []hw.ProbeSample{
		{Value: 20},
		{Err: errBus},
		{Value: 24},
	}}
	s := NewSoilTemperature(probe, logger)
	assert.Equal(t, 1, probe.InitCalls)

	assert.True(t, s.Value().Valid)

	got := s.Value()
	assert.False(t, got.Valid, "fault yields absent")
	assert.False(t, s.Ready())
	require.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Contains(t, logs.All()[0].Message, "soil temperature: read")

	got = s.Value()
	assert.Equal(t, 2, probe.InitCalls, "lazy re-init before the next read")
	assert.True(t, s.Ready())
	assert.InDelta(t, 22.0, got.Float, 1e-9, "window survives the fault")
}

func TestReaderInitFailureRetriedEveryRead(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	probe := hw.NewFakeProbe(20)
	probe.InitError = errors.New("no w1 device")

	s := NewSoilTemperature(probe, logger)
	assert.False(t, s.Ready())

	assert.False(t, s.Value().Valid)
	assert.False(t, s.Value().Valid)
	assert.Equal(t, 3, probe.InitCalls)
	assert.Equal(t, 3, logs.FilterMessageSnippet("init").Len())

	probe.InitError = nil
	got := s.Value()
	assert.True(t, got.Valid)
	assert.Equal(t, 20.0, got.Float)
}

func TestDriverPanicIsAFault(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	s := NewSoilTemperature(&panicProbe{}, logger)

	var got logic.Value
	require.NotPanics(t, func() { got = s.Value() })
	assert.False(t, got.Valid)
	assert.False(t, s.Ready())
	assert.Equal(t, 1, logs.FilterMessageSnippet("driver panic").Len())
}

func TestSoilMoistureMapsAndSmooths(t *testing.T) {
	logger, _ := logging.NewObservedTestLogger(t)
	s := NewSoilMoisture(hw.NewFakeProbe(1543, 2023.5, 2504), logger)

	got := s.Value()
	assert.InDelta(t, 1.0, got.Float, 1e-9, "fully wet")

	got = s.Value()
	assert.InDelta(t, 0.75, got.Float, 1e-9, "mean of 1.0 and 0.5")

	// Fully dry maps to 0.0, which is outside (0,200) and is not admitted.
	got = s.Value()
	assert.InDelta(t, 0.75, got.Float, 1e-9)
	assert.Equal(t, WindowMoisture, s.filter.Size())
	assert.Equal(t, 2, s.filter.Len())
}

func newAir(t *testing.T, samples ...hw.HygroSample) (*AirTempHumidity, *hw.FakeHygrometer, *[]time.Duration) {
	t.Helper()
	logger, _ := logging.NewObservedTestLogger(t)
	dev := hw.NewFakeHygrometer(samples...)
	a := NewAirTempHumidity(dev, logger, clock.NewMock())
	var slept []time.Duration
	a.sleep = func(d time.Duration) { slept = append(slept, d) }
	return a, dev, &slept
}

func TestAirRetryReplacesOnlyZeroChannel(t *testing.T) {
	a, dev, slept := newAir(t,
		hw.HygroSample{Humidity: 0, Temperature: 20},
		hw.HygroSample{Humidity: 18, Temperature: 20},
	)

	h, tc, ok := a.sample()
	require.True(t, ok)
	assert.Equal(t, 18.0, h)
	assert.Equal(t, 20.0, tc)
	assert.Equal(t, 2, dev.ReadCalls)
	assert.Equal(t, []time.Duration{RetryDelay}, *slept)
}

func TestAirRetryKeepsNonZeroChannel(t *testing.T) {
	a, _, _ := newAir(t,
		hw.HygroSample{Humidity: 40, Temperature: 0},
		hw.HygroSample{Humidity: 99, Temperature: 21},
	)

	hum, temp := a.Values()
	assert.Equal(t, 40.0, hum.Float, "first humidity kept, retry ignored")
	assert.Equal(t, 21.0, temp.Float)
}

func TestAirNoRetryWhenBothPresent(t *testing.T) {
	a, dev, slept := newAir(t, hw.HygroSample{Humidity: 40, Temperature: 21})

	hum, temp := a.Values()
	assert.Equal(t, 40.0, hum.Float)
	assert.Equal(t, 21.0, temp.Float)
	assert.Equal(t, 1, dev.ReadCalls)
	assert.Empty(t, *slept)
}

func TestAirRetryStillZero(t *testing.T) {
	a, _, _ := newAir(t,
		hw.HygroSample{Humidity: 40, Temperature: 21},
		hw.HygroSample{Humidity: 0, Temperature: 0},
	)
	a.Values()

	// Zero is outside (0,200): not admitted, previous mean reported.
	hum, temp := a.Values()
	assert.Equal(t, logic.Some(40), hum)
	assert.Equal(t, logic.Some(21), temp)
}

func TestAirFaultThenRetrySucceeds(t *testing.T) {
	a, dev, _ := newAir(t,
		hw.HygroSample{Err: errBus},
		hw.HygroSample{Humidity: 45, Temperature: 19},
	)

	hum, temp := a.Values()
	assert.Equal(t, logic.Some(45), hum)
	assert.Equal(t, logic.Some(19), temp)
	assert.Equal(t, 2, dev.InitCalls, "retry re-initialised the sensor")
	assert.True(t, a.Ready())
}

func TestAirBothAttemptsFault(t *testing.T) {
	a, _, _ := newAir(t, hw.HygroSample{Err: errBus})

	hum, temp := a.Values()
	assert.False(t, hum.Valid)
	assert.False(t, temp.Valid)
	assert.False(t, a.Ready())

	var snap logic.Snapshot
	a.Read(&snap)
	assert.False(t, snap.AirHumidity.Valid)
	assert.False(t, snap.AirTemperature.Valid)
}

func TestSunlightScalesAndSmoothsUVOnly(t *testing.T) {
	logger, _ := logging.NewObservedTestLogger(t)
	meter := hw.NewFakeLightMeter(
		hw.LightSample{Light: hw.Light{Visible: 260, UV: 300, IR: 310}},
		hw.LightSample{Light: hw.Light{Visible: 900, UV: 100, IR: 1200}},
	)
	s := NewSunlight(meter, logger)

	var snap logic.Snapshot
	s.Read(&snap)
	assert.Equal(t, logic.Some(260), snap.SunlightVisible)
	assert.InDelta(t, 3.0, snap.SunlightUV.Float, 1e-9)
	assert.Equal(t, logic.Some(310), snap.SunlightIR)

	s.Read(&snap)
	assert.Equal(t, logic.Some(900), snap.SunlightVisible, "visible unsmoothed")
	assert.InDelta(t, 2.0, snap.SunlightUV.Float, 1e-9, "uv smoothed: mean(3, 1)")
	assert.Equal(t, logic.Some(1200), snap.SunlightIR, "ir unsmoothed")
}

func TestSunlightFault(t *testing.T) {
	logger, _ := logging.NewObservedTestLogger(t)
	s := NewSunlight(hw.NewFakeLightMeter(hw.LightSample{Err: errBus}), logger)

	vis, uv, ir := s.Values()
	assert.False(t, vis.Valid)
	assert.False(t, uv.Valid)
	assert.False(t, ir.Valid)
}

func TestRelayReadAndControl(t *testing.T) {
	logger, _ := logging.NewObservedTestLogger(t)
	sw := hw.NewFakeSwitch()
	r := NewRelay(sw, logger)

	assert.Equal(t, logic.Some(logic.RelayOff), r.Value())

	require.NoError(t, r.TurnOn())
	assert.Equal(t, logic.Some(logic.RelayOn), r.Value())

	require.NoError(t, r.TurnOff())
	assert.Equal(t, logic.Some(logic.RelayOff), r.Value())
	assert.Equal(t, []bool{true, false}, sw.SetCalls)
}

func TestRelayControlGatedOnReadiness(t *testing.T) {
	logger, _ := logging.NewObservedTestLogger(t)
	sw := hw.NewFakeSwitch()
	sw.InitError = errors.New("line busy")
	r := NewRelay(sw, logger)

	assert.ErrorIs(t, r.TurnOn(), ErrNotReady)
	assert.ErrorIs(t, r.TurnOff(), ErrNotReady)
	assert.Empty(t, sw.SetCalls)
}

func TestRelaySetFailureMarksNotReady(t *testing.T) {
	logger, _ := logging.NewObservedTestLogger(t)
	sw := hw.NewFakeSwitch()
	sw.SetError = errors.New("EBUSY")
	r := NewRelay(sw, logger)

	assert.Error(t, r.TurnOn())
	assert.False(t, r.Ready())
}

func TestRelayFault(t *testing.T) {
	logger, _ := logging.NewObservedTestLogger(t)
	r := NewRelay(hw.NewFakeSwitch(hw.SwitchSample{Err: errBus}), logger)

	var snap logic.Snapshot
	r.Read(&snap)
	assert.False(t, snap.Relay.Valid)
}

func TestSensorsReadersOrderAndClose(t *testing.T) {
	logger, _ := logging.NewObservedTestLogger(t)
	devs := hw.NewFakeDevices()
	s := New(devs, logger, clock.New())

	var names []string
	for _, r := range s.Readers() {
		names = append(names, r.Name())
		assert.True(t, r.Ready(), r.Name())
	}
	assert.Equal(t, []string{
		"soil temperature", "soil moisture", "air temperature/humidity", "sunlight", "relay",
	}, names)

	require.NoError(t, s.Close())
	assert.True(t, devs.SoilTemperature.(*hw.FakeProbe).Closed)
	assert.True(t, devs.Relay.(*hw.FakeSwitch).Closed)
	assert.False(t, s.Relay.Ready())
}
