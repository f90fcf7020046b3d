package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/rachmann-alexander/easyfarmbeats/internal/hw"
	"github.com/rachmann-alexander/easyfarmbeats/internal/logging"
	"github.com/rachmann-alexander/easyfarmbeats/internal/mqtt"
	"github.com/rachmann-alexander/easyfarmbeats/internal/record"
	"github.com/rachmann-alexander/easyfarmbeats/internal/status"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants, not the other way around.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "Greenhouse")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}

	want := status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "Greenhouse",
	}
	if *info != want {
		t.Errorf("got %+v, want %+v", *info, want)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestReadNetworkInfoPartial(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkIP, "")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo when NETWORK_STATUS is set")
	}
	if info.Status != "connected" {
		t.Errorf("Status: got %q, want %q", info.Status, "connected")
	}
	if info.IP != "" {
		t.Errorf("IP: got %q, want empty", info.IP)
	}
}

func TestSignalName(t *testing.T) {
	tests := []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGHUP, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := signalName(tt.sig); got != tt.want {
			t.Errorf("signalName(%v): got %q, want %q", tt.sig, got, tt.want)
		}
	}
}

// --- runCollector tests ---

var start = time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)

type harness struct {
	devs    hw.Devices
	rec     *record.Fake
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	clk     *clock.Mock
	sig     chan os.Signal
	done    chan error
}

// startCollector runs runCollector in the background with a 5s interval and
// a 10s heartbeat. pub may be nil to run without MQTT. relay scripts the
// relay readings.
func startCollector(t *testing.T, ctx context.Context, pub *mqtt.FakePublisher, relay ...hw.SwitchSample) *harness {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(start)

	devs := hw.NewFakeDevices()
	devs.Relay = hw.NewFakeSwitch(relay...)

	cfg := config{Interval: 5 * time.Second, Heartbeat: 10 * time.Second, CSV: "sensor_data.csv"}
	h := &harness{
		devs:    devs,
		rec:     &record.Fake{},
		pub:     pub,
		tracker: status.NewTracker(clk, statusConfig(cfg)),
		clk:     clk,
		sig:     make(chan os.Signal, 1),
		done:    make(chan error, 1),
	}

	d := deps{
		cfg:     cfg,
		devs:    devs,
		rec:     h.rec,
		tracker: h.tracker,
		clk:     clk,
		logger:  logging.NewNop(),
	}
	if pub != nil {
		d.pub = pub
		d.mqttStatus = pub
	}

	go func() { h.done <- runCollector(ctx, d, h.sig) }()
	return h
}

func connected() *mqtt.FakePublisher {
	pub := mqtt.NewFakePublisher()
	pub.Connected = true
	return pub
}

// waitForRecords advances the mock clock until n rows have been recorded.
func (h *harness) waitForRecords(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.rec.Len() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d records, got %d", n, h.rec.Len())
		}
		h.clk.Add(5 * time.Second)
		time.Sleep(time.Millisecond)
	}
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("runCollector did not return")
		return nil
	}
}

func TestRunCollectorLifecycleAndRelayEvents(t *testing.T) {
	h := startCollector(t, context.Background(), connected(),
		hw.SwitchSample{On: true},
		hw.SwitchSample{On: true},
		hw.SwitchSample{On: false},
	)

	h.waitForRecords(t, 4)
	h.sig <- syscall.SIGTERM
	if err := h.wait(t); err != nil {
		t.Fatalf("runCollector returned error: %v", err)
	}

	sys := h.pub.SystemEvents
	if len(sys) < 3 {
		t.Fatalf("expected STARTUP, HEARTBEAT and SHUTDOWN, got %v", h.pub.SystemEventNames())
	}
	if sys[0].Event != "STARTUP" || !sys[0].Retained {
		t.Errorf("first system event: got %q retained=%v, want retained STARTUP", sys[0].Event, sys[0].Retained)
	}
	last := sys[len(sys)-1]
	if last.Event != "SHUTDOWN" {
		t.Errorf("last system event: got %q, want SHUTDOWN", last.Event)
	}
	if last.Reason != "SIGTERM" {
		t.Errorf("shutdown reason: got %q, want SIGTERM", last.Reason)
	}
	if !last.Retained {
		t.Error("expected Retained=true for SHUTDOWN")
	}
	if !strings.Contains(strings.Join(h.pub.SystemEventNames(), ","), "HEARTBEAT") {
		t.Errorf("expected a HEARTBEAT, got %v", h.pub.SystemEventNames())
	}
	for i, e := range sys {
		if strings.Contains(string(e.RawPayload), `"reading"`) || strings.Contains(string(e.RawPayload), "soil_temperature") {
			t.Errorf("system event %d %s carries sensor readings: %s", i, e.Event, e.RawPayload)
		}
	}

	if len(h.pub.Events) != 2 {
		t.Fatalf("expected 2 relay events, got %d", len(h.pub.Events))
	}
	if h.pub.Events[0].Type != mqtt.EventRelayOn {
		t.Errorf("event 0: got %s, want %s", h.pub.Events[0].Type, mqtt.EventRelayOn)
	}
	if h.pub.Events[1].Type != mqtt.EventRelayOff {
		t.Errorf("event 1: got %s, want %s", h.pub.Events[1].Type, mqtt.EventRelayOff)
	}
	if h.pub.Events[1].Counts.On != 1 || h.pub.Events[1].Counts.Off != 1 {
		t.Errorf("event 1 counts: got %+v, want on=1 off=1", h.pub.Events[1].Counts)
	}

	snap := h.tracker.Snapshot()
	if snap.Samples != h.rec.Len() {
		t.Errorf("tracker samples: got %d, want %d", snap.Samples, h.rec.Len())
	}
	if !snap.Ready() {
		t.Errorf("expected all readers ready, got %+v", snap.Readers)
	}
	if !snap.MQTTConnected {
		t.Error("expected MQTT connected in tracker")
	}
	if !h.devs.Relay.(*hw.FakeSwitch).Closed {
		t.Error("expected sensors closed on shutdown")
	}
}

func TestRunCollectorSIGINT(t *testing.T) {
	h := startCollector(t, context.Background(), connected())

	h.waitForRecords(t, 1)
	h.sig <- syscall.SIGINT
	if err := h.wait(t); err != nil {
		t.Fatalf("runCollector returned error: %v", err)
	}

	sys := h.pub.SystemEvents
	if last := sys[len(sys)-1]; last.Event != "SHUTDOWN" || last.Reason != "SIGINT" {
		t.Errorf("last system event: got %s/%s, want SHUTDOWN/SIGINT", last.Event, last.Reason)
	}
	if len(h.pub.Events) != 0 {
		t.Errorf("expected no relay events for a relay that stays off, got %d", len(h.pub.Events))
	}
}

func TestRunCollectorContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := startCollector(t, ctx, connected())

	h.waitForRecords(t, 1)
	cancel()
	if err := h.wait(t); err != nil {
		t.Fatalf("runCollector returned error: %v", err)
	}

	sys := h.pub.SystemEvents
	if last := sys[len(sys)-1]; last.Event != "SHUTDOWN" || last.Reason != "" {
		t.Errorf("last system event: got %s/%q, want SHUTDOWN with no reason", last.Event, last.Reason)
	}
}

func TestRunCollectorPublishErrorsAreNotFatal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pub := connected()
	pub.PublishError = errors.New("broker down")
	pub.PublishSystemError = errors.New("broker down")
	h := startCollector(t, ctx, pub, hw.SwitchSample{On: true})

	h.waitForRecords(t, 3)
	h.sig <- syscall.SIGTERM
	if err := h.wait(t); err != nil {
		t.Fatalf("runCollector returned error: %v", err)
	}
	if len(h.pub.Events) != 0 || len(h.pub.SystemEvents) != 0 {
		t.Errorf("expected nothing recorded by a failing publisher")
	}
}

func TestRunCollectorWithoutMQTT(t *testing.T) {
	h := startCollector(t, context.Background(), nil, hw.SwitchSample{On: true})

	h.waitForRecords(t, 2)
	h.sig <- syscall.SIGTERM
	if err := h.wait(t); err != nil {
		t.Fatalf("runCollector returned error: %v", err)
	}
	if got := h.tracker.Snapshot().Counts.On; got != 1 {
		t.Errorf("tracker counts.On: got %d, want 1", got)
	}
}

// --- one-shot commands ---

func TestPrintState(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(start)
	devs := hw.NewFakeDevices()
	devs.SoilTemperature = &hw.FakeProbe{Samples: []hw.ProbeSample{{Err: errors.New("no 1-wire device")}}}

	var buf bytes.Buffer
	if err := printState(&buf, devs, logging.NewNop(), clk); err != nil {
		t.Fatalf("printState: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"date_time: 2026-03-14 06:00:00\n",
		"soil_temperature: n/a\n",
		"soil_moisture: 0.42\n",
		"air_temperature: 21.00\n",
		"air_humidity: 48.00\n",
		"sunlight_visible: 260.00\n",
		"sunlight_uv: 0.03\n",
		"sunlight_ir: 310.00\n",
		"relay: 0.00\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSwitchRelay(t *testing.T) {
	sw := hw.NewFakeSwitch()
	var buf bytes.Buffer

	if err := switchRelay(&buf, sw, "on", logging.NewNop()); err != nil {
		t.Fatalf("relay on: %v", err)
	}
	if err := switchRelay(&buf, sw, "OFF", logging.NewNop()); err != nil {
		t.Fatalf("relay off: %v", err)
	}

	if got, want := buf.String(), "relay: ON\nrelay: OFF\n"; got != want {
		t.Errorf("output: got %q, want %q", got, want)
	}
	if len(sw.SetCalls) != 2 || !sw.SetCalls[0] || sw.SetCalls[1] {
		t.Errorf("SetCalls: got %v, want [true false]", sw.SetCalls)
	}
}

func TestSwitchRelayRejectsUnknownState(t *testing.T) {
	sw := hw.NewFakeSwitch()
	var buf bytes.Buffer

	err := switchRelay(&buf, sw, "toggle", logging.NewNop())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(sw.SetCalls) != 0 {
		t.Errorf("expected no Set calls, got %v", sw.SetCalls)
	}
}

func TestSwitchRelayInitFailure(t *testing.T) {
	sw := hw.NewFakeSwitch()
	sw.InitError = errors.New("gpiochip0 busy")
	var buf bytes.Buffer

	if err := switchRelay(&buf, sw, "on", logging.NewNop()); err == nil {
		t.Fatal("expected error when the relay cannot be initialised")
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

// --- command line ---

func TestAppRejectsNonPositiveInterval(t *testing.T) {
	for _, v := range []string{"0", "-1"} {
		var buf bytes.Buffer
		err := newApp(&buf).Run([]string{"easyfarmbeats", "--interval", v, "--fake", "--log", "", "state"})
		if err == nil || !strings.Contains(err.Error(), "invalid --interval") {
			t.Errorf("--interval %s: got %v, want invalid interval error", v, err)
		}
	}
}

func TestAppStateWithFakeSensors(t *testing.T) {
	var buf bytes.Buffer
	if err := newApp(&buf).Run([]string{"easyfarmbeats", "--fake", "--log", "", "state"}); err != nil {
		t.Fatalf("state: %v", err)
	}
	if !strings.Contains(buf.String(), "soil_temperature: 18.50\n") {
		t.Errorf("unexpected state output:\n%s", buf.String())
	}
}

func TestAppRelayWithFakeSensors(t *testing.T) {
	var buf bytes.Buffer
	if err := newApp(&buf).Run([]string{"easyfarmbeats", "--fake", "--log", "", "relay", "on"}); err != nil {
		t.Fatalf("relay on: %v", err)
	}
	if got := buf.String(); got != "relay: ON\n" {
		t.Errorf("output: got %q, want %q", got, "relay: ON\n")
	}
}
