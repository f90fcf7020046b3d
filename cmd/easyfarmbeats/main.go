// Command easyfarmbeats samples the FarmBeats sensor kit, smooths the
// readings and appends one CSV row per sample.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/urfave/cli/v2"

	"github.com/rachmann-alexander/easyfarmbeats/internal/hw"
	"github.com/rachmann-alexander/easyfarmbeats/internal/logging"
	"github.com/rachmann-alexander/easyfarmbeats/internal/logic"
	"github.com/rachmann-alexander/easyfarmbeats/internal/mqtt"
	"github.com/rachmann-alexander/easyfarmbeats/internal/poll"
	"github.com/rachmann-alexander/easyfarmbeats/internal/record"
	"github.com/rachmann-alexander/easyfarmbeats/internal/sensor"
	"github.com/rachmann-alexander/easyfarmbeats/internal/status"
	"github.com/rachmann-alexander/easyfarmbeats/internal/web"
)

const envPrefix = "EASYFARMBEATS_"

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func newApp(stdout io.Writer) *cli.App {
	return &cli.App{
		Name:   "easyfarmbeats",
		Usage:  "FarmBeats sensor data collector",
		Writer: stdout,
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "interval", Value: 5.0, Usage: "polling interval in seconds", EnvVars: env("INTERVAL")},
			&cli.StringFlag{Name: "csv", Value: record.DefaultPath, Usage: "path to CSV output file", EnvVars: env("CSV")},
			&cli.StringFlag{Name: "log", Value: "sensor_collector.log", Usage: "path to log file (empty to disable)", EnvVars: env("LOG")},
			&cli.BoolFlag{Name: "debug", Usage: "log every collected row", EnvVars: env("DEBUG")},
			&cli.BoolFlag{Name: "fake", Usage: "use scripted fake sensors instead of hardware", EnvVars: env("FAKE")},
			&cli.StringFlag{Name: "broker", Usage: "MQTT broker for relay and lifecycle events (empty to disable)", EnvVars: env("BROKER")},
			&cli.DurationFlag{Name: "heartbeat", Value: 15 * time.Minute, Usage: "heartbeat interval (0 to disable)", EnvVars: env("HEARTBEAT")},
			&cli.StringFlag{Name: "http", Usage: "HTTP status address, e.g. :8080 (empty to disable)", EnvVars: env("HTTP")},
			&cli.StringFlag{Name: "gpio-chip", Value: hw.DefaultChip, Usage: "GPIO character device"},
			&cli.IntFlag{Name: "pin-dht", Value: hw.DefaultPinDHT, Usage: "BCM pin of the DHT11"},
			&cli.IntFlag{Name: "pin-relay", Value: hw.DefaultPinRelay, Usage: "BCM pin of the relay"},
			&cli.StringFlag{Name: "i2c-bus", Usage: "I2C bus name (empty selects the first bus)"},
			&cli.StringFlag{Name: "w1-dir", Value: hw.DefaultW1Dir, Usage: "1-Wire sysfs device directory"},
		},
		Action: runCommand,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "collect readings until interrupted (default)",
				Action: runCommand,
			},
			{
				Name:   "state",
				Usage:  "print one reading of every sensor and exit",
				Action: stateCommand,
			},
			{
				Name:      "relay",
				Usage:     "switch the relay",
				ArgsUsage: "on|off",
				Action:    relayCommand,
			},
		},
	}
}

func env(name string) []string {
	return []string{envPrefix + name}
}

// config is the resolved command line.
type config struct {
	Interval  time.Duration
	CSV       string
	Log       string
	Debug     bool
	Fake      bool
	Broker    string
	Heartbeat time.Duration
	HTTP      string
	HW        hw.Config
}

func configFrom(c *cli.Context) (config, error) {
	secs := c.Float64("interval")
	if secs <= 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return config{}, fmt.Errorf("invalid --interval %v: must be a positive number of seconds", secs)
	}

	hwCfg := hw.DefaultConfig()
	hwCfg.Chip = c.String("gpio-chip")
	hwCfg.PinDHT = c.Int("pin-dht")
	hwCfg.PinRelay = c.Int("pin-relay")
	hwCfg.I2CBus = c.String("i2c-bus")
	hwCfg.W1Dir = c.String("w1-dir")

	return config{
		Interval:  time.Duration(secs * float64(time.Second)),
		CSV:       c.String("csv"),
		Log:       c.String("log"),
		Debug:     c.Bool("debug"),
		Fake:      c.Bool("fake"),
		Broker:    c.String("broker"),
		Heartbeat: c.Duration("heartbeat"),
		HTTP:      c.String("http"),
		HW:        hwCfg,
	}, nil
}

func openDevices(cfg config) hw.Devices {
	if cfg.Fake {
		return hw.NewFakeDevices()
	}
	return hw.NewDevices(cfg.HW)
}

func statusConfig(cfg config) status.Config {
	return status.Config{
		IntervalMs:  cfg.Interval.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		CSVPath:     cfg.CSV,
		LogPath:     cfg.Log,
		Broker:      cfg.Broker,
		HTTPPort:    cfg.HTTP,
		Fake:        cfg.Fake,
	}
}

func runCommand(c *cli.Context) error {
	cfg, err := configFrom(c)
	if err != nil {
		return err
	}

	logger, closeLog := logging.New("easyfarmbeats", logging.Config{File: cfg.Log, Debug: cfg.Debug})
	defer closeLog()

	logBanner(logger, cfg)

	rec, err := record.NewCSV(cfg.CSV)
	if err != nil {
		return fmt.Errorf("init csv: %w", err)
	}

	clk := clock.New()
	tracker := status.NewTracker(clk, statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	d := deps{
		cfg:     cfg,
		devs:    openDevices(cfg),
		rec:     rec,
		tracker: tracker,
		clk:     clk,
		logger:  logger,
	}

	if cfg.Broker != "" {
		publisher := mqtt.NewRealPublisher(cfg.Broker, logger)
		defer publisher.Close()
		d.pub = publisher
		d.mqttStatus = publisher
	}

	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker, logger)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Infof("http status server listening on %s", cfg.HTTP)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return runCollector(c.Context, d, sigCh)
}

func logBanner(logger logging.Logger, cfg config) {
	rule := strings.Repeat("=", 60)
	logger.Info(rule)
	logger.Info("FarmBeats Sensor Data Collector Starting")
	logger.Info(rule)
	logger.Infof("CSV output file: %s", cfg.CSV)
	logger.Infof("Log file: %s", cfg.Log)
	logger.Infof("Polling interval: %v seconds", cfg.Interval.Seconds())
	if cfg.Fake {
		logger.Warn("using fake sensors")
	}
}

// deps is everything runCollector needs. pub may be nil to disable MQTT.
type deps struct {
	cfg        config
	devs       hw.Devices
	rec        poll.Recorder
	pub        mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	clk        clock.Clock
	logger     logging.Logger
}

// runCollector runs the collection loop until a signal arrives, ctx is done
// or the loop hits a fatal fault. STARTUP and SHUTDOWN events bracket the run.
func runCollector(ctx context.Context, d deps, sig <-chan os.Signal) error {
	logger := d.logger

	sensors := sensor.New(d.devs, logger, d.clk)
	defer func() {
		if err := sensors.Close(); err != nil {
			logger.Warnf("close sensors: %v", err)
		}
	}()

	readers := sensors.Readers()
	reportReaders := func() { d.tracker.SetReaders(readiness(readers)) }
	reportReaders()

	publishSystem := func(event, reason string, retained bool) {
		if d.pub == nil {
			return
		}
		if d.mqttStatus != nil {
			d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
		}
		snap := d.tracker.Snapshot()
		ev := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      event,
			Reason:     reason,
			Retained:   retained,
			RawPayload: status.FormatStatusEvent(snap, event, reason),
		}
		if err := d.pub.PublishSystem(ev); err != nil {
			logger.Warnf("failed to publish %s event: %v", strings.ToLower(event), err)
			return
		}
		logger.Infof("published %s event", strings.ToLower(event))
	}

	observers := []poll.Observer{
		d.tracker,
		poll.ObserverFunc(func(logic.Snapshot, logic.TransitionCounts) { reportReaders() }),
	}
	if d.pub != nil {
		observers = append(observers, mqtt.NewBridge(d.pub, logger))
	}

	poller := poll.New(readers, d.rec, poll.Config{
		Interval:  d.cfg.Interval,
		Heartbeat: d.cfg.Heartbeat,
		OnHeartbeat: func(hb logic.HeartbeatData) {
			logger.Infof("heartbeat: uptime=%v relay_on=%d relay_off=%d", hb.Uptime, hb.Counts.On, hb.Counts.Off)
			if net := readNetworkInfo(); net != nil {
				d.tracker.SetNetwork(net)
			}
			publishSystem("HEARTBEAT", "", false)
		},
	}, d.clk, logger, observers...)

	publishSystem("STARTUP", "", true)

	reasons := make(chan string, 1)
	done := make(chan struct{})
	go func() {
		select {
		case s := <-sig:
			logger.Infof("received %v, shutting down", s)
			reasons <- signalName(s)
			poller.Stop()
		case <-done:
		}
	}()

	runErr := poller.Run(ctx)
	close(done)

	reason := ""
	select {
	case reason = <-reasons:
	default:
	}
	if runErr != nil {
		reason = "FATAL"
	}
	publishSystem("SHUTDOWN", reason, true)

	logger.Info(strings.Repeat("=", 60))
	return runErr
}

func readiness(readers []sensor.Reader) []status.ReaderStatus {
	out := make([]status.ReaderStatus, 0, len(readers))
	for _, r := range readers {
		out = append(out, status.ReaderStatus{Name: r.Name(), Ready: r.Ready()})
	}
	return out
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func stateCommand(c *cli.Context) error {
	cfg, err := configFrom(c)
	if err != nil {
		return err
	}
	logger, closeLog := logging.New("easyfarmbeats", logging.Config{Debug: cfg.Debug})
	defer closeLog()

	return printState(c.App.Writer, openDevices(cfg), logger, clock.New())
}

// printState takes one reading of every sensor without recording it.
func printState(w io.Writer, devs hw.Devices, logger logging.Logger, clk clock.Clock) error {
	sensors := sensor.New(devs, logger, clk)
	defer sensors.Close()

	snap := poll.New(sensors.Readers(), record.Discard{}, poll.Config{}, clk, logger).Tick()

	fmt.Fprintf(w, "date_time: %s\n", snap.Time.Format(logic.TimeLayout))
	for _, f := range snap.Fields() {
		v := f.Value.String()
		if v == "" {
			v = "n/a"
		}
		fmt.Fprintf(w, "%s: %s\n", f.Name, v)
	}
	return nil
}

func relayCommand(c *cli.Context) error {
	cfg, err := configFrom(c)
	if err != nil {
		return err
	}
	logger, closeLog := logging.New("easyfarmbeats", logging.Config{Debug: cfg.Debug})
	defer closeLog()

	return switchRelay(c.App.Writer, openDevices(cfg).Relay, c.Args().First(), logger)
}

// switchRelay drives the relay to arg ("on" or "off") and prints the
// resulting state.
func switchRelay(w io.Writer, sw hw.Switch, arg string, logger logging.Logger) error {
	relay := sensor.NewRelay(sw, logger)
	defer relay.Close()

	var err error
	switch strings.ToLower(arg) {
	case "on":
		err = relay.TurnOn()
	case "off":
		err = relay.TurnOff()
	default:
		return fmt.Errorf("relay: want on or off, got %q", arg)
	}
	if err != nil {
		return fmt.Errorf("relay %s: %w", arg, err)
	}

	fmt.Fprintf(w, "relay: %s\n", stateString(relay.Value()))
	return nil
}

func stateString(v logic.Value) string {
	switch {
	case !v.Valid:
		return "UNKNOWN"
	case v.Float == logic.RelayOn:
		return "ON"
	}
	return "OFF"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
