//go:build linux

package hw

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

const (
	dhtStartPulse = 18 * time.Millisecond
	dhtCapture    = 8 * time.Millisecond
)

// DHT11 reads a DHT11 on a single GPIO line. The start pulse is driven from
// userspace and the response is decoded from kernel edge timestamps, so the
// reader's scheduling jitter does not matter.
type DHT11 struct {
	chip   string
	offset int
	ready  bool
}

// NewDHT11 creates a DHT11 reader on the given chip and BCM offset.
func NewDHT11(chip string, offset int) *DHT11 {
	return &DHT11{chip: chip, offset: offset}
}

// Init checks that the line can be requested.
func (d *DHT11) Init() error {
	line, err := gpiocdev.RequestLine(d.chip, d.offset, gpiocdev.AsInput)
	if err != nil {
		d.ready = false
		return fmt.Errorf("request dht11 pin %d: %w", d.offset, err)
	}
	line.Close()
	d.ready = true
	return nil
}

// Read performs one measurement.
func (d *DHT11) Read() (float64, float64, error) {
	if !d.ready {
		return 0, 0, fmt.Errorf("read dht11 pin %d: not initialised", d.offset)
	}

	// Start signal: hold the bus low, then release it to the pull-up.
	out, err := gpiocdev.RequestLine(d.chip, d.offset, gpiocdev.AsOutput(0))
	if err != nil {
		return 0, 0, fmt.Errorf("dht11 start pulse: %w", err)
	}
	time.Sleep(dhtStartPulse)
	out.Close()

	var (
		mu    sync.Mutex
		edges []edge
	)
	handler := func(evt gpiocdev.LineEvent) {
		mu.Lock()
		edges = append(edges, edge{
			at:     evt.Timestamp,
			rising: evt.Type == gpiocdev.LineEventRisingEdge,
		})
		mu.Unlock()
	}
	in, err := gpiocdev.RequestLine(d.chip, d.offset,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(handler))
	if err != nil {
		return 0, 0, fmt.Errorf("dht11 capture: %w", err)
	}
	time.Sleep(dhtCapture)
	in.Close()

	mu.Lock()
	defer mu.Unlock()
	h, t, err := decodeDHT11(highPulses(edges))
	if err != nil {
		return 0, 0, fmt.Errorf("read dht11 pin %d: %w", d.offset, err)
	}
	return h, t, nil
}

// Close is a no-op; lines are only held during a read.
func (d *DHT11) Close() error {
	d.ready = false
	return nil
}
