package hw

import (
	"errors"
	"fmt"
	"time"
)

// DHT11 frames are 40 bits: humidity int, humidity dec, temperature int,
// temperature dec, checksum. A bit is signalled by the length of the high
// pulse that follows each 50µs low: ~27µs for 0, ~70µs for 1.
const (
	dhtBits      = 40
	dhtThreshold = 50 * time.Microsecond
)

// ErrShortFrame is returned when fewer than 40 data pulses were captured.
var ErrShortFrame = errors.New("dht11: short frame")

// ErrChecksum is returned when the frame checksum does not match.
var ErrChecksum = errors.New("dht11: checksum mismatch")

// edge is one observed level change on the data line.
type edge struct {
	at     time.Duration
	rising bool
}

// highPulses returns the duration of every rising-to-falling interval.
func highPulses(edges []edge) []time.Duration {
	var pulses []time.Duration
	var riseAt time.Duration
	risen := false
	for _, e := range edges {
		if e.rising {
			riseAt = e.at
			risen = true
			continue
		}
		if risen {
			pulses = append(pulses, e.at-riseAt)
			risen = false
		}
	}
	return pulses
}

// decodeDHT11 turns captured high pulses into humidity and temperature.
// Only the last 40 pulses are used so a partially captured preamble is
// tolerated.
func decodeDHT11(pulses []time.Duration) (humidity, temperature float64, err error) {
	if len(pulses) < dhtBits {
		return 0, 0, fmt.Errorf("%w: %d pulses", ErrShortFrame, len(pulses))
	}
	pulses = pulses[len(pulses)-dhtBits:]

	var b [5]byte
	for i, p := range pulses {
		b[i/8] <<= 1
		if p > dhtThreshold {
			b[i/8] |= 1
		}
	}

	if b[0]+b[1]+b[2]+b[3] != b[4] {
		return 0, 0, fmt.Errorf("%w: % x", ErrChecksum, b)
	}

	humidity = float64(b[0]) + float64(b[1])/10
	temperature = float64(b[2]) + float64(b[3]&0x7f)/10
	if b[3]&0x80 != 0 {
		temperature = -temperature
	}
	return humidity, temperature, nil
}
