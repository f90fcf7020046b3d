package sensor

import (
	"fmt"

	"github.com/rachmann-alexander/easyfarmbeats/internal/hw"
	"github.com/rachmann-alexander/easyfarmbeats/internal/logging"
	"github.com/rachmann-alexander/easyfarmbeats/internal/logic"
)

// Relay reports the relay output as RelayOff/RelayOn and can drive it.
type Relay struct {
	base
	sw hw.Switch
}

// NewRelay creates the relay reader.
func NewRelay(sw hw.Switch, logger logging.Logger) *Relay {
	r := &Relay{
		base: newBase("relay", sw, logger),
		sw:   sw,
	}
	r.init()
	return r
}

// Value reads the relay state.
func (r *Relay) Value() logic.Value {
	var on bool
	ok := r.read(func() (err error) {
		on, err = r.sw.Read()
		return err
	})
	if !ok {
		return logic.None
	}
	if on {
		return logic.Some(logic.RelayOn)
	}
	return logic.Some(logic.RelayOff)
}

// Read implements Reader.
func (r *Relay) Read(snap *logic.Snapshot) {
	snap.Relay = r.Value()
}

// TurnOn switches the relay on. It returns ErrNotReady if the relay is not
// initialised.
func (r *Relay) TurnOn() error {
	return r.set(true)
}

// TurnOff switches the relay off. It returns ErrNotReady if the relay is not
// initialised.
func (r *Relay) TurnOff() error {
	return r.set(false)
}

func (r *Relay) set(on bool) error {
	if !r.ready {
		return ErrNotReady
	}
	if err := guard(func() error { return r.sw.Set(on) }); err != nil {
		r.logger.Warnf("%s: set: %v", r.name, err)
		r.ready = false
		return fmt.Errorf("set relay: %w", err)
	}
	return nil
}
