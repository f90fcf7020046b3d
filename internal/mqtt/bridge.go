package mqtt

import (
	"github.com/rachmann-alexander/easyfarmbeats/internal/logging"
	"github.com/rachmann-alexander/easyfarmbeats/internal/logic"
)

// Bridge publishes relay transitions seen by the collection loop.
type Bridge struct {
	pub    Publisher
	logger logging.Logger
}

// NewBridge creates a Bridge publishing through pub.
func NewBridge(pub Publisher, logger logging.Logger) *Bridge {
	return &Bridge{pub: pub, logger: logger}
}

// Observe publishes an event if s carries a relay transition. Publish
// failures are logged and never stop collection.
func (b *Bridge) Observe(s logic.Snapshot, counts logic.TransitionCounts) {
	event, ok := EventFromSnapshot(s, counts)
	if !ok {
		return
	}
	if err := b.pub.Publish(event); err != nil {
		b.logger.Warnf("mqtt: publish %s: %v", event.Type, err)
		return
	}
	b.logger.Debugf("mqtt: published %s", event.Type)
}
