// Package publisher delivers engine state events to the presentation layer:
// websocket subscribers, an MQTT broker, an InfluxDB bucket and metrics.
package publisher

import "printer_monitor/internal/models"

// Publisher receives state events. Implementations must not block the caller
// for long and must be safe for concurrent use.
type Publisher interface {
	Publish(ev models.StateEvent)
}

// Func adapts a plain function to Publisher.
type Func func(ev models.StateEvent)

func (f Func) Publish(ev models.StateEvent) { f(ev) }

// Multi fans one event out to several publishers, in order. Nil entries are skipped.
type Multi []Publisher

func (m Multi) Publish(ev models.StateEvent) {
	for _, p := range m {
		if p != nil {
			p.Publish(ev)
		}
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(models.StateEvent) {}
