package eventbus

import (
	"context"

	"github.com/agrovault/trialbase/pkg/eventbus"
	"github.com/agrovault/trialbase/pkg/outbox"
)

// Dispatcher bridges relayed outbox messages onto the in-process bus.
type Dispatcher struct {
	bus eventbus.EventBusWithError
}

func New(bus eventbus.EventBusWithError) *Dispatcher {
	return &Dispatcher{
		bus: bus,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, msg outbox.DispatchedMessage) error {
	_ = ctx
	// PublishE surfaces handler errors and panics so the relay can retry.
	// Subscribers take (*outbox.Meta, string, json.RawMessage) with an
	// optional error return.
	return d.bus.PublishE(&msg.Meta, msg.Meta.Topic, msg.Payload)
}
