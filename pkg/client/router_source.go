package client

import (
	"context"

	"github.com/eva-chat/turnstream/pkg/events"
)

// RouterSource delivers run events from an in-process EventRouter. It backs
// the script player and the tests; the wire contract (frame names, payloads,
// close semantics) matches the SSE transport.
type RouterSource struct {
	Router *events.EventRouter
}

var _ RunEventSource = (*RouterSource)(nil)

func NewRouterSource(router *events.EventRouter) *RouterSource {
	return &RouterSource{Router: router}
}

// Subscribe attaches to the run's topic. The subscription ends cleanly
// (OnClose) when the router's pub/sub is closed; cancellation fires no
// further callbacks.
func (r *RouterSource) Subscribe(ctx context.Context, runID string, cb Callbacks) (CancelFunc, error) {
	ctx, cancel := context.WithCancel(ctx)

	ch, err := r.Router.Subscriber.Subscribe(ctx, events.RunTopic(runID))
	if err != nil {
		cancel()
		return nil, err
	}

	go func() {
		if cb.OnOpen != nil {
			cb.OnOpen()
		}
		for msg := range ch {
			name := msg.Metadata.Get(events.WireNameMetadataKey)
			if cb.OnMessage != nil {
				cb.OnMessage(name, msg.Payload)
			}
			msg.Ack()
		}
		if ctx.Err() != nil {
			return
		}
		if cb.OnClose != nil {
			cb.OnClose()
		}
	}()

	return CancelFunc(cancel), nil
}
