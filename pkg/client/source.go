// Package client provides the event-source side of the run stream: the HTTP
// SSE transport against the agent service, and a watermill-backed in-memory
// source used by tests and the script player. Both deliver raw wire frames;
// decoding into typed events happens once in the consumer.
package client

import (
	"context"

	"github.com/google/uuid"
)

// Callbacks receives the lifecycle of one run-event subscription. OnMessage
// delivers the wire event name and the raw JSON payload of each frame, in
// arrival order.
type Callbacks struct {
	OnOpen    func()
	OnMessage func(eventName string, payload []byte)
	OnError   func(err error)
	OnClose   func()
}

// CancelFunc tears down a subscription. After cancellation no further
// callbacks fire, including OnClose.
type CancelFunc func()

// RunEventSource opens a streaming subscription for one run's events.
type RunEventSource interface {
	Subscribe(ctx context.Context, runID string, cb Callbacks) (CancelFunc, error)
}

// Attachment describes a file attached to an outgoing user message.
type Attachment struct {
	Name string `json:"name"`
	Type string `json:"type"` // image | document
	Size int64  `json:"size"`
	URL  string `json:"url,omitempty"`
}

// RunHandle identifies a newly created run.
type RunHandle struct {
	RunID          string
	ConversationID string
}

// RunStarter creates and cancels runs on the backend.
type RunStarter interface {
	StartRun(ctx context.Context, message string, attachments []Attachment, conversationID string) (RunHandle, error)
	CancelRun(ctx context.Context, runID string) error
}

// LocalStarter mints run ids locally with no backend; used with the
// in-memory event source.
type LocalStarter struct{}

func (LocalStarter) StartRun(_ context.Context, _ string, _ []Attachment, conversationID string) (RunHandle, error) {
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	return RunHandle{RunID: uuid.NewString(), ConversationID: conversationID}, nil
}

func (LocalStarter) CancelRun(context.Context, string) error {
	return nil
}
