package events

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// EventType tags the inbound event union consumed by the turn reducer.
type EventType string

const (
	EventTypeTextDelta     EventType = "text_delta"
	EventTypeMessageUpsert EventType = "message_upsert"
	EventTypeRunStatus     EventType = "run_status"
)

// Wire event names as emitted by the agent-service stream.
const (
	WireMessagesDelta  = "messages.delta"
	WireMessagesUpsert = "messages.upsert"
	WireRunStatus      = "run.status"
)

// ErrUnknownEventName marks wire frames the reducer does not consume. Callers
// drop these silently (forward compatibility).
var ErrUnknownEventName = errors.New("unknown event name")

// MessageRole is the role field of an upsert payload.
type MessageRole string

const (
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
	RoleUser      MessageRole = "user"
	RoleSystem    MessageRole = "system"
)

// MessageStatus is the per-message status of an upsert payload.
type MessageStatus string

const (
	MessageInProgress MessageStatus = "in_progress"
	MessageFinal      MessageStatus = "final"
	MessageFailed     MessageStatus = "failed"
	MessageCanceled   MessageStatus = "canceled"
)

// RunStatus is the status field of a run.status payload.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCanceled  RunStatus = "canceled"
)

// Success reports whether the status is one of the vendor synonyms for a
// successfully completed run.
func (s RunStatus) Success() bool {
	switch s {
	case RunSucceeded, "completed", "success", "finished", "done":
		return true
	}
	return false
}

// Terminal reports whether the status ends the run.
func (s RunStatus) Terminal() bool {
	return s.Success() || s == RunFailed || s == RunCanceled
}

// ContentBlock is one entry of an upsert's content_json.content array.
// Type is "text" or "tool_use".
type ContentBlock struct {
	Type  string         `json:"type"`
	Text  string         `json:"text,omitempty"`
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`
}

// EventMetadata carries the correlation identifiers present on every wire
// frame.
type EventMetadata struct {
	RunID          string `json:"run_id,omitempty"`
	TurnID         string `json:"turn_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	Seq            int    `json:"seq,omitempty"`
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	if em.RunID != "" {
		e.Str("run_id", em.RunID)
	}
	if em.TurnID != "" {
		e.Str("turn_id", em.TurnID)
	}
	if em.ConversationID != "" {
		e.Str("conversation_id", em.ConversationID)
	}
	if em.MessageID != "" {
		e.Str("message_id", em.MessageID)
	}
	if em.Seq != 0 {
		e.Int("seq", em.Seq)
	}
}

// Event is an inbound stream event after decoding at the transport boundary.
type Event interface {
	Type() EventType
	Metadata() EventMetadata
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta"`
}

func (e *EventImpl) Type() EventType         { return e.Type_ }
func (e *EventImpl) Metadata() EventMetadata { return e.Metadata_ }

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

// EventTextDelta is an incremental chunk of assistant output text.
type EventTextDelta struct {
	EventImpl
	Delta      string `json:"delta"`
	Offset     int    `json:"offset,omitempty"`
	TextLength int    `json:"text_length,omitempty"`
}

var _ Event = &EventTextDelta{}

func NewTextDeltaEvent(meta EventMetadata, delta string) *EventTextDelta {
	return &EventTextDelta{
		EventImpl: EventImpl{Type_: EventTypeTextDelta, Metadata_: meta},
		Delta:     delta,
	}
}

func (e EventTextDelta) MarshalZerologObject(ev *zerolog.Event) {
	e.EventImpl.MarshalZerologObject(ev)
	ev.Int("delta_len", len(e.Delta))
}

// EventMessageUpsert is a full-message snapshot: an assistant message that may
// carry tool_use content blocks, or a tool message carrying a tool result.
type EventMessageUpsert struct {
	EventImpl
	Role          MessageRole    `json:"role"`
	Status        MessageStatus  `json:"status"`
	ContentText   string         `json:"content_text,omitempty"`
	ContentBlocks []ContentBlock `json:"content_blocks,omitempty"`
	ToolCallID    string         `json:"tool_call_id,omitempty"`
	ToolName      string         `json:"tool_name,omitempty"`
	SkillKey      string         `json:"skill_key,omitempty"`
}

var _ Event = &EventMessageUpsert{}

func NewMessageUpsertEvent(meta EventMetadata) *EventMessageUpsert {
	return &EventMessageUpsert{
		EventImpl: EventImpl{Type_: EventTypeMessageUpsert, Metadata_: meta},
	}
}

// ToolUseBlocks returns the tool_use content blocks carrying a tool call id.
func (e *EventMessageUpsert) ToolUseBlocks() []ContentBlock {
	var out []ContentBlock
	for _, b := range e.ContentBlocks {
		if b.Type == "tool_use" && b.ID != "" {
			out = append(out, b)
		}
	}
	return out
}

func (e EventMessageUpsert) MarshalZerologObject(ev *zerolog.Event) {
	e.EventImpl.MarshalZerologObject(ev)
	ev.Str("role", string(e.Role)).Str("status", string(e.Status))
	if e.ToolCallID != "" {
		ev.Str("tool_call_id", e.ToolCallID)
	}
	if e.ToolName != "" {
		ev.Str("tool_name", e.ToolName)
	}
}

// EventRunStatus reports a run-level status transition.
type EventRunStatus struct {
	EventImpl
	Status RunStatus `json:"status"`
}

var _ Event = &EventRunStatus{}

func NewRunStatusEvent(meta EventMetadata, status RunStatus) *EventRunStatus {
	return &EventRunStatus{
		EventImpl: EventImpl{Type_: EventTypeRunStatus, Metadata_: meta},
		Status:    status,
	}
}

func (e EventRunStatus) MarshalZerologObject(ev *zerolog.Event) {
	e.EventImpl.MarshalZerologObject(ev)
	ev.Str("status", string(e.Status))
}

// wireEnvelope covers the correlation fields shared by all frame payloads.
type wireEnvelope struct {
	RunID          string `json:"run_id"`
	TurnID         string `json:"turn_id"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Seq            int    `json:"seq"`
}

func (w wireEnvelope) metadata() EventMetadata {
	return EventMetadata{
		RunID:          w.RunID,
		TurnID:         w.TurnID,
		ConversationID: w.ConversationID,
		MessageID:      w.MessageID,
		Seq:            w.Seq,
	}
}

// NewEventFromWire decodes a wire frame into a typed Event. Unknown event
// names return ErrUnknownEventName; malformed payloads return a decode error.
// Either way the caller drops the frame: a frame that cannot be decoded is
// equivalent to one that never arrived.
func NewEventFromWire(name string, payload []byte) (Event, error) {
	switch name {
	case WireMessagesDelta:
		var wire struct {
			wireEnvelope
			Delta      string `json:"delta"`
			Offset     int    `json:"offset"`
			TextLength int    `json:"text_length"`
		}
		if err := json.Unmarshal(payload, &wire); err != nil {
			return nil, errors.Wrap(err, "decoding messages.delta")
		}
		ev := NewTextDeltaEvent(wire.metadata(), wire.Delta)
		ev.Offset = wire.Offset
		ev.TextLength = wire.TextLength
		return ev, nil

	case WireMessagesUpsert:
		var wire struct {
			wireEnvelope
			Role        string `json:"role"`
			Status      string `json:"status"`
			ContentText string `json:"content_text"`
			ContentJSON *struct {
				Role    string         `json:"role"`
				Content []ContentBlock `json:"content"`
			} `json:"content_json"`
			ToolCallID string `json:"tool_call_id"`
			ToolName   string `json:"tool_name"`
			SkillKey   string `json:"skill_key"`
		}
		if err := json.Unmarshal(payload, &wire); err != nil {
			return nil, errors.Wrap(err, "decoding messages.upsert")
		}
		ev := NewMessageUpsertEvent(wire.metadata())
		ev.Role = MessageRole(wire.Role)
		ev.Status = MessageStatus(wire.Status)
		ev.ContentText = wire.ContentText
		ev.ToolCallID = wire.ToolCallID
		ev.ToolName = wire.ToolName
		ev.SkillKey = wire.SkillKey
		if wire.ContentJSON != nil {
			ev.ContentBlocks = wire.ContentJSON.Content
		}
		return ev, nil

	case WireRunStatus:
		var wire struct {
			wireEnvelope
			Status string `json:"status"`
		}
		if err := json.Unmarshal(payload, &wire); err != nil {
			return nil, errors.Wrap(err, "decoding run.status")
		}
		return NewRunStatusEvent(wire.metadata(), RunStatus(wire.Status)), nil
	}

	return nil, errors.Wrapf(ErrUnknownEventName, "%s", name)
}
