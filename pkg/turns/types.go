package turns

import (
	"time"

	"github.com/rs/zerolog"
)

// Status is the lifecycle state of a Turn. Complete, Failed and Canceled are
// terminal: no event may mutate a Turn once it reached one of them.
type Status string

const (
	StatusPending   Status = "pending"
	StatusStreaming Status = "streaming"
	StatusComplete  Status = "complete"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Terminal reports whether no further event may mutate a Turn in this status.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed || s == StatusCanceled
}

// DisplayMode is a derived presentation hint, never authoritative state. It is
// computed by the reveal policy (for buffered text) and by the reducer's
// terminal transitions.
type DisplayMode string

const (
	DisplayLoading   DisplayMode = "loading"
	DisplayProcess   DisplayMode = "process"
	DisplayStreaming DisplayMode = "streaming"
	DisplayResult    DisplayMode = "result"
)

// ItemKind tags the ProcessItem variant.
type ItemKind string

const (
	ItemText       ItemKind = "text"
	ItemToolCall   ItemKind = "tool_call"
	ItemToolResult ItemKind = "tool_result"
)

// ToolCallStatus is the stored status of a tool_call or tool_result item.
// There is deliberately no persisted "interrupted" value; that disposition is
// derived at render time (see Disposition).
type ToolCallStatus string

const (
	ToolRunning ToolCallStatus = "running"
	ToolDone    ToolCallStatus = "done"
	ToolFailed  ToolCallStatus = "failed"
)

// ProcessItem is one recorded step in a Turn's execution narrative: narration
// text, a tool invocation, or a tool result. Results pair with calls by
// ToolCallID, never by slice position.
type ProcessItem struct {
	Kind ItemKind `yaml:"kind" json:"kind"`

	// ItemText
	Text string `yaml:"text,omitempty" json:"text,omitempty"`

	// ItemToolCall and ItemToolResult
	ToolName   string         `yaml:"tool_name,omitempty" json:"tool_name,omitempty"`
	SkillKey   string         `yaml:"skill_key,omitempty" json:"skill_key,omitempty"`
	Status     ToolCallStatus `yaml:"status,omitempty" json:"status,omitempty"`
	ToolCallID string         `yaml:"tool_call_id,omitempty" json:"tool_call_id,omitempty"`

	// ItemToolCall only
	Input map[string]any `yaml:"input,omitempty" json:"input,omitempty"`

	// ItemToolResult only
	Content string `yaml:"content,omitempty" json:"content,omitempty"`
}

// Turn is the unit of one assistant response to one user message.
type Turn struct {
	TurnID      string      `yaml:"turn_id" json:"turn_id"`
	Status      Status      `yaml:"status" json:"status"`
	DisplayMode DisplayMode `yaml:"display_mode" json:"display_mode"`

	// ProcessItems is append-only except for in-place status updates.
	ProcessItems []ProcessItem `yaml:"process_items,omitempty" json:"process_items,omitempty"`

	// PendingText buffers not-yet-finalized output. It is cleared exactly when
	// its content is promoted into a text ProcessItem or into FinalResult.
	PendingText string `yaml:"pending_text,omitempty" json:"pending_text,omitempty"`

	// FinalResult is the confirmed terminal answer, set once on confirmation.
	FinalResult string `yaml:"final_result,omitempty" json:"final_result,omitempty"`

	// HasToolCall latches true on the first observed tool invocation.
	HasToolCall bool `yaml:"has_tool_call,omitempty" json:"has_tool_call,omitempty"`

	// IsResultConfirmed latches true once the run outcome is confirmed; all
	// further content-bearing events are ignored afterwards.
	IsResultConfirmed bool `yaml:"is_result_confirmed,omitempty" json:"is_result_confirmed,omitempty"`

	// ProcessedIDs records applied tool-call ids (and their result_<id>
	// counterparts) so redelivered events are absorbed as no-ops.
	ProcessedIDs map[string]bool `yaml:"processed_ids,omitempty" json:"processed_ids,omitempty"`

	// Smart reveal-policy bookkeeping. BufferStart is the arrival time of the
	// first text delta; StreamLatched pins DisplayStreaming once tripped.
	BufferStart   time.Time `yaml:"buffer_start,omitempty" json:"buffer_start,omitempty"`
	StreamLatched bool      `yaml:"stream_latched,omitempty" json:"stream_latched,omitempty"`
}

// New creates a Turn in pending state with all content fields empty.
func New(turnID string) *Turn {
	return &Turn{
		TurnID:       turnID,
		Status:       StatusPending,
		DisplayMode:  DisplayLoading,
		ProcessItems: []ProcessItem{},
		ProcessedIDs: map[string]bool{},
	}
}

// Clone returns a deep copy suitable for mutation without affecting the
// original. Item Input maps are copied shallowly (values are never mutated
// after decode).
func (t *Turn) Clone() *Turn {
	if t == nil {
		return nil
	}
	out := *t
	out.ProcessItems = make([]ProcessItem, len(t.ProcessItems))
	copy(out.ProcessItems, t.ProcessItems)
	out.ProcessedIDs = make(map[string]bool, len(t.ProcessedIDs))
	for k, v := range t.ProcessedIDs {
		out.ProcessedIDs[k] = v
	}
	return &out
}

// HasOutput reports whether the Turn has any visible answer text.
func (t *Turn) HasOutput() bool {
	return t.PendingText != "" || t.FinalResult != ""
}

// Processed reports whether the given id was already applied.
func (t *Turn) Processed(id string) bool {
	return t.ProcessedIDs[id]
}

// ResultKey derives the ProcessedIDs key recording a tool result for id.
func ResultKey(toolCallID string) string {
	return "result_" + toolCallID
}

// FindToolCall returns the index of the tool_call item with the given id, or -1.
func (t *Turn) FindToolCall(toolCallID string) int {
	return t.findItem(ItemToolCall, toolCallID)
}

// FindToolResult returns the index of the tool_result item with the given id, or -1.
func (t *Turn) FindToolResult(toolCallID string) int {
	return t.findItem(ItemToolResult, toolCallID)
}

func (t *Turn) findItem(kind ItemKind, toolCallID string) int {
	for i, item := range t.ProcessItems {
		if item.Kind == kind && item.ToolCallID == toolCallID {
			return i
		}
	}
	return -1
}

func (t *Turn) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("turn_id", t.TurnID).
		Str("status", string(t.Status)).
		Str("display_mode", string(t.DisplayMode)).
		Int("process_items", len(t.ProcessItems)).
		Int("pending_len", len(t.PendingText)).
		Bool("has_tool_call", t.HasToolCall).
		Bool("confirmed", t.IsResultConfirmed)
	if t.FinalResult != "" {
		ev.Int("final_len", len(t.FinalResult))
	}
}
