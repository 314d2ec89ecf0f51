// Package reducer folds the inbound run-event stream into Turn render state.
// Apply is pure: it never mutates its input and returns a fresh Turn value
// for every effective transition, so callers can snapshot, replay and diff
// turn states freely. Events the reducer cannot use (duplicates, frames after
// confirmation, unknown payloads) return the input turn unchanged.
package reducer

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/eva-chat/turnstream/pkg/events"
	"github.com/eva-chat/turnstream/pkg/reveal"
	"github.com/eva-chat/turnstream/pkg/turns"
)

// Apply folds one inbound event into the turn under the given reveal policy.
// now is the event arrival time; it only matters for the smart policy's
// elapsed-time check.
func Apply(t *turns.Turn, ev events.Event, policy reveal.Policy, now time.Time) *turns.Turn {
	switch e := ev.(type) {
	case *events.EventTextDelta:
		return applyTextDelta(t, e, policy, now)
	case *events.EventMessageUpsert:
		return applyMessageUpsert(t, e)
	case *events.EventRunStatus:
		return applyRunStatus(t, e)
	}

	log.Debug().Str("turn_id", t.TurnID).Str("type", string(ev.Type())).Msg("ignoring unhandled event type")
	return t
}

func applyTextDelta(t *turns.Turn, e *events.EventTextDelta, policy reveal.Policy, now time.Time) *turns.Turn {
	if t.IsResultConfirmed || e.Delta == "" {
		return t
	}

	next := t.Clone()
	next.PendingText += e.Delta
	next.Status = turns.StatusStreaming

	// Reveal policies only govern the buffering phase before any tool call;
	// once tools are involved the process view owns the screen until the run
	// resolves.
	if !next.HasToolCall {
		if next.BufferStart.IsZero() {
			next.BufferStart = now
		}
		next.DisplayMode = policy.Decide(next, now)
		if next.DisplayMode == turns.DisplayStreaming {
			next.StreamLatched = true
		}
	}

	return next
}

func applyMessageUpsert(t *turns.Turn, e *events.EventMessageUpsert) *turns.Turn {
	if t.IsResultConfirmed {
		return t
	}

	if toolUses := e.ToolUseBlocks(); len(toolUses) > 0 {
		return applyToolCalls(t, e, toolUses)
	}

	if e.Role == events.RoleTool && e.ToolCallID != "" && e.ToolName != "" {
		return applyToolResult(t, e)
	}

	// Assistant snapshots without tool_use blocks carry nothing the narrative
	// needs; their text already arrived as deltas.
	return t
}

func applyToolCalls(t *turns.Turn, e *events.EventMessageUpsert, toolUses []events.ContentBlock) *turns.Turn {
	// A batch whose tool-call ids (or their result counterparts) were all
	// applied before is a redelivery of the whole message; drop it without
	// touching PendingText.
	allProcessed := true
	for _, b := range toolUses {
		if !t.Processed(b.ID) && !t.Processed(turns.ResultKey(b.ID)) {
			allProcessed = false
			break
		}
	}
	if allProcessed {
		log.Debug().Str("turn_id", t.TurnID).Msg("dropping redelivered tool-call batch")
		return t
	}

	next := t.Clone()

	// Narration accumulated before the tool call becomes a process step.
	if strings.TrimSpace(next.PendingText) != "" {
		next.ProcessItems = append(next.ProcessItems, turns.ProcessItem{
			Kind: turns.ItemText,
			Text: next.PendingText,
		})
	}
	next.PendingText = ""

	for _, b := range toolUses {
		if next.Processed(b.ID) {
			continue
		}
		next.ProcessItems = append(next.ProcessItems, turns.ProcessItem{
			Kind:       turns.ItemToolCall,
			ToolName:   b.Name,
			SkillKey:   e.SkillKey,
			Status:     turns.ToolRunning,
			Input:      b.Input,
			ToolCallID: b.ID,
		})
		next.ProcessedIDs[b.ID] = true
	}

	next.HasToolCall = true
	next.Status = turns.StatusStreaming
	if next.DisplayMode != turns.DisplayResult {
		next.DisplayMode = turns.DisplayProcess
	}

	return next
}

func applyToolResult(t *turns.Turn, e *events.EventMessageUpsert) *turns.Turn {
	// In-progress tool snapshots carry no durable information.
	if e.Status != events.MessageFinal && e.Status != events.MessageFailed {
		return t
	}

	status := turns.ToolDone
	if e.Status == events.MessageFailed {
		status = turns.ToolFailed
	}

	next := t.Clone()

	// A result arriving before its call still needs a call item to pair
	// with; the call batch redelivered later is absorbed by the idempotence
	// guard, so the pair must be complete here.
	if next.FindToolCall(e.ToolCallID) < 0 {
		next.ProcessItems = append(next.ProcessItems, turns.ProcessItem{
			Kind:       turns.ItemToolCall,
			ToolName:   e.ToolName,
			SkillKey:   e.SkillKey,
			Status:     status,
			ToolCallID: e.ToolCallID,
		})
		next.ProcessedIDs[e.ToolCallID] = true
		next.HasToolCall = true
	}

	if idx := next.FindToolResult(e.ToolCallID); idx >= 0 {
		next.ProcessItems[idx].Content = e.ContentText
		next.ProcessItems[idx].Status = status
		if e.SkillKey != "" {
			next.ProcessItems[idx].SkillKey = e.SkillKey
		}
	} else {
		next.ProcessItems = append(next.ProcessItems, turns.ProcessItem{
			Kind:       turns.ItemToolResult,
			ToolName:   e.ToolName,
			SkillKey:   e.SkillKey,
			Content:    e.ContentText,
			Status:     status,
			ToolCallID: e.ToolCallID,
		})
	}
	next.ProcessedIDs[turns.ResultKey(e.ToolCallID)] = true

	// The result resolves its call regardless of which arrived first.
	if idx := next.FindToolCall(e.ToolCallID); idx >= 0 {
		next.ProcessItems[idx].Status = status
	}

	next.Status = turns.StatusStreaming
	return next
}

func applyRunStatus(t *turns.Turn, e *events.EventRunStatus) *turns.Turn {
	if t.Status.Terminal() {
		// Covers the server-confirmed cancel arriving after a local stop: the
		// interrupted-tool-call logic must not run twice.
		return t
	}

	switch {
	case e.Status.Success():
		next := t.Clone()
		finishRunningToolCalls(next)
		next.FinalResult = next.PendingText
		next.PendingText = ""
		next.IsResultConfirmed = true
		next.Status = turns.StatusComplete
		next.DisplayMode = turns.DisplayResult
		return next

	case e.Status == events.RunFailed:
		next := t.Clone()
		next.Status = turns.StatusFailed
		next.DisplayMode = partialDisplayMode(next)
		return next

	case e.Status == events.RunCanceled:
		next := t.Clone()
		next.Status = turns.StatusCanceled
		next.DisplayMode = partialDisplayMode(next)
		// Visible output implies the tool phase already finished; without
		// output the running call is rendered as interrupted instead.
		if next.HasOutput() {
			finishRunningToolCalls(next)
		}
		return next
	}

	log.Debug().Str("turn_id", t.TurnID).Str("status", string(e.Status)).Msg("ignoring non-terminal run status")
	return t
}

// ApplyConnectionClosed handles the stream ending without an explicit
// terminal run.status: an implicit success confirmation, except that a turn
// the user already stopped keeps its canceled disposition. A turn already
// marked failed keeps the failed status while still confirming whatever
// content it accumulated.
func ApplyConnectionClosed(t *turns.Turn) *turns.Turn {
	if t.IsResultConfirmed || t.Status == turns.StatusCanceled {
		return t
	}

	next := t.Clone()
	finishRunningToolCalls(next)
	if next.PendingText != "" {
		next.FinalResult = next.PendingText
	}
	next.PendingText = ""
	next.IsResultConfirmed = true
	if next.Status != turns.StatusFailed {
		next.Status = turns.StatusComplete
		next.DisplayMode = turns.DisplayResult
	} else {
		next.DisplayMode = partialDisplayMode(next)
	}
	return next
}

// ApplyLocalCancel is the synchronous user-stop transition, applied without
// waiting for server acknowledgment. A later server-confirmed canceled
// run.status is absorbed as a no-op by the terminal guard in Apply.
func ApplyLocalCancel(t *turns.Turn) *turns.Turn {
	if t.Status.Terminal() {
		return t
	}

	next := t.Clone()
	next.Status = turns.StatusCanceled
	next.DisplayMode = partialDisplayMode(next)
	if next.HasOutput() {
		finishRunningToolCalls(next)
	}
	return next
}

// ApplyTransportError marks a non-terminal turn failed. Partial content is
// kept for display; retry policy belongs to the transport layer.
func ApplyTransportError(t *turns.Turn) *turns.Turn {
	if t.Status.Terminal() {
		return t
	}

	next := t.Clone()
	next.Status = turns.StatusFailed
	next.DisplayMode = partialDisplayMode(next)
	return next
}

// finishRunningToolCalls flips still-running tool calls to done; tools cannot
// remain running once the run outcome is known.
func finishRunningToolCalls(t *turns.Turn) {
	for i := range t.ProcessItems {
		item := &t.ProcessItems[i]
		if item.Kind == turns.ItemToolCall && item.Status == turns.ToolRunning {
			item.Status = turns.ToolDone
		}
	}
}

// partialDisplayMode picks the display mode preserving whatever partial
// progress exists: answer text wins, then process steps, else unchanged.
func partialDisplayMode(t *turns.Turn) turns.DisplayMode {
	switch {
	case t.HasOutput():
		return turns.DisplayResult
	case len(t.ProcessItems) > 0:
		return turns.DisplayProcess
	}
	return t.DisplayMode
}
