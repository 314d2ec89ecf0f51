package turns

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloneIsIndependent(t *testing.T) {
	orig := New("t1")
	orig.PendingText = "hello"
	orig.ProcessItems = append(orig.ProcessItems, ProcessItem{
		Kind:       ItemToolCall,
		ToolName:   "web_search",
		Status:     ToolRunning,
		ToolCallID: "call-1",
	})
	orig.ProcessedIDs["call-1"] = true

	clone := orig.Clone()
	clone.PendingText = "changed"
	clone.ProcessItems[0].Status = ToolDone
	clone.ProcessedIDs["call-2"] = true

	require.Equal(t, "hello", orig.PendingText)
	require.Equal(t, ToolRunning, orig.ProcessItems[0].Status)
	require.False(t, orig.Processed("call-2"))
}

func TestCloneNil(t *testing.T) {
	var turn *Turn
	require.Nil(t, turn.Clone())
}

func TestFindByToolCallID(t *testing.T) {
	turn := New("t1")
	turn.ProcessItems = []ProcessItem{
		{Kind: ItemText, Text: "narration"},
		{Kind: ItemToolCall, ToolCallID: "call-1"},
		{Kind: ItemToolResult, ToolCallID: "call-1"},
	}

	require.Equal(t, 1, turn.FindToolCall("call-1"))
	require.Equal(t, 2, turn.FindToolResult("call-1"))
	require.Equal(t, -1, turn.FindToolCall("call-2"))
}

func TestResultKey(t *testing.T) {
	require.Equal(t, "result_call-1", ResultKey("call-1"))
}

func TestDispositionInterruptedRequiresNoOutput(t *testing.T) {
	item := ProcessItem{Kind: ItemToolCall, Status: ToolRunning}

	turn := New("t1")
	turn.Status = StatusCanceled
	require.Equal(t, DispositionInterrupted, ToolCallDisposition(turn, item))

	turn.Status = StatusFailed
	require.Equal(t, DispositionInterrupted, ToolCallDisposition(turn, item))

	turn.PendingText = "partial answer"
	require.Equal(t, DispositionRunning, ToolCallDisposition(turn, item))

	turn.PendingText = ""
	turn.Status = StatusStreaming
	require.Equal(t, DispositionRunning, ToolCallDisposition(turn, item))
}

func TestDispositionFollowsStoredStatus(t *testing.T) {
	turn := New("t1")
	require.Equal(t, DispositionDone, ToolCallDisposition(turn, ProcessItem{Kind: ItemToolCall, Status: ToolDone}))
	require.Equal(t, DispositionFailed, ToolCallDisposition(turn, ProcessItem{Kind: ItemToolCall, Status: ToolFailed}))
}

func TestToolLabels(t *testing.T) {
	require.Equal(t, "Web search", ToolDisplayName("web_search"))
	require.Equal(t, "my_custom_tool", ToolDisplayName("my_custom_tool"))

	require.Equal(t, "Searching the web...", ToolUserLabel("web_search", DispositionRunning))
	require.Equal(t, "Working on it...", ToolUserLabel("my_custom_tool", DispositionRunning))
	require.Equal(t, "Done, organizing...", ToolUserLabel("my_custom_tool", DispositionDone))
}

func TestSkillLabels(t *testing.T) {
	require.Equal(t, "Customer service", SkillDisplayName("customer_service"))
	require.Equal(t, "Looking up relevant information...", SkillUserLabel("customer_service", DispositionRunning))
	require.Equal(t, "unknown_skill", SkillUserLabel("unknown_skill", DispositionFailed))
}

func TestLines(t *testing.T) {
	turn := New("t1")
	turn.ProcessItems = []ProcessItem{
		{Kind: ItemText, Text: "Let me check."},
		{Kind: ItemToolCall, ToolName: "web_search", Status: ToolDone, ToolCallID: "call-1"},
		{Kind: ItemToolResult, Content: "3 results", ToolCallID: "call-1"},
	}
	turn.FinalResult = "Here you go."

	lines := Lines(turn)
	require.Len(t, lines, 4)
	require.Equal(t, "Let me check.", lines[0])
	require.True(t, strings.HasPrefix(lines[1], "→ Web search [done]"))
	require.Equal(t, "← 3 results", lines[2])
	require.Equal(t, "Here you go.", lines[3])
}
