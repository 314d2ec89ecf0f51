package turns

// Disposition is the presentation-time reading of a tool_call item's status.
// It extends ToolCallStatus with Interrupted, which is never stored: a tool
// call shows as interrupted exactly when its Turn was stopped or failed while
// the call was still running and no answer text had been produced. When
// answer text exists, the tool phase necessarily finished, so the reducer
// flips lingering running calls to done instead.
type Disposition string

const (
	DispositionRunning     Disposition = "running"
	DispositionDone        Disposition = "done"
	DispositionFailed      Disposition = "failed"
	DispositionInterrupted Disposition = "interrupted"
)

// ToolCallDisposition derives the display disposition of a tool_call item
// within its Turn.
func ToolCallDisposition(t *Turn, item ProcessItem) Disposition {
	if item.Kind != ItemToolCall {
		return Disposition(item.Status)
	}
	if item.Status == ToolRunning &&
		(t.Status == StatusCanceled || t.Status == StatusFailed) &&
		!t.HasOutput() {
		return DispositionInterrupted
	}
	return Disposition(item.Status)
}
