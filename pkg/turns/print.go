package turns

import (
	"encoding/json"
	"fmt"
	"io"
)

// FprintTurn prints a turn in a readable transcript form to the writer.
func FprintTurn(w io.Writer, t *Turn) {
	if t == nil {
		return
	}
	fmt.Fprintf(w, "turn %s [%s/%s]\n", t.TurnID, t.Status, t.DisplayMode)
	for _, line := range Lines(t) {
		fmt.Fprintf(w, "  %s\n", line)
	}
}

// Lines returns a compact plain-text representation of the Turn's narrative,
// one line per process item plus pending/final text. UI layers can style
// these strings as needed.
func Lines(t *Turn) []string {
	lines := make([]string, 0, len(t.ProcessItems)+2)
	for _, item := range t.ProcessItems {
		switch item.Kind {
		case ItemText:
			lines = append(lines, item.Text)
		case ItemToolCall:
			d := ToolCallDisposition(t, item)
			line := fmt.Sprintf("→ %s [%s]", ToolDisplayName(item.ToolName), d)
			if len(item.Input) > 0 {
				if b, err := json.Marshal(item.Input); err == nil {
					line += "  " + string(b)
				}
			}
			lines = append(lines, line)
		case ItemToolResult:
			lines = append(lines, fmt.Sprintf("← %s", item.Content))
		}
	}
	if t.PendingText != "" {
		lines = append(lines, "⏳ "+t.PendingText)
	}
	if t.FinalResult != "" {
		lines = append(lines, t.FinalResult)
	}
	return lines
}
