package turns

// Friendly display names for tool and skill identifiers. The admin maps show
// what ran; the user-facing maps narrate progress without exposing tool names.

var toolNames = map[string]string{
	"knowledge_search_tool": "Knowledge base lookup",
	"web_search":            "Web search",
	"weather_query":         "Weather lookup",
	"calculator":            "Calculator",
	"write_todos":           "Task list update",
	"task":                  "Subtask",
	"search":                "Search",
	"read_file":             "Read file",
	"write_file":            "Write file",
}

var toolNamesUserRunning = map[string]string{
	"knowledge_search_tool": "Looking things up...",
	"web_search":            "Searching the web...",
	"weather_query":         "Checking the weather...",
	"calculator":            "Calculating...",
	"write_todos":           "Planning tasks...",
	"task":                  "Working on it...",
	"search":                "Searching...",
	"read_file":             "Reading files...",
	"write_file":            "Writing files...",
}

var toolNamesUserDone = map[string]string{
	"knowledge_search_tool": "Lookup finished, analyzing...",
	"web_search":            "Search finished, organizing results...",
	"weather_query":         "Weather lookup finished, organizing...",
	"calculator":            "Calculation finished, organizing results...",
	"write_todos":           "Task planning finished...",
	"task":                  "Done, organizing...",
	"search":                "Search finished, organizing...",
	"read_file":             "Files read...",
	"write_file":            "Files written...",
}

var skillNames = map[string]string{
	"customer_service":      "Customer service",
	"content_marketing":     "Content marketing",
	"content_creator":       "Content creation",
	"sales_promotion":       "Sales promotion",
	"business_intelligence": "Business intelligence",
	"data_analysis":         "Data analysis",
}

var skillNamesUserRunning = map[string]string{
	"customer_service":      "Looking up relevant information...",
	"content_marketing":     "Drafting content...",
	"content_creator":       "Drafting content...",
	"sales_promotion":       "Analyzing promotion options...",
	"business_intelligence": "Analyzing business information...",
	"data_analysis":         "Analyzing data...",
}

var skillNamesUserDone = map[string]string{
	"customer_service":      "Lookup done, composing a reply...",
	"content_marketing":     "Content drafted, organizing...",
	"content_creator":       "Content drafted, organizing...",
	"sales_promotion":       "Promotion analysis done, organizing...",
	"business_intelligence": "Business analysis done, organizing...",
	"data_analysis":         "Data analysis done, generating the report...",
}

// ToolDisplayName returns the admin-facing name for a tool, falling back to
// the raw identifier.
func ToolDisplayName(toolName string) string {
	if n, ok := toolNames[toolName]; ok {
		return n
	}
	return toolName
}

// ToolUserLabel returns the end-user narration for a tool call in the given
// disposition.
func ToolUserLabel(toolName string, d Disposition) string {
	switch d {
	case DispositionRunning:
		if n, ok := toolNamesUserRunning[toolName]; ok {
			return n
		}
		return "Working on it..."
	case DispositionDone:
		if n, ok := toolNamesUserDone[toolName]; ok {
			return n
		}
		return "Done, organizing..."
	default:
		return ToolDisplayName(toolName)
	}
}

// SkillDisplayName returns the admin-facing name for a skill key, falling
// back to the raw key.
func SkillDisplayName(skillKey string) string {
	if n, ok := skillNames[skillKey]; ok {
		return n
	}
	return skillKey
}

// SkillUserLabel returns the end-user narration for a skill in the given
// disposition.
func SkillUserLabel(skillKey string, d Disposition) string {
	switch d {
	case DispositionRunning:
		if n, ok := skillNamesUserRunning[skillKey]; ok {
			return n
		}
		return "Working on it..."
	case DispositionDone:
		if n, ok := skillNamesUserDone[skillKey]; ok {
			return n
		}
		return "Done, organizing..."
	default:
		return SkillDisplayName(skillKey)
	}
}
