package agent

import "fmt"

// EventKind tags the variant held by an Event.
type EventKind int

// event kinds decoded at the connection boundary.
const (
	EventText       EventKind = iota + 1 // text fragment of the assistant response
	EventToolUse                         // tool invocation requested by the agent
	EventToolResult                      // result of a tool invocation
)

func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventToolUse:
		return "tool_use"
	case EventToolResult:
		return "tool_result"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// ToolStatus classifies a tool result.
type ToolStatus string

// tool result classifications.
const (
	ToolOK      ToolStatus = "ok"
	ToolError   ToolStatus = "error"
	ToolBlocked ToolStatus = "blocked" // rejected by a permission or security hook
)

// Event is a single streamed item from an agent connection.
// exactly one group of fields is meaningful, selected by Kind:
//   - EventText: Text
//   - EventToolUse: Tool, Input
//   - EventToolResult: Status, Content
//
// use the constructors to keep Kind and payload consistent.
type Event struct {
	Kind    EventKind
	Text    string
	Tool    string
	Input   string
	Status  ToolStatus
	Content string
}

// TextFragment creates a text event.
func TextFragment(text string) Event {
	return Event{Kind: EventText, Text: text}
}

// ToolInvocation creates a tool use event with a printable input summary.
func ToolInvocation(name, input string) Event {
	return Event{Kind: EventToolUse, Tool: name, Input: input}
}

// ToolResult creates a tool result event.
func ToolResult(status ToolStatus, content string) Event {
	return Event{Kind: EventToolResult, Status: status, Content: content}
}
