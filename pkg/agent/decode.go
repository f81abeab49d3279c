package agent

import (
	"bytes"
	"encoding/json"
	"strings"
)

// streamLine is one JSON line of claude's stream-json output.
type streamLine struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	Message struct {
		Content json.RawMessage `json:"content"`
	} `json:"message"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Result  json.RawMessage `json:"result"`
	IsError bool            `json:"is_error"`
}

// contentBlock is a single block inside an assistant or user message.
type contentBlock struct {
	Type    string          `json:"type"`
	Text    string          `json:"text"`
	Name    string          `json:"name"`
	Input   json.RawMessage `json:"input"`
	Content json.RawMessage `json:"content"`
	IsError bool            `json:"is_error"`
}

// decodeLine turns one line of output into zero or more events.
// lines that are not JSON are passed through as text, they usually carry CLI diagnostics.
// a failed result event is reported as *ResultError.
func decodeLine(line []byte) ([]Event, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var sl streamLine
	if err := json.Unmarshal(trimmed, &sl); err != nil {
		return []Event{TextFragment(string(trimmed) + "\n")}, nil
	}

	switch sl.Type {
	case "assistant":
		var events []Event
		for _, b := range decodeBlocks(sl.Message.Content) {
			switch b.Type {
			case "text":
				if b.Text != "" {
					events = append(events, TextFragment(b.Text))
				}
			case "tool_use":
				events = append(events, ToolInvocation(b.Name, compactJSON(b.Input)))
			}
		}
		return events, nil
	case "user":
		var events []Event
		for _, b := range decodeBlocks(sl.Message.Content) {
			if b.Type != "tool_result" {
				continue
			}
			content := flattenContent(b.Content)
			events = append(events, ToolResult(classifyResult(content, b.IsError), content))
		}
		return events, nil
	case "content_block_delta":
		if sl.Delta.Type == "text_delta" && sl.Delta.Text != "" {
			return []Event{TextFragment(sl.Delta.Text)}, nil
		}
	case "result":
		if sl.IsError {
			return nil, &ResultError{Subtype: sl.Subtype, Message: flattenContent(sl.Result)}
		}
	}
	return nil, nil
}

// decodeBlocks decodes message content; string content (plain user input) has no blocks.
func decodeBlocks(raw json.RawMessage) []contentBlock {
	if len(raw) == 0 || raw[0] != '[' {
		return nil
	}
	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil
	}
	return blocks
}

// classifyResult maps a tool result to ok, error or blocked.
// security hooks report rejections as regular content mentioning "blocked".
func classifyResult(content string, isError bool) ToolStatus {
	switch {
	case strings.Contains(strings.ToLower(content), "blocked"):
		return ToolBlocked
	case isError:
		return ToolError
	default:
		return ToolOK
	}
}

// flattenContent converts tool result content (string or list of text blocks) to plain text.
func flattenContent(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var sb strings.Builder
		for _, b := range blocks {
			if b.Text == "" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(b.Text)
		}
		return sb.String()
	}
	return string(raw)
}

// compactJSON renders a tool input as a single line.
func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
