package hookinput

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"strings"
)

// Message is one line of a Claude transcript.
type Message struct {
	Type      string         `json:"type"`
	Message   MessageContent `json:"message"`
	Timestamp string         `json:"timestamp"`
}

// MessageContent holds either string content (user text) or an array of
// blocks (assistant messages, tool results).
type MessageContent struct {
	Role          string    `json:"role"`
	Content       []Content `json:"-"`
	ContentString string    `json:"-"`
}

// Content is one content block.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func (m *MessageContent) UnmarshalJSON(data []byte) error {
	type Alias MessageContent
	aux := &struct {
		Content json.RawMessage `json:"content"`
		*Alias
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var str string
	if err := json.Unmarshal(aux.Content, &str); err == nil {
		m.ContentString = str
		return nil
	}
	var arr []Content
	if err := json.Unmarshal(aux.Content, &arr); err == nil {
		m.Content = arr
	}
	// null or an unexpected shape leaves content empty
	return nil
}

// ParseTranscript reads JSONL, skipping lines that do not parse.
func ParseTranscript(r io.Reader) ([]Message, error) {
	var messages []Message
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

// LastAssistantText returns the text of the newest assistant message that
// has any, with its text blocks joined by spaces.
func LastAssistantText(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Type != "assistant" {
			continue
		}
		var texts []string
		if s := strings.TrimSpace(msg.Message.ContentString); s != "" {
			texts = append(texts, s)
		}
		for _, c := range msg.Message.Content {
			if c.Type == "text" && strings.TrimSpace(c.Text) != "" {
				texts = append(texts, strings.TrimSpace(c.Text))
			}
		}
		if len(texts) > 0 {
			return strings.Join(texts, " ")
		}
	}
	return ""
}

// TranscriptSummary reads path and returns its last assistant text,
// truncated for display.
func TranscriptSummary(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	messages, err := ParseTranscript(f)
	if err != nil {
		return "", err
	}
	return Truncate(LastAssistantText(messages), MaxMessageRunes), nil
}
