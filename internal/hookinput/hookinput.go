// ABOUTME: Reads what the AI CLIs hand us: Claude hook JSON on stdin, Codex notify JSON
// ABOUTME: as an argument, and Claude transcripts for the last assistant reply.
package hookinput

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MaxMessageRunes bounds notification text taken from assistant replies.
const MaxMessageRunes = 200

// maxPayload caps stdin reads.
const maxPayload = 1 << 20

// ClaudePayload is the subset of a Claude hook payload we use.
type ClaudePayload struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	Cwd            string `json:"cwd"`
	HookEventName  string `json:"hook_event_name"`
	Message        string `json:"message"`
}

// ReadClaude decodes a hook payload. Empty input yields a zero payload.
func ReadClaude(r io.Reader) (ClaudePayload, error) {
	var p ClaudePayload
	data, err := io.ReadAll(io.LimitReader(r, maxPayload))
	if err != nil {
		return p, fmt.Errorf("read hook payload: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse hook payload: %w", err)
	}
	return p, nil
}

var hookEvents = map[string]string{
	"Stop":         "task_complete",
	"Notification": "user_input_required",
	"SubagentStop": "subagent_stop",
	"SessionStart": "session_start",
	"SessionEnd":   "session_end",
}

// EventForHook maps a Claude hook_event_name to an event kind, or "" when
// there is no mapping.
func EventForHook(name string) string {
	return hookEvents[name]
}

// CodexPayload is the JSON Codex passes to its notify program.
type CodexPayload struct {
	Type                 string `json:"type"`
	LastAssistantMessage string `json:"last-assistant-message"`
	Cwd                  string `json:"cwd"`
}

// DefaultCodexType is assumed when the payload has no type.
const DefaultCodexType = "agent-turn-complete"

// ParseCodex decodes a Codex payload.
func ParseCodex(raw string) (CodexPayload, error) {
	var p CodexPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return p, fmt.Errorf("parse Codex payload: %w", err)
	}
	if p.Type == "" {
		p.Type = DefaultCodexType
	}
	return p, nil
}

// Event is the payload type with dashes turned into underscores.
func (p CodexPayload) Event() string {
	return strings.ReplaceAll(p.Type, "-", "_")
}

// Message is the assistant reply truncated for display.
func (p CodexPayload) Message() string {
	return Truncate(p.LastAssistantMessage, MaxMessageRunes)
}

// TitleHint is the working directory's folder name.
func (p CodexPayload) TitleHint() string {
	return ProjectName(p.Cwd)
}

// Truncate cuts s to max runes and appends "..." when anything was cut.
func Truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// ProjectName is the last path element of dir. Both separators are
// accepted since Windows paths reach us from any platform.
func ProjectName(dir string) string {
	dir = strings.TrimRight(strings.TrimSpace(dir), `/\`)
	if dir == "" {
		return ""
	}
	if i := strings.LastIndexAny(dir, `/\`); i >= 0 {
		return dir[i+1:]
	}
	return filepath.Base(dir)
}

// TitleHint picks the first of: the explicit title, CLAUDE_PROJECT_DIR's
// folder name, the hook payload cwd's folder name.
func TitleHint(explicit string, payload ClaudePayload) string {
	if explicit != "" {
		return ProjectName(explicit)
	}
	if dir := os.Getenv("CLAUDE_PROJECT_DIR"); dir != "" {
		return ProjectName(dir)
	}
	return ProjectName(payload.Cwd)
}
