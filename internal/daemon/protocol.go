// ABOUTME: Wire format for messages sent from short-lived CLI invocations to the server.
// ABOUTME: One JSON object per connection; unknown fields are ignored for forward compatibility.
package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

var (
	// ErrNoServer means nothing accepted the connection.
	ErrNoServer = errors.New("no server listening")
	// ErrRejected means a server accepted the connection but the message
	// could not be written.
	ErrRejected = errors.New("server rejected message")
	// ErrMessageTooLarge is returned by Decode for oversized payloads.
	ErrMessageTooLarge = errors.New("message too large")
)

// ProtocolVersion is stamped on every message. Servers accept any version
// and ignore fields they do not know.
const ProtocolVersion = "1.0"

// MaxMessageSize caps a single message.
const MaxMessageSize = 64 << 10

// MessageType identifies what the server should do with a message.
type MessageType string

const (
	MessageTypeNotify   MessageType = "notify"
	MessageTypePing     MessageType = "ping"
	MessageTypeSettings MessageType = "settings"
	MessageTypeStop     MessageType = "stop"
)

// Source identifies the integration that produced a notification.
type Source string

const (
	SourceClaude  Source = "claude"
	SourceCodex   Source = "codex"
	SourceUpdater Source = "updater"
)

// Internal sources never refer to a terminal window.
func (s Source) Internal() bool {
	return s == SourceUpdater
}

// Message is the envelope for everything sent over the channel.
type Message struct {
	Version   string         `json:"version"`
	Type      MessageType    `json:"type"`
	RequestID string         `json:"request_id,omitempty"`
	Notify    *NotifyRequest `json:"notify,omitempty"`
}

// NotifyRequest asks the server to show one notification. The client fills
// in the process tree and window before sending because the originating
// process may exit right after invoking the CLI.
type NotifyRequest struct {
	PID         uint32   `json:"pid"`
	Event       string   `json:"event"`
	Message     string   `json:"message,omitempty"`
	TitleHint   string   `json:"title_hint,omitempty"`
	Source      Source   `json:"source,omitempty"`
	ProcessTree []uint32 `json:"process_tree,omitempty"`
	Window      uint64   `json:"window,omitempty"`
	WindowTitle string   `json:"window_title,omitempty"`
	Terminal    string   `json:"terminal,omitempty"`
}

// NewMessage builds a message with a fresh request id.
func NewMessage(t MessageType, notify *NotifyRequest) Message {
	return Message{
		Version:   ProtocolVersion,
		Type:      t,
		RequestID: uuid.NewString(),
		Notify:    notify,
	}
}

// Encode writes m as a single JSON document.
func Encode(w io.Writer, m Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if len(data) > MaxMessageSize {
		return ErrMessageTooLarge
	}
	_, err = w.Write(data)
	return err
}

// Decode reads one message, assembling it across as many reads as the
// transport needs. A missing type with a notify body is treated as notify.
func Decode(r io.Reader) (Message, error) {
	var m Message
	lr := &io.LimitedReader{R: r, N: MaxMessageSize + 1}
	if err := json.NewDecoder(lr).Decode(&m); err != nil {
		if lr.N <= 0 {
			return Message{}, ErrMessageTooLarge
		}
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if err := m.Normalize(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Normalize fills the defaults a sender may omit and rejects messages the
// server cannot act on. Every message reaching the server goes through it,
// whether it arrived over the channel or was handed over in-process.
func (m *Message) Normalize() error {
	if m.Type == "" && m.Notify != nil {
		m.Type = MessageTypeNotify
	}
	switch m.Type {
	case MessageTypeNotify:
		if m.Notify == nil {
			return errors.New("notify message without body")
		}
		if m.Notify.Source == "" {
			m.Notify.Source = SourceClaude
		}
	case MessageTypePing, MessageTypeSettings, MessageTypeStop:
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	return nil
}

// instanceSuffix separates side-by-side instances, e.g. a development build.
func instanceSuffix() string {
	if s := os.Getenv("AGENT_TOAST_INSTANCE"); s != "" {
		return "-" + s
	}
	return ""
}

// PipeName is the Windows named pipe of the server.
func PipeName() string {
	return `\\.\pipe\agent-toast` + instanceSuffix()
}

// MutexName is the Windows singleton mutex.
func MutexName() string {
	return "agent-toast-singleton" + instanceSuffix()
}

// GetSocketPath returns the Unix socket path for the server.
// Uses XDG_RUNTIME_DIR if available, falls back to /tmp with UID suffix.
func GetSocketPath() string {
	return runtimePath("agent-toast" + instanceSuffix() + ".sock")
}

// GetLockFilePath returns the singleton lock file used off Windows.
func GetLockFilePath() string {
	return runtimePath("agent-toast" + instanceSuffix() + ".lock")
}

func runtimePath(name string) string {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, name)
	}
	ext := filepath.Ext(name)
	return filepath.Join(os.TempDir(), fmt.Sprintf("%s-%d%s", name[:len(name)-len(ext)], os.Getuid(), ext))
}
