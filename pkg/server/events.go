package server

import (
	"encoding/json"
	"fmt"

	"github.com/echoes-ai/echocall/pkg/history"
	"github.com/echoes-ai/echocall/pkg/session"
)

// Client event types.
const (
	ClientEventTurnUtterance = "turn.utterance"
	ClientEventCallEnd       = "call.end"
	ClientEventToggleMic     = "toggle.mic"
	ClientEventToggleSpeaker = "toggle.speaker"
	ClientEventToggleVideo   = "toggle.video"
)

// Server event types.
const (
	ServerEventCallState      = "call.state"
	ServerEventCallTranscript = "call.transcript"
	ServerEventCallAudio      = "call.audio"
	ServerEventCallEnded      = "call.ended"
	ServerEventToggle         = "toggle"
	ServerEventError          = "error"
)

// ClientEvent is a message from the gateway client.
type ClientEvent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ParseClientEvent decodes a client event and validates its type.
func ParseClientEvent(data []byte) (*ClientEvent, error) {
	var ev ClientEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("invalid event: %w", err)
	}
	switch ev.Type {
	case ClientEventTurnUtterance, ClientEventCallEnd,
		ClientEventToggleMic, ClientEventToggleSpeaker, ClientEventToggleVideo:
		return &ev, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
}

// ServerEvent is a message to the gateway client.
type ServerEvent struct {
	Type    string              `json:"type"`
	State   string              `json:"state,omitempty"`
	Elapsed int                 `json:"elapsed,omitempty"`
	Speaker string              `json:"speaker,omitempty"`
	Text    string              `json:"text,omitempty"`
	URL     string              `json:"url,omitempty"`
	Name    string              `json:"name,omitempty"`
	Enabled *bool               `json:"enabled,omitempty"`
	Record  *history.CallRecord `json:"record,omitempty"`
	Code    string              `json:"code,omitempty"`
	Message string              `json:"message,omitempty"`
}

// NewStateEvent announces a session state change.
func NewStateEvent(state session.State, elapsed int) *ServerEvent {
	return &ServerEvent{
		Type:    ServerEventCallState,
		State:   state.String(),
		Elapsed: elapsed,
	}
}

// NewTranscriptEvent carries one transcript line.
func NewTranscriptEvent(entry session.TranscriptEntry) *ServerEvent {
	return &ServerEvent{
		Type:    ServerEventCallTranscript,
		Speaker: string(entry.Speaker),
		Text:    entry.Text,
	}
}

// NewAudioEvent announces a clip the client should fetch and play.
func NewAudioEvent(url string) *ServerEvent {
	return &ServerEvent{
		Type: ServerEventCallAudio,
		URL:  url,
	}
}

// NewEndedEvent closes a call with its persisted record.
func NewEndedEvent(record *history.CallRecord) *ServerEvent {
	return &ServerEvent{
		Type:   ServerEventCallEnded,
		Record: record,
	}
}

// NewToggleEvent acknowledges a toggle with its new setting.
func NewToggleEvent(name string, enabled bool) *ServerEvent {
	return &ServerEvent{
		Type:    ServerEventToggle,
		Name:    name,
		Enabled: &enabled,
	}
}

// NewErrorEvent reports a non-fatal session error.
func NewErrorEvent(code, message string) *ServerEvent {
	return &ServerEvent{
		Type:    ServerEventError,
		Code:    code,
		Message: message,
	}
}
