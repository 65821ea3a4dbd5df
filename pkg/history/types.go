package history

import (
	"fmt"
	"time"
)

// Echo is a callable persona: a name, a description that seeds the
// text generation prompt, and the voice it speaks with. Echoes are
// owned by the user that created them and are immutable for the
// duration of a call.
type Echo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	VoiceID     string    `json:"voiceId,omitempty"`
	VoiceType   string    `json:"voiceType,omitempty"`
	Language    string    `json:"language,omitempty"`
	Cloned      bool      `json:"cloned,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CallRecord is the durable summary of one call session.
type CallRecord struct {
	ID              string `json:"id"`
	EchoID          string `json:"echoId"`
	EchoName        string `json:"echoName"`
	Duration        string `json:"duration"`
	Date            string `json:"date"`
	PreviewImageURL string `json:"previewImageUrl,omitempty"`
}

// FormatDuration renders elapsed seconds as m:ss, the format call
// records carry.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
