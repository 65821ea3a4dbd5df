package session

// State is the call session's lifecycle phase. A session moves
// Idle → Connecting → Greeting → Listening and then cycles
// Listening ⇄ Thinking ⇄ Speaking until it reaches Ended. Ended is
// terminal.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateGreeting
	StateListening
	StateThinking
	StateSpeaking
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateGreeting:
		return "greeting"
	case StateListening:
		return "listening"
	case StateThinking:
		return "thinking"
	case StateSpeaking:
		return "speaking"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Speaker identifies who said a transcript line.
type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerEcho Speaker = "echo"
)

// TranscriptEntry is one line of the call's append-only transcript.
type TranscriptEntry struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Snapshot is an immutable view of the session for handlers and UIs.
type Snapshot struct {
	ID             string
	State          State
	EchoID         string
	EchoName       string
	ElapsedSeconds int
	MicEnabled     bool
	SpeakerEnabled bool
	VideoEnabled   bool
	Transcript     []TranscriptEntry
}
