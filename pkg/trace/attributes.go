package trace

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys used throughout the application
const (
	// Call attributes
	AttrCallID    = "call.id"
	AttrCallState = "call.state"
	AttrEchoID    = "echo.id"
	AttrEchoName  = "echo.name"

	// LLM attributes
	AttrLLMProvider = "llm.provider"
	AttrLLMModel    = "llm.model"

	// TTS attributes
	AttrTTSProvider = "tts.provider"
	AttrTTSVoice    = "tts.voice"

	// Clip attributes
	AttrClipURL   = "clip.url"
	AttrClipBytes = "clip.bytes"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// CallAttrs creates attributes for one call session
func CallAttrs(callID, echoID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCallID, callID),
		attribute.String(AttrEchoID, echoID),
	}
}

// LLMAttrs creates attributes for text generation
func LLMAttrs(provider, model string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrLLMProvider, provider),
		attribute.String(AttrLLMModel, model),
	}
}

// TTSAttrs creates attributes for speech synthesis
func TTSAttrs(provider, voice string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrTTSProvider, provider),
		attribute.String(AttrTTSVoice, voice),
	}
}

// ClipAttrs creates attributes for a synthesized clip
func ClipAttrs(url string, size int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrClipURL, url),
		attribute.Int(AttrClipBytes, size),
	}
}

// ErrorAttrs creates attributes for errors
func ErrorAttrs(errType, errMsg string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, errType),
		attribute.String(AttrErrorMessage, errMsg),
	}
}
