package providers

import (
	"context"

	"github.com/google/uuid"
)

// SpeechBridge is the placeholder adapter for a real bidirectional speech
// backend. Sessions are issued locally; audio frames are acknowledged with
// empty transcripts until a streaming backend is configured.
//
// TODO: wire the Gemini Live bidirectional audio API once it is exposed by
// the generative-ai-go SDK and map browser PCM frames to its input stream.
type SpeechBridge struct{}

func NewSpeechBridge() *SpeechBridge {
	return &SpeechBridge{}
}

func (s *SpeechBridge) CreateSession() string {
	return uuid.NewString()
}

func (s *SpeechBridge) ProcessAudioChunk(ctx context.Context, sessionID string, audio []byte) (*SpeechFrame, error) {
	_ = sessionID
	_ = audio
	return &SpeechFrame{}, nil
}
