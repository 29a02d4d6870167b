package voice

import (
	"context"

	"multiverse-copilot-backend/internal/providers"
)

// Service fronts the speech provider for the voice session endpoints
type Service struct {
	speech providers.SpeechProvider
}

func NewService(speech providers.SpeechProvider) *Service {
	return &Service{speech: speech}
}

func (s *Service) CreateSession() string {
	return s.speech.CreateSession()
}

func (s *Service) ProcessChunk(ctx context.Context, sessionID string, audio []byte) (*providers.SpeechFrame, error) {
	return s.speech.ProcessAudioChunk(ctx, sessionID, audio)
}
