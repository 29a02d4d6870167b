package providers

import "context"

// LLMResponse carries the raw model output plus the call accounting the
// simulation audit needs.
type LLMResponse struct {
	Content      string
	ModelID      string
	LatencyMS    int
	TokensInput  *int
	TokensOutput *int
	RetryCount   int
}

// LLMProvider produces JSON-only completions. Implementations handle their
// own retries; a returned error is terminal for the call.
type LLMProvider interface {
	GenerateJSON(ctx context.Context, prompt string) (*LLMResponse, error)
}

// EmbeddingProvider turns text into vectors. Implementations must return an
// error on backend unavailability so the service layer can surface a 503.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SpeechFrame is one turn of the bidirectional voice bridge
type SpeechFrame struct {
	PartialTranscript string `json:"partial_transcript"`
	FinalTranscript   string `json:"final_transcript"`
	AudioBase64       string `json:"audio_base64"`
}

type SpeechProvider interface {
	CreateSession() string
	ProcessAudioChunk(ctx context.Context, sessionID string, audio []byte) (*SpeechFrame, error)
}

// AgentAutomationProvider executes named browser/UI workflow playbooks.
// The workflows themselves are opaque to this service.
type AgentAutomationProvider interface {
	RunPlaybook(ctx context.Context, name string, payload map[string]any) (map[string]any, error)
}
