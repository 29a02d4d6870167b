package models

import "errors"

// SimulateRequest is the inbound payload for POST /simulate
type SimulateRequest struct {
	DecisionText  string         `json:"decision_text"`
	Transcript    string         `json:"transcript"`
	ContextDocIDs []string       `json:"context_doc_ids"`
	Constraints   map[string]any `json:"constraints"`
}

// SourceText returns the decision text, falling back to the transcript
func (r *SimulateRequest) SourceText() string {
	if r.DecisionText != "" {
		return r.DecisionText
	}
	return r.Transcript
}

func (r *SimulateRequest) Validate() error {
	if r.DecisionText == "" && r.Transcript == "" {
		return errors.New("decision_text or transcript is required")
	}
	return nil
}

// DecisionSpecRequest is the inbound payload for POST /decision/spec
type DecisionSpecRequest struct {
	DecisionText string `json:"decision_text"`
	Transcript   string `json:"transcript"`
}

func (r *DecisionSpecRequest) SourceText() string {
	if r.DecisionText != "" {
		return r.DecisionText
	}
	return r.Transcript
}

func (r *DecisionSpecRequest) Validate() error {
	if r.DecisionText == "" && r.Transcript == "" {
		return errors.New("decision_text or transcript is required")
	}
	return nil
}

type KBQueryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// KBMatch is one retrieved passage with its cosine similarity score
type KBMatch struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

type KBQueryResponse struct {
	Matches []KBMatch `json:"matches"`
}

type KBUploadResponse struct {
	DocID  string `json:"doc_id"`
	Chunks int    `json:"chunks"`
}

type KBAsyncUploadResponse struct {
	TaskID string `json:"task_id"`
	Queued bool   `json:"queued"`
}

type VoiceSessionResponse struct {
	SessionID string `json:"session_id"`
}

type PlaybookRequest struct {
	Name    string         `json:"name"`
	Payload map[string]any `json:"payload"`
}
