package llm

import "context"

// Request is one summarization call.
type Request struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// ModelInfo carries the backend's usage and timing figures. Durations are in
// nanoseconds as reported by Ollama; zero when the backend does not report them.
type ModelInfo struct {
	Model              string
	TotalDuration      int64
	LoadDuration       int64
	PromptEvalCount    int64
	PromptEvalDuration int64
	EvalCount          int64
	EvalDuration       int64
}

// Map renders the info as a record field value.
func (m ModelInfo) Map() map[string]any {
	return map[string]any{
		"model":                m.Model,
		"total_duration":       float64(m.TotalDuration),
		"load_duration":        float64(m.LoadDuration),
		"prompt_eval_count":    float64(m.PromptEvalCount),
		"prompt_eval_duration": float64(m.PromptEvalDuration),
		"eval_count":           float64(m.EvalCount),
		"eval_duration":        float64(m.EvalDuration),
	}
}

// Response is the result of a summarization call.
type Response struct {
	Summary string
	Info    ModelInfo
}

// Summarizer is the interface the summarize stage depends on.
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (Response, error)
}
