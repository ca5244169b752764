package summarize

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docpipe/constants"
	"github.com/joseph-ayodele/docpipe/internal/common"
	"github.com/joseph-ayodele/docpipe/internal/core/llm"
	"github.com/joseph-ayodele/docpipe/internal/entity"
)

type recordingClient struct {
	reqs []llm.Request
	resp llm.Response
	err  error
}

func (c *recordingClient) Summarize(_ context.Context, req llm.Request) (llm.Response, error) {
	c.reqs = append(c.reqs, req)
	return c.resp, c.err
}

func TestStage_FieldsModeStripsBookkeeping(t *testing.T) {
	c := &recordingClient{resp: llm.Response{Summary: "It is a report.", Info: llm.ModelInfo{Model: "llama3", EvalCount: 7}}}
	opts := DefaultOptions()
	opts.PromptTemplate = "Data: {{data}} / again: {{data}}"
	opts.IncludeInputData = true
	s, err := NewStage(opts, c, nil)
	require.NoError(t, err)

	rec := entity.NewRecord(entity.Fields{
		"title":              "Report",
		"amount":             math.NaN(),
		"rawText":            "raw",
		"success":            true,
		"extractionMetadata": map[string]any{"totalRules": 3.0},
	})
	out, err := s.Transform(context.Background(), rec)
	require.NoError(t, err)

	data := "{\n  \"amount\": null,\n  \"title\": \"Report\"\n}"
	require.Len(t, c.reqs, 1)
	assert.Equal(t, "Data: "+data+" / again: "+data, c.reqs[0].Prompt)
	assert.Equal(t, 0.7, c.reqs[0].Temperature)
	assert.Equal(t, 500, c.reqs[0].MaxTokens)

	assert.Equal(t, "It is a report.", out.Fields["summary"])
	assert.Equal(t, data, out.Fields["inputData"])
	info := out.Fields["modelInfo"].(map[string]any)
	assert.Equal(t, "llama3", info["model"])
	assert.Equal(t, 7.0, info["eval_count"])
}

func TestStage_TextMode(t *testing.T) {
	c := &recordingClient{resp: llm.Response{Summary: "s"}}
	opts := DefaultOptions()
	opts.InputMode = InputText
	opts.IncludeModelInfo = false
	s, err := NewStage(opts, c, nil)
	require.NoError(t, err)

	out, err := s.Transform(context.Background(), entity.NewRecord(entity.Fields{"text": "hello world"}))
	require.NoError(t, err)
	assert.Equal(t, entity.Fields{"summary": "s"}, out.Fields)
	assert.Contains(t, c.reqs[0].Prompt, "hello world")

	_, err = s.Transform(context.Background(), entity.NewRecord(nil))
	assert.ErrorIs(t, err, common.ErrMissingInput)

	_, err = s.Transform(context.Background(), entity.NewRecord(entity.Fields{"rawText": "from parser"}))
	require.NoError(t, err)
	assert.Contains(t, c.reqs[1].Prompt, "from parser")
}

func TestStage_ClientErrorPassesThrough(t *testing.T) {
	c := &recordingClient{err: common.ExternalCallErrorf("Error calling Ollama API: connect: connection refused")}
	s, err := NewStage(DefaultOptions(), c, nil)
	require.NoError(t, err)

	_, err = s.Transform(context.Background(), entity.NewRecord(entity.Fields{"a": "b"}))
	assert.EqualError(t, err, "Error calling Ollama API: connect: connection refused")
}

func TestNewStage_ValidatesOptions(t *testing.T) {
	bad := []func(*Options){
		func(o *Options) { o.Temperature = 1.5 },
		func(o *Options) { o.MaxTokens = 0 },
		func(o *Options) { o.APIMethod = "embeddings" },
		func(o *Options) { o.Provider = "anthropic" },
		func(o *Options) { o.InputMode = "binary" },
	}
	for _, mutate := range bad {
		opts := DefaultOptions()
		mutate(&opts)
		_, err := NewStage(opts, &recordingClient{}, nil)
		assert.ErrorIs(t, err, common.ErrConfiguration)
	}
}

func TestStage_WithOllamaBackend(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"model":"llama3","response":"Backend summary.","total_duration":42}`))
	}))
	defer srv.Close()

	opts := DefaultOptions()
	opts.Endpoint = srv.URL
	opts.APIMethod = constants.APIGenerate
	s, err := NewStage(opts, nil, nil)
	require.NoError(t, err)

	out, err := s.Transform(context.Background(), entity.NewRecord(entity.Fields{"title": "Report"}))
	require.NoError(t, err)
	assert.Equal(t, "Backend summary.", out.Fields["summary"])
	assert.Equal(t, 42.0, out.Fields["modelInfo"].(map[string]any)["total_duration"])
	assert.Contains(t, body["prompt"], "\"title\": \"Report\"")
}

func TestOpenAIBaseURL(t *testing.T) {
	assert.Equal(t, "", openAIBaseURL(constants.DefaultOllamaEndpoint))
	assert.Equal(t, "", openAIBaseURL(constants.DefaultOllamaEndpoint+"/"))
	assert.Equal(t, "https://gateway.example/v1", openAIBaseURL("https://gateway.example/v1"))
	assert.Equal(t, "", openAIBaseURL(""))
}
