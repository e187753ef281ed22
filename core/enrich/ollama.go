package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gaurav-prasanna/notepipe/core"
	"github.com/gaurav-prasanna/notepipe/core/chunk"
)

const (
	DefaultOllamaURL = "http://localhost:11434"
	generateTimeout  = 60 * time.Second
	promptWords      = 1500
)

const promptTemplate = `Analyze the note below. Reply with JSON only, using exactly these keys:
"summary": one or two sentences, at most %d words;
"keywords": up to %d lowercase keywords;
"sentiment": one of "positive", "negative", "neutral".

Note:
%s`

// OllamaEnricher asks an Ollama-compatible /api/generate endpoint for the
// enrichment. The note text is cut to the first promptWords words.
type OllamaEnricher struct {
	BaseURL      string
	Model        string
	SummaryWords int
	MaxKeywords  int
	client       *http.Client
}

// NewOllama creates an OllamaEnricher. An empty baseURL uses
// DefaultOllamaURL; a non-positive timeout uses 60s.
func NewOllama(baseURL, model string, summaryWords, maxKeywords int, timeout time.Duration) *OllamaEnricher {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if timeout <= 0 {
		timeout = generateTimeout
	}
	local := NewLocal(summaryWords, maxKeywords)
	return &OllamaEnricher{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		Model:        model,
		SummaryWords: local.SummaryWords,
		MaxKeywords:  local.MaxKeywords,
		client:       &http.Client{Timeout: timeout},
	}
}

// generateRequest is the request body for the Ollama generate API.
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Format string `json:"format"`
	Stream bool   `json:"stream"`
}

// generateResponse is the non-streaming response of the generate API.
type generateResponse struct {
	Response string `json:"response"`
}

// Enrich sends the note text to the model and parses its JSON answer.
func (e *OllamaEnricher) Enrich(ctx context.Context, text string) (core.Enrichment, error) {
	excerpt, _ := chunk.New(promptWords).First(text)
	if excerpt == "" {
		return core.Enrichment{Sentiment: Neutral}, nil
	}

	reqBody := generateRequest{
		Model:  e.Model,
		Prompt: fmt.Sprintf(promptTemplate, e.SummaryWords, e.MaxKeywords, excerpt),
		Format: "json",
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return core.Enrichment{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/api/generate", bytes.NewReader(bodyBytes))
	if err != nil {
		return core.Enrichment{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return core.Enrichment{}, fmt.Errorf("calling Ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return core.Enrichment{}, fmt.Errorf("Ollama API returned %d: %s", resp.StatusCode, string(body))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return core.Enrichment{}, fmt.Errorf("decoding Ollama response: %w", err)
	}

	var out core.Enrichment
	if err := json.Unmarshal([]byte(genResp.Response), &out); err != nil {
		return core.Enrichment{}, fmt.Errorf("decoding model answer: %w", err)
	}
	return e.tidy(out), nil
}

// tidy bounds the model's answer to the configured sizes and labels.
func (e *OllamaEnricher) tidy(in core.Enrichment) core.Enrichment {
	out := core.Enrichment{
		Summary:   Summarize(in.Summary, e.SummaryWords),
		Sentiment: strings.ToLower(strings.TrimSpace(in.Sentiment)),
	}
	switch out.Sentiment {
	case Positive, Negative, Neutral:
	default:
		out.Sentiment = Neutral
	}

	seen := make(map[string]bool)
	for _, k := range in.Keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out.Keywords = append(out.Keywords, k)
		if len(out.Keywords) == e.MaxKeywords {
			break
		}
	}
	return out
}
