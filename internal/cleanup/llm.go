package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

const cleanupSystemPrompt = `You clean up medical dictation transcripts in Persian and English.
Remove filler words, repeated false starts, and dictation artifacts.
Fix obvious punctuation mistakes. Do NOT translate, summarize, reorder,
or change any medical terms, codes, or numbers. Return only the cleaned
transcript text with no commentary.`

const (
	defaultLLMModel       = "gpt-4o-mini"
	defaultLLMTemperature = 0.1
	defaultLLMTimeout     = 30 * time.Second
)

// LLM cleans transcripts through a chat-completion model. API failures
// surface as errors so a [Failover] can hand the transcript to the next
// cleaner; an implausible model response falls back to the input text.
type LLM struct {
	client      oai.Client
	model       string
	temperature float64
	logger      *slog.Logger
}

// LLMOption configures an LLM cleaner.
type LLMOption func(*LLM)

// WithModel overrides the chat model.
func WithModel(model string) LLMOption {
	return func(l *LLM) {
		if model != "" {
			l.model = model
		}
	}
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) LLMOption {
	return func(l *LLM) {
		l.temperature = t
	}
}

// WithLogger sets the logger used for fallback diagnostics.
func WithLogger(logger *slog.Logger) LLMOption {
	return func(l *LLM) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLLM builds an LLM cleaner. baseURL is optional; leave it empty for
// the default OpenAI endpoint.
func NewLLM(apiKey, baseURL string, opts ...LLMOption) (*LLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("cleanup: api key is required")
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: defaultLLMTimeout}),
	}
	if baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}

	l := &LLM{
		client:      oai.NewClient(clientOpts...),
		model:       defaultLLMModel,
		temperature: defaultLLMTemperature,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Clean sends the transcript to the model and returns the cleaned text.
// API failures are returned as errors so callers (typically a [Failover])
// can switch to another cleaner. A response that shrank or grew beyond
// plausibility is not a failure: the model answered, but its answer is
// unusable, so the original text is returned with a nil error.
func (l *LLM) Clean(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(l.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(cleanupSystemPrompt),
			oai.UserMessage(text),
		},
	}
	params.Temperature = param.NewOpt(l.temperature)

	resp, err := l.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("cleanup: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("cleanup: chat completion returned no choices")
	}

	cleaned := strings.TrimSpace(resp.Choices[0].Message.Content)
	if !plausible(text, cleaned) {
		l.logger.WarnContext(ctx, "llm cleanup response implausible, keeping original text",
			"input_len", len(text), "output_len", len(cleaned))
		return text, nil
	}
	return cleaned, nil
}

// plausible rejects responses that are empty, or so much shorter or longer
// than the input that the model likely summarized or hallucinated.
func plausible(in, out string) bool {
	if out == "" {
		return false
	}
	n, m := len(in), len(out)
	return m >= n/3 && m <= n*2+64
}
