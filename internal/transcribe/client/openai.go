package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultTimeout is the default HTTP request timeout for API calls.
const DefaultTimeout = 5 * time.Minute

// Default OpenAI models.
const (
	DefaultTranscriptionModel = openai.Whisper1
	DefaultTranslationModel   = openai.GPT4
)

// OpenAIOptions configures the OpenAI backends.
type OpenAIOptions struct {
	APIKey string
	// BaseURL overrides the API endpoint, e.g. for a compatible proxy.
	BaseURL            string
	TranscriptionModel string
	TranslationModel   string
	// SourceLanguage is an ISO-639-1 hint for transcription ("es").
	SourceLanguage string
	// SourceName and TargetName are used in the translation prompt ("Spanish", "English").
	SourceName string
	TargetName string
	Timeout    time.Duration
}

func newOpenAIClient(opts OpenAIOptions) *openai.Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(cfg)
}

// OpenAITranscriber implements Transcriber with the Whisper transcription endpoint.
type OpenAITranscriber struct {
	api      *openai.Client
	model    string
	language string
}

// NewOpenAITranscriber creates a Whisper transcriber.
func NewOpenAITranscriber(opts OpenAIOptions) *OpenAITranscriber {
	model := opts.TranscriptionModel
	if model == "" {
		model = DefaultTranscriptionModel
	}
	return &OpenAITranscriber{
		api:      newOpenAIClient(opts),
		model:    model,
		language: opts.SourceLanguage,
	}
}

// Transcribe uploads audioPath and returns the plain-text transcription.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	resp, err := t.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatText,
		Language: t.language,
	})
	if err != nil {
		return Result{}, fmt.Errorf("transcribe %s: %w", audioPath, err)
	}
	return TextResult(resp.Text), nil
}

// OpenAITranslator implements Translator with a chat completion.
type OpenAITranslator struct {
	api    *openai.Client
	model  string
	prompt string
}

// NewOpenAITranslator creates a chat-completion translator.
func NewOpenAITranslator(opts OpenAIOptions) *OpenAITranslator {
	model := opts.TranslationModel
	if model == "" {
		model = DefaultTranslationModel
	}
	source, target := opts.SourceName, opts.TargetName
	if source == "" {
		source = "Spanish"
	}
	if target == "" {
		target = "English"
	}
	return &OpenAITranslator{
		api:    newOpenAIClient(opts),
		model:  model,
		prompt: TranslationPrompt(source, target),
	}
}

// TranslationPrompt builds the system prompt for the translator.
func TranslationPrompt(source, target string) string {
	return fmt.Sprintf("You are a translator. Translate the following %s text to %s, maintaining the original meaning and tone.", source, target)
}

// Translate returns the first completion choice for text.
func (t *OpenAITranslator) Translate(ctx context.Context, text string) (Result, error) {
	resp, err := t.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: t.prompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("translate text: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{Kind: Empty}, nil
	}
	return TextResult(resp.Choices[0].Message.Content), nil
}
