package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// OutputFormat specifies the response format from the whisper-asr-webservice.
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// WhisperASRClient implements Transcriber for a self-hosted
// onerahmet/openai-whisper-asr-webservice instance.
type WhisperASRClient struct {
	baseURL    string
	language   string
	httpClient *http.Client
	timeout    time.Duration
	output     OutputFormat
}

// WhisperASROption configures the WhisperASRClient.
type WhisperASROption func(*WhisperASRClient)

// WithTimeout sets the HTTP request timeout on a copy of the client.
func WithTimeout(d time.Duration) WhisperASROption {
	return func(c *WhisperASRClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithOutputFormat sets the response format (text or json).
func WithOutputFormat(format OutputFormat) WhisperASROption {
	return func(c *WhisperASRClient) {
		c.output = format
	}
}

// WithLanguage sets the source language hint; "" or "auto" lets the service detect it.
func WithLanguage(lang string) WhisperASROption {
	return func(c *WhisperASRClient) {
		c.language = lang
	}
}

// WithHTTPClient sets a custom HTTP client. A nil client is ignored.
func WithHTTPClient(client *http.Client) WhisperASROption {
	return func(c *WhisperASRClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewWhisperASRClient creates a new client for the whisper-asr-webservice.
func NewWhisperASRClient(baseURL string, opts ...WhisperASROption) *WhisperASRClient {
	c := &WhisperASRClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		output: OutputFormatJSON,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}

	return c
}

// Transcribe posts the audio file as multipart form data to /asr.
func (c *WhisperASRClient) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return Result{}, fmt.Errorf("open audio file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("audio_file", filepath.Base(audioPath))
	if err != nil {
		return Result{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return Result{}, fmt.Errorf("copy audio data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Result{}, fmt.Errorf("close multipart writer: %w", err)
	}

	reqURL, err := c.buildURL()
	if err != nil {
		return Result{}, fmt.Errorf("build URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, &buf)
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Result{}, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return c.parseResponse(resp.Body)
}

func (c *WhisperASRClient) buildURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}

	if u.Path == "" || u.Path == "/" {
		u.Path = "/asr"
	}

	q := u.Query()
	q.Set("output", string(c.output))
	q.Set("task", "transcribe")

	if c.language != "" && c.language != "auto" {
		q.Set("language", c.language)
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *WhisperASRClient) parseResponse(body io.Reader) (Result, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}

	if c.output == OutputFormatText {
		return TextResult(string(data)), nil
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Result{Kind: Empty}, nil
	}
	if trimmed[0] != '{' {
		return Result{Kind: Unsupported}, nil
	}

	var resp whisperASRResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return Result{}, fmt.Errorf("parse JSON response: %w", err)
	}
	if resp.Text == nil {
		if len(resp.Segments) > 0 {
			return Result{Kind: Unsupported}, nil
		}
		return Result{Kind: Empty}, nil
	}

	return TextResult(*resp.Text), nil
}

// whisperASRResponse represents the JSON response from the whisper-asr-webservice.
type whisperASRResponse struct {
	Text     *string           `json:"text"`
	Language string            `json:"language"`
	Segments []json.RawMessage `json:"segments"`
}
