package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAITranscriber(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "chunk.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("fake mp3"), 0644))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "text", r.FormValue("response_format"))
		assert.Equal(t, "es", r.FormValue("language"))
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("Hola"))
	}))
	defer server.Close()

	tr := NewOpenAITranscriber(OpenAIOptions{APIKey: "test-key", BaseURL: server.URL + "/v1", SourceLanguage: "es"})
	result, err := tr.Transcribe(context.Background(), audio)
	require.NoError(t, err)
	assert.Equal(t, OK, result.Kind)
	assert.Equal(t, "Hola", result.Text)
}

func TestOpenAITranscriberServerError(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "chunk.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("fake mp3"), 0644))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer server.Close()

	tr := NewOpenAITranscriber(OpenAIOptions{APIKey: "test-key", BaseURL: server.URL + "/v1"})
	_, err := tr.Transcribe(context.Background(), audio)
	require.Error(t, err)
	status, ok := StatusCode(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, ClassTransient, Classify(err))
}

func TestOpenAITranslator(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4", req.Model)
		if !assert.Len(t, req.Messages, 2) {
			return
		}
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, TranslationPrompt("Spanish", "English"), req.Messages[0].Content)
		assert.Equal(t, "Hola", req.Messages[1].Content)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Hello"}}]}`))
	}))
	defer server.Close()

	tr := NewOpenAITranslator(OpenAIOptions{APIKey: "test-key", BaseURL: server.URL + "/v1"})
	result, err := tr.Translate(context.Background(), "Hola")
	require.NoError(t, err)
	assert.Equal(t, OK, result.Kind)
	assert.Equal(t, "Hello", result.Text)
}

func TestOpenAITranslatorNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	}))
	defer server.Close()

	tr := NewOpenAITranslator(OpenAIOptions{APIKey: "test-key", BaseURL: server.URL + "/v1"})
	result, err := tr.Translate(context.Background(), "Hola")
	require.NoError(t, err)
	assert.Equal(t, Empty, result.Kind)
}

func TestTranslationPrompt(t *testing.T) {
	assert.Equal(t,
		"You are a translator. Translate the following Spanish text to English, maintaining the original meaning and tone.",
		TranslationPrompt("Spanish", "English"))
}
