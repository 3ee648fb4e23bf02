package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/automaton-ingest/internal/domain/ai"
	"github.com/bryanwahyu/automaton-ingest/internal/infra/ai/prompt"
)

const maxTokens = 512

// Client implements ai.Transcriber and ai.Classifier on the OpenAI API.
type Client struct {
	*openai.Client
	TranscriptionModel string
	ChatModel          string
}

var (
	_ ai.Transcriber = (*Client)(nil)
	_ ai.Classifier  = (*Client)(nil)
)

// NewClient builds a client. baseURL is optional and points at any
// OpenAI-compatible endpoint.
func NewClient(apiKey, baseURL, transcriptionModel, chatModel string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		Client:             openai.NewClientWithConfig(cfg),
		TranscriptionModel: transcriptionModel,
		ChatModel:          chatModel,
	}
}

// Transcribe sends the audio artifact to the transcription endpoint.
// A 4xx rejection of the input is a failed transcript, not an error.
func (c *Client) Transcribe(ctx context.Context, name string, audio []byte) (ai.Transcript, error) {
	model := c.TranscriptionModel
	if model == "" {
		model = openai.Whisper1
	}
	resp, err := c.CreateTranscription(ctx, openai.AudioRequest{
		Model:    model,
		FilePath: name,
		Reader:   bytes.NewReader(audio),
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return classifyError(err)
	}
	return ai.Transcript{Status: ai.TranscriptCompleted, Text: strings.TrimSpace(resp.Text)}, nil
}

// Classify asks the chat model for genre and themes as a JSON object.
func (c *Client) Classify(ctx context.Context, text string) (ai.Classification, error) {
	model := c.ChatModel
	if model == "" {
		model = openai.GPT4oMini
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.GetUserPrompt(text)},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if isReasoningModel(model) {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		if isQuota(err) {
			return ai.Classification{}, fmt.Errorf("%w: %v", ai.ErrQuotaExceeded, err)
		}
		return ai.Classification{}, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ai.Classification{}, ai.ErrEmptyResponse
	}
	return prompt.ParseClassification(resp.Choices[0].Message.Content)
}

func isReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

func isQuota(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.Type == "insufficient_quota"
	}
	var reqErr *openai.RequestError
	return errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests
}

// classifyError splits transcription errors into a rejected input (domain
// outcome) and everything else (transport problem).
func classifyError(err error) (ai.Transcript, error) {
	if isQuota(err) {
		return ai.Transcript{}, fmt.Errorf("%w: %v", ai.ErrQuotaExceeded, err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 {
		return ai.Transcript{Status: ai.TranscriptFailed, Error: apiErr.Message}, nil
	}
	return ai.Transcript{}, fmt.Errorf("transcription request: %w", err)
}
