package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/robertrittmuller/stagemaster-ai/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("openrouter: api key is required")

const (
	defaultBaseURL      = "https://openrouter.ai/api/v1"
	defaultTextTimeout  = 120 * time.Second
	defaultImageTimeout = 60 * time.Second
	modelPrefix         = "openrouter/"
	maxErrorBody        = 4 << 10
)

// Options configures the OpenRouter chat completions client.
type Options struct {
	APIKey       string
	BaseURL      string
	Referer      string
	Title        string
	HTTPClient   *http.Client
	TextTimeout  time.Duration
	ImageTimeout time.Duration
	Logger       *infra.Logger
}

// Client talks to the OpenRouter chat completions endpoint for both text and
// image-modal requests.
type Client struct {
	apiKey       string
	baseURL      string
	referer      string
	title        string
	httpClient   *http.Client
	textTimeout  time.Duration
	imageTimeout time.Duration
	logger       *infra.Logger
}

// Message is one chat turn. A message holding a single text part is sent with
// a plain string content.
type Message struct {
	Role    string
	Content []ContentPart
}

// ContentPart is either a text part or an image_url part.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// UserText builds a user message with a single text part.
func UserText(text string) Message {
	return Message{Role: "user", Content: []ContentPart{TextPart(text)}}
}

func TextPart(text string) ContentPart {
	return ContentPart{Type: "text", Text: text}
}

func ImagePart(url string) ContentPart {
	return ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: url}}
}

func (m Message) MarshalJSON() ([]byte, error) {
	if len(m.Content) == 1 && m.Content[0].Type == "text" {
		return json.Marshal(struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}{Role: m.Role, Content: m.Content[0].Text})
	}
	return json.Marshal(struct {
		Role    string        `json:"role"`
		Content []ContentPart `json:"content"`
	}{Role: m.Role, Content: m.Content})
}

// ResponseMessage is the assistant message of the first choice.
type ResponseMessage struct {
	Role    string          `json:"role"`
	Content string          `json:"content"`
	Images  []ResponseImage `json:"images,omitempty"`
}

type ResponseImage struct {
	Type     string   `json:"type"`
	ImageURL ImageURL `json:"image_url"`
}

// FirstImageURL returns the url of the first returned image, if any.
func (m *ResponseMessage) FirstImageURL() string {
	if m == nil || len(m.Images) == 0 {
		return ""
	}
	return strings.TrimSpace(m.Images[0].ImageURL.URL)
}

type chatRequest struct {
	Model      string    `json:"model"`
	Messages   []Message `json:"messages"`
	Modalities []string  `json:"modalities,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message ResponseMessage `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    any    `json:"code"`
	Message string `json:"message"`
}

// NewClient constructs a client with defaults for anything left empty.
func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	textTimeout := opts.TextTimeout
	if textTimeout <= 0 {
		textTimeout = defaultTextTimeout
	}
	imageTimeout := opts.ImageTimeout
	if imageTimeout <= 0 {
		imageTimeout = defaultImageTimeout
	}
	return &Client{
		apiKey:       apiKey,
		baseURL:      baseURL,
		referer:      strings.TrimSpace(opts.Referer),
		title:        strings.TrimSpace(opts.Title),
		httpClient:   httpClient,
		textTimeout:  textTimeout,
		imageTimeout: imageTimeout,
		logger:       infra.LoggerOrDiscard(opts.Logger),
	}, nil
}

// NormalizeModel strips the routing prefix some configs carry in front of the
// provider/model name.
func NormalizeModel(model string) string {
	return strings.TrimPrefix(strings.TrimSpace(model), modelPrefix)
}

// Complete runs a chat completion and returns the text of the first choice.
func (c *Client) Complete(ctx context.Context, model string, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.textTimeout)
	defer cancel()

	msg, err := c.chat(ctx, chatRequest{Model: NormalizeModel(model), Messages: messages})
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// Generate runs a chat completion with output modalities such as
// ["image", "text"] and returns the whole assistant message.
func (c *Client) Generate(ctx context.Context, model string, messages []Message, modalities []string) (*ResponseMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.imageTimeout)
	defer cancel()

	return c.chat(ctx, chatRequest{Model: NormalizeModel(model), Messages: messages, Modalities: modalities})
}

func (c *Client) chat(ctx context.Context, payload chatRequest) (*ResponseMessage, error) {
	if payload.Model == "" {
		return nil, errors.New("openrouter: model is required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("openrouter: encode request: %w", err)
	}
	endpoint := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openrouter: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}

	start := time.Now()
	c.logger.Debug().
		Str("model", payload.Model).
		Strs("modalities", payload.Modalities).
		Int("messages", len(payload.Messages)).
		Msg("openrouter: request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openrouter: request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("openrouter: status %d: %s", resp.StatusCode, errorMessage(raw))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("openrouter: decode response: %w", err)
	}
	if out.Error != nil && out.Error.Message != "" {
		return nil, fmt.Errorf("openrouter: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return nil, errors.New("openrouter: no choices in response")
	}

	c.logger.Debug().
		Str("model", payload.Model).
		Dur("elapsed", time.Since(start)).
		Int("images", len(out.Choices[0].Message.Images)).
		Msg("openrouter: response")

	msg := out.Choices[0].Message
	return &msg, nil
}

func errorMessage(raw []byte) string {
	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "empty response body"
	}
	return text
}
