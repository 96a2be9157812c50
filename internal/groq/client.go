package groq

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

	"github.com/tidwall/gjson"
)

const (
	// DefaultBaseURL is the OpenAI-compatible Groq endpoint
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	// DefaultModel is a vision-capable model
	DefaultModel = "meta-llama/llama-4-scout-17b-16e-instruct"
)

// ErrEmptyCompletion is returned when the reply carries no message content.
var ErrEmptyCompletion = errors.New("completion contained no message content")

// FixRequest is a before/after pair submitted as proof that an issue was fixed.
// Images are data URLs or https URLs.
type FixRequest struct {
	BeforeImage string
	AfterImage  string
	Description string
	Title       string
}

// Verdict is the model's judgement of a fix.
type Verdict struct {
	Confidence int    `json:"confidence"`
	Reasoning  string `json:"reasoning"`
}

// Verifier judges fix submissions. The Groq client and the mock
// verification store both implement it.
type Verifier interface {
	VerifyFix(ctx context.Context, req FixRequest) (*Verdict, error)
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("groq API returned status %d: %s", e.StatusCode, e.Body)
}

// HTTPStatus reports the upstream status code.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// Client is a Groq chat-completions client
type Client struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewClient creates a new Groq client. An empty model selects DefaultModel.
func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: DefaultBaseURL,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// WithBaseURL points the client somewhere else, e.g. a test server.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// Name identifies the service in health reports.
func (c *Client) Name() string { return "groq" }

// Ping lists models, which is cheap and authenticated.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.send(ctx, http.MethodGet, "/models", nil)
	return err
}

// VerifyFix asks the model to compare the two images and parses its reply.
func (c *Client) VerifyFix(ctx context.Context, req FixRequest) (*Verdict, error) {
	payload := map[string]interface{}{
		"model":       c.model,
		"temperature": 0.1,
		"max_tokens":  500,
		"messages": []map[string]interface{}{
			{
				"role": "user",
				"content": []map[string]interface{}{
					{"type": "text", "text": buildPrompt(req.Title, req.Description)},
					{"type": "image_url", "image_url": map[string]string{"url": req.BeforeImage}},
					{"type": "image_url", "image_url": map[string]string{"url": req.AfterImage}},
				},
			},
		},
	}

	body, err := c.send(ctx, http.MethodPost, "/chat/completions", payload)
	if err != nil {
		return nil, err
	}

	content := gjson.GetBytes(body, "choices.0.message.content")
	if !content.Exists() || content.String() == "" {
		return nil, ErrEmptyCompletion
	}

	verdict := ParseVerification(content.String())
	return &verdict, nil
}

func buildPrompt(title, description string) string {
	return fmt.Sprintf(`You are verifying whether a reported community issue has been fixed.

Issue title: %s
Issue description: %s

The first image shows the issue BEFORE the fix. The second image shows the same place AFTER the claimed fix.
Rate from 1 to 10 how confident you are that the issue in the first image has been resolved in the second.

Respond in exactly this format:
CONFIDENCE: <number from 1 to 10>
REASONING: <one sentence explaining your rating>`, title, description)
}

func (c *Client) send(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
