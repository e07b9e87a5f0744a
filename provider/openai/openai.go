package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/brieferhq/briefer/provider"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client talks to the OpenAI API over plain HTTP: chat completions for the
// agent prompts and the responses API for background deep research.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	onUsage    func(model string, promptTokens, completionTokens int64)
}

// NewClient creates an OpenAI client. baseURL may be empty.
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

// OnUsage registers a callback invoked with the token counts of every
// successful chat completion.
func (c *Client) OnUsage(fn func(model string, promptTokens, completionTokens int64)) {
	c.onUsage = fn
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete sends a chat completion request and returns the first choice.
func (c *Client) Complete(ctx context.Context, model, system, user string) (string, error) {
	messages := make([]message, 0, 2)
	if system != "" {
		messages = append(messages, message{Role: "system", Content: system})
	}
	messages = append(messages, message{Role: "user", Content: user})

	body, err := json.Marshal(chatRequest{Model: model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status: %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	if c.onUsage != nil {
		c.onUsage(model, parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens)
	}
	return parsed.Choices[0].Message.Content, nil
}

type responsesRequest struct {
	Model      string         `json:"model"`
	Input      string         `json:"input"`
	Tools      []responseTool `json:"tools,omitempty"`
	Background bool           `json:"background,omitempty"`
}

type responseTool struct {
	Type string `json:"type"`
}

type responsesPayload struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	OutputText string `json:"output_text"`
	Citations  []struct {
		Title      string `json:"title"`
		URL        string `json:"url"`
		Snippet    string `json:"snippet"`
		SourceType string `json:"source_type"`
	} `json:"citations"`
	Output []struct {
		Type string `json:"type"`
		Text string `json:"text"`
		Note string `json:"note"`
	} `json:"output"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// StartResponse launches a background responses-API job with web search
// enabled and returns the response id for polling.
func (c *Client) StartResponse(ctx context.Context, model, input string) (string, error) {
	body, err := json.Marshal(responsesRequest{
		Model:      model,
		Input:      input,
		Tools:      []responseTool{{Type: "web_search"}},
		Background: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/responses", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status: %d", resp.StatusCode)
	}

	var parsed responsesPayload
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("background response did not return an id")
	}
	return parsed.ID, nil
}

// FetchResponse retrieves the current state of a background job.
func (c *Client) FetchResponse(ctx context.Context, id string) (provider.ResponseSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/responses/"+id, nil)
	if err != nil {
		return provider.ResponseSnapshot{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.ResponseSnapshot{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return provider.ResponseSnapshot{}, fmt.Errorf("response %s not found", id)
	}
	if resp.StatusCode != http.StatusOK {
		return provider.ResponseSnapshot{}, fmt.Errorf("API returned status: %d", resp.StatusCode)
	}

	var parsed responsesPayload
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return provider.ResponseSnapshot{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" && parsed.Status == "" {
		parsed.Status = "failed"
	}

	snapshot := provider.ResponseSnapshot{
		ID:         parsed.ID,
		Status:     parsed.Status,
		OutputText: parsed.OutputText,
	}
	for _, cit := range parsed.Citations {
		snapshot.Citations = append(snapshot.Citations, provider.ResponseCitation(cit))
	}
	for _, item := range parsed.Output {
		if item.Note != "" {
			snapshot.Notes = append(snapshot.Notes, item.Note)
		}
	}
	return snapshot, nil
}
