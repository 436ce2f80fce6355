package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/skybrief/turbcast/internal/advisory"
	"github.com/skybrief/turbcast/pkg/logger"
)

// DefaultHost is the default host for the Gemini API
const DefaultHost = "generativelanguage.googleapis.com"

// Client calls the Gemini generateContent REST endpoint
type Client struct {
	apiKey     string
	host       string
	scheme     string
	logger     *logger.Logger
	httpClient *http.Client
}

// NewClient creates a new Gemini client
func NewClient(apiKey string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		host:   DefaultHost,
		scheme: "https",
		logger: log.Named("gemini"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ChatCompletion implements advisory.ChatProvider
func (c *Client) ChatCompletion(ctx context.Context, messages []advisory.ChatMessage, config advisory.ChatConfig) (string, error) {
	apiURL := fmt.Sprintf("%s://%s/v1beta/models/%s:generateContent?key=%s", c.scheme, c.host, config.Model, c.apiKey)

	type Part struct {
		Text string `json:"text,omitempty"`
	}
	type Content struct {
		Role  string `json:"role,omitempty"`
		Parts []Part `json:"parts"`
	}

	contents := []Content{}
	var systemInstruction *Content

	for _, msg := range messages {
		if msg.Role == "system" {
			systemInstruction = &Content{
				Parts: []Part{{Text: msg.Content}},
			}
			continue
		}

		role := "user"
		if msg.Role == "assistant" {
			role = "model"
		}

		contents = append(contents, Content{
			Role:  role,
			Parts: []Part{{Text: msg.Content}},
		})
	}

	reqBody := map[string]any{
		"contents": contents,
		"generationConfig": map[string]any{
			"temperature":     config.Temperature,
			"maxOutputTokens": config.MaxTokens,
		},
	}
	if systemInstruction != nil {
		reqBody["systemInstruction"] = systemInstruction
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("gemini chat failed: %s %s", resp.Status, string(body))
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	if len(result.Candidates) > 0 && len(result.Candidates[0].Content.Parts) > 0 {
		return result.Candidates[0].Content.Parts[0].Text, nil
	}

	return "", fmt.Errorf("no content in gemini response")
}
