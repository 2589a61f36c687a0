// Package vision drafts notice and exterior-aspect text from before/after
// photos with a vision LLM, and produces "after" pictures with an image
// generation model.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	httpclient "dossier-workers/internal/common/http"
	"dossier-workers/internal/common/logger"
	"dossier-workers/internal/models"
)

var (
	ErrVisionTimeout   = errors.New("VISION_TIMEOUT")
	ErrVisionFailed    = errors.New("VISION_FAILED")
	ErrOutputInvalid   = errors.New("VISION_OUTPUT_INVALID")
	ErrInvalidRequest  = errors.New("VISION_REQUEST_INVALID")
	errRetryableStatus = errors.New("retryable status")
)

const (
	defaultTemperature = 0.3
	defaultMaxTokens   = 4096
	maxResponseBytes   = 32 << 20
)

type Config struct {
	BaseURL      string
	APIKey       string
	Models       map[string]string
	DefaultModel string
	MaxRetries   int
	AssetRoot    string

	ImageGenURL   string
	ImageGenKey   string
	ImageGenModel string
}

type Client struct {
	config Config
	http   *httpclient.Client
	log    logger.Logger
}

func NewClient(config Config, client *httpclient.Client, log logger.Logger) *Client {
	return &Client{
		config: config,
		http:   client,
		log:    log.WithFields(map[string]interface{}{"component": "vision"}),
	}
}

// Request is one photo analysis call.
type Request struct {
	Model       string            `json:"model"`
	Prompt      string            `json:"prompt"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"maxTokens"`
	Before      []models.ImageRef `json:"before"`
	After       []models.ImageRef `json:"after"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ModelName maps a caller alias to the provider model name. Unknown names
// pass through unchanged.
func (c *Client) ModelName(alias string) (string, string) {
	if alias == "" {
		alias = c.config.DefaultModel
	}
	if name, ok := c.config.Models[alias]; ok {
		return alias, name
	}
	return alias, alias
}

// Describe sends the photos and prompt and parses the reply. The raw reply
// is returned alongside the error when it cannot be decoded.
func (c *Client) Describe(ctx context.Context, req Request) (*Description, string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, "", fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}

	parts := make([]contentPart, 0, len(req.Before)+len(req.After)+1)
	for _, ref := range append(append([]models.ImageRef{}, req.Before...), req.After...) {
		if ref.Empty() {
			continue
		}
		url, err := c.DataURL(ref)
		if err != nil {
			c.log.Warn("Photo skipped", map[string]interface{}{"error": err.Error()})
			continue
		}
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: url}})
	}
	parts = append(parts, contentPart{Type: "text", Text: req.Prompt})

	alias, model := c.ModelName(req.Model)
	body := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPromptFor(alias)},
			{Role: "user", Content: parts},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if body.Temperature <= 0 {
		body.Temperature = defaultTemperature
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = defaultMaxTokens
	}

	c.log.Info("Calling vision model", map[string]interface{}{
		"model":  model,
		"images": len(parts) - 1,
	})

	respBody, err := c.post(ctx, strings.TrimRight(c.config.BaseURL, "/")+"/chat/completions", c.config.APIKey, body)
	if err != nil {
		return nil, "", err
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return nil, "", fmt.Errorf("%w: decode error: %v", ErrVisionFailed, err)
	}
	if len(chat.Choices) == 0 {
		return nil, "", fmt.Errorf("%w: no choices in response", ErrOutputInvalid)
	}

	raw := chat.Choices[0].Message.Content
	desc, err := ParseDescription(raw)
	if err != nil {
		return nil, raw, err
	}
	return desc, raw, nil
}

// TransformRequest asks the image model to edit a photo.
type TransformRequest struct {
	Prompt string          `json:"prompt"`
	Image  models.ImageRef `json:"image"`
}

type transformPayload struct {
	Model       string  `json:"model,omitempty"`
	Prompt      string  `json:"prompt"`
	Image       string  `json:"image"`
	AspectRatio string  `json:"aspect_ratio"`
	Steps       int     `json:"steps"`
	CFGScale    float64 `json:"cfg_scale"`
	Seed        int     `json:"seed"`
}

type transformResponse struct {
	Artifacts []struct {
		Base64       string `json:"base64"`
		FinishReason string `json:"finishReason"`
	} `json:"artifacts"`
	Image string `json:"image"`
}

// Transform returns the generated picture as a JPEG data URL.
func (c *Client) Transform(ctx context.Context, req TransformRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" || req.Image.Empty() {
		return "", fmt.Errorf("%w: image and prompt are required", ErrInvalidRequest)
	}
	src, err := c.DataURL(req.Image)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	respBody, err := c.post(ctx, c.config.ImageGenURL, c.config.ImageGenKey, transformPayload{
		Model:       c.config.ImageGenModel,
		Prompt:      req.Prompt,
		Image:       src,
		AspectRatio: "match_input_image",
		Steps:       30,
		CFGScale:    3.5,
	})
	if err != nil {
		return "", err
	}

	var out transformResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("%w: decode error: %v", ErrVisionFailed, err)
	}
	for _, a := range out.Artifacts {
		if a.Base64 != "" {
			return "data:image/jpeg;base64," + a.Base64, nil
		}
	}
	if out.Image != "" {
		if strings.HasPrefix(out.Image, "data:") {
			return out.Image, nil
		}
		return "data:image/jpeg;base64," + out.Image, nil
	}
	return "", fmt.Errorf("%w: no image in response", ErrOutputInvalid)
}

// post sends a JSON body with bearer auth, retrying 5xx and 429 answers with
// exponential backoff. A context deadline maps to ErrVisionTimeout.
func (c *Client) post(ctx context.Context, url, apiKey string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVisionFailed, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ErrVisionTimeout
			}
		}

		respBody, err := c.postOnce(ctx, url, apiKey, body)
		if err == nil {
			return respBody, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ErrVisionTimeout
		}
		if !errors.Is(err, errRetryableStatus) && !isTransport(err) {
			break
		}
		c.log.Warn("Model call failed, retrying", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}
	return nil, fmt.Errorf("%w: %w", ErrVisionFailed, lastErr)
}

type transportError struct{ err error }

func (e transportError) Error() string { return e.err.Error() }

func isTransport(err error) bool {
	var te transportError
	return errors.As(err, &te)
}

func (c *Client) postOnce(ctx context.Context, url, apiKey string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError{err}
	}
	defer resp.Body.Close()

	data, err := httpclient.ReadLimited(resp.Body, maxResponseBytes)
	if errors.Is(err, httpclient.ErrBodyTooLarge) {
		return nil, err
	}
	if err != nil {
		return nil, transportError{err}
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: status %d", errRetryableStatus, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
	return data, nil
}

// DataURL turns an image reference into a data URL. Asset paths are read
// from the configured asset root.
func (c *Client) DataURL(ref models.ImageRef) (string, error) {
	s := strings.TrimSpace(string(ref))
	if strings.HasPrefix(s, "data:") {
		return s, nil
	}
	if path.Ext(s) != "" && (strings.HasPrefix(s, "/") || strings.Contains(s, "/")) {
		if c.config.AssetRoot == "" {
			return "", fmt.Errorf("asset %q: no asset root configured", s)
		}
		clean := path.Clean("/" + s)
		data, err := os.ReadFile(filepath.Join(c.config.AssetRoot, filepath.FromSlash(clean)))
		if err != nil {
			return "", fmt.Errorf("asset %q: %w", s, err)
		}
		mime := "image/jpeg"
		if strings.EqualFold(path.Ext(clean), ".png") {
			mime = "image/png"
		}
		return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
	}
	return "data:image/jpeg;base64," + s, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
