// Package gen talks to the external question-generation service. The
// service is treated as an opaque, non-deterministic collaborator: the
// same subject may yield different questions on every call, and nothing
// here retries or caches.
package gen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"smartquiz-service/internal/domain"
)

// Client calls the generation endpoint over HTTP JSON.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// Config for the generator endpoint.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}
}

type generateRequest struct {
	Model    string `json:"model,omitempty"`
	Subject  string `json:"subject"`
	Count    int    `json:"count"`
	Language string `json:"language"`
}

type generateResponse struct {
	Questions []domain.Question `json:"questions"`
	Error     string            `json:"error,omitempty"`
}

// Generate requests count questions for the subject. Questions failing the
// MCQ invariants are dropped rather than poisoning a session.
func (c *Client) Generate(ctx context.Context, subject string, count int, language string) ([]domain.Question, error) {
	body, err := json.Marshal(generateRequest{
		Model:    c.model,
		Subject:  subject,
		Count:    count,
		Language: language,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/questions:generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("generate questions: status %d: %s", resp.StatusCode, snippet)
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode generation response: %w", err)
	}
	if decoded.Error != "" {
		return nil, fmt.Errorf("generate questions: %s", decoded.Error)
	}

	questions := make([]domain.Question, 0, len(decoded.Questions))
	for _, q := range decoded.Questions {
		if err := q.Validate(); err != nil {
			continue
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, domain.ErrNoQuestions
	}
	return questions, nil
}
