// Package ai provides optional text completion for enrichment. Pricing
// decisions never depend on it; callers must treat every error as "no text".
package ai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Service completes prompts against an OpenAI-compatible chat endpoint,
// caching responses process-wide by prompt hash.
type Service struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client

	mu       sync.Mutex
	cache    map[string]cachedCompletion
	cacheTTL time.Duration
}

type cachedCompletion struct {
	text      string
	fetchedAt time.Time
}

// Config holds AI service configuration.
type Config struct {
	BaseURL  string
	APIKey   string
	Model    string
	CacheTTL time.Duration
}

// NewService creates an AI service. Returns nil when no API key is
// configured; callers treat a nil service as "AI disabled".
func NewService(cfg Config) *Service {
	if cfg.APIKey == "" {
		return nil
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	return &Service{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      make(map[string]cachedCompletion),
		cacheTTL:   cfg.CacheTTL,
	}
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete returns a completion for the prompt, serving repeats from cache.
func (s *Service) Complete(ctx context.Context, prompt, system string, maxTokens int) (string, error) {
	key := cacheKey(prompt, system)

	s.mu.Lock()
	if entry, ok := s.cache[key]; ok && time.Since(entry.fetchedAt) < s.cacheTTL {
		s.mu.Unlock()
		return entry.text, nil
	}
	s.mu.Unlock()

	messages := make([]chatMessage, 0, 2)
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(chatRequest{
		Model:     s.model,
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat endpoint returned status %d", resp.StatusCode)
	}

	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("chat response decode failed: %w", err)
	}
	if len(payload.Choices) == 0 {
		return "", fmt.Errorf("chat endpoint returned no choices")
	}

	text := strings.TrimSpace(payload.Choices[0].Message.Content)

	s.mu.Lock()
	s.cache[key] = cachedCompletion{text: text, fetchedAt: time.Now()}
	s.mu.Unlock()

	return text, nil
}

func cacheKey(prompt, system string) string {
	h := sha256.New()
	h.Write([]byte(prompt))
	h.Write([]byte{0})
	h.Write([]byte(system))
	return hex.EncodeToString(h.Sum(nil))
}
