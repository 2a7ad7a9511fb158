package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kicomport/internal/config"
	"kicomport/internal/store"
)

const (
	defaultHTTPTimeout   = 30 * time.Second
	defaultRetryAttempts = 2
	chatPath             = "/api/chat"
	tagsPath             = "/api/tags"
)

const scoringPrompt = "You are assisting with ranking KiCad library assets. " +
	`Return JSON with scores and reasons: {"scores": [{"id": <cand_id>, "ai_score": <0-1>, "ai_reason": "..."}]}. ` +
	"Use heuristics: name relevance, description clarity, pad/pin counts. Keep answers concise."

// Client talks to a local Ollama server for candidate scoring.
type Client struct {
	baseURL    string
	model      string
	maxRetries int
	httpClient *http.Client
	sleeper    func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// New constructs a client from the Ollama configuration section.
func New(cfg config.Ollama, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = defaultRetryAttempts
	}
	client := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		model:      strings.TrimSpace(cfg.Model),
		maxRetries: retries,
		httpClient: &http.Client{Timeout: timeout},
		sleeper:    time.Sleep,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Score is one AI assessment of a candidate.
type Score struct {
	Value  float64
	Reason string
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

type payloadComponent struct {
	ComponentID int64              `json:"component_id"`
	Name        string             `json:"name"`
	Candidates  []payloadCandidate `json:"candidates"`
}

type payloadCandidate struct {
	ID             int64   `json:"id"`
	Type           string  `json:"type"`
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	PinCount       int     `json:"pin_count"`
	PadCount       int     `json:"pad_count"`
	HeuristicScore float64 `json:"heuristic_score"`
}

// ScoreCandidates asks the model to rate every candidate of the given
// components, keyed by candidate ID. A parse failure on the model output
// yields an empty map rather than an error so intake can degrade gracefully.
func (c *Client) ScoreCandidates(ctx context.Context, comps []*store.Component) (map[int64]Score, error) {
	payload := make([]payloadComponent, 0, len(comps))
	for _, comp := range comps {
		pc := payloadComponent{ComponentID: comp.ID, Name: comp.Name}
		for _, cand := range comp.Candidates {
			pc.Candidates = append(pc.Candidates, payloadCandidate{
				ID:             cand.ID,
				Type:           string(cand.Kind),
				Name:           cand.Name,
				Description:    cand.Description,
				PinCount:       cand.PinCount,
				PadCount:       cand.PadCount,
				HeuristicScore: cand.HeuristicScore,
			})
		}
		payload = append(payload, pc)
	}
	items, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal scoring payload: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: scoringPrompt + "\n" + string(items)}},
		Stream:   false,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.sleeper(time.Duration(attempt) * time.Second)
		}
		data, err := c.post(ctx, c.baseURL+chatPath, body)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		var resp chatResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			lastErr = fmt.Errorf("decode chat response: %w", err)
			continue
		}
		return parseScores(resp.Message.Content), nil
	}
	return nil, lastErr
}

// Health verifies the server answers the tags endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+tagsPath, nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health: http %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama request: http %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

// parseScores decodes the model's JSON answer. The scores field may be a
// list of objects or a map of id to score; anything unparseable is dropped.
func parseScores(content string) map[int64]Score {
	out := make(map[int64]Score)

	var envelope struct {
		Scores json.RawMessage `json:"scores"`
	}
	if err := json.Unmarshal([]byte(content), &envelope); err != nil || len(envelope.Scores) == 0 {
		return out
	}

	var list []struct {
		ID       int64   `json:"id"`
		AIScore  float64 `json:"ai_score"`
		AIReason string  `json:"ai_reason"`
	}
	if err := json.Unmarshal(envelope.Scores, &list); err == nil {
		for _, item := range list {
			out[item.ID] = Score{Value: item.AIScore, Reason: item.AIReason}
		}
		return out
	}

	var byID map[string]float64
	if err := json.Unmarshal(envelope.Scores, &byID); err == nil {
		for key, value := range byID {
			id, convErr := strconv.ParseInt(key, 10, 64)
			if convErr != nil {
				continue
			}
			out[id] = Score{Value: value}
		}
	}
	return out
}
