package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Fixed bot replies
const (
	ReplyNoCandidate    = "Sorry, I couldn't connect."
	ReplyTransportError = "Error connecting to AI."
)

var (
	// ErrNoCandidate indicates the API answered without a usable reply
	ErrNoCandidate = errors.New("chat: no candidate in response")

	// ErrTransport indicates the API could not be reached or answered garbage
	ErrTransport = errors.New("chat: transport error")
)

// Role is the author of a transcript turn
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Turn is one transcript entry
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Request is one completion call
type Request struct {
	System string
	Turns  []Turn
}

// SystemPrompt returns the tutor instruction for a student
func SystemPrompt(displayName string) string {
	return fmt.Sprintf("You are a motivating AI Tutor. User: %s. Keep answers short and educational.", displayName)
}

// Config holds completion API settings
type Config struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// Client calls the generateContent endpoint
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a completion client
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents          []content `json:"contents"`
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (c *Client) endpoint() string {
	base := strings.TrimRight(c.config.Endpoint, "/")
	u := fmt.Sprintf("%s/models/%s:generateContent", base, url.PathEscape(c.config.Model))
	if c.config.APIKey != "" {
		u += "?key=" + url.QueryEscape(c.config.APIKey)
	}
	return u
}

// Complete sends req and returns the first candidate's text
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	body := generateRequest{Contents: make([]content, 0, len(req.Turns))}
	for _, t := range req.Turns {
		role := "user"
		if t.Role == RoleBot {
			role = "model"
		}
		body.Contents = append(body.Contents, content{Role: role, Parts: []part{{Text: t.Text}}})
	}
	if req.System != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: status %d: %v", ErrTransport, resp.StatusCode, err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 || out.Candidates[0].Content.Parts[0].Text == "" {
		return "", fmt.Errorf("%w: status %d", ErrNoCandidate, resp.StatusCode)
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

// Reply is Complete with failures mapped to the fixed bot replies
func (c *Client) Reply(ctx context.Context, req Request) string {
	text, err := c.Complete(ctx, req)
	switch {
	case err == nil:
		return text
	case errors.Is(err, ErrNoCandidate):
		c.logger.Warn("chat returned no candidate", "error", err)
		return ReplyNoCandidate
	default:
		c.logger.Error("chat request failed", "error", err)
		return ReplyTransportError
	}
}
