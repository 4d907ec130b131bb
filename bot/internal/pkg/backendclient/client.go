// Package backendclient calls the backend's internal, bot-only endpoints.
package backendclient

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
)

const botTokenHeader = "X-Bot-Token"

var ErrUnexpectedResponse = errors.New("unexpected backend response")

type Config struct {
	URL           string
	InternalToken string
	Timeout       time.Duration
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(cfg Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.InternalToken,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

type User struct {
	ID           int64  `json:"id"`
	IsBot        bool   `json:"is_bot,omitempty"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

type ChatProjectRequest struct {
	ChatID   int64  `json:"chat_id"`
	ChatType string `json:"chat_type,omitempty"`
	Title    string `json:"title,omitempty"`
	User     *User  `json:"user,omitempty"`
}

type Project struct {
	ID         int64  `json:"id"`
	ProjectKey string `json:"project_key"`
	Title      string `json:"title"`
	Role       string `json:"role,omitempty"`
}

type chatProjectResponse struct {
	Ok      bool     `json:"ok"`
	Project *Project `json:"project"`
}

// EnsureChatProject asks the backend for the project bound to the chat,
// creating it when needed.
func (c *Client) EnsureChatProject(ctx context.Context, req ChatProjectRequest) (*Project, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/bot/chat-project", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(botTokenHeader, c.token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("backend is unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read backend response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed chatProjectResponse
	if err := json.Unmarshal(raw, &parsed); err != nil || !parsed.Ok || parsed.Project == nil || parsed.Project.ProjectKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedResponse, strings.TrimSpace(string(raw)))
	}

	return parsed.Project, nil
}
