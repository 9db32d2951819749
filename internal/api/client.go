package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"parley/internal/models"
)

// ErrUnauthorized is the only session-terminating error class: the
// credential is missing or expired and the caller must tear down the
// session state.
var ErrUnauthorized = errors.New("unauthorized")

type tokenSource interface {
	Token() string
}

// Client is the request/response collaborator for everything that is
// not the live connection: login, roster and history fetches,
// conversation creation, user search.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  tokenSource
}

func NewClient(baseURL string, tokens tokenSource, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token       string      `json:"token"`
	TokenExpiry int64       `json:"tokenExpiry,omitempty"`
	User        models.User `json:"user"`
}

// Login exchanges credentials for a bearer token. Token issuance is
// entirely server-side; the client stores the result opaquely.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	var resp LoginResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", LoginRequest{Email: email, Password: password}, &resp)
	return resp, err
}

// Conversations fetches the roster.
func (c *Client) Conversations(ctx context.Context) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := c.do(ctx, http.MethodGet, "/api/chats", nil, &conversations)
	return conversations, err
}

// Messages fetches the full history of one conversation.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var messages []models.Message
	path := "/api/chats/" + url.PathEscape(conversationID) + "/messages"
	err := c.do(ctx, http.MethodGet, path, nil, &messages)
	if err != nil {
		return nil, err
	}
	for i := range messages {
		messages[i] = messages[i].Tagged()
	}
	return messages, nil
}

// CreateDirect creates (or returns the existing) direct conversation
// with the given user.
func (c *Client) CreateDirect(ctx context.Context, userID string) (models.Conversation, error) {
	var conversation models.Conversation
	body := struct {
		UserID string `json:"userId"`
	}{UserID: userID}
	err := c.do(ctx, http.MethodPost, "/api/chats", body, &conversation)
	return conversation, err
}

// CreateGroup creates a group conversation.
func (c *Client) CreateGroup(ctx context.Context, name string, memberIDs []string) (models.Conversation, error) {
	var conversation models.Conversation
	body := struct {
		GroupName    string   `json:"groupName"`
		Participants []string `json:"participants"`
	}{GroupName: name, Participants: memberIDs}
	err := c.do(ctx, http.MethodPost, "/api/chats/group", body, &conversation)
	return conversation, err
}

// Rewrite asks the server to restyle a draft message (tone, length,
// grammar). The styles are server-defined slugs like "professional" or
// "more-concise".
func (c *Client) Rewrite(ctx context.Context, message, style string) (string, error) {
	body := struct {
		Message     string `json:"message"`
		RewriteType string `json:"rewriteType"`
	}{Message: message, RewriteType: style}
	var resp struct {
		Rewritten string `json:"rewritten"`
	}
	err := c.do(ctx, http.MethodPost, "/api/ai/rewrite", body, &resp)
	return resp.Rewritten, err
}

// SearchUsers looks up users by name or email fragment.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]models.User, error) {
	var users []models.User
	path := "/api/users/search?query=" + url.QueryEscape(query)
	err := c.do(ctx, http.MethodGet, path, nil, &users)
	return users, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
