package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string, timeout time.Duration) *apiClient {
	return &apiClient{base: strings.TrimRight(base, "/"), http: &http.Client{Timeout: timeout}}
}

type profile struct {
	Name         string `json:"name,omitempty"`
	Stream       string `json:"stream,omitempty"`
	SelectedRole string `json:"selectedRole,omitempty"`
}

type message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type chatReply struct {
	Response  string  `json:"response"`
	SessionID string  `json:"sessionId"`
	State     string  `json:"state"`
	UserInfo  profile `json:"userInfo"`
}

type historyReply struct {
	Messages  []message `json:"messages"`
	UserInfo  profile   `json:"userInfo"`
	State     string    `json:"state,omitempty"`
	SessionID *string   `json:"sessionId"`
}

type newSessionReply struct {
	SessionID string `json:"sessionId"`
}

type apiError struct {
	Status  int
	Message string `json:"error"`
	Details string `json:"details"`
}

func (e *apiError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%d: %s (%s)", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (c *apiClient) Chat(ctx context.Context, sessionID, text string) (*chatReply, error) {
	var out chatReply
	err := c.do(ctx, http.MethodPost, "/api/chat", sessionID, "", map[string]string{"message": text}, &out)
	return &out, err
}

func (c *apiClient) NewSession(ctx context.Context, previous string) (string, error) {
	var out newSessionReply
	err := c.do(ctx, http.MethodPost, "/api/chat/new-session", previous, "", nil, &out)
	return out.SessionID, err
}

func (c *apiClient) History(ctx context.Context, sessionID string) (*historyReply, error) {
	var out historyReply
	err := c.do(ctx, http.MethodGet, "/api/chat/history", sessionID, "", nil, &out)
	return &out, err
}

func (c *apiClient) FullHistory(ctx context.Context, sessionID, token string) (*historyReply, error) {
	var out historyReply
	err := c.do(ctx, http.MethodGet, "/api/chat/history/"+sessionID, "", token, nil, &out)
	return &out, err
}

func (c *apiClient) do(ctx context.Context, method, path, sessionID, token string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
