package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

// Credentials — токен и id текущего пользователя. Передаётся клиенту
// явно, глобального состояния нет.
type Credentials struct {
	Token  string
	UserID domain.UserID
}

type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api: %d %s", e.Status, e.Message)
}

func (e *APIError) IsAuth() bool       { return e.Status == http.StatusUnauthorized }
func (e *APIError) IsValidation() bool { return e.Status == http.StatusBadRequest }
func (e *APIError) IsNotFound() bool   { return e.Status == http.StatusNotFound }

// AsAPIError — удобный errors.As.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

type Client struct {
	baseURL string
	creds   Credentials
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New: baseURL — корень сервиса, например http://localhost:8080.
func New(baseURL string, creds Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Me() domain.UserID { return c.creds.UserID }

func (c *Client) ListUsers(ctx context.Context) ([]domain.UserSummary, error) {
	var out []domain.UserSummary
	if _, err := c.do(ctx, http.MethodGet, "/api/chat/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListMessages — полный диалог с other по возрастанию.
func (c *Client) ListMessages(ctx context.Context, other domain.UserID) ([]domain.Message, error) {
	var out []domain.Message
	if _, err := c.do(ctx, http.MethodGet, messagesPath(other), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListMessagesPage — страница до курсора before, плюс курсор следующей.
func (c *Client) ListMessagesPage(ctx context.Context, other domain.UserID, before string, limit int) ([]domain.Message, string, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if before != "" {
		q.Set("before", before)
	}

	var out []domain.Message
	h, err := c.do(ctx, http.MethodGet, messagesPath(other)+"?"+q.Encode(), nil, &out)
	if err != nil {
		return nil, "", err
	}
	return out, h.Get("X-Next-Cursor"), nil
}

func (c *Client) SendMessage(ctx context.Context, to domain.UserID, content string) (*domain.Message, error) {
	var out domain.Message
	if _, err := c.do(ctx, http.MethodPost, messagesPath(to), map[string]string{"content": content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteMessage(ctx context.Context, other domain.UserID, id domain.MessageID) error {
	_, err := c.do(ctx, http.MethodDelete, messagesPath(other)+"/"+url.PathEscape(string(id)), nil, nil)
	return err
}

func messagesPath(other domain.UserID) string {
	return "/api/chat/" + url.PathEscape(string(other)) + "/messages"
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) (http.Header, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("chat api: encode body: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.creds.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return nil, &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("chat api: decode response: %w", err)
		}
	}
	return resp.Header, nil
}
