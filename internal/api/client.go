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
	"strconv"
	"strings"
	"time"

	"tasktango/internal/codec"
	"tasktango/internal/models"
)

const maxBodySize = 4 << 20

// StatusError is a non-2xx response whose body is not a response envelope.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the TaskTango REST API.
type Client struct {
	BaseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Login(ctx context.Context, req models.LoginUser) (models.AuthResponseData, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/auth/login", "", req)
	if err != nil {
		return models.AuthResponseData{}, err
	}
	return codec.UnwrapAPIResponse[models.AuthResponseData](body)
}

func (c *Client) Register(ctx context.Context, req models.RegisterUser) (models.AuthResponseData, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/auth/register", "", req)
	if err != nil {
		return models.AuthResponseData{}, err
	}
	return codec.UnwrapAPIResponse[models.AuthResponseData](body)
}

// Me returns the profile of the token's owner.
func (c *Client) Me(ctx context.Context, token string) (models.User, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/users/me", token, nil)
	if err != nil {
		return models.User{}, err
	}
	data, err := codec.UnwrapAPIData(body)
	if err != nil {
		return models.User{}, err
	}
	return codec.DecodeUser(data, codec.SenderFull)
}

func (c *Client) Channels(ctx context.Context, token string) ([]models.ChatChannel, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/channels", token, nil)
	if err != nil {
		return nil, err
	}
	return codec.UnwrapAPIResponse[[]models.ChatChannel](body)
}

// ChannelHistory fetches up to limit messages of a channel. limit <= 0 leaves the page size to the server.
func (c *Client) ChannelHistory(ctx context.Context, token string, channelID string, limit int) ([]models.ChatMessage, error) {
	path := "/api/channels/" + url.PathEscape(channelID) + "/messages" + limitQuery(limit)
	body, err := c.do(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}
	return codec.DecodeHistory(body, codec.ChannelHistory)
}

// DirectHistory fetches the conversation with peerStringID.
func (c *Client) DirectHistory(ctx context.Context, token string, peerStringID string, limit int) ([]models.ChatMessage, error) {
	path := "/api/messages/private/" + url.PathEscape(peerStringID) + limitQuery(limit)
	body, err := c.do(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}
	return codec.DecodeHistory(body, codec.DirectHistory)
}

func limitQuery(limit int) string {
	if limit <= 0 {
		return ""
	}
	return "?limit=" + strconv.Itoa(limit)
}

func (c *Client) do(ctx context.Context, method, path, token string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Error envelopes carry a message worth showing.
		if _, err := codec.UnwrapAPIData(body); err != nil {
			var apiErr *codec.APIError
			if errors.As(err, &apiErr) {
				return nil, apiErr
			}
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
