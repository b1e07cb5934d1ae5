package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/smykla-skalski/telegate/pkg/config"
	"github.com/smykla-skalski/telegate/pkg/logger"
)

var (
	// ErrAPIFailure is returned when the Bot API reports ok=false.
	ErrAPIFailure = errors.New("telegram API failure")

	// ErrNotConfigured is returned when credentials are missing.
	ErrNotConfigured = errors.New("telegram bot token or chat id not configured")
)

// API is the Bot API surface the relay depends on.
type API interface {
	// GetUpdates fetches updates after offset, short-polling server-side
	// for up to timeout.
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)

	// SendMessage pushes an outbound notification.
	SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error)

	// EditMessageText rewrites a previously sent message, dropping its keyboard.
	EditMessageText(ctx context.Context, chatID, messageID int64, text string) error

	// AnswerCallbackQuery acknowledges a button press.
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
}

// Client is the HTTP implementation of API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     logger.Logger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) ClientOption {
	return func(c *Client) {
		if log != nil {
			c.logger = log
		}
	}
}

// NewClient creates a Bot API client from the Telegram config section.
func NewClient(cfg *config.TelegramConfig, opts ...ClientOption) (*Client, error) {
	if !cfg.IsConfigured() {
		return nil, ErrNotConfigured
	}

	c := &Client{
		baseURL: cfg.GetAPIBaseURL(),
		token:   cfg.BotToken,
		httpClient: &http.Client{
			// getUpdates blocks server-side for the short-poll window, so
			// the HTTP timeout must exceed it.
			Timeout: cfg.GetRequestTimeout() + cfg.GetFetchTimeout(),
		},
		logger: logger.NewNoOpLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// GetUpdates fetches updates with update_id >= offset.
func (c *Client) GetUpdates(
	ctx context.Context,
	offset int64,
	timeout time.Duration,
) ([]Update, error) {
	params := map[string]any{
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message", "callback_query"},
	}
	if offset > 0 {
		params["offset"] = offset
	}

	raw, err := c.call(ctx, "getUpdates", params)
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, errors.Wrap(err, "decoding updates")
	}

	return updates, nil
}

// SendMessage pushes an outbound notification and returns the sent message.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error) {
	raw, err := c.call(ctx, "sendMessage", req)
	if err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, errors.Wrap(err, "decoding sent message")
	}

	return &msg, nil
}

// EditMessageText rewrites a sent message. Passing no reply_markup clears
// the inline keyboard so stale buttons cannot be pressed.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	params := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}

	_, err := c.call(ctx, "editMessageText", params)

	return err
}

// AnswerCallbackQuery acknowledges a button press so the client stops its
// loading spinner.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	params := map[string]any{
		"callback_query_id": callbackID,
	}
	if text != "" {
		params["text"] = text
	}

	_, err := c.call(ctx, "answerCallbackQuery", params)

	return err
}

// call performs one Bot API method invocation.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, errors.Wrapf(err, "marshaling %s params", method)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "building %s request", method)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "calling %s", method)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s response", method)
	}

	var envelope apiResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, errors.Wrapf(err, "decoding %s response", method)
	}

	if !envelope.OK {
		c.logger.Error("telegram API error",
			"method", method,
			"code", envelope.ErrorCode,
			"description", envelope.Description,
		)

		return nil, errors.Wrapf(
			ErrAPIFailure,
			"%s: %s (code %d)",
			method,
			envelope.Description,
			envelope.ErrorCode,
		)
	}

	return envelope.Result, nil
}
