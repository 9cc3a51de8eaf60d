// Package telegram implements the chat platform side of the service on top
// of the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/blackmichael/listing-bot/internal/domain"
)

// DefaultAPIURL is the public Bot API endpoint.
const DefaultAPIURL = "https://api.telegram.org"

// ErrMalformedResponse is returned when the Bot API answers with a body that
// is not a valid response envelope.
var ErrMalformedResponse = errors.New("malformed bot api response")

// APIError is a non-affirmative Bot API response.
type APIError struct {
	Method      string
	Code        int
	Description string
	// RetryAfter is set on flood-control errors, in seconds.
	RetryAfter int
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("telegram %s: error %d", e.Method, e.Code)
	}
	return fmt.Sprintf("telegram %s: %s", e.Method, e.Description)
}

// Client is a minimal Bot API client. It sends JSON requests and decodes
// every response explicitly instead of trusting field presence.
type Client struct {
	apiURL     string
	token      string
	httpClient *http.Client
	scrubber   *strings.Replacer
}

// NewClient creates a Bot API client. If apiURL is empty, DefaultAPIURL is
// used. If httpClient is nil, a client with a 30s timeout is used.
func NewClient(apiURL, token string, httpClient *http.Client) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 30 * time.Second,
		}
	}
	c := &Client{
		apiURL:     strings.TrimRight(apiURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
	if token != "" {
		c.scrubber = strings.NewReplacer(token, "[EXPUNGED]")
	}
	return c
}

// SendText implements domain.Messenger.
func (c *Client) SendText(ctx context.Context, chatID, text string, buttons *domain.ButtonLayout) (int, error) {
	msg, err := call[tgbotapi.Message](ctx, c, "sendMessage", sendMessageRequest{
		ChatID:      ChatID(chatID),
		Text:        text,
		ParseMode:   tgbotapi.ModeHTML,
		ReplyMarkup: InlineKeyboard(buttons),
	})
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// SendPhoto implements domain.Messenger.
func (c *Client) SendPhoto(ctx context.Context, chatID, photoURL, caption string, buttons *domain.ButtonLayout) (int, error) {
	req := sendPhotoRequest{
		ChatID:      ChatID(chatID),
		Photo:       photoURL,
		Caption:     caption,
		ReplyMarkup: InlineKeyboard(buttons),
	}
	if caption != "" {
		req.ParseMode = tgbotapi.ModeHTML
	}
	msg, err := call[tgbotapi.Message](ctx, c, "sendPhoto", req)
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// SendMediaGroup implements domain.Messenger.
func (c *Client) SendMediaGroup(ctx context.Context, chatID string, photoURLs []string, caption string) ([]int, error) {
	media := make([]inputMediaPhoto, len(photoURLs))
	for i, u := range photoURLs {
		media[i] = inputMediaPhoto{Type: "photo", Media: u}
		if i == 0 && caption != "" {
			media[i].Caption = caption
			media[i].ParseMode = tgbotapi.ModeHTML
		}
	}

	msgs, err := call[[]tgbotapi.Message](ctx, c, "sendMediaGroup", sendMediaGroupRequest{
		ChatID: ChatID(chatID),
		Media:  media,
	})
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(msgs))
	for i, m := range msgs {
		ids[i] = m.MessageID
	}
	return ids, nil
}

// AnswerCallback implements domain.Messenger.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	_, err := call[bool](ctx, c, "answerCallbackQuery", answerCallbackQueryRequest{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	})
	return err
}

// GetMe returns the bot's own user record. It is a cheap way to check that
// the token is valid.
func (c *Client) GetMe(ctx context.Context) (*tgbotapi.User, error) {
	u, err := call[tgbotapi.User](ctx, c, "getMe", nil)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SetWebhook registers url as the bot's webhook. A non-empty secret is sent
// back by Telegram in the X-Telegram-Bot-Api-Secret-Token header.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	_, err := call[bool](ctx, c, "setWebhook", setWebhookRequest{URL: url, SecretToken: secret})
	return err
}

// DeleteWebhook removes the bot's webhook.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	_, err := call[bool](ctx, c, "deleteWebhook", struct{}{})
	return err
}

// call invokes a Bot API method and decodes its result into T.
func call[T any](ctx context.Context, c *Client, method string, body any) (T, error) {
	var zero T

	result, err := c.do(ctx, method, body)
	if err != nil {
		return zero, c.scrub(err)
	}

	var out T
	if err := json.Unmarshal(result, &out); err != nil {
		return zero, fmt.Errorf("telegram %s: %w: decode result: %v", method, ErrMalformedResponse, err)
	}
	return out, nil
}

// do posts body to method and returns the raw result of an affirmative
// response.
func (c *Client) do(ctx context.Context, method string, body any) (json.RawMessage, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/bot"+c.token+"/"+method, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return decodeResponse(method, resp.StatusCode, respBody)
}

// decodeResponse checks the response envelope. The body must be a JSON
// object with an "ok" field; ok:true must come with a result.
func decodeResponse(method string, status int, body []byte) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("telegram %s: %w (status %d): %s", method, ErrMalformedResponse, status, truncate(string(body), 200))
	}
	if _, ok := fields["ok"]; !ok {
		return nil, fmt.Errorf("telegram %s: %w: missing ok field", method, ErrMalformedResponse)
	}

	var env tgbotapi.APIResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("telegram %s: %w: %v", method, ErrMalformedResponse, err)
	}

	if !env.Ok {
		apiErr := &APIError{
			Method:      method,
			Code:        env.ErrorCode,
			Description: env.Description,
		}
		if apiErr.Code == 0 {
			apiErr.Code = status
		}
		if env.Parameters != nil {
			apiErr.RetryAfter = env.Parameters.RetryAfter
		}
		return nil, apiErr
	}

	if len(env.Result) == 0 || bytes.Equal(bytes.TrimSpace(env.Result), []byte("null")) {
		return nil, fmt.Errorf("telegram %s: %w: ok without result", method, ErrMalformedResponse)
	}
	return env.Result, nil
}

func (c *Client) scrub(err error) error {
	if c.scrubber == nil {
		return err
	}
	return &scrubbedError{err: err, scrubber: c.scrubber}
}

// scrubbedError hides the bot token, which is part of every request URL and
// therefore of transport error messages.
type scrubbedError struct {
	err      error
	scrubber *strings.Replacer
}

func (e *scrubbedError) Error() string { return e.scrubber.Replace(e.err.Error()) }

func (e *scrubbedError) Unwrap() error { return e.err }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ChatID is a chat identifier: a numeric ID or an @username. Numeric IDs
// are encoded as JSON numbers.
type ChatID string

// MarshalJSON implements json.Marshaler.
func (id ChatID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return json.Marshal(n)
	}
	return json.Marshal(string(id))
}

var _ domain.Messenger = (*Client)(nil)
