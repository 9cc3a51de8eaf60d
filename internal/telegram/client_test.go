package telegram

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/blackmichael/listing-bot/internal/domain"
)

const testToken = "123456:secret-token"

type recordedRequest struct {
	Path        string
	ContentType string
	Body        map[string]any
}

// botServer is a fake Bot API that answers every request with the same
// status and body.
type botServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
}

func newBotServer(t *testing.T, status int, response string) *botServer {
	t.Helper()
	s := &botServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read request body: %v", err)
		}
		rec := recordedRequest{Path: r.URL.Path, ContentType: r.Header.Get("Content-Type")}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &rec.Body); err != nil {
				t.Errorf("request body is not JSON: %v: %s", err, raw)
			}
		}
		s.mu.Lock()
		s.requests = append(s.requests, rec)
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, response)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *botServer) only(t *testing.T) recordedRequest {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) != 1 {
		t.Fatalf("got %d requests, want 1", len(s.requests))
	}
	return s.requests[0]
}

func TestSendText(t *testing.T) {
	t.Parallel()

	srv := newBotServer(t, http.StatusOK, `{"ok":true,"result":{"message_id":77,"date":1700000000,"chat":{"id":-1001234,"type":"channel"}}}`)
	c := NewClient(srv.URL, testToken, srv.Client())

	buttons := &domain.ButtonLayout{Rows: [][]domain.Button{
		{{Text: "📞 Contact Info", CallbackData: "contact-42"}},
		{{Text: "🔍 View Details", URL: "https://app.example.com?startapp=listing-42"}},
	}}
	id, err := c.SendText(t.Context(), "-1001234", "<b>hi</b>", buttons)
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if id != 77 {
		t.Errorf("SendText() = %d, want 77", id)
	}

	want := recordedRequest{
		Path:        "/bot" + testToken + "/sendMessage",
		ContentType: "application/json",
		Body: map[string]any{
			"chat_id":    float64(-1001234),
			"text":       "<b>hi</b>",
			"parse_mode": "HTML",
			"reply_markup": map[string]any{
				"inline_keyboard": []any{
					[]any{map[string]any{"text": "📞 Contact Info", "callback_data": "contact-42"}},
					[]any{map[string]any{"text": "🔍 View Details", "url": "https://app.example.com?startapp=listing-42"}},
				},
			},
		},
	}
	if diff := cmp.Diff(want, srv.only(t)); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestSendPhoto(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		caption string
		want    map[string]any
	}{
		"with caption": {
			caption: "<b>Nice flat</b>",
			want: map[string]any{
				"chat_id":    "@listings",
				"photo":      "https://cdn.example.com/a.jpg",
				"caption":    "<b>Nice flat</b>",
				"parse_mode": "HTML",
			},
		},
		"without caption": {
			want: map[string]any{
				"chat_id": "@listings",
				"photo":   "https://cdn.example.com/a.jpg",
			},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			srv := newBotServer(t, http.StatusOK, `{"ok":true,"result":{"message_id":5,"date":0,"chat":{"id":1,"type":"channel"}}}`)
			c := NewClient(srv.URL, testToken, srv.Client())

			id, err := c.SendPhoto(t.Context(), "@listings", "https://cdn.example.com/a.jpg", tc.caption, nil)
			if err != nil {
				t.Fatalf("SendPhoto: %v", err)
			}
			if id != 5 {
				t.Errorf("SendPhoto() = %d, want 5", id)
			}
			if diff := cmp.Diff(tc.want, srv.only(t).Body); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSendMediaGroup(t *testing.T) {
	t.Parallel()

	srv := newBotServer(t, http.StatusOK, `{"ok":true,"result":[
		{"message_id":10,"date":0,"chat":{"id":1,"type":"channel"}},
		{"message_id":11,"date":0,"chat":{"id":1,"type":"channel"}},
		{"message_id":12,"date":0,"chat":{"id":1,"type":"channel"}}
	]}`)
	c := NewClient(srv.URL, testToken, srv.Client())

	ids, err := c.SendMediaGroup(t.Context(), "@listings", []string{"https://a/1.jpg", "https://a/2.jpg", "https://a/3.jpg"}, "<b>caption</b>")
	if err != nil {
		t.Fatalf("SendMediaGroup: %v", err)
	}
	if diff := cmp.Diff([]int{10, 11, 12}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}

	want := map[string]any{
		"chat_id": "@listings",
		"media": []any{
			map[string]any{"type": "photo", "media": "https://a/1.jpg", "caption": "<b>caption</b>", "parse_mode": "HTML"},
			map[string]any{"type": "photo", "media": "https://a/2.jpg"},
			map[string]any{"type": "photo", "media": "https://a/3.jpg"},
		},
	}
	if diff := cmp.Diff(want, srv.only(t).Body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestAnswerCallback(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		text  string
		alert bool
		want  map[string]any
	}{
		"bare": {
			want: map[string]any{"callback_query_id": "cb1"},
		},
		"alert": {
			text:  "Sorry",
			alert: true,
			want:  map[string]any{"callback_query_id": "cb1", "text": "Sorry", "show_alert": true},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			srv := newBotServer(t, http.StatusOK, `{"ok":true,"result":true}`)
			c := NewClient(srv.URL, testToken, srv.Client())
			if err := c.AnswerCallback(t.Context(), "cb1", tc.text, tc.alert); err != nil {
				t.Fatalf("AnswerCallback: %v", err)
			}
			if diff := cmp.Diff(tc.want, srv.only(t).Body); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWebhookMethods(t *testing.T) {
	t.Parallel()

	srv := newBotServer(t, http.StatusOK, `{"ok":true,"result":true,"description":"Webhook was set"}`)
	c := NewClient(srv.URL, testToken, srv.Client())

	if err := c.SetWebhook(t.Context(), "https://bot.example.com/api/telegram/webhook", "s3cret"); err != nil {
		t.Fatalf("SetWebhook: %v", err)
	}
	if err := c.DeleteWebhook(t.Context()); err != nil {
		t.Fatalf("DeleteWebhook: %v", err)
	}

	want := []recordedRequest{
		{
			Path:        "/bot" + testToken + "/setWebhook",
			ContentType: "application/json",
			Body:        map[string]any{"url": "https://bot.example.com/api/telegram/webhook", "secret_token": "s3cret"},
		},
		{
			Path:        "/bot" + testToken + "/deleteWebhook",
			ContentType: "application/json",
			Body:        map[string]any{},
		},
	}
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if diff := cmp.Diff(want, srv.requests); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
}

func TestGetMe(t *testing.T) {
	t.Parallel()

	srv := newBotServer(t, http.StatusOK, `{"ok":true,"result":{"id":123456,"is_bot":true,"first_name":"Mela","username":"mela_bot"}}`)
	c := NewClient(srv.URL, testToken, srv.Client())

	me, err := c.GetMe(t.Context())
	if err != nil {
		t.Fatalf("GetMe: %v", err)
	}
	if me.ID != 123456 || me.UserName != "mela_bot" {
		t.Errorf("GetMe() = %+v, want id 123456 and username mela_bot", me)
	}
	if req := srv.only(t); req.Body != nil || req.ContentType != "" {
		t.Errorf("GetMe sent body %v with content type %q, want none", req.Body, req.ContentType)
	}
}

func TestAPIError(t *testing.T) {
	t.Parallel()

	srv := newBotServer(t, http.StatusTooManyRequests, `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 5","parameters":{"retry_after":5}}`)
	c := NewClient(srv.URL, testToken, srv.Client())

	_, err := c.SendText(t.Context(), "@listings", "hi", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("SendText() error = %v, want *APIError", err)
	}
	want := &APIError{Method: "sendMessage", Code: 429, Description: "Too Many Requests: retry after 5", RetryAfter: 5}
	if diff := cmp.Diff(want, apiErr); diff != "" {
		t.Errorf("APIError mismatch (-want +got):\n%s", diff)
	}
}

func TestAPIErrorWithoutCode(t *testing.T) {
	t.Parallel()

	srv := newBotServer(t, http.StatusForbidden, `{"ok":false}`)
	c := NewClient(srv.URL, testToken, srv.Client())

	err := c.AnswerCallback(t.Context(), "cb1", "", false)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusForbidden {
		t.Errorf("AnswerCallback() error = %v, want *APIError with code 403", err)
	}
}

func TestMalformedResponse(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		status int
		body   string
	}{
		"html error page":   {status: http.StatusBadGateway, body: "<html>Bad Gateway</html>"},
		"empty object":      {status: http.StatusOK, body: `{}`},
		"ok without result": {status: http.StatusOK, body: `{"ok":true}`},
		"null result":       {status: http.StatusOK, body: `{"ok":true,"result":null}`},
		"wrong result type": {status: http.StatusOK, body: `{"ok":true,"result":"sent"}`},
		"array body":        {status: http.StatusOK, body: `[1,2]`},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			srv := newBotServer(t, tc.status, tc.body)
			c := NewClient(srv.URL, testToken, srv.Client())
			_, err := c.SendText(t.Context(), "@listings", "hi", nil)
			if !errors.Is(err, ErrMalformedResponse) {
				t.Errorf("SendText() error = %v, want ErrMalformedResponse", err)
			}
		})
	}
}

func TestTransportErrorHidesToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, testToken, nil)
	_, err := c.SendText(t.Context(), "@listings", "hi", nil)
	if err == nil {
		t.Fatal("SendText() = nil error, want transport error")
	}
	if strings.Contains(err.Error(), testToken) {
		t.Errorf("error %q leaks the bot token", err)
	}
	if !strings.Contains(err.Error(), "[EXPUNGED]") {
		t.Errorf("error %q does not mark the scrubbed token", err)
	}
}

func TestChatIDMarshal(t *testing.T) {
	t.Parallel()

	cases := map[ChatID]string{
		"-1001234567890": `-1001234567890`,
		"555":            `555`,
		"@listings":      `"@listings"`,
		"12ab":           `"12ab"`,
	}
	for id, want := range cases {
		got, err := json.Marshal(id)
		if err != nil {
			t.Fatalf("Marshal(%q): %v", id, err)
		}
		if string(got) != want {
			t.Errorf("Marshal(%q) = %s, want %s", id, got, want)
		}
	}
}

func TestInlineKeyboard(t *testing.T) {
	t.Parallel()

	if got := InlineKeyboard(nil); got != nil {
		t.Errorf("InlineKeyboard(nil) = %+v, want nil", got)
	}
	empty := &domain.ButtonLayout{Rows: [][]domain.Button{{{Text: ""}}, {}}}
	if got := InlineKeyboard(empty); got != nil {
		t.Errorf("InlineKeyboard(empty) = %+v, want nil", got)
	}
}
