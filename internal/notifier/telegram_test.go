package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendPostsToChat(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	log := logrus.New()
	log.SetOutput(io.Discard)
	tn := NewTelegramNotifier("TOKEN", "42", "", log)
	tn.APIBase = srv.URL

	require.NoError(t, tn.SendWithRetry(context.Background(), "<b>hi</b>", 0))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "<b>hi</b>", got["text"])
	assert.Equal(t, "HTML", got["parse_mode"])
}

func TestSendReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "chat not found", http.StatusBadRequest)
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("TOKEN", "42", "", nil)
	tn.APIBase = srv.URL
	err := tn.Send("hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

type fakeBotAPI struct {
	mu      sync.Mutex
	polls   int
	replies []map[string]string
	updates []string
}

func (f *fakeBotAPI) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.URL.Path {
		case "/botTOKEN/sendMessage":
			var got map[string]string
			body, _ := io.ReadAll(r.Body)
			assert.NoError(t, json.Unmarshal(body, &got))
			f.replies = append(f.replies, got)
		case "/botTOKEN/getUpdates":
			f.polls++
			if f.polls <= len(f.updates) {
				_, _ = io.WriteString(w, f.updates[f.polls-1])
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
		}
	})
}

func newPollingNotifier(t *testing.T, api *fakeBotAPI) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)
	log := logrus.New()
	log.SetOutput(io.Discard)
	tn := NewTelegramNotifier("TOKEN", "42", "", log)
	tn.APIBase = srv.URL
	tn.PollRetry = time.Millisecond
	return tn
}

func TestPollingAnswersAllowedChatsOnly(t *testing.T) {
	api := &fakeBotAPI{updates: []string{`{"ok":true,"result":[
		{"update_id":1,"message":{"text":"/status","chat":{"id":42}}},
		{"update_id":2,"message":{"text":"/status","chat":{"id":99}}},
		{"update_id":3,"message":{"text":" /queue ","chat":{"id":7}}}
	]}`}}
	tn := newPollingNotifier(t, api)
	tn.AllowChats("7", " ")

	var commands []string
	err := tn.StartPolling(context.Background(), func(cmd string) string {
		commands = append(commands, cmd)
		return "ok " + cmd
	})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Fatal())
	assert.Equal(t, []string{"/status", "/queue"}, commands)
	require.Len(t, api.replies, 2)
	assert.Equal(t, "42", api.replies[0]["chat_id"])
	assert.Equal(t, "7", api.replies[1]["chat_id"])
	assert.Equal(t, "ok /queue", api.replies[1]["text"])
}

func TestPollingRetriesTransientErrors(t *testing.T) {
	api := &fakeBotAPI{updates: []string{
		`{"ok":false,"error_code":502,"description":"Bad Gateway"}`,
		`not json`,
		`{"ok":true,"result":[{"update_id":5,"message":{"text":"/help","chat":{"id":42}}}]}`,
	}}
	tn := newPollingNotifier(t, api)

	calls := 0
	err := tn.StartPolling(context.Background(), func(string) string { calls++; return "" })
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 4, api.polls)
	assert.Empty(t, api.replies, "empty replies are not sent")
}

func TestPollingStopsOnCancel(t *testing.T) {
	tn := newPollingNotifier(t, &fakeBotAPI{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, tn.StartPolling(ctx, func(string) string { return "" }))
}

func TestAPIErrorFatal(t *testing.T) {
	assert.True(t, (&APIError{Code: http.StatusConflict}).Fatal())
	assert.False(t, (&APIError{Code: http.StatusTooManyRequests}).Fatal())
	assert.False(t, (&APIError{Code: http.StatusBadGateway}).Fatal())
}
