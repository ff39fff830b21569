package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// CommandHandler is called when an operator command is received.
type CommandHandler func(command string) string

// APIError is a Bot API reply with ok=false.
type APIError struct {
	Code        int    `json:"error_code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram API error %d: %s", e.Code, e.Description)
}

// Fatal reports whether polling can never succeed without operator action: a revoked token,
// a blocked bot, or another consumer (webhook or second poller) owning the update stream.
func (e *APIError) Fatal() bool {
	switch e.Code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict:
		return true
	}
	return false
}

type telegramUpdate struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// AllowChats adds chats whose commands are accepted besides the notification chat.
func (t *TelegramNotifier) AllowChats(ids ...string) {
	if t.allowed == nil {
		t.allowed = make(map[string]bool)
	}
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			t.allowed[id] = true
		}
	}
}

func (t *TelegramNotifier) chatAllowed(id string) bool {
	return id == t.ChatID || t.allowed[id]
}

// StartPolling long-polls for operator commands until ctx is cancelled or the API reports a
// fatal error, which is returned. Commands from chats that are not allowed are dropped.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) error {
	offset := 0
	client := &http.Client{Timeout: 35 * time.Second}
	if t.Client != nil {
		client.Transport = t.Client.Transport
	}

	for {
		if ctx.Err() != nil {
			t.Log.Info("telegram polling stopped")
			return nil
		}

		updates, err := t.getUpdates(ctx, client, offset)
		var apiErr *APIError
		switch {
		case err == nil:
		case ctx.Err() != nil:
			t.Log.Info("telegram polling stopped")
			return nil
		case errors.As(err, &apiErr) && apiErr.Fatal():
			t.Log.WithError(err).Error("telegram polling aborted")
			return err
		default:
			t.Log.WithError(err).Warn("polling request failed")
			select {
			case <-ctx.Done():
			case <-time.After(t.retryDelay()):
			}
			continue
		}

		for _, update := range updates {
			offset = update.UpdateID + 1
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			chat := strconv.FormatInt(update.Message.Chat.ID, 10)
			text := strings.TrimSpace(update.Message.Text)
			entry := t.Log.WithFields(logrus.Fields{"chat": chat, "command": text})
			if !t.chatAllowed(chat) {
				entry.Warn("command from unknown chat dropped")
				continue
			}
			entry.Info("received command")
			if reply := handler(text); reply != "" {
				if err := t.SendTo(chat, reply); err != nil {
					entry.WithError(err).Error("send reply")
				}
			}
		}
	}
}

func (t *TelegramNotifier) getUpdates(ctx context.Context, client *http.Client, offset int) ([]telegramUpdate, error) {
	apiURL := fmt.Sprintf("%s/bot%s/getUpdates?offset=%d&timeout=30", t.APIBase, t.BotToken, offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create polling request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read polling response: %w", err)
	}
	var result struct {
		OK     bool             `json:"ok"`
		Result []telegramUpdate `json:"result"`
		APIError
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode polling response (status %d): %w", resp.StatusCode, err)
	}
	if !result.OK {
		if result.Code == 0 {
			result.Code = resp.StatusCode
		}
		return nil, &result.APIError
	}
	return result.Result, nil
}

func (t *TelegramNotifier) retryDelay() time.Duration {
	if t.PollRetry > 0 {
		return t.PollRetry
	}
	return 5 * time.Second
}
