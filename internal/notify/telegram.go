package notify

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

const telegramAPI = "https://api.telegram.org"

type Telegram struct {
	Token   string
	ChatID  string
	BaseURL string
	HTTP    *http.Client
}

func NewTelegram(token, chatID string) *Telegram {
	return &Telegram{
		Token:   token,
		ChatID:  chatID,
		BaseURL: telegramAPI,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Enabled() bool {
	return t.Token != "" && t.ChatID != ""
}

func (t *Telegram) Send(ctx context.Context, p Params) error {
	if !t.Enabled() {
		return fmt.Errorf("telegram not configured")
	}
	lines := []string{p.Title, p.Message}
	if p.ClickURL != "" {
		lines = append(lines, p.ClickURL)
	}
	payload := map[string]any{
		"chat_id":                  t.ChatID,
		"text":                     strings.Join(lines, "\n"),
		"disable_web_page_preview": true,
		"disable_notification":     p.Priority < PriorityOngoing,
	}
	b, _ := json.Marshal(payload)
	u := fmt.Sprintf("%s/bot%s/sendMessage", t.BaseURL, t.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := t.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	resp, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
	if res.StatusCode >= 300 {
		return fmt.Errorf("telegram status %d: %s", res.StatusCode, string(resp))
	}
	return nil
}
