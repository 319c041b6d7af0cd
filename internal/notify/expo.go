package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	expoPushURL     = "https://exp.host/--/api/v2/push/send"
	maxPushResponse = 1 << 20
)

// ExpoSender delivers push messages through the Expo push API.
type ExpoSender struct {
	baseURL     string
	accessToken string
	client      *http.Client
	logger      *slog.Logger
}

func NewExpoSender(log *slog.Logger, accessToken string) *ExpoSender {
	return &ExpoSender{
		baseURL:     expoPushURL,
		accessToken: accessToken,
		client:      &http.Client{Timeout: 15 * time.Second},
		logger:      log.With(slog.String("component", "notify.expo")),
	}
}

// WithBaseURL overrides the push endpoint, used in tests.
func (s *ExpoSender) WithBaseURL(base string) *ExpoSender {
	s.baseURL = base
	return s
}

// Send delivers one message and maps the Expo ticket to a receipt. Transport
// and infrastructure failures return an error; a rejected message returns an
// error receipt with the provider's detail.
func (s *ExpoSender) Send(ctx context.Context, msg PushMessage) (PushReceipt, error) {
	if msg.To == "" {
		return PushReceipt{}, fmt.Errorf("push recipient is required")
	}

	request := map[string]any{
		"to":       msg.To,
		"title":    msg.Title,
		"body":     msg.Body,
		"sound":    "default",
		"priority": "high",
	}
	if len(msg.Data) > 0 {
		request["data"] = msg.Data
	}
	encoded, err := json.Marshal(request)
	if err != nil {
		return PushReceipt{}, fmt.Errorf("encode push message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(encoded))
	if err != nil {
		return PushReceipt{}, fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.accessToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return PushReceipt{}, fmt.Errorf("call push service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPushResponse))
	if err != nil {
		return PushReceipt{}, fmt.Errorf("read push response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return PushReceipt{}, fmt.Errorf("push service returned %d", resp.StatusCode)
	}

	var parsed struct {
		Data []struct {
			Status  string `json:"status"`
			ID      string `json:"id"`
			Message string `json:"message"`
			Details struct {
				Error string `json:"error"`
			} `json:"details"`
		} `json:"data"`
		Errors []struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return PushReceipt{}, fmt.Errorf("decode push response: %w", err)
	}

	if len(parsed.Errors) > 0 {
		detail := parsed.Errors[0].Code
		if parsed.Errors[0].Message != "" {
			detail = fmt.Sprintf("%s: %s", parsed.Errors[0].Code, parsed.Errors[0].Message)
		}
		return PushReceipt{Detail: detail}, nil
	}
	if len(parsed.Data) == 0 {
		return PushReceipt{}, fmt.Errorf("push response carried no ticket")
	}

	ticket := parsed.Data[0]
	if ticket.Status == "ok" {
		return PushReceipt{OK: true}, nil
	}
	detail := ticket.Details.Error
	if detail == "" {
		detail = ticket.Message
	}
	return PushReceipt{Detail: detail}, nil
}
