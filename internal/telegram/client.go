// Package telegram is a minimal Bot API client: long-poll updates in,
// messages out. The gateway owns all policy; this package only moves
// bytes.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Chat identifies a conversation.
type Chat struct {
	ID int64 `json:"id"`
}

// User identifies a sender.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Message is one inbound chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      User   `json:"from"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

// Update is one long-poll result.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Client is the surface the gateway needs.
type Client interface {
	GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// RESTClient talks to the Bot API over HTTPS. Outbound calls run through a
// circuit breaker so a dead API degrades to fast failures instead of
// piling up blocked goroutines.
type RESTClient struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	sendLim *rate.Limiter
}

// NewREST builds a client for the given bot token.
func NewREST(token string) *RESTClient {
	return &RESTClient{
		baseURL: "https://api.telegram.org/bot" + token,
		http:    &http.Client{Timeout: 65 * time.Second},
		// Bot API allows ~30 messages/second across chats.
		sendLim: rate.NewLimiter(rate.Limit(25), 5),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "telegram",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}),
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// GetUpdates long-polls for new updates past offset.
func (c *RESTClient) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error) {
	q := url.Values{}
	q.Set("offset", strconv.FormatInt(offset, 10))
	q.Set("timeout", strconv.Itoa(timeoutSec))

	raw, err := c.call(ctx, "getUpdates?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var updates []Update
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	return updates, nil
}

// SendMessage posts text to a chat, pacing sends under the Bot API rate
// ceiling.
func (c *RESTClient) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := c.sendLim.Wait(ctx); err != nil {
		return err
	}
	body, err := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return err
	}
	_, err = c.call(ctx, "sendMessage", body)
	return err
}

func (c *RESTClient) call(ctx context.Context, method string, body []byte) (json.RawMessage, error) {
	res, err := c.breaker.Execute(func() (any, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, reader)
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return nil, err
		}
		var api apiResponse
		if err := json.Unmarshal(raw, &api); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		if !api.OK {
			return nil, fmt.Errorf("telegram api: %s", api.Description)
		}
		return api.Result, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(json.RawMessage), nil
}
