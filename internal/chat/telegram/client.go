// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

// Package telegram runs the chat handler as a Telegram bot over the Bot API
// (long-polling getUpdates).
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/OlesyaDud/smart-notes/internal/chat"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

// DefaultBaseURL is the public Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// Client is a minimal Bot API client. Errors never contain the token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a Client. An empty baseURL selects DefaultBaseURL and a
// nil hc selects http.DefaultClient.
func NewClient(baseURL, token string, hc *http.Client) (*Client, error) {
	if token == "" {
		return nil, snerr.New(snerr.CodeChannelTokenInvalid, "telegram: bot token is required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: hc}, nil
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data"`
}

type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

type apiResponse[T any] struct {
	OK          bool   `json:"ok"`
	Result      T      `json:"result"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// ValidateToken calls getMe to verify the bot token and returns the bot
// account.
func (c *Client) ValidateToken(ctx context.Context) (User, error) {
	var me User
	if err := call(ctx, c, "getMe", nil, &me); err != nil {
		if snerr.HasCode(err, snerr.CodeChannelTokenInvalid) {
			return User{}, err
		}
		return User{}, snerr.Errorf(snerr.CodeChannelTokenCheckFailed, "validating Telegram token: %v", err)
	}
	return me, nil
}

// GetUpdates long-polls for updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	body := map[string]any{
		"offset":          offset,
		"timeout":         int(timeout / time.Second),
		"allowed_updates": []string{"message", "callback_query"},
	}
	var updates []Update
	if err := call(ctx, c, "getUpdates", body, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID      int64        `json:"chat_id"`
	Text        string       `json:"text"`
	ParseMode   string       `json:"parse_mode,omitempty"`
	ReplyMarkup *replyMarkup `json:"reply_markup,omitempty"`
}

// SendMessage delivers reply to chatID.
func (c *Client) SendMessage(ctx context.Context, chatID int64, reply chat.Reply) error {
	req := sendMessageRequest{ChatID: chatID, Text: reply.Text}
	if reply.Markdown {
		req.ParseMode = "Markdown"
	}
	if len(reply.Keyboard) > 0 {
		markup := &replyMarkup{}
		for _, row := range reply.Keyboard {
			buttons := make([]inlineButton, 0, len(row))
			for _, b := range row {
				buttons = append(buttons, inlineButton{Text: b.Text, CallbackData: b.Data})
			}
			markup.InlineKeyboard = append(markup.InlineKeyboard, buttons)
		}
		req.ReplyMarkup = markup
	}

	var sent Message
	return call(ctx, c, "sendMessage", req, &sent)
}

// AnswerCallbackQuery acknowledges a button press so the client stops
// showing a spinner.
func (c *Client) AnswerCallbackQuery(ctx context.Context, id string) error {
	var ok bool
	return call(ctx, c, "answerCallbackQuery", map[string]string{"callback_query_id": id}, &ok)
}

func call[T any](ctx context.Context, c *Client, method string, body any, out *T) error {
	var payload io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return snerr.Errorf(snerr.CodeChannelUpstreamFailure, "telegram %s: encoding request: %w", method, err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/bot"+c.token+"/"+method, payload)
	if err != nil {
		return snerr.Errorf(snerr.CodeChannelUpstreamFailure, "telegram %s: building request: %w", method, stripURL(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return snerr.Errorf(snerr.CodeChannelUpstreamFailure, "telegram %s: %w", method, stripURL(err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		_, _ = io.Copy(io.Discard, resp.Body)
		return snerr.Errorf(snerr.CodeChannelTokenInvalid, "invalid Telegram bot token (HTTP %d)", resp.StatusCode)
	}

	var decoded apiResponse[T]
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return snerr.Errorf(snerr.CodeChannelResponseInvalid, "telegram %s: decoding response (HTTP %d): %w",
			method, resp.StatusCode, err)
	}
	if !decoded.OK {
		return snerr.New(snerr.CodeChannelUpstreamFailure, "telegram "+method+": "+decoded.Description,
			snerr.Field("status", resp.StatusCode),
			snerr.Field("error_code", decoded.ErrorCode))
	}

	*out = decoded.Result
	return nil
}

// stripURL drops the request URL, which embeds the token, from transport
// errors.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}
