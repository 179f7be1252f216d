// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package telegram

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/OlesyaDud/smart-notes/internal/chat"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

const (
	DefaultPollTimeout = 30 * time.Second
	DefaultWorkers     = 4

	// pollGrace is added to the long-poll timeout for the HTTP deadline.
	pollGrace = 10 * time.Second
)

// BotConfig tunes the update loop.
type BotConfig struct {
	PollTimeout time.Duration
	Workers     int

	// ErrorBackoff is the pause after a failed getUpdates call.
	ErrorBackoff time.Duration
}

// Bot polls for updates and hands each one to the chat handler. At most
// Workers updates are processed at a time.
type Bot struct {
	client  *Client
	handler *chat.Handler
	cfg     BotConfig
}

func NewBot(client *Client, handler *chat.Handler, cfg BotConfig) *Bot {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	return &Bot{client: client, handler: handler, cfg: cfg}
}

// Run polls until ctx is cancelled, then waits for in-flight updates and
// returns nil. Only a rejected token ends the loop early.
func (b *Bot) Run(ctx context.Context) error {
	me, err := b.client.ValidateToken(ctx)
	if err != nil {
		return err
	}
	slog.Info("telegram bot running", "username", me.Username, "workers", b.cfg.Workers)

	var g errgroup.Group
	g.SetLimit(b.cfg.Workers)
	defer func() { _ = g.Wait() }()

	var offset int64
	for ctx.Err() == nil {
		updates, err := b.poll(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if snerr.HasCode(err, snerr.CodeChannelTokenInvalid) {
				return err
			}
			slog.Warn("telegram getUpdates failed", "error", err)
			if !wait(ctx, b.cfg.ErrorBackoff) {
				break
			}
			continue
		}

		for _, u := range updates {
			offset = max(offset, u.UpdateID+1)
			g.Go(func() error {
				b.HandleUpdate(ctx, u)
				return nil
			})
		}
	}

	slog.Info("telegram bot stopping")
	return nil
}

func (b *Bot) poll(ctx context.Context, offset int64) ([]Update, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.PollTimeout+pollGrace)
	defer cancel()
	return b.client.GetUpdates(ctx, offset, b.cfg.PollTimeout)
}

// HandleUpdate answers one update. Failures are logged, not returned.
func (b *Bot) HandleUpdate(ctx context.Context, u Update) {
	switch {
	case u.CallbackQuery != nil:
		q := u.CallbackQuery
		if err := b.client.AnswerCallbackQuery(ctx, q.ID); err != nil {
			slog.Debug("telegram answerCallbackQuery failed", "error", err)
		}
		if q.Message == nil {
			return
		}
		b.send(ctx, q.Message.Chat.ID, b.handler.Callback(ctx, q.Data))

	case u.Message != nil:
		name, args, ok := chat.ParseCommand(u.Message.Text)
		if !ok {
			return
		}
		slog.Debug("telegram command", "command", name, "chat_id", u.Message.Chat.ID)
		b.send(ctx, u.Message.Chat.ID, b.handler.Command(ctx, name, args))
	}
}

func (b *Bot) send(ctx context.Context, chatID int64, reply chat.Reply) {
	if err := b.client.SendMessage(ctx, chatID, reply); err != nil {
		slog.Error("telegram sendMessage failed", "chat_id", chatID, "error", err)
	}
}

func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
