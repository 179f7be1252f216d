// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

// Package chat turns bot commands into note store calls and renders the
// answers. It is transport-neutral; see chat/telegram for the Telegram side.
package chat

import (
	"context"
	"log/slog"
	"strings"

	"github.com/OlesyaDud/smart-notes/internal/notes"
)

// Notes is the slice of notes.Store the bot needs.
type Notes interface {
	Add(ctx context.Context, text string) (string, error)
	Search(ctx context.Context, query string, topK int) ([]notes.Result, error)
}

// Handler answers bot commands and button presses.
type Handler struct {
	notes Notes
	retry RetryPolicy
	topK  int
}

// NewHandler returns a Handler. topK <= 0 leaves the choice to the store.
func NewHandler(n Notes, retry RetryPolicy, topK int) *Handler {
	return &Handler{notes: n, retry: retry, topK: topK}
}

// ParseCommand splits "/add@MyBot buy milk" into ("add", "buy milk").
// ok is false for text that is not a command.
func ParseCommand(text string) (name, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}

	head, rest, _ := strings.Cut(text[1:], " ")
	head, _, _ = strings.Cut(head, "@")
	if head == "" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}

// Command answers a slash command. Unknown commands get a usage hint.
func (h *Handler) Command(ctx context.Context, name, args string) Reply {
	switch name {
	case "start", "help":
		return welcomeReply()
	case "add":
		return h.add(ctx, args)
	case "search":
		return h.search(ctx, args)
	default:
		return Reply{Text: msgUnknown, Markdown: true}
	}
}

// Callback answers an inline button press.
func (h *Handler) Callback(_ context.Context, data string) Reply {
	switch data {
	case CallbackAddNote:
		return Reply{Text: msgAddHint, Markdown: true}
	case CallbackSearchNotes:
		return Reply{Text: msgSearchHint, Markdown: true}
	default:
		return welcomeReply()
	}
}

func (h *Handler) add(ctx context.Context, text string) Reply {
	var id string
	err := h.retry.Do(ctx, "add", func(ctx context.Context) error {
		var err error
		id, err = h.notes.Add(ctx, text)
		return err
	})
	if err != nil {
		logFailure("add", err)
		return errorReply(err, msgAddUsage)
	}

	slog.Debug("chat note added", "note_id", id)
	return addedReply()
}

func (h *Handler) search(ctx context.Context, query string) Reply {
	var results []notes.Result
	err := h.retry.Do(ctx, "search", func(ctx context.Context) error {
		var err error
		results, err = h.notes.Search(ctx, query, h.topK)
		return err
	})
	if err != nil {
		logFailure("search", err)
		return errorReply(err, msgSearchUsage)
	}

	return resultsReply(results)
}

func logFailure(op string, err error) {
	kind := notes.KindOf(err)
	if kind == notes.KindValidation {
		slog.Debug("chat request rejected", "op", op, "error", err)
		return
	}
	slog.Error("chat request failed", "op", op, "kind", kind.String(), "error", err)
}
