// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package chat

import (
	"fmt"
	"strings"

	"github.com/OlesyaDud/smart-notes/internal/notes"
)

// Callback payloads carried by the inline buttons.
const (
	CallbackAddNote     = "add_note"
	CallbackSearchNotes = "search_notes"
)

// Button is one inline keyboard button.
type Button struct {
	Text string
	Data string
}

// Reply is a transport-neutral bot answer. Markdown selects Telegram's legacy
// Markdown parse mode.
type Reply struct {
	Text     string
	Markdown bool
	Keyboard [][]Button
}

const (
	msgWelcome      = "👋 Welcome to Smart Notes!\n\nYou can add and search your notes easily below:"
	msgAdded        = "✅ *Note added successfully!*"
	msgAddUsage     = "⚠️ *Please provide a note after* `/add <note>`."
	msgSearchUsage  = "⚠️ Please type your search after the `/search` command."
	msgNoMatches    = "❌ No matches found."
	msgMatchesTitle = "🔍 *Top Matches:*\n\n"
	msgAddHint      = "✍️ Just type: `/add your note`"
	msgSearchHint   = "🔎 Just type: `/search your keywords`"
	msgBusy         = "⏳ The notes service is busy right now. Please try again in a moment."
	msgFailed       = "❗ Something went wrong on our side. Please try again later."
	msgUnknown      = "🤔 Unknown command. Try /start, `/add <note>` or `/search <query>`."
)

func welcomeReply() Reply {
	return Reply{
		Text: msgWelcome,
		Keyboard: [][]Button{{
			{Text: "➕ Add Note", Data: CallbackAddNote},
			{Text: "🔍 Search Notes", Data: CallbackSearchNotes},
		}},
	}
}

func addedReply() Reply {
	return Reply{
		Text:     msgAdded,
		Markdown: true,
		Keyboard: [][]Button{{
			{Text: "Add Another", Data: CallbackAddNote},
			{Text: "Search Notes", Data: CallbackSearchNotes},
		}},
	}
}

func resultsReply(results []notes.Result) Reply {
	if len(results) == 0 {
		return Reply{Text: msgNoMatches}
	}

	var b strings.Builder
	b.WriteString(msgMatchesTitle)
	for _, r := range results {
		fmt.Fprintf(&b, "• _%s_ \n   (score: `%.2f`)\n\n", escapeMarkdown(r.Text), r.Score)
	}

	return Reply{
		Text:     b.String(),
		Markdown: true,
		Keyboard: [][]Button{{
			{Text: "➕ Add Note", Data: CallbackAddNote},
			{Text: "🔁 New Search", Data: CallbackSearchNotes},
		}},
	}
}

// errorReply picks the user-facing message for a failed store call.
// usage is shown for validation failures.
func errorReply(err error, usage string) Reply {
	switch notes.KindOf(err) {
	case notes.KindValidation:
		return Reply{Text: usage, Markdown: true}
	case notes.KindEmbedding, notes.KindStorage:
		return Reply{Text: msgBusy}
	default:
		return Reply{Text: msgFailed}
	}
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"_", `\_`,
	"*", `\*`,
	"`", "\\`",
	"[", `\[`,
)

// escapeMarkdown neutralises legacy-Markdown entity characters in user text.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
