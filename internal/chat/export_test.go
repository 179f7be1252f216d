// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package chat

var EscapeMarkdown = escapeMarkdown
