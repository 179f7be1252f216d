// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package config

import (
	"strings"

	"gopkg.in/yaml.v3"

	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

const redacted = "********"

// Dump renders the effective configuration as YAML. Literal secrets are
// masked; keyring:// references are shown as-is.
func Dump(c *Config) ([]byte, error) {
	out := *c
	out.Embedding.APIKey = redact(c.Embedding.APIKey)
	out.Telegram.Token = redact(c.Telegram.Token)

	data, err := yaml.Marshal(&out)
	if err != nil {
		return nil, snerr.Errorf(snerr.CodeConfigParseInvalidFormat, "rendering config: %w", err)
	}
	return data, nil
}

func redact(v string) string {
	if v == "" || strings.HasPrefix(v, "keyring://") {
		return v
	}
	return redacted
}
