// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package index

import (
	"context"
	"errors"

	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

// WrapOp wraps a backend failure with code, or with the index timeout code
// when the failure was caused by the context deadline.
func WrapOp(ctx context.Context, err error, code snerr.Code, msg string, fields ...snerr.Attr) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		code = snerr.CodeIndexRequestTimeout
	}
	return snerr.Wrap(err, code, msg, fields...)
}
