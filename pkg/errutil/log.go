// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

// Package errutil holds helpers for logging and asserting oops errors.
package errutil

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/oops"
)

// Code returns the oops code carried by err, or "" if there is none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok || oopsErr.Code() == nil {
		return ""
	}
	return fmt.Sprint(oopsErr.Code())
}

// Log logs err at level with structured context if it's an oops error.
// For oops errors the error_code and context are logged alongside the message;
// for standard errors only the error string. Extra attrs are appended.
func Log(ctx context.Context, logger *slog.Logger, level slog.Level, msg string, err error, attrs ...any) {
	fields := []any{"error", err.Error()}
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := oopsErr.Code(); code != nil {
			fields = append(fields, "error_code", code)
		}
		if c := oopsErr.Context(); len(c) > 0 {
			fields = append(fields, "context", c)
		}
	}
	logger.Log(ctx, level, msg, append(fields, attrs...)...)
}

// LogError logs err at ERROR level.
func LogError(logger *slog.Logger, msg string, err error, attrs ...any) {
	Log(context.Background(), logger, slog.LevelError, msg, err, attrs...)
}

// LogWarn logs err at WARN level using ctx for trace correlation.
func LogWarn(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...any) {
	Log(ctx, logger, slog.LevelWarn, msg, err, attrs...)
}
