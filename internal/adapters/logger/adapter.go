// Package logger adapts goLibMyCarrier's zap logger to the narrow logging
// interfaces declared by the other packages.
package logger

import (
	"context"
	"maps"
)

// Logger is the structured logger being wrapped.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// ZapAdapter forwards to a Logger, merging a fixed set of fields into every
// entry. Per-call fields take precedence over fixed ones.
type ZapAdapter struct {
	log    Logger
	fields map[string]interface{}
}

// NewZapAdapter creates a new ZapAdapter wrapping the given logger.
func NewZapAdapter(log Logger) *ZapAdapter {
	return &ZapAdapter{log: log}
}

// With returns a copy of the adapter that also attaches fields.
func (a *ZapAdapter) With(fields map[string]interface{}) *ZapAdapter {
	merged := make(map[string]interface{}, len(a.fields)+len(fields))
	maps.Copy(merged, a.fields)
	maps.Copy(merged, fields)
	return &ZapAdapter{log: a.log, fields: merged}
}

// Info logs an info message.
func (a *ZapAdapter) Info(ctx context.Context, msg string, fields map[string]interface{}) {
	a.log.Info(ctx, msg, a.merge(fields))
}

// Debug logs a debug message.
func (a *ZapAdapter) Debug(ctx context.Context, msg string, fields map[string]interface{}) {
	a.log.Debug(ctx, msg, a.merge(fields))
}

// Warn logs a warning message.
func (a *ZapAdapter) Warn(ctx context.Context, msg string, fields map[string]interface{}) {
	a.log.Warn(ctx, msg, a.merge(fields))
}

// Error logs an error message.
func (a *ZapAdapter) Error(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	a.log.Error(ctx, msg, err, a.merge(fields))
}

func (a *ZapAdapter) merge(fields map[string]interface{}) map[string]interface{} {
	if len(a.fields) == 0 {
		return fields
	}
	merged := make(map[string]interface{}, len(a.fields)+len(fields))
	maps.Copy(merged, a.fields)
	maps.Copy(merged, fields)
	return merged
}
