package clog

import (
	"context"
	"log/slog"
)

// AttributesHandler wraps another slog.Handler and copies whatever has been
// stashed in the context attribute bag (via AddAttribute/AddAttributes)
// onto every record that passes through it.
type AttributesHandler struct {
	handler slog.Handler
}

func NewAttributesHandler(handler slog.Handler) *AttributesHandler {
	return &AttributesHandler{handler: handler}
}

func (h *AttributesHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *AttributesHandler) Handle(ctx context.Context, record slog.Record) error {
	attrs := GetAttributes(ctx)
	if len(attrs) > 0 {
		record.AddAttrs(mapToAttrs(attrs)...)
	}
	return h.handler.Handle(ctx, record)
}

func (h *AttributesHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AttributesHandler{handler: h.handler.WithAttrs(attrs)}
}

func (h *AttributesHandler) WithGroup(name string) slog.Handler {
	return &AttributesHandler{handler: h.handler.WithGroup(name)}
}

// leadingAttributeKeys are rendered first, and in this order, on every
// record: exec_id and line are what a reader scanning interpreter output
// greps for, so they should land in the same column on every line rather
// than shuffling with Go's randomized map iteration.
var leadingAttributeKeys = []string{ExecIDAttributeKey, LineAttributeKey}

func mapToAttrs(m map[string]any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(m))
	seen := make(map[string]bool, len(leadingAttributeKeys))
	for _, k := range leadingAttributeKeys {
		if v, ok := m[k]; ok {
			attrs = append(attrs, slog.Any(k, v))
			seen[k] = true
		}
	}
	for k, v := range m {
		if seen[k] {
			continue
		}
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}
