package instrument

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

const masked = "***"

// Masker replaces values of configured keys (case-insensitive) with "***".
// It is used by the slog handler and by the HTTP access log.
type Masker struct {
	keys map[string]struct{}
}

// NewMasker builds a Masker from field names; blanks are ignored.
func NewMasker(fields []string) *Masker {
	keys := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(strings.ToLower(field))
		if field != "" {
			keys[field] = struct{}{}
		}
	}
	return &Masker{keys: keys}
}

// Empty reports whether no keys are configured.
func (m *Masker) Empty() bool {
	return m == nil || len(m.keys) == 0
}

// Has reports whether key must be masked.
func (m *Masker) Has(key string) bool {
	if m.Empty() {
		return false
	}
	_, ok := m.keys[strings.ToLower(key)]
	return ok
}

// Data walks decoded JSON (maps and slices) and masks matching keys.
func (m *Masker) Data(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v2 := range val {
			if m.Has(k) {
				out[k] = masked
			} else {
				out[k] = m.Data(v2)
			}
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(val))
		for k, v2 := range val {
			out[k] = v2
		}
		return m.Data(out)
	case []any:
		out := make([]any, len(val))
		for i, v2 := range val {
			out[i] = m.Data(v2)
		}
		return out
	default:
		return v
	}
}

// JSON masks a JSON document and re-encodes it. ok is false when payload is
// not valid JSON.
func (m *Masker) JSON(payload []byte) (string, bool) {
	var body any
	if len(payload) == 0 || json.Unmarshal(payload, &body) != nil {
		return "", false
	}
	out, err := json.Marshal(m.Data(body))
	if err != nil {
		return "", false
	}
	return string(out), true
}

// Header returns a copy of h with matching header values masked.
func (m *Masker) Header(h http.Header) http.Header {
	if m.Empty() {
		return h
	}
	out := h.Clone()
	for key := range out {
		if m.Has(key) {
			out.Set(key, masked)
		}
	}
	return out
}

func (m *Masker) attr(a slog.Attr) slog.Attr {
	if m.Has(a.Key) {
		return slog.String(a.Key, masked)
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		group := a.Value.Group()
		out := make([]slog.Attr, 0, len(group))
		for _, ga := range group {
			out = append(out, m.attr(ga))
		}
		a.Value = slog.GroupValue(out...)
	case slog.KindString:
		if s := a.Value.String(); s != "" && (s[0] == '{' || s[0] == '[') {
			if out, ok := m.JSON([]byte(s)); ok {
				a.Value = slog.StringValue(out)
			}
		}
	case slog.KindAny:
		switch v := a.Value.Any().(type) {
		case map[string]any, map[string]string, []any:
			a.Value = slog.AnyValue(m.Data(v))
		case []byte:
			if out, ok := m.JSON(v); ok {
				a.Value = slog.StringValue(out)
			}
		}
	}

	return a
}

type maskHandler struct {
	handler slog.Handler
	masker  *Masker
}

func (h *maskHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *maskHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.masker.Empty() {
		return h.handler.Handle(ctx, record)
	}

	out := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.masker.attr(a))
		return true
	})

	return h.handler.Handle(ctx, out)
}

func (h *maskHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &maskHandler{handler: h.handler.WithAttrs(attrs), masker: h.masker}
}

func (h *maskHandler) WithGroup(name string) slog.Handler {
	return &maskHandler{handler: h.handler.WithGroup(name), masker: h.masker}
}
