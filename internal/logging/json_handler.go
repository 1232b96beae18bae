package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// jsonTimeLayout keeps millisecond precision so batched moves stay ordered.
const jsonTimeLayout = "2006-01-02T15:04:05.000Z07:00"

func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   addSource,
		ReplaceAttr: replaceJSONAttr,
	})
}

func replaceJSONAttr(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return attr
	}
	switch attr.Key {
	case slog.TimeKey:
		attr.Key = "ts"
		if attr.Value.Kind() == slog.KindTime {
			attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(jsonTimeLayout))
		}
	case slog.LevelKey:
		attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
	case slog.SourceKey:
		if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
			attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", trimSourcePath(src.File), src.Line))
		}
	case FieldRunID, FieldPhase:
		// Correlation fields are omitted rather than written empty.
		if attr.Value.Kind() == slog.KindString && attr.Value.String() == "" {
			return slog.Attr{}
		}
	default:
		if attr.Value.Kind() == slog.KindDuration {
			attr.Key += "_ms"
			attr.Value = slog.Int64Value(attr.Value.Duration().Milliseconds())
		}
	}
	return attr
}

// trimSourcePath shortens an absolute source path to its package-relative
// form, e.g. internal/engine/engine.go.
func trimSourcePath(file string) string {
	for _, marker := range []string{"/internal/", "/cmd/"} {
		if idx := strings.LastIndex(file, marker); idx >= 0 {
			return file[idx+1:]
		}
	}
	return file
}
