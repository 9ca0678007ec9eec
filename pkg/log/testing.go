// Test helpers for capturing structured log output.

package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
)

// CaptureHandler returns a slog handler writing JSON lines into the
// returned buffer, wrapped with the stacktrace formatter. Intended for
// asserting on log output in tests.
func CaptureHandler(level slog.Level) (slog.Handler, *bytes.Buffer) {
	buffer := &bytes.Buffer{}
	handler := slog.NewJSONHandler(buffer, &slog.HandlerOptions{Level: level})
	return WrapByErrFmtHandler(handler), buffer
}

// ParseCapturedLines decodes each JSON line in the buffer into a map.
// Malformed lines are skipped.
func ParseCapturedLines(buffer *bytes.Buffer) []map[string]interface{} {
	var entries []map[string]interface{}
	for _, line := range strings.Split(buffer.String(), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}
