package logging

import (
	"bytes"
	"io"

	"go.uber.org/zap"
)

// lineWriter adapts the logger to an io.Writer for line-oriented producers
// such as HTTP access-log middleware. Each non-empty line becomes one info entry.
type lineWriter struct {
	log *zap.Logger
}

// Writer returns an io.Writer that logs every written line at info level.
func (l *Logger) Writer() io.Writer {
	return &lineWriter{log: l.Logger.WithOptions(zap.WithCaller(false))}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(p, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		w.log.Info(string(line))
	}
	return len(p), nil
}
