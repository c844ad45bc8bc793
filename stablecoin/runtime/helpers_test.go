//go:build unit

package runtime

import (
	"context"
	"sync"

	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
)

type capturedEntry struct {
	level  log.Level
	msg    string
	fields map[string]any
}

type testLogger struct {
	log.NopLogger
	mu      sync.Mutex
	entries []capturedEntry
}

func (l *testLogger) Enabled(log.Level) bool { return true }

func (l *testLogger) Log(_ context.Context, level log.Level, msg string, fields ...log.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}

	l.entries = append(l.entries, capturedEntry{level: level, msg: msg, fields: m})
}

func (l *testLogger) all() []capturedEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]capturedEntry(nil), l.entries...)
}

type captureReporter struct {
	mu   sync.Mutex
	errs []error
	tags []map[string]string
}

func (r *captureReporter) CaptureException(_ context.Context, err error, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errs = append(r.errs, err)
	r.tags = append(r.tags, tags)
}
