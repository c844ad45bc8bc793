package log

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// logControlCharReplacer escapes control characters usable for log injection (CWE-117).
var logControlCharReplacer = strings.NewReplacer(
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func sanitizeLogString(s string) string {
	return logControlCharReplacer.Replace(s)
}

// GoLogger implements Logger on top of the standard library logger.
//
// Messages and string field values are sanitized before being written.
type GoLogger struct {
	Level  Level
	fields []Field
	groups []string
	out    *log.Logger
}

// NewGoLogger returns a GoLogger writing through the default stdlib logger.
func NewGoLogger(level Level) *GoLogger {
	return &GoLogger{Level: level}
}

// Enabled reports whether level is within the configured verbosity.
func (l *GoLogger) Enabled(level Level) bool {
	if l == nil {
		return false
	}

	return l.Level >= level
}

// Log writes a single line: [level] group.key=value ... message.
func (l *GoLogger) Log(_ context.Context, level Level, msg string, fields ...Field) {
	if !l.Enabled(level) {
		return
	}

	line := l.render(level, msg, fields)

	if l.out != nil {
		l.out.Print(line)
		return
	}

	log.Print(line)
}

// With returns a child logger carrying the extra fields.
//
//nolint:ireturn
func (l *GoLogger) With(fields ...Field) Logger {
	if l == nil {
		return &GoLogger{}
	}

	child := l.clone()
	child.fields = append(child.fields, l.qualify(fields)...)

	return child
}

// WithGroup prefixes the keys of subsequent fields with name.
//
//nolint:ireturn
func (l *GoLogger) WithGroup(name string) Logger {
	if l == nil {
		return &GoLogger{}
	}

	child := l.clone()
	if name != "" {
		child.groups = append(child.groups, name)
	}

	return child
}

// Sync is a no-op: the stdlib logger is unbuffered.
func (l *GoLogger) Sync(_ context.Context) error { return nil }

func (l *GoLogger) clone() *GoLogger {
	return &GoLogger{
		Level:  l.Level,
		fields: append([]Field(nil), l.fields...),
		groups: append([]string(nil), l.groups...),
		out:    l.out,
	}
}

func (l *GoLogger) qualify(fields []Field) []Field {
	if len(l.groups) == 0 {
		return fields
	}

	prefix := strings.Join(l.groups, ".") + "."
	out := make([]Field, len(fields))

	for i, f := range fields {
		out[i] = Field{Key: prefix + f.Key, Value: f.Value}
	}

	return out
}

func (l *GoLogger) render(level Level, msg string, fields []Field) string {
	parts := make([]string, 0, 3)
	parts = append(parts, fmt.Sprintf("[%s]", level.String()))

	all := append(append([]Field(nil), l.fields...), l.qualify(fields)...)
	if len(all) > 0 {
		kv := make([]string, 0, len(all))

		for _, f := range all {
			value := fmt.Sprint(f.Value)
			if s, ok := f.Value.(string); ok {
				value = sanitizeLogString(s)
			}

			kv = append(kv, fmt.Sprintf("%s=%s", sanitizeLogString(f.Key), value))
		}

		parts = append(parts, fmt.Sprintf("[%s]", strings.Join(kv, ", ")))
	}

	parts = append(parts, sanitizeLogString(msg))

	return strings.Join(parts, " ")
}
