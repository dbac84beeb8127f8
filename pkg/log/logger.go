package log

import "time"

// Logger provides structured logging capabilities.
// Implementations can wrap zerolog, zap, logrus, or any other logging library.
type Logger interface {
	// Debug logs a debug-level message with fields.
	Debug(msg string, fields ...Field)

	// Info logs an info-level message with fields.
	Info(msg string, fields ...Field)

	// Warn logs a warning-level message with fields.
	Warn(msg string, fields ...Field)

	// Error logs an error-level message with fields.
	Error(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Strings creates a string slice field.
func Strings(key string, value []string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates an int64 field.
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a bool field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Err creates an error field with key "error".
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Component creates the field that identifies the emitting component.
func Component(name string) Field {
	return Field{Key: "component", Value: name}
}

// Any creates a field with any value.
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Named returns a Logger that adds a component field to every entry.
// A nil logger yields a no-op logger.
func Named(logger Logger, component string) Logger {
	if logger == nil {
		return NewNoopLogger()
	}
	if n, ok := logger.(*namedLogger); ok {
		return &namedLogger{base: n.base, field: Component(component)}
	}
	return &namedLogger{base: logger, field: Component(component)}
}

type namedLogger struct {
	base  Logger
	field Field
}

func (n *namedLogger) with(fields []Field) []Field {
	out := make([]Field, 0, len(fields)+1)
	out = append(out, n.field)
	return append(out, fields...)
}

func (n *namedLogger) Debug(msg string, fields ...Field) { n.base.Debug(msg, n.with(fields)...) }
func (n *namedLogger) Info(msg string, fields ...Field)  { n.base.Info(msg, n.with(fields)...) }
func (n *namedLogger) Warn(msg string, fields ...Field)  { n.base.Warn(msg, n.with(fields)...) }
func (n *namedLogger) Error(msg string, fields ...Field) { n.base.Error(msg, n.with(fields)...) }
