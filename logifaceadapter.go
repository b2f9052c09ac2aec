// Bridges gocoro's own Logger/LogEntry pair (logging.go) to
// github.com/joeycumines/logiface, a structured-logging library this
// project standardizes on. Installing a *logiface.Logger[*Event]
// sink via NewLogifaceLogger lets gocoro's diagnostics flow through the
// same zerolog/logrus/slog/stumpy backends logiface supports,
// instead of the zero-dependency DefaultLogger.
package gocoro

import (
	"fmt"
	"time"

	"github.com/joeycumines/logiface"
)

func fmtAny(v any) string { return fmt.Sprint(v) }

// Event is gocoro's minimal logiface.Event implementation: it buffers the
// fields AddField collects and hands them, along with the level and
// message, to a gocoro Logger when the logiface Logger writes it out.
type Event struct {
	logiface.UnimplementedEvent
	level   logiface.Level
	message string
	err     error
	fields  map[string]any
}

var _ logiface.Event = (*Event)(nil)

func (e *Event) Level() logiface.Level { return e.level }

func (e *Event) AddField(key string, val any) {
	if e.fields == nil {
		e.fields = make(map[string]any, 4)
	}
	e.fields[key] = val
}

func (e *Event) AddMessage(msg string) bool {
	e.message = msg
	return true
}

func (e *Event) AddError(err error) bool {
	e.err = err
	return true
}

func (e *Event) AddString(key string, val string) bool {
	e.AddField(key, val)
	return true
}

func (e *Event) AddInt(key string, val int) bool {
	e.AddField(key, val)
	return true
}

func (e *Event) AddBool(key string, val bool) bool {
	e.AddField(key, val)
	return true
}

func (e *Event) AddTime(key string, val time.Time) bool {
	e.AddField(key, val)
	return true
}

func (e *Event) AddDuration(key string, val time.Duration) bool {
	e.AddField(key, val)
	return true
}

// eventFactory implements logiface.EventFactory[*Event].
type eventFactory struct{}

func (eventFactory) NewEvent(level logiface.Level) *Event {
	return &Event{level: level}
}

// loggerWriter implements logiface.Writer[*Event], forwarding finished
// events into a gocoro Logger. It is the only place the two logging
// vocabularies actually meet.
type loggerWriter struct {
	sink     Logger
	category string
}

func (w loggerWriter) Write(event *Event) error {
	entry := LogEntry{
		Level:     fromLogifaceLevel(event.level),
		Category:  w.category,
		Context:   event.fields,
		Message:   event.message,
		Err:       event.err,
		Timestamp: time.Now(),
	}
	w.sink.Log(entry)
	return nil
}

func fromLogifaceLevel(level logiface.Level) LogLevel {
	switch {
	case level >= logiface.LevelDebug:
		return LevelDebug
	case level >= logiface.LevelNotice:
		return LevelInfo
	case level >= logiface.LevelWarning:
		return LevelWarn
	default:
		return LevelError
	}
}

func toLogifaceLevel(level LogLevel) logiface.Level {
	switch level {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	default:
		return logiface.LevelError
	}
}

// NewLogifaceLogger builds a *logiface.Logger[*Event] that writes through
// to sink, tagging every entry with category. The returned logger is a
// full logiface.Logger — callers may use it directly (e.g. to attach
// additional logiface Modifiers or a second Writer fanning out to a real
// backend such as logiface/zerolog) or wrap it with NewLogifaceSink to
// install it as gocoro's own Logger.
func NewLogifaceLogger(sink Logger, category string, minLevel LogLevel) *logiface.Logger[*Event] {
	return logiface.New[*Event](
		logiface.WithEventFactory[*Event](eventFactory{}),
		logiface.WithWriter[*Event](loggerWriter{sink: sink, category: category}),
		logiface.WithLevel[*Event](toLogifaceLevel(minLevel)),
	)
}

// logifaceSink adapts a *logiface.Logger[*Event] into gocoro's Logger
// interface, so a caller who has already built up a logiface pipeline
// (attached to zerolog, logrus, slog, or stumpy via the corresponding
// logiface-* adapter from the example pack) can hand it straight to
// SetStructuredLogger or WithLogger.
type logifaceSink struct {
	logger *logiface.Logger[*Event]
}

// NewLogifaceSink wraps an existing logiface logger as a gocoro Logger,
// the inverse of NewLogifaceLogger: use this when logiface, not gocoro's
// DefaultLogger, owns the real sink.
func NewLogifaceSink(logger *logiface.Logger[*Event]) Logger {
	return logifaceSink{logger: logger}
}

func (s logifaceSink) IsEnabled(level LogLevel) bool {
	return s.logger.Level() >= toLogifaceLevel(level)
}

func (s logifaceSink) Log(entry LogEntry) {
	b := s.logger.Build(toLogifaceLevel(entry.Level))
	if b == nil {
		return
	}
	if entry.Message != "" {
		b = b.Str("message", entry.Message)
	}
	if entry.SchedID != 0 {
		b = b.Int("sched", int(entry.SchedID))
	}
	if entry.CoroID != 0 {
		b = b.Int("coro", int(entry.CoroID))
	}
	if entry.TimerID != 0 {
		b = b.Int("timer", int(entry.TimerID))
	}
	for k, v := range entry.Context {
		if s, ok := v.(string); ok {
			b = b.Str(k, s)
			continue
		}
		b = b.Str(k, fmtAny(v))
	}
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	b.Log(entry.Category)
}
