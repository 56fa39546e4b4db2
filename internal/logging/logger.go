// Package logging provides the contextual structured logger used across
// the session core. The API shape (leveled methods, WithComponent,
// WithFields) follows pkg/dialog/logger.go from the soft_phone codebase;
// the backing implementation is zerolog instead of a hand-rolled writer,
// matching the logging library the rest of the SIP/RTP example pack
// settled on.
package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Field is a single structured log attribute.
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field                 { return Field{key, value} }
func Int(key string, value int) Field                { return Field{key, value} }
func Bool(key string, value bool) Field              { return Field{key, value} }
func Duration(key string, value time.Duration) Field { return Field{key, value} }
func Err(err error) Field                            { return Field{"error", err} }
func Any(key string, value interface{}) Field        { return Field{key, value} }

// Logger is the contextual structured logger contract used throughout
// the session core. Every method is safe for concurrent use.
type Logger interface {
	Trace(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)

	WithComponent(component string) Logger
	WithFields(fields ...Field) Logger
}

type zlogger struct {
	z zerolog.Logger
}

// New builds a Logger writing to w (os.Stderr when w is nil).
func New(w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	z := zerolog.New(w).With().Timestamp().Logger()
	return &zlogger{z: z}
}

// Noop returns a Logger that discards everything, for tests and
// call sites that have not been handed a real logger.
func Noop() Logger {
	return &zlogger{z: zerolog.Nop()}
}

func apply(e *zerolog.Event, fields []Field) *zerolog.Event {
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			e = e.Str(f.Key, v)
		case int:
			e = e.Int(f.Key, v)
		case bool:
			e = e.Bool(f.Key, v)
		case time.Duration:
			e = e.Dur(f.Key, v)
		case error:
			e = e.AnErr(f.Key, v)
		default:
			e = e.Interface(f.Key, v)
		}
	}
	return e
}

func (l *zlogger) Trace(ctx context.Context, msg string, fields ...Field) {
	apply(l.z.Trace(), fields).Msg(msg)
}

func (l *zlogger) Debug(ctx context.Context, msg string, fields ...Field) {
	apply(l.z.Debug(), fields).Msg(msg)
}

func (l *zlogger) Info(ctx context.Context, msg string, fields ...Field) {
	apply(l.z.Info(), fields).Msg(msg)
}

func (l *zlogger) Warn(ctx context.Context, msg string, fields ...Field) {
	apply(l.z.Warn(), fields).Msg(msg)
}

func (l *zlogger) Error(ctx context.Context, msg string, fields ...Field) {
	apply(l.z.Error(), fields).Msg(msg)
}

func (l *zlogger) WithComponent(component string) Logger {
	return &zlogger{z: l.z.With().Str("component", component).Logger()}
}

func (l *zlogger) WithFields(fields ...Field) Logger {
	ctx := l.z.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key, f.Value)
	}
	return &zlogger{z: ctx.Logger()}
}
