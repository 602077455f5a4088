package observability

import "context"

// Logger is the structured logger used across the library.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

type Field interface {
	Key() string
	Value() interface{}
}

type field struct {
	key string
	val interface{}
}

func (f field) Key() string        { return f.key }
func (f field) Value() interface{} { return f.val }

func String(key, value string) Field          { return field{key, value} }
func Int(key string, value int) Field         { return field{key, value} }
func Int64(key string, value int64) Field     { return field{key, value} }
func Float64(key string, value float64) Field { return field{key, value} }
func Bool(key string, value bool) Field       { return field{key, value} }
func Any(key string, value interface{}) Field { return field{key, value} }
func Error(key string, err error) Field       { return field{key, err} }

// Err is shorthand for Error("error", err).
func Err(err error) Field { return field{"error", err} }

type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (NopLogger) With(...Field) Logger   { return NopLogger{} }

// OrNop returns l, or a NopLogger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NopLogger{}
	}
	return l
}

// Tracer provides tracing hooks around long-running document operations.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span represents a tracing span.
type Span interface {
	SetTag(key string, value interface{})
	SetError(err error)
	Finish()
}

type nopTracer struct{}

func (nopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, nopSpan{}
}

// NopTracer returns a tracer that does nothing.
func NopTracer() Tracer { return nopTracer{} }

type nopSpan struct{}

func (nopSpan) SetTag(string, interface{}) {}
func (nopSpan) SetError(error)             {}
func (nopSpan) Finish()                    {}

type tracerKey struct{}

// WithTracer stores t in ctx so processors deep in the call tree can open spans.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	return context.WithValue(ctx, tracerKey{}, t)
}

// StartSpan opens a span on the tracer stored in ctx, or a no-op span.
func StartSpan(ctx context.Context, name string) (context.Context, Span) {
	if t, ok := ctx.Value(tracerKey{}).(Tracer); ok && t != nil {
		return t.StartSpan(ctx, name)
	}
	return ctx, nopSpan{}
}

// Standard span names emitted by the library.
const (
	SpanOpen     = "pdf.open"
	SpanSave     = "pdf.save"
	SpanOptimize = "pdf.optimize"
	SpanFlatten  = "pdf.flatten"
	SpanRedact   = "pdf.redact"
	SpanRender   = "pdf.render"
	SpanSign     = "pdf.sign"
)
