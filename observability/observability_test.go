package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNopTracer(t *testing.T) {
	tracer := NopTracer()
	ctx := context.Background()
	ctx2, span := tracer.StartSpan(ctx, "test")
	if ctx2 != ctx {
		t.Fatalf("nop tracer should return same context")
	}
	span.SetTag("key", "value")
	span.SetError(nil)
	span.Finish()
}

type recordingTracer struct{ names []string }

func (r *recordingTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	r.names = append(r.names, name)
	return ctx, nopSpan{}
}

func TestStartSpanUsesContextTracer(t *testing.T) {
	rec := &recordingTracer{}
	ctx := WithTracer(context.Background(), rec)
	_, span := StartSpan(ctx, SpanSave)
	span.Finish()
	if len(rec.names) != 1 || rec.names[0] != SpanSave {
		t.Fatalf("spans = %v", rec.names)
	}
	// No tracer in context: must not panic.
	_, span = StartSpan(context.Background(), SpanOpen)
	span.Finish()
}

func TestLogrusAdapter(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})

	log := NewLogrus(l).With(String("doc", "fish.pdf"))
	log.Warn("xref repaired", Int("objects", 12), Err(errors.New("bad offset")))

	out := buf.String()
	for _, want := range []string{"level=warning", "doc=fish.pdf", "objects=12", `error="bad offset"`, "xref repaired"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}

func TestOrNop(t *testing.T) {
	if _, ok := OrNop(nil).(NopLogger); !ok {
		t.Fatalf("OrNop(nil) should be NopLogger")
	}
}
