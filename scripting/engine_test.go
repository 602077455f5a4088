package scripting

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExecuteCancellation(t *testing.T) {
	e := NewEngine(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()
	if _, err := e.Execute(ctx, "while (true) {}"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	v, err := e.Execute(context.Background(), "1 + 1")
	if err != nil {
		t.Fatalf("engine should recover after cancellation, got %v", err)
	}
	if v != int64(2) {
		t.Errorf("1 + 1 = %v (%T)", v, v)
	}
}

func TestExecuteImmediateCancel(t *testing.T) {
	e := NewEngine(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Execute(ctx, "42"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled error, got %v", err)
	}
}

func TestExecuteErrors(t *testing.T) {
	e := NewEngine(nil)
	if _, err := e.Execute(context.Background(), "throw new Error('boom')"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := e.Execute(context.Background(), "app.alert('hi'); 'ok'"); err != nil {
		t.Fatalf("app.alert: %v", err)
	}
}
