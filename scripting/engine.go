// Package scripting runs form JavaScript (calculations and document-level
// scripts) on a goja runtime.
package scripting

import (
	"context"
	"errors"

	"github.com/dop251/goja"

	"github.com/NityaNandPandey/AndroidPDF/observability"
)

// Engine is a JavaScript runtime. It is not safe for concurrent use.
type Engine struct {
	vm  *goja.Runtime
	log observability.Logger
}

// NewEngine returns an engine with the app object installed.
func NewEngine(logger observability.Logger) *Engine {
	e := &Engine{vm: goja.New(), log: observability.OrNop(logger)}
	app := e.vm.NewObject()
	app.Set("alert", func(call goja.FunctionCall) goja.Value {
		msg := ""
		if len(call.Arguments) > 0 {
			msg = call.Argument(0).String()
		}
		e.log.Info("script alert", observability.String("message", msg))
		return goja.Undefined()
	})
	app.Set("viewerType", "Reader")
	e.vm.Set("app", app)
	return e
}

// Set binds a global name.
func (e *Engine) Set(name string, v any) error { return e.vm.Set(name, v) }

// Execute runs script and returns its completion value. Cancelling ctx
// interrupts a running script.
func (e *Engine) Execute(ctx context.Context, script string) (any, error) {
	v, err := e.run(ctx, script)
	if err != nil {
		return nil, err
	}
	return v.Export(), nil
}

func (e *Engine) run(ctx context.Context, script string) (goja.Value, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	done := make(chan struct{})
	defer close(done)
	defer e.vm.ClearInterrupt()
	go func() {
		select {
		case <-ctx.Done():
			e.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	v, err := e.vm.RunString(script)
	if err != nil {
		var ie *goja.InterruptedError
		if errors.As(err, &ie) {
			if cause, ok := ie.Value().(error); ok {
				return nil, cause
			}
			return nil, context.Canceled
		}
		return nil, err
	}
	return v, nil
}
