package scripting

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dop251/goja"

	"github.com/NityaNandPandey/AndroidPDF/observability"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
)

// Form binds the fields of a document into an engine as this.getField
// and the AF* calculation helpers.
type Form struct {
	e   *Engine
	doc *pdf.Doc
}

// BindForm installs the form object model for doc into e. Top-level
// scripts see it through this, the global object.
func BindForm(e *Engine, doc *pdf.Doc) (*Form, error) {
	f := &Form{e: e, doc: doc}
	if err := e.Set("getField", f.getField); err != nil {
		return nil, err
	}
	if err := e.Set("AFSimple_Calculate", f.simpleCalculate); err != nil {
		return nil, err
	}
	if err := e.Set("AFMakeNumber", makeNumber); err != nil {
		return nil, err
	}
	if err := e.Set("numPages", doc.PageCount()); err != nil {
		return nil, err
	}
	return f, nil
}

// getField returns the script view of a field, or null.
func (f *Form) getField(name string) goja.Value {
	fld := f.doc.Field(name)
	if fld == nil {
		return goja.Null()
	}
	return f.fieldObject(fld)
}

func (f *Form) fieldObject(fld *pdf.Field) *goja.Object {
	vm := f.e.vm
	obj := vm.NewObject()
	obj.Set("name", fld.Name())
	obj.Set("readonly", fld.IsReadOnly())
	obj.DefineAccessorProperty("value",
		vm.ToValue(func(goja.FunctionCall) goja.Value { return vm.ToValue(makeNumber(fld.Value())) }),
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			if err := fld.SetValue(formatValue(call.Argument(0).Export())); err != nil {
				panic(vm.NewGoError(err))
			}
			return goja.Undefined()
		}),
		goja.FLAG_TRUE, goja.FLAG_TRUE)
	obj.DefineAccessorProperty("valueAsString",
		vm.ToValue(func(goja.FunctionCall) goja.Value { return vm.ToValue(fld.Value()) }),
		nil, goja.FLAG_TRUE, goja.FLAG_TRUE)
	return obj
}

// simpleCalculate implements AFSimple_Calculate: it sets event.value to
// the SUM, PRD, AVG, MIN or MAX of the named fields.
func (f *Form) simpleCalculate(call goja.FunctionCall) goja.Value {
	vm := f.e.vm
	op := strings.ToUpper(call.Argument(0).String())
	var names []string
	switch v := call.Argument(1).Export().(type) {
	case string:
		for _, n := range strings.Split(v, ",") {
			names = append(names, strings.TrimSpace(n))
		}
	case []any:
		for _, n := range v {
			names = append(names, fmt.Sprint(n))
		}
	}
	var vals []float64
	for _, n := range names {
		fld := f.doc.Field(n)
		if fld == nil {
			continue
		}
		if x, ok := makeNumber(fld.Value()).(float64); ok {
			vals = append(vals, x)
		} else {
			vals = append(vals, 0)
		}
	}
	res, err := aggregate(op, vals)
	if err != nil {
		panic(vm.NewGoError(err))
	}
	if ev := vm.Get("event"); ev != nil {
		if obj := ev.ToObject(vm); obj != nil {
			obj.Set("value", res)
		}
	}
	return vm.ToValue(res)
}

func aggregate(op string, vals []float64) (float64, error) {
	switch op {
	case "SUM", "AVG":
		s := 0.0
		for _, v := range vals {
			s += v
		}
		if op == "AVG" {
			if len(vals) == 0 {
				return 0, nil
			}
			return s / float64(len(vals)), nil
		}
		return s, nil
	case "PRD":
		p := 1.0
		for _, v := range vals {
			p *= v
		}
		return p, nil
	case "MIN", "MAX":
		if len(vals) == 0 {
			return 0, nil
		}
		r := vals[0]
		for _, v := range vals[1:] {
			if op == "MIN" {
				r = math.Min(r, v)
			} else {
				r = math.Max(r, v)
			}
		}
		return r, nil
	}
	return 0, fmt.Errorf("AFSimple_Calculate: unknown operation %q", op)
}

// makeNumber returns s as a float64 when it reads as a number, else s.
func makeNumber(s string) any {
	t := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if t == "" {
		return s
	}
	if v, err := strconv.ParseFloat(t, 64); err == nil {
		return v
	}
	return s
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case string:
		return x
	}
	return fmt.Sprint(v)
}

// Calculate runs the calculate action of fld with an event object whose
// value starts at the field's value; a script leaving event.rc true
// stores event.value back into the field.
func (f *Form) Calculate(ctx context.Context, fld *pdf.Field) error {
	a := fld.Trigger(pdf.TriggerCalculate)
	if a == nil {
		return nil
	}
	vm := f.e.vm
	ev := vm.NewObject()
	ev.Set("value", makeNumber(fld.Value()))
	ev.Set("rc", true)
	ev.Set("name", "Calculate")
	ev.Set("target", f.fieldObject(fld))
	vm.Set("event", ev)
	defer vm.GlobalObject().Delete("event")
	if _, err := f.e.run(ctx, a.JavaScript()); err != nil {
		return err
	}
	if !ev.Get("rc").ToBoolean() {
		return nil
	}
	return fld.SetValue(formatValue(ev.Get("value").Export()))
}

// RunCalculations evaluates the calculate actions of doc in calculation
// order, after running the document-level scripts. A failing script is
// logged and the remaining fields are still calculated.
func RunCalculations(ctx context.Context, doc *pdf.Doc, logger observability.Logger) error {
	ctx, span := observability.StartSpan(ctx, "scripting.calculate")
	defer span.Finish()
	log := observability.OrNop(logger)
	e := NewEngine(log)
	form, err := BindForm(e, doc)
	if err != nil {
		return err
	}
	var errs []error
	for _, s := range doc.Scripts() {
		if _, err := e.run(ctx, s.Action.JavaScript()); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("document script failed", observability.String("script", s.Name), observability.Err(err))
			errs = append(errs, fmt.Errorf("script %q: %w", s.Name, err))
		}
	}
	for _, fld := range doc.CalculationOrder() {
		if err := form.Calculate(ctx, fld); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("calculation failed", observability.String("field", fld.Name()), observability.Err(err))
			errs = append(errs, fmt.Errorf("field %q: %w", fld.Name(), err))
		}
	}
	err = errors.Join(errs...)
	span.SetError(err)
	return err
}
