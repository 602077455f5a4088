package scripting

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/NityaNandPandey/AndroidPDF/coords"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
)

func formDoc(t *testing.T, values map[string]string) *pdf.Doc {
	t.Helper()
	d := pdf.New()
	if err := d.PagePushBack(d.PageCreate(coords.Rect{X2: 200, Y2: 200})); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a", "b", "total", "product", "label", "broken", "kept"} {
		if _, err := d.CreateField(name, pdf.FieldText, values[name]); err != nil {
			t.Fatal(err)
		}
	}
	return d
}

func calc(d *pdf.Doc, field, script string) {
	d.Field(field).SetTrigger(pdf.TriggerCalculate, d.JavaScriptAction(script))
}

func TestRunCalculations(t *testing.T) {
	d := formDoc(t, map[string]string{"a": "2", "b": "3", "kept": "same"})
	d.AddScript("helpers", `function label(n) { return "Total: " + n; }`)
	calc(d, "total", `AFSimple_Calculate("SUM", new Array("a", "b"));`)
	calc(d, "product", `event.value = this.getField("a").value * getField("total").value;`)
	calc(d, "label", `event.value = label(getField("total").value);`)
	calc(d, "broken", `nosuchfunction();`)
	calc(d, "kept", `event.value = "changed"; event.rc = false;`)

	err := RunCalculations(context.Background(), d, nil)
	if err == nil {
		t.Error("failing calculation not reported")
	}
	got := map[string]string{}
	for _, n := range []string{"total", "product", "label", "kept"} {
		got[n] = d.Field(n).Value()
	}
	want := map[string]string{"total": "5", "product": "10", "label": "Total: 5", "kept": "same"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("values (-want +got):\n%s", diff)
	}
}

func TestSimpleCalculateOps(t *testing.T) {
	tests := []struct {
		op   string
		want string
	}{
		{"SUM", "9"},
		{"PRD", "24"},
		{"AVG", "3"},
		{"MIN", "2"},
		{"MAX", "4"},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			d := formDoc(t, map[string]string{"a": "2", "b": "3", "kept": "4"})
			calc(d, "total", `AFSimple_Calculate("`+tt.op+`", "a, b, kept");`)
			if err := RunCalculations(context.Background(), d, nil); err != nil {
				t.Fatal(err)
			}
			if got := d.Field("total").Value(); got != tt.want {
				t.Errorf("%s = %s, want %s", tt.op, got, tt.want)
			}
		})
	}
}

func TestFieldValueAccess(t *testing.T) {
	d := formDoc(t, map[string]string{"a": "1,250.5", "label": "text"})
	e := NewEngine(nil)
	if _, err := BindForm(e, d); err != nil {
		t.Fatal(err)
	}
	v, err := e.Execute(context.Background(), `getField("a").value + 1`)
	if err != nil {
		t.Fatal(err)
	}
	if v != 1251.5 {
		t.Errorf("numeric value = %v", v)
	}
	v, err = e.Execute(context.Background(), `getField("missing") === null && getField("label").value`)
	if err != nil {
		t.Fatal(err)
	}
	if v != "text" {
		t.Errorf("text value = %v", v)
	}
	if _, err := e.Execute(context.Background(), `getField("b").value = 7`); err != nil {
		t.Fatal(err)
	}
	if got := d.Field("b").Value(); got != "7" {
		t.Errorf("assigned value = %q", got)
	}
}

func TestRunCalculationsCancelled(t *testing.T) {
	d := formDoc(t, nil)
	calc(d, "total", `while (true) {}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := RunCalculations(ctx, d, nil); err == nil {
		t.Fatal("expected cancellation error")
	}
}
