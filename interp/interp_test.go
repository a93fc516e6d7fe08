package interp

import (
	"context"
	"go/ast"
	"testing"

	"github.com/turnscript/replcore"
	"github.com/turnscript/replcore/faketest"
)

func mustParse(t *testing.T, src string) []ast.Stmt {
	t.Helper()
	res, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return res.Stmts
}

func TestEvalArithmeticAndPrint(t *testing.T) {
	ns := replcore.NewNamespace()
	cap := replcore.NewCapture()
	ev := NewEvaluator(ns, nil, cap, nil, true)

	stmts := mustParse(t, `
x := 2
y := 3
print(x + y)
`)
	if err := ev.RunBlock(context.Background(), stmts); err != nil {
		t.Fatalf("RunBlock: %v", err)
	}
	if got, want := cap.Finalize(), "5\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestEvalIfElse(t *testing.T) {
	ns := replcore.NewNamespace()
	cap := replcore.NewCapture()
	ev := NewEvaluator(ns, nil, cap, nil, true)

	stmts := mustParse(t, `
x := 10
if x > 5 {
	print("big")
} else {
	print("small")
}
`)
	if err := ev.RunBlock(context.Background(), stmts); err != nil {
		t.Fatalf("RunBlock: %v", err)
	}
	if got, want := cap.Finalize(), "big\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestEvalForLoopWithBreak(t *testing.T) {
	ns := replcore.NewNamespace()
	cap := replcore.NewCapture()
	ev := NewEvaluator(ns, nil, cap, nil, true)

	stmts := mustParse(t, `
total := 0
for i := 0; i < 10; i = i + 1 {
	if i == 3 {
		break
	}
	total = total + i
}
print(total)
`)
	if err := ev.RunBlock(context.Background(), stmts); err != nil {
		t.Fatalf("RunBlock: %v", err)
	}
	if got, want := cap.Finalize(), "3\n"; got != want {
		t.Errorf("output = %q, want %q (0+1+2)", got, want)
	}
}

func TestEvalToolCallDispatchesThroughRegistry(t *testing.T) {
	fb := faketest.NewBridge()
	fb.Handle("read_file", "file contents")
	d := replcore.NewToolDispatcher(fb)
	reg := replcore.NewRegistry([]replcore.ToolDef{{Name: "read_file", InjectIntoPrompt: true}}, "agent-1", d, nil, nil)

	ns := replcore.NewNamespace()
	cap := replcore.NewCapture()
	ev := NewEvaluator(ns, reg, cap, nil, true)

	stmts := mustParse(t, `
out := read_file(map[string]any{"path": "a.go"})
print(out)
`)
	if err := ev.RunBlock(context.Background(), stmts); err != nil {
		t.Fatalf("RunBlock: %v", err)
	}
	if got, want := cap.Finalize(), "file contents\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestEvalErrorHaltsRemainderOfBlock(t *testing.T) {
	ns := replcore.NewNamespace()
	cap := replcore.NewCapture()
	ev := NewEvaluator(ns, nil, cap, nil, true)
	ns.Set("x", int64(1))

	stmts := mustParse(t, `
x = 2
y := undefined_name
x = 3
`)
	err := ev.RunBlock(context.Background(), stmts)
	if err == nil {
		t.Fatal("RunBlock: expected an error from referencing an undefined name")
	}
	v, _ := ns.Get("x")
	if v != int64(2) {
		t.Errorf("x = %v, want 2 (statement before the error must have run, the one after must not have)", v)
	}
}

func TestEvalGatherRunsConcurrentlyAndPreservesOrder(t *testing.T) {
	fb := faketest.NewBridge()
	fb.Handle("tool_a", "a-result")
	fb.Handle("tool_b", "b-result")
	d := replcore.NewToolDispatcher(fb)
	reg := replcore.NewRegistry([]replcore.ToolDef{
		{Name: "tool_a", InjectIntoPrompt: true},
		{Name: "tool_b", InjectIntoPrompt: true},
	}, "agent-1", d, nil, nil)

	ns := replcore.NewNamespace()
	cap := replcore.NewCapture()
	ev := NewEvaluator(ns, reg, cap, nil, true)

	stmts := mustParse(t, `
results := gather(tool_a(), tool_b())
print(results)
`)
	if err := ev.RunBlock(context.Background(), stmts); err != nil {
		t.Fatalf("RunBlock: %v", err)
	}
	v, ok := ns.Get("results")
	if !ok {
		t.Fatal("results not bound")
	}
	list, ok := v.([]any)
	if !ok || len(list) != 2 {
		t.Fatalf("results = %v (%T), want a 2-element list", v, v)
	}
	if list[0] != "a-result" || list[1] != "b-result" {
		t.Errorf("results = %v, want [a-result b-result] (argument order preserved)", list)
	}
}

func TestEvalDoneStopsRemainderOfBlock(t *testing.T) {
	ns := replcore.NewNamespace()
	cap := replcore.NewCapture()
	ev := NewEvaluator(ns, nil, cap, nil, true)

	stmts := mustParse(t, `
done("all finished")
print("should not run")
`)
	if err := ev.RunBlock(context.Background(), stmts); err != nil {
		t.Fatalf("RunBlock: %v", err)
	}
	if got, want := cap.Finalize(), ""; got != want {
		t.Errorf("output after done() = %q, want empty (remaining statements skipped, done's own display suppressed)", got)
	}
	text, ok := ev.Done()
	if !ok || text != "all finished" {
		t.Errorf("Done() = (%q, %v), want (\"all finished\", true)", text, ok)
	}
}

func TestTagAwaitSitesSkipsGatherArguments(t *testing.T) {
	stmts := mustParse(t, `
gather(tool_a(), tool_b())
tool_c()
`)
	sites := TagAwaitSites(stmts, map[string]bool{"tool_a": true, "tool_b": true, "tool_c": true}, nil)
	if len(sites) != 1 {
		t.Fatalf("TagAwaitSites tagged %d calls, want 1 (only tool_c, outside gather)", len(sites))
	}
}
