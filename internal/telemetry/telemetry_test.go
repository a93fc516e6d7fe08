package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/turnscript/replcore"
)

type stubDispatcher struct {
	result any
	err    error
	calls  int
}

func (s *stubDispatcher) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	s.calls++
	return s.result, s.err
}

func TestWrapDispatcherDelegatesAndReturnsResult(t *testing.T) {
	inst, err := newInstruments()
	if err != nil {
		t.Fatalf("newInstruments: %v", err)
	}
	inner := &stubDispatcher{result: "ok"}
	d := WrapDispatcher(inner, inst)

	v, err := d.Invoke(context.Background(), "read_file", map[string]any{"path": "a.go"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if v != "ok" {
		t.Errorf("Invoke() = %v, want ok", v)
	}
	if inner.calls != 1 {
		t.Errorf("inner.calls = %d, want 1", inner.calls)
	}
}

func TestWrapDispatcherPropagatesError(t *testing.T) {
	inst, err := newInstruments()
	if err != nil {
		t.Fatalf("newInstruments: %v", err)
	}
	wantErr := errors.New("tool failed")
	inner := &stubDispatcher{err: wantErr}
	d := WrapDispatcher(inner, inst)

	_, err = d.Invoke(context.Background(), "shell", nil)
	if !errors.Is(err, wantErr) {
		t.Errorf("Invoke() error = %v, want %v", err, wantErr)
	}
}

func TestWrapTurnExecReturnsTurnWithTurnError(t *testing.T) {
	inst, err := newInstruments()
	if err != nil {
		t.Fatalf("newInstruments: %v", err)
	}
	errMsg := "boom"
	turn, err := WrapTurnExec(context.Background(), inst, "agent-1", func(ctx context.Context) (replcore.Turn, error) {
		return replcore.Turn{Index: 2, Error: &errMsg}, nil
	})
	if err != nil {
		t.Fatalf("WrapTurnExec: %v", err)
	}
	if turn.Index != 2 {
		t.Errorf("turn.Index = %d, want 2", turn.Index)
	}
}

func TestWrapTurnExecPropagatesExecError(t *testing.T) {
	inst, err := newInstruments()
	if err != nil {
		t.Fatalf("newInstruments: %v", err)
	}
	wantErr := errors.New("parse failed")
	_, err = WrapTurnExec(context.Background(), inst, "agent-1", func(ctx context.Context) (replcore.Turn, error) {
		return replcore.Turn{}, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("WrapTurnExec() error = %v, want %v", err, wantErr)
	}
}
