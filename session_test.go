package replcore

import (
	"context"
	"testing"

	"github.com/turnscript/replcore/faketest"
)

func TestSessionRecordTurnCapturesToolCalls(t *testing.T) {
	fb := faketest.NewBridge()
	fb.Handle("read_file", "contents")
	s := NewSession(fb, []ToolDef{{Name: "read_file", InjectIntoPrompt: true}}, "agent-1", true)

	if _, err := s.Dispatcher().Invoke(context.Background(), "read_file", map[string]any{"path": "a.go"}); err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	turn := s.RecordTurn("read a.go", "", "read_file(...)", "contents", nil)
	if len(turn.ToolCalls) != 1 || turn.ToolCalls[0].ToolName != "read_file" {
		t.Fatalf("ToolCalls = %+v, want one read_file call", turn.ToolCalls)
	}
	if turn.Index != 0 {
		t.Errorf("Index = %d, want 0", turn.Index)
	}
	if s.History().Len() != 1 {
		t.Errorf("History().Len() = %d, want 1", s.History().Len())
	}
}

func TestSessionSnapshotRestoreRoundTrip(t *testing.T) {
	fb := faketest.NewBridge()
	s := NewSession(fb, nil, "agent-1", true)
	s.Namespace().Set("kept", "value")

	blob, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	s2 := NewSession(fb, nil, "agent-1", true)
	if err := s2.Restore(blob); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if v, ok := s2.Namespace().Get("kept"); !ok || v != "value" {
		t.Errorf("Get(kept) = (%v, %v), want (value, true)", v, ok)
	}
}

func TestSessionResetClearsHistoryAndNamespace(t *testing.T) {
	fb := faketest.NewBridge()
	s := NewSession(fb, []ToolDef{{Name: "read_file"}}, "agent-1", true)
	s.Namespace().Set("x", "y")
	s.RecordTurn("msg", "", "", "", nil)

	s.Reset([]ToolDef{{Name: "write_file"}}, "agent-2", false)

	if _, ok := s.Namespace().Get("x"); ok {
		t.Error("namespace should be cleared after Reset")
	}
	if s.History().Len() != 0 {
		t.Error("history should be cleared after Reset")
	}
	if _, ok := s.Registry().Proxy("write_file"); !ok {
		t.Error("Reset should re-register tools from the new definitions")
	}
	if _, ok := s.Registry().Proxy("read_file"); ok {
		t.Error("Reset should drop proxies for tools no longer in the definition list")
	}
}

func TestSessionInheritFromEmptyReturnsEmptyStrings(t *testing.T) {
	fb := faketest.NewBridge()
	s := NewSession(fb, nil, "agent-1", true)
	ph, pm, err := s.InheritFrom()
	if err != nil {
		t.Fatalf("InheritFrom: %v", err)
	}
	if ph != "" || pm != "" {
		t.Errorf("InheritFrom() = (%q, %q), want empty strings for an empty session", ph, pm)
	}
}

func TestSessionInheritFromAndLoadInherited(t *testing.T) {
	fb := faketest.NewBridge()
	parent := NewSession(fb, nil, "agent-1", true)
	parent.RecordTurn("hello", "", "", "", nil)
	parent.Mem().Set("k", "", "v", 0)

	ph, pm, err := parent.InheritFrom()
	if err != nil {
		t.Fatalf("InheritFrom: %v", err)
	}
	if ph == "" || pm == "" {
		t.Fatal("InheritFrom() should be non-empty for a non-empty session")
	}

	child := NewSession(fb, nil, "agent-2", true)
	if err := child.LoadInherited(ph, pm); err != nil {
		t.Fatalf("LoadInherited: %v", err)
	}
	if child.History().Len() != 1 {
		t.Errorf("child History().Len() = %d, want 1", child.History().Len())
	}
	if v, ok := child.Mem().Get("k"); !ok || v != "v" {
		t.Errorf("child Mem().Get(k) = (%v, %v), want (v, true)", v, ok)
	}
}

func TestSessionAutoDispatchSets(t *testing.T) {
	fb := faketest.NewBridge()
	s := NewSession(fb, []ToolDef{
		{Name: "read_file", InjectIntoPrompt: true},
		{Name: "shell", InjectIntoPrompt: false},
		{Name: "internal", Hidden: true},
	}, "agent-1", false)

	names, attrs := s.AutoDispatchSets(map[string]bool{"result": true})
	if !names["read_file"] {
		t.Error("names should include injected tool read_file")
	}
	if names["shell"] {
		t.Error("names should not include non-injected tool shell")
	}
	if !names["ask"] {
		t.Error("names should include ask in non-headless sessions")
	}
	if !attrs["shell"] || !attrs["read_file"] {
		t.Error("attrs should include every non-hidden tool")
	}
	if attrs["internal"] {
		t.Error("attrs should not include hidden tools")
	}
	if !attrs["result"] {
		t.Error("attrs should include the fixed handle-method set")
	}
}
