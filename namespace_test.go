package replcore

import (
	"encoding/gob"
	"testing"
)

func init() {
	gob.Register("")
	gob.Register(0)
	gob.Register(namespaceTestStruct{})
}

type namespaceTestStruct struct {
	Foo string
}

func TestNamespaceSetGetDelete(t *testing.T) {
	ns := NewNamespace()
	ns.Set("x", "hello")
	v, ok := ns.Get("x")
	if !ok || v != "hello" {
		t.Fatalf("Get() = (%v, %v), want (hello, true)", v, ok)
	}
	ns.Delete("x")
	if _, ok := ns.Get("x"); ok {
		t.Error("x still present after Delete")
	}
}

func TestNamespaceSnapshotExcludesUnderscoreAndSkipSet(t *testing.T) {
	ns := NewNamespace("T", "done")
	ns.Set("_private", "nope")
	ns.Set("T", "should be skipped")
	ns.Set("kept", "value")

	blob, err := ns.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	ns2 := NewNamespace()
	if err := ns2.Restore(blob); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if v, ok := ns2.Get("kept"); !ok || v != "value" {
		t.Errorf("Get(kept) = (%v, %v), want (value, true)", v, ok)
	}
	if _, ok := ns2.Get("_private"); ok {
		t.Error("_private should have been excluded from the snapshot")
	}
	if _, ok := ns2.Get("T"); ok {
		t.Error("T (skip set) should have been excluded from the snapshot")
	}
}

func TestNamespaceRestoreUnionsOverExisting(t *testing.T) {
	ns := NewNamespace()
	ns.Set("kept", "original")
	blob, err := ns.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	ns2 := NewNamespace()
	ns2.Set("other", "stays")
	if err := ns2.Restore(blob); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if v, _ := ns2.Get("kept"); v != "original" {
		t.Errorf("Get(kept) = %v, want original", v)
	}
	if v, _ := ns2.Get("other"); v != "stays" {
		t.Errorf("Get(other) = %v, want stays (union, not replace)", v)
	}
}

func TestNamespaceSnapshotDropsUnserializableSilently(t *testing.T) {
	ns := NewNamespace()
	ns.Set("func_value", func() {}) // gob cannot encode funcs; must be dropped, not error
	ns.Set("kept", "value")

	blob, err := ns.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	ns2 := NewNamespace()
	if err := ns2.Restore(blob); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if _, ok := ns2.Get("func_value"); ok {
		t.Error("func_value should have been silently dropped, not restored")
	}
	if v, ok := ns2.Get("kept"); !ok || v != "value" {
		t.Errorf("Get(kept) = (%v, %v), want (value, true)", v, ok)
	}
}

func TestNamespaceClear(t *testing.T) {
	ns := NewNamespace()
	ns.Set("a", "b")
	ns.Clear()
	if _, ok := ns.Get("a"); ok {
		t.Error("namespace should be empty after Clear")
	}
}
