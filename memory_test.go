package replcore

import "testing"

func TestMemSetGetRoundTrip(t *testing.T) {
	m := NewMem()
	m.Set("user_name", "the user's preferred name", "Ada", 3)
	v, ok := m.Get("user_name")
	if !ok || v != "Ada" {
		t.Fatalf("Get() = (%q, %v), want (Ada, true)", v, ok)
	}
}

func TestMemSetNilValueAliasesDescription(t *testing.T) {
	m := NewMem()
	m.Set("topic", "the topic of this session", "", 0)
	v, _ := m.Get("topic")
	if v != "the topic of this session" {
		t.Errorf("Get() = %q, want description to alias value", v)
	}
}

func TestMemReplaceOnRewritePreservesInsertionOrder(t *testing.T) {
	m := NewMem()
	m.Set("a", "", "1", 0)
	m.Set("b", "", "2", 0)
	m.Set("a", "", "1-updated", 1)

	all := m.All()
	if len(all) != 2 || all[0].Key != "a" || all[1].Key != "b" {
		t.Fatalf("All() = %+v, want order [a b] preserved", all)
	}
	if all[0].Value != "1-updated" {
		t.Errorf("Value = %q, want updated value", all[0].Value)
	}
}

func TestMemTurnIsMonotonic(t *testing.T) {
	m := NewMem()
	m.Set("k", "", "v1", 5)
	m.Set("k", "", "v2", 2) // an earlier turn number writing the same key
	e, _ := m.Entry("k")
	if e.Turn != 5 {
		t.Errorf("Turn = %d, want 5 (monotonic, never decreases)", e.Turn)
	}
}

func TestMemDelete(t *testing.T) {
	m := NewMem()
	m.Set("k", "", "v", 0)
	if !m.Delete("k") {
		t.Fatal("Delete() = false, want true")
	}
	if _, ok := m.Get("k"); ok {
		t.Error("key still present after Delete")
	}
	if m.Delete("k") {
		t.Error("second Delete() = true, want false")
	}
}

func TestMemFindRanksByRelevance(t *testing.T) {
	m := NewMem()
	m.Set("favorite_color", "the user's favorite color", "blue", 0)
	m.Set("os", "operating system in use", "linux", 0)

	results := m.Find("color", 10)
	if len(results) != 1 || results[0].Key != "favorite_color" {
		t.Fatalf("Find = %+v, want [favorite_color]", results)
	}
}

func TestMemSerializeRoundTrip(t *testing.T) {
	m := NewMem()
	m.Set("a", "desc", "1", 0)
	m.Set("b", "desc2", "2", 1)

	data, err := m.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	m2 := NewMem()
	if err := m2.Load(data); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m2.Len() != 2 {
		t.Fatalf("Load len = %d, want 2", m2.Len())
	}
	all := m2.All()
	if all[0].Key != "a" || all[1].Key != "b" {
		t.Errorf("Load order = %+v, want [a b]", all)
	}
}
