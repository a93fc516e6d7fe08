package replcore

import (
	"encoding/json"
	"testing"
)

func TestToolErrorMessage(t *testing.T) {
	err := NewToolError("shell", json.RawMessage(`{"code":1,"stderr":"not found"}`))
	want := `tool "shell" failed: {"code":1,"stderr":"not found"}`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestToolErrorMessageNoPayload(t *testing.T) {
	err := NewToolError("shell", nil)
	want := `tool "shell" failed`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestToolErrorAlwaysFalsy(t *testing.T) {
	err := NewToolError("shell", json.RawMessage(`true`))
	if !err.IsFalsy() {
		t.Error("ToolError.IsFalsy() must always report true")
	}
}
