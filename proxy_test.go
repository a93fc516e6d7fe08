package replcore

import (
	"context"
	"testing"
)

func TestProxyCallPositionalBindsByParamOrder(t *testing.T) {
	d := &stubDispatcher{}
	p := NewProxy(ToolDef{Name: "grep", Params: []Param{{Name: "pattern"}, {Name: "path"}}}, d)

	var captured map[string]any
	d2 := &capturingDispatcher{inner: d, capture: &captured}
	p.d = d2

	if _, err := p.Call(context.Background(), []any{"foo", "bar.go"}, nil); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if captured["pattern"] != "foo" || captured["path"] != "bar.go" {
		t.Errorf("bound args = %+v, want pattern=foo path=bar.go", captured)
	}
}

func TestProxyCallDictStylePositionalMerges(t *testing.T) {
	d := &stubDispatcher{}
	var captured map[string]any
	d2 := &capturingDispatcher{inner: d, capture: &captured}
	p := NewProxy(ToolDef{Name: "grep", Params: []Param{{Name: "pattern"}, {Name: "path"}}}, d2)

	dictArg := map[string]any{"pattern": "foo", "path": "bar.go"}
	if _, err := p.Call(context.Background(), []any{dictArg}, nil); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if captured["pattern"] != "foo" || captured["path"] != "bar.go" {
		t.Errorf("merged args = %+v, want pattern=foo path=bar.go", captured)
	}
}

func TestProxyCallTooManyPositionalErrors(t *testing.T) {
	d := &stubDispatcher{}
	p := NewProxy(ToolDef{Name: "grep", Params: []Param{{Name: "pattern"}}}, d)
	if _, err := p.Call(context.Background(), []any{"a", "b"}, nil); err == nil {
		t.Fatal("Call() with too many positional args should error")
	}
}

func TestClaimTaskProxyAutoFillsOwner(t *testing.T) {
	d := &stubDispatcher{}
	var captured map[string]any
	d2 := &capturingDispatcher{inner: d, capture: &captured}
	ctp := &ClaimTaskProxy{Proxy: &Proxy{Def: ToolDef{Name: "claim_task"}, d: d2}, AgentID: "agent-1"}

	if _, err := ctp.Call(context.Background(), ""); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if captured["owner"] != "agent-1" {
		t.Errorf("owner = %v, want agent-1", captured["owner"])
	}
	if _, ok := captured["id"]; ok {
		t.Error("id should be omitted when claiming next available")
	}
}

type capturingDispatcher struct {
	inner   Dispatcher
	capture *map[string]any
}

func (c *capturingDispatcher) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	*c.capture = args
	return c.inner.Invoke(ctx, name, args)
}
