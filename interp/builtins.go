package interp

import (
	"context"
	"fmt"
	"go/ast"
	"strings"

	"github.com/turnscript/replcore"
)

const maxMessageChars = 20000

// evalCall dispatches a CallExpr: built-ins (print, done, say, ask,
// gather), bare injected-tool calls, T.<tool> calls, and handle-method
// calls. Args are evaluated left-to-right except for gather's direct
// arguments, which are deferred into goroutine thunks instead of being
// evaluated eagerly (§4.1's passthrough semantics).
func (e *Evaluator) evalCall(ctx context.Context, call *ast.CallExpr) any {
	if id, ok := call.Fun.(*ast.Ident); ok {
		switch id.Name {
		case "print":
			return e.builtinPrint(ctx, call.Args)
		case "done":
			return e.builtinDone(ctx, call.Args)
		case "say":
			return e.builtinSay(ctx, call.Args)
		case "ask":
			return e.builtinAsk(ctx, call.Args)
		case gatherName:
			return e.builtinGather(ctx, call.Args)
		}
	}

	fn := e.evalExpr(ctx, call.Fun)
	args := make([]any, len(call.Args))
	for i, a := range call.Args {
		args[i] = e.evalExpr(ctx, a)
	}
	return e.invokeValue(ctx, fn, args)
}

// invokeValue applies a callable value (toolRef, selectorRef onto a
// handle) to args.
func (e *Evaluator) invokeValue(ctx context.Context, fn any, args []any) any {
	switch v := fn.(type) {
	case toolRef:
		return e.callTool(ctx, v.name, args)
	case selectorRef:
		return e.callHandleMethod(ctx, v, args)
	default:
		panic(fmt.Sprintf("value of type %T is not callable", fn))
	}
}

func (e *Evaluator) callTool(ctx context.Context, name string, args []any) any {
	if e.Registry == nil {
		panic(fmt.Sprintf("no tool registry wired for call to %q", name))
	}
	var positional []any
	var kwargs map[string]any
	if len(args) == 1 {
		if m, ok := args[0].(map[string]any); ok {
			kwargs = m
		} else {
			positional = args
		}
	} else {
		positional = args
	}

	if name == "claim_task" {
		if ctp, ok := e.Registry.ClaimTask(); ok {
			id, _ := kwargs["id"].(string)
			if id == "" && len(positional) > 0 {
				id, _ = positional[0].(string)
			}
			v, err := ctp.Call(ctx, id)
			if err != nil {
				panic(err.Error())
			}
			return v
		}
	}

	if name == "agent_call" {
		if acp, ok := e.Registry.AgentCall(); ok {
			task, _ := kwargs["task"].(string)
			if task == "" && len(positional) > 0 {
				task, _ = positional[0].(string)
			}
			schema := kwargs["schema"]
			extra := map[string]any{}
			for k, v := range kwargs {
				if k == "task" || k == "schema" {
					continue
				}
				extra[k] = v
			}
			parentHistory, parentMem, err := e.Registry.InheritancePayload()
			if err != nil {
				panic(err.Error())
			}
			v, err := acp.Call(ctx, replcore.AgentCallOptions{
				Task:          task,
				Schema:        schema,
				Extra:         extra,
				ParentHistory: parentHistory,
				ParentMem:     parentMem,
			})
			if err != nil {
				panic(err.Error())
			}
			return v
		}
	}

	if v, handled := e.callSynthesizedTool(ctx, name, positional, kwargs); handled {
		return v
	}

	v, err := e.Registry.Call(ctx, name, positional, kwargs)
	if err != nil {
		panic(err.Error())
	}
	return v
}

// callSynthesizedTool handles the T.* wrappers the registry synthesises
// itself rather than from a session's tool defs: introspection/search over
// tools, history, and memory, plus the enter_plan_mode/exit_plan_mode
// handshake. Returns handled=false for anything else, so callTool falls
// through to the ordinary registry dispatch.
func (e *Evaluator) callSynthesizedTool(ctx context.Context, name string, positional []any, kwargs map[string]any) (any, bool) {
	switch name {
	case "list_tools":
		return e.Registry.ListTools(), true
	case "find_tools":
		query, limit := queryAndLimit(positional, kwargs)
		return e.Registry.FindTools(query, limit), true
	case "find_history":
		query, limit := queryAndLimit(positional, kwargs)
		sinceTurn := intArg(kwargs, "since_turn", positional, 2)
		return e.Registry.FindHistory(query, limit, sinceTurn), true
	case "find_mem":
		query, limit := queryAndLimit(positional, kwargs)
		return e.Registry.FindMem(query, limit), true
	case "remember":
		key, description, value := rememberArgs(positional, kwargs)
		e.Registry.Remember(key, description, value)
		return nil, true
	case "forget":
		key, _ := kwargs["key"].(string)
		if key == "" && len(positional) > 0 {
			key, _ = positional[0].(string)
		}
		return e.Registry.Forget(key), true
	case "enter_plan_mode":
		pm, ok := e.Registry.PlanMode()
		if !ok {
			panic("enter_plan_mode: no plan-mode handshake wired for this session")
		}
		path, err := pm.EnterPlanMode(ctx)
		if err != nil {
			panic(err.Error())
		}
		return path, true
	case "exit_plan_mode":
		pm, ok := e.Registry.PlanMode()
		if !ok {
			panic("exit_plan_mode: no plan-mode handshake wired for this session")
		}
		decision, err := pm.ExitPlanMode(ctx, func(ctx context.Context) (replcore.PlanDecision, error) {
			options := []string{string(replcore.PlanExecute), string(replcore.PlanEdit), string(replcore.PlanReject)}
			answer, err := e.askFn(ctx, "A plan is ready. Choose an action.", options)
			if err != nil {
				return "", err
			}
			return replcore.PlanDecision(answer), nil
		})
		if err != nil {
			panic(err.Error())
		}
		return string(decision), true
	default:
		return nil, false
	}
}

// queryAndLimit extracts the (query string, limit int) pair shared by
// find_tools/find_history/find_mem, accepting either keyword args or the
// first two positional args.
func queryAndLimit(positional []any, kwargs map[string]any) (string, int) {
	query, _ := kwargs["query"].(string)
	if query == "" && len(positional) > 0 {
		query, _ = positional[0].(string)
	}
	limit := intArg(kwargs, "limit", positional, 1)
	if limit == 0 {
		limit = 10
	}
	return query, limit
}

// rememberArgs extracts T.remember's (key, description, value) triple from
// keyword or positional args.
func rememberArgs(positional []any, kwargs map[string]any) (key, description, value string) {
	key, _ = kwargs["key"].(string)
	description, _ = kwargs["description"].(string)
	value, _ = kwargs["value"].(string)
	for i, v := range positional {
		s, _ := v.(string)
		switch i {
		case 0:
			if key == "" {
				key = s
			}
		case 1:
			if description == "" {
				description = s
			}
		case 2:
			if value == "" {
				value = s
			}
		}
	}
	return key, description, value
}

// intArg reads name from kwargs, falling back to positional[idx] when
// absent, accepting any numeric literal kind the evaluator produces.
func intArg(kwargs map[string]any, name string, positional []any, idx int) int {
	if v, ok := kwargs[name]; ok {
		return toLimitInt(v)
	}
	if idx < len(positional) {
		return toLimitInt(positional[idx])
	}
	return 0
}

func toLimitInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// handleMethodInvoker lets the evaluator reach a handle value's own Dispatcher
// without needing reflection for the ~15 fixed handle methods.
type handleMethodInvoker interface {
	invokeMethod(ctx context.Context, method string, args []any) (any, error)
}

func (e *Evaluator) callHandleMethod(ctx context.Context, ref selectorRef, args []any) any {
	inv, ok := ref.base.(handleMethodInvoker)
	if !ok {
		panic(fmt.Sprintf("%T has no method %q", ref.base, ref.field))
	}
	v, err := inv.invokeMethod(ctx, ref.field, args)
	if err != nil {
		panic(err.Error())
	}
	return v
}

func (e *Evaluator) builtinPrint(ctx context.Context, argExprs []ast.Expr) any {
	for i, a := range argExprs {
		if i > 0 {
			e.Capture.WriteString(" ")
		}
		e.Capture.WriteString(reprValue(e.evalExpr(ctx, a)))
	}
	e.Capture.WriteString("\n")
	return nil
}

// builtinDone emits a final message frame and returns the suppressed
// awaitable sentinel (§4.4).
func (e *Evaluator) builtinDone(ctx context.Context, argExprs []ast.Expr) any {
	text := ""
	if len(argExprs) > 0 {
		v := e.evalExpr(ctx, argExprs[0])
		text = stringifyMessage(v)
	}
	text = truncateMessage(text)

	if e.sendMessage != nil {
		e.sendMessage(ctx, replcore.MarshalFrame(replcore.FrameFinal, text))
	}
	e.doneValue = &text
	return doneSentinel{}
}

func (e *Evaluator) builtinSay(ctx context.Context, argExprs []ast.Expr) any {
	text := ""
	if len(argExprs) > 0 {
		text = stringifyMessage(e.evalExpr(ctx, argExprs[0]))
	}
	text = truncateMessage(text)
	if e.sendMessage != nil {
		e.sendMessage(ctx, replcore.MarshalFrame(replcore.FrameSay, text))
	}
	return nil
}

func (e *Evaluator) builtinAsk(ctx context.Context, argExprs []ast.Expr) any {
	if e.Headless || e.askFn == nil {
		panic(replcore.ErrHeadlessAsk.Error())
	}
	question := ""
	if len(argExprs) > 0 {
		question, _ = e.evalExpr(ctx, argExprs[0]).(string)
	}
	var options []string
	if len(argExprs) > 1 {
		if lst, ok := e.evalExpr(ctx, argExprs[1]).([]any); ok {
			for _, o := range lst {
				if s, ok := o.(string); ok {
					options = append(options, s)
				}
			}
		}
	}
	answer, err := e.askFn(ctx, question, options)
	if err != nil {
		panic(err.Error())
	}
	e.Capture.WriteString(fmt.Sprintf("[User response: %s]\n", answer))
	return answer
}

// gatherResult pairs an index-preserving result with an optional error, so
// callers using the Go-native analogue of return_exceptions semantics can
// inspect which of N calls failed.
type gatherResult struct {
	Value any
	Err   error
}

// builtinGather fans its direct-argument calls out onto goroutines and
// waits for all of them, preserving argument order in the result slice —
// the Go analogue of asyncio.gather. Each argument must itself be a call
// expression; it is evaluated inside its own goroutine rather than being
// evaluated eagerly by the normal call-argument path.
func (e *Evaluator) builtinGather(ctx context.Context, argExprs []ast.Expr) any {
	results := make([]gatherResult, len(argExprs))
	done := make(chan int, len(argExprs))

	for i, a := range argExprs {
		go func(i int, a ast.Expr) {
			defer func() {
				if r := recover(); r != nil {
					results[i] = gatherResult{Err: fmt.Errorf("%v", r)}
				}
				done <- i
			}()
			call, ok := a.(*ast.CallExpr)
			if !ok {
				results[i] = gatherResult{Value: e.evalExpr(ctx, a)}
				return
			}
			results[i] = gatherResult{Value: e.evalCall(ctx, call)}
		}(i, a)
	}
	for range argExprs {
		<-done
	}

	out := make([]any, len(results))
	for i, r := range results {
		if r.Err != nil {
			out[i] = replcore.NewToolError("gather", nil)
			continue
		}
		out[i] = r.Value
	}
	return out
}

// stringifyMessage renders a done()/say() value: strings are emitted
// stripped, non-strings are repr'd (§4.4).
func stringifyMessage(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return reprValue(v)
}

func truncateMessage(s string) string {
	if len(s) <= maxMessageChars {
		return s
	}
	return s[:maxMessageChars] + fmt.Sprintf("\n... [truncated, original length %d]", len(s))
}
