package interp

import (
	"context"
	"fmt"
	"go/ast"
	"go/token"
	"strconv"

	"github.com/turnscript/replcore"
)

// DisplayHook is invoked on every non-suppressed top-level expression
// result (§4.1). It is never called with nil or with the done() sentinel.
type DisplayHook func(value any)

// Evaluator walks a parsed, auto-dispatch-tagged statement list against a
// shared namespace, issuing tool calls through a Registry/Dispatcher and
// writing program output to a Capture.
type Evaluator struct {
	NS       *replcore.Namespace
	Registry *replcore.Registry
	Capture  *replcore.Capture
	Sites    AwaitSites
	Display  DisplayHook
	Headless bool

	askFn       func(ctx context.Context, question string, options []string) (string, error)
	sendMessage func(ctx context.Context, payload []byte) error
	lastResult  any
	doneValue   *string // set once done(...) is called; halts further driving
}

// NewEvaluator wires an Evaluator against ns/registry/capture. ask is the
// bridge-backed ask() implementation (nil in headless sessions, in which
// case a call to ask() fails with replcore.ErrHeadlessAsk).
func NewEvaluator(ns *replcore.Namespace, reg *replcore.Registry, capture *replcore.Capture, ask func(ctx context.Context, question string, options []string) (string, error), headless bool) *Evaluator {
	return &Evaluator{NS: ns, Registry: reg, Capture: capture, askFn: ask, Headless: headless, Display: func(any) {}}
}

// SetSendMessage wires the bridge's fire-and-forget message sink, used by
// done()/say() to emit their frames.
func (e *Evaluator) SetSendMessage(fn func(ctx context.Context, payload []byte) error) {
	e.sendMessage = fn
}

// Done reports whether done(...) has been called, and its value if so.
func (e *Evaluator) Done() (string, bool) {
	if e.doneValue == nil {
		return "", false
	}
	return *e.doneValue, true
}

// controlSignal implements Go's usual tree-walking-interpreter trick:
// break/continue/return unwind via panic/recover rather than threading a
// signal value through every eval call.
type controlSignal struct {
	kind  token.Token // BREAK, CONTINUE, RETURN
	value any
}

// RunBlock executes stmts one top-level statement at a time (§4.1 step 3).
// On an uncaught error it records a formatted message and stops; prior
// statements' effects on NS persist.
func (e *Evaluator) RunBlock(ctx context.Context, stmts []ast.Stmt) (execErr error) {
	for _, stmt := range stmts {
		if err := e.runTopLevel(ctx, stmt); err != nil {
			return err
		}
		if e.doneValue != nil {
			return nil
		}
	}
	return nil
}

func (e *Evaluator) runTopLevel(ctx context.Context, stmt ast.Stmt) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if cs, ok := r.(controlSignal); ok && cs.kind == token.RETURN {
				e.lastResult = cs.value
				return
			}
			err = fmt.Errorf("%v", r)
		}
	}()

	if es, ok := stmt.(*ast.ExprStmt); ok {
		v := e.evalExpr(ctx, es.X)
		e.display(v)
		return nil
	}
	e.execStmt(ctx, stmt)
	return nil
}

func (e *Evaluator) display(v any) {
	if v == nil {
		return
	}
	if _, ok := v.(doneSentinel); ok {
		return
	}
	e.lastResult = v
	e.NS.Set("_", v)
	e.Capture.WriteString(reprValue(v))
	e.Capture.WriteString("\n")
	e.Display(v)
}

// doneSentinel is the awaitable sentinel done() returns: its display is
// always suppressed (§4.4).
type doneSentinel struct{}

func (e *Evaluator) execStmt(ctx context.Context, stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.BlockStmt:
		for _, inner := range s.List {
			e.execStmt(ctx, inner)
		}

	case *ast.ExprStmt:
		e.evalExpr(ctx, s.X)

	case *ast.DeclStmt:
		gd := s.Decl.(*ast.GenDecl)
		for _, spec := range gd.Specs {
			vs := spec.(*ast.ValueSpec)
			for i, name := range vs.Names {
				var val any
				if i < len(vs.Values) {
					val = e.evalExpr(ctx, vs.Values[i])
				}
				e.NS.Set(name.Name, val)
			}
		}

	case *ast.AssignStmt:
		e.execAssign(ctx, s)

	case *ast.IfStmt:
		if s.Init != nil {
			e.execStmt(ctx, s.Init)
		}
		if truthy(e.evalExpr(ctx, s.Cond)) {
			e.execStmt(ctx, s.Body)
		} else if s.Else != nil {
			e.execStmt(ctx, s.Else)
		}

	case *ast.ForStmt:
		e.execFor(ctx, s)

	case *ast.RangeStmt:
		e.execRange(ctx, s)

	case *ast.BranchStmt:
		panic(controlSignal{kind: s.Tok})

	case *ast.ReturnStmt:
		var v any
		if len(s.Results) > 0 {
			v = e.evalExpr(ctx, s.Results[0])
		}
		panic(controlSignal{kind: token.RETURN, value: v})

	default:
		panic(fmt.Sprintf("unsupported statement %T", stmt))
	}
}

func (e *Evaluator) execAssign(ctx context.Context, s *ast.AssignStmt) {
	if s.Tok == token.DEFINE || s.Tok == token.ASSIGN {
		values := make([]any, len(s.Rhs))
		for i, rhs := range s.Rhs {
			values[i] = e.evalExpr(ctx, rhs)
		}
		for i, lhs := range s.Lhs {
			var v any
			if i < len(values) {
				v = values[i]
			}
			e.assignTo(lhs, v)
		}
		return
	}

	// Compound assignment (+=, -=, ...): single lhs/rhs per Go grammar.
	cur := e.evalExpr(ctx, s.Lhs[0])
	rhs := e.evalExpr(ctx, s.Rhs[0])
	op := compoundOp(s.Tok)
	result := applyBinary(op, cur, rhs)
	e.assignTo(s.Lhs[0], result)
}

func compoundOp(tok token.Token) token.Token {
	switch tok {
	case token.ADD_ASSIGN:
		return token.ADD
	case token.SUB_ASSIGN:
		return token.SUB
	case token.MUL_ASSIGN:
		return token.MUL
	case token.QUO_ASSIGN:
		return token.QUO
	case token.REM_ASSIGN:
		return token.REM
	default:
		return token.ILLEGAL
	}
}

func (e *Evaluator) assignTo(lhs ast.Expr, v any) {
	id, ok := lhs.(*ast.Ident)
	if !ok {
		panic(fmt.Sprintf("unsupported assignment target %T", lhs))
	}
	if id.Name == "_" {
		return
	}
	e.NS.Set(id.Name, v)
}

func (e *Evaluator) execFor(ctx context.Context, s *ast.ForStmt) {
	if s.Init != nil {
		e.execStmt(ctx, s.Init)
	}
	for s.Cond == nil || truthy(e.evalExpr(ctx, s.Cond)) {
		if e.runLoopBody(ctx, s.Body) {
			break
		}
		if s.Post != nil {
			e.execStmt(ctx, s.Post)
		}
	}
}

func (e *Evaluator) execRange(ctx context.Context, s *ast.RangeStmt) {
	coll := e.evalExpr(ctx, s.X)
	bindKV := func(k, v any) bool {
		if s.Key != nil {
			if id, ok := s.Key.(*ast.Ident); ok && id.Name != "_" {
				e.NS.Set(id.Name, k)
			}
		}
		if s.Value != nil {
			if id, ok := s.Value.(*ast.Ident); ok && id.Name != "_" {
				e.NS.Set(id.Name, v)
			}
		}
		return e.runLoopBody(ctx, s.Body)
	}

	switch c := coll.(type) {
	case []any:
		for i, v := range c {
			if bindKV(int64(i), v) {
				return
			}
		}
	case map[string]any:
		for k, v := range c {
			if bindKV(k, v) {
				return
			}
		}
	case string:
		for i, r := range c {
			if bindKV(int64(i), string(r)) {
				return
			}
		}
	default:
		panic(fmt.Sprintf("cannot range over %T", coll))
	}
}

// runLoopBody executes one loop iteration, reporting whether the loop
// should break (either an explicit break, or a return/panic propagated
// past the loop).
func (e *Evaluator) runLoopBody(ctx context.Context, body *ast.BlockStmt) (shouldBreak bool) {
	defer func() {
		if r := recover(); r != nil {
			cs, ok := r.(controlSignal)
			if !ok {
				panic(r)
			}
			switch cs.kind {
			case token.BREAK:
				shouldBreak = true
			case token.CONTINUE:
				shouldBreak = false
			default:
				panic(r)
			}
		}
	}()
	e.execStmt(ctx, body)
	return false
}

func (e *Evaluator) evalExpr(ctx context.Context, expr ast.Expr) any {
	switch x := expr.(type) {
	case *ast.ParenExpr:
		return e.evalExpr(ctx, x.X)

	case *ast.BasicLit:
		return literalValue(x)

	case *ast.Ident:
		return e.lookupIdent(x.Name)

	case *ast.UnaryExpr:
		v := e.evalExpr(ctx, x.X)
		return applyUnary(x.Op, v)

	case *ast.BinaryExpr:
		left := e.evalExpr(ctx, x.X)
		right := e.evalExpr(ctx, x.Y)
		return applyBinary(x.Op, left, right)

	case *ast.CompositeLit:
		return e.evalComposite(ctx, x)

	case *ast.IndexExpr:
		return evalIndex(e.evalExpr(ctx, x.X), e.evalExpr(ctx, x.Index))

	case *ast.SelectorExpr:
		return e.evalSelectorValue(ctx, x)

	case *ast.CallExpr:
		return e.evalCall(ctx, x)

	default:
		panic(fmt.Sprintf("unsupported expression %T", expr))
	}
}

func literalValue(lit *ast.BasicLit) any {
	switch lit.Kind {
	case token.INT:
		n, _ := strconv.ParseInt(lit.Value, 0, 64)
		return n
	case token.FLOAT:
		f, _ := strconv.ParseFloat(lit.Value, 64)
		return f
	case token.STRING, token.CHAR:
		s, _ := strconv.Unquote(lit.Value)
		return s
	default:
		panic(fmt.Sprintf("unsupported literal kind %v", lit.Kind))
	}
}

func (e *Evaluator) lookupIdent(name string) any {
	switch name {
	case "true":
		return true
	case "false":
		return false
	case "nil":
		return nil
	}
	if v, ok := e.NS.Get(name); ok {
		return v
	}
	if e.Registry != nil {
		if _, ok := e.Registry.InjectedGlobals()[name]; ok {
			return toolRef{name: name}
		}
	}
	panic(fmt.Sprintf("undefined: %s", name))
}

// toolRef is the value an injected tool global evaluates to; calling it
// dispatches through the registry.
type toolRef struct{ name string }

func (e *Evaluator) evalSelectorValue(ctx context.Context, sel *ast.SelectorExpr) any {
	if id, ok := sel.X.(*ast.Ident); ok && id.Name == "T" {
		return toolRef{name: sel.Sel.Name}
	}
	base := e.evalExpr(ctx, sel.X)
	return selectorRef{base: base, field: sel.Sel.Name}
}

// selectorRef defers a handle-method/field access until it is either
// called (handle method) or, in principle, read as a field.
type selectorRef struct {
	base  any
	field string
}

func (e *Evaluator) evalComposite(ctx context.Context, lit *ast.CompositeLit) any {
	switch lit.Type.(type) {
	case *ast.MapType:
		m := map[string]any{}
		for _, elt := range lit.Elts {
			kv := elt.(*ast.KeyValueExpr)
			key := e.evalExpr(ctx, kv.Key)
			ks, _ := key.(string)
			m[ks] = e.evalExpr(ctx, kv.Value)
		}
		return m
	case *ast.ArrayType:
		out := make([]any, 0, len(lit.Elts))
		for _, elt := range lit.Elts {
			out = append(out, e.evalExpr(ctx, elt))
		}
		return out
	default:
		// Untyped composite literal (e.g. inside a slice of maps): treat
		// as a map when it holds key:value pairs, a list otherwise.
		if len(lit.Elts) > 0 {
			if _, ok := lit.Elts[0].(*ast.KeyValueExpr); ok {
				m := map[string]any{}
				for _, elt := range lit.Elts {
					kv := elt.(*ast.KeyValueExpr)
					key := e.evalExpr(ctx, kv.Key)
					ks, _ := key.(string)
					m[ks] = e.evalExpr(ctx, kv.Value)
				}
				return m
			}
		}
		out := make([]any, 0, len(lit.Elts))
		for _, elt := range lit.Elts {
			out = append(out, e.evalExpr(ctx, elt))
		}
		return out
	}
}

func evalIndex(base, idx any) any {
	switch b := base.(type) {
	case map[string]any:
		k, _ := idx.(string)
		return b[k]
	case []any:
		i := toInt(idx)
		if i < 0 || i >= int64(len(b)) {
			panic("index out of range")
		}
		return b[i]
	case string:
		i := toInt(idx)
		return string(b[i])
	default:
		panic(fmt.Sprintf("cannot index %T", base))
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case nil:
		return false
	default:
		if isFalsy, ok := v.(interface{ IsFalsy() bool }); ok {
			return !isFalsy.IsFalsy()
		}
		return true
	}
}

func reprValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case error:
		return x.Error()
	default:
		return fmt.Sprintf("%v", x)
	}
}

func toInt(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case float64:
		return int64(x)
	case int:
		return int64(x)
	default:
		panic(fmt.Sprintf("expected a number, got %T", v))
	}
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case float64:
		return x
	default:
		panic(fmt.Sprintf("expected a number, got %T", v))
	}
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int64, float64:
		return true
	default:
		return false
	}
}

func applyUnary(op token.Token, v any) any {
	switch op {
	case token.NOT:
		return !truthy(v)
	case token.SUB:
		if f, ok := v.(float64); ok {
			return -f
		}
		return -toInt(v)
	case token.ADD:
		return v
	default:
		panic(fmt.Sprintf("unsupported unary operator %v", op))
	}
}

func applyBinary(op token.Token, l, r any) any {
	if op == token.LAND {
		return truthy(l) && truthy(r)
	}
	if op == token.LOR {
		return truthy(l) || truthy(r)
	}

	if ls, ok := l.(string); ok {
		if rs, ok := r.(string); ok {
			return applyStringBinary(op, ls, rs)
		}
	}

	if isNumeric(l) && isNumeric(r) {
		_, lf := l.(float64)
		_, rf := r.(float64)
		if lf || rf {
			return applyFloatBinary(op, toFloat(l), toFloat(r))
		}
		return applyIntBinary(op, toInt(l), toInt(r))
	}

	switch op {
	case token.EQL:
		return l == r
	case token.NEQ:
		return l != r
	default:
		panic(fmt.Sprintf("unsupported operands for %v: %T, %T", op, l, r))
	}
}

func applyStringBinary(op token.Token, l, r string) any {
	switch op {
	case token.ADD:
		return l + r
	case token.EQL:
		return l == r
	case token.NEQ:
		return l != r
	case token.LSS:
		return l < r
	case token.LEQ:
		return l <= r
	case token.GTR:
		return l > r
	case token.GEQ:
		return l >= r
	default:
		panic(fmt.Sprintf("unsupported string operator %v", op))
	}
}

func applyIntBinary(op token.Token, l, r int64) any {
	switch op {
	case token.ADD:
		return l + r
	case token.SUB:
		return l - r
	case token.MUL:
		return l * r
	case token.QUO:
		return l / r
	case token.REM:
		return l % r
	case token.EQL:
		return l == r
	case token.NEQ:
		return l != r
	case token.LSS:
		return l < r
	case token.LEQ:
		return l <= r
	case token.GTR:
		return l > r
	case token.GEQ:
		return l >= r
	default:
		panic(fmt.Sprintf("unsupported int operator %v", op))
	}
}

func applyFloatBinary(op token.Token, l, r float64) any {
	switch op {
	case token.ADD:
		return l + r
	case token.SUB:
		return l - r
	case token.MUL:
		return l * r
	case token.QUO:
		return l / r
	case token.EQL:
		return l == r
	case token.NEQ:
		return l != r
	case token.LSS:
		return l < r
	case token.LEQ:
		return l <= r
	case token.GTR:
		return l > r
	case token.GEQ:
		return l >= r
	default:
		panic(fmt.Sprintf("unsupported float operator %v", op))
	}
}
