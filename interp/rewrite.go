package interp

import "go/ast"

// gatherName is the explicit-concurrency passthrough construct — the Go
// analogue of asyncio.gather/create_task/wait. Calls appearing as direct
// arguments to gather are passthrough sites: they are not auto-dispatched
// individually, they become the thunks gather fans out concurrently.
const gatherName = "gather"

// AwaitSites is the rewriter's output: the set of *ast.CallExpr nodes that
// should be treated as auto-dispatch sites by the evaluator (the Go
// analogue of an auto-inserted `await`).
type AwaitSites map[*ast.CallExpr]bool

// TagAwaitSites walks stmts and marks every CallExpr whose callee is a
// bare name in autoNames, or a selector whose Sel.Name is in autoAttrs, as
// an auto-dispatch site — except calls that appear as a direct argument to
// gather(...), whose entire argument subtree is left untagged (§4.1).
func TagAwaitSites(stmts []ast.Stmt, autoNames, autoAttrs map[string]bool) AwaitSites {
	sites := AwaitSites{}
	for _, s := range stmts {
		walkStmt(s, autoNames, autoAttrs, sites)
	}
	return sites
}

func walkStmt(n ast.Stmt, autoNames, autoAttrs map[string]bool, sites AwaitSites) {
	ast.Inspect(n, func(node ast.Node) bool {
		call, ok := node.(*ast.CallExpr)
		if !ok {
			return true
		}
		if isGatherCall(call) {
			// Passthrough site: do not tag this call, and do not descend
			// into its arguments — nested calls under it stay untagged.
			return false
		}
		if isAutoDispatch(call, autoNames, autoAttrs) {
			sites[call] = true
		}
		return true
	})
}

func isGatherCall(call *ast.CallExpr) bool {
	id, ok := call.Fun.(*ast.Ident)
	return ok && id.Name == gatherName
}

func isAutoDispatch(call *ast.CallExpr, autoNames, autoAttrs map[string]bool) bool {
	switch fn := call.Fun.(type) {
	case *ast.Ident:
		return autoNames[fn.Name]
	case *ast.SelectorExpr:
		return autoAttrs[fn.Sel.Name]
	default:
		return false
	}
}

// FixedHandleMethods is the fixed handle-method set from the auto-await
// attribute table (§4.1): result, write, output, kill, claim, start, done,
// cancel, delete, block, wait_on, update, load, read_file.
var FixedHandleMethods = map[string]bool{
	"result": true, "write": true, "output": true, "kill": true,
	"claim": true, "start": true, "done": true, "cancel": true,
	"delete": true, "block": true, "wait_on": true, "update": true,
	"load": true, "read_file": true,
}
