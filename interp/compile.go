// Package interp is the interactive compiler (§4.1): it parses a
// submitted script block, rewrites it for auto-dispatch, and executes it
// one top-level statement at a time so a mid-block failure halts the
// remainder without losing the side effects of statements that already
// ran.
package interp

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
)

// turnFuncName is the synthetic function the submitted block is parsed as
// the body of, so a bare top-level block of statements — not a complete
// Go file — parses as a valid *ast.File.
const turnFuncName = "__turn__"

// ParseResult is the output of Parse: the block's statements plus the
// fileset needed to format positions in error messages.
type ParseResult struct {
	Stmts []ast.Stmt
	Fset  *token.FileSet
}

// Parse parses src as the body of a synthetic function and returns its
// top-level statements. Parser/scanner warnings are suppressed for the
// duration of the parse by redirecting stderr to a discard sink and
// restoring it unconditionally afterward — some submitted scripts contain
// lexically unusual literals that the scanner warns about below any
// language-level warning filter.
func Parse(src string) (*ParseResult, error) {
	restore := suppressStderr()
	defer restore()

	wrapped := "package turnscript\nfunc " + turnFuncName + "() {\n" + src + "\n}\n"
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", wrapped, parser.AllErrors)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Name.Name != turnFuncName {
			continue
		}
		return &ParseResult{Stmts: fn.Body.List, Fset: fset}, nil
	}
	return nil, fmt.Errorf("parse error: synthetic turn function not found")
}

// suppressStderr redirects os.Stderr to /dev/null and returns a func that
// restores it. It never panics: if /dev/null cannot be opened, it is a
// no-op.
func suppressStderr() func() {
	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		return func() {}
	}
	original := os.Stderr
	os.Stderr = devNull
	return func() {
		os.Stderr = original
		devNull.Close()
	}
}
