// Package file is a reference host-side implementation of the read_file /
// write_file / edit_file / find_replace / diff_file tools (§3's ToolKind
// set), sandboxed to a workspace directory the way the teacher's file tool
// is. read_file additionally extracts plain text from PDFs and HTML pages
// via ledongthuc/pdf and go-shiori/go-readability rather than returning
// raw bytes for those extensions.
package file

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"

	"github.com/turnscript/replcore"
)

const maxReadChars = 8000

// Tool provides sandboxed file operations rooted at workspacePath.
type Tool struct {
	workspacePath string
}

// New creates a Tool restricted to workspacePath.
func New(workspacePath string) *Tool {
	return &Tool{workspacePath: workspacePath}
}

// Definitions describes the five file tools for an init message (§4.1).
func (t *Tool) Definitions() []replcore.ToolDef {
	pathParam := replcore.Param{Name: "path", Type: "str", Description: "path relative to the workspace", Required: true}
	return []replcore.ToolDef{
		{
			Name:             "read_file",
			Description:      "Read a file from the workspace. PDF and HTML files are extracted to plain text.",
			Params:           []replcore.Param{pathParam},
			Returns:          "string",
			InjectIntoPrompt: true,
		},
		{
			Name:        "write_file",
			Description: "Write content to a file in the workspace, creating parent directories as needed.",
			Params: []replcore.Param{
				pathParam,
				{Name: "content", Type: "str", Description: "content to write", Required: true},
			},
			Returns:          "string",
			InjectIntoPrompt: true,
		},
		{
			Name:        "edit_file",
			Description: "Replace the full content of an existing file in the workspace.",
			Params: []replcore.Param{
				pathParam,
				{Name: "content", Type: "str", Description: "new content", Required: true},
			},
			Returns:          "string",
			InjectIntoPrompt: true,
		},
		{
			Name:        "find_replace",
			Description: "Replace every occurrence of a substring within a workspace file.",
			Params: []replcore.Param{
				pathParam,
				{Name: "find", Type: "str", Description: "substring to find", Required: true},
				{Name: "replace", Type: "str", Description: "replacement text", Required: true},
			},
			Returns:          "string",
			InjectIntoPrompt: true,
		},
		{
			Name:             "diff_file",
			Description:      "Return a unified-style line diff between a workspace file's current content and proposed content.",
			Params:           []replcore.Param{pathParam, {Name: "proposed", Type: "str", Description: "proposed new content", Required: true}},
			Returns:          "string",
			InjectIntoPrompt: true,
		},
	}
}

func (t *Tool) resolvePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("absolute paths not allowed: %s", path)
	}
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("path traversal not allowed: %s", path)
	}
	resolved := filepath.Join(t.workspacePath, path)
	if !strings.HasPrefix(resolved, t.workspacePath) {
		return "", fmt.Errorf("path escapes workspace: %s", path)
	}
	return resolved, nil
}

// ReadFile reads params["path"], extracting text from .pdf/.html/.htm
// rather than returning their raw bytes.
func (t *Tool) ReadFile(params map[string]any) (string, error) {
	path, _ := params["path"].(string)
	resolved, err := t.resolvePath(path)
	if err != nil {
		return "", err
	}

	var content string
	switch strings.ToLower(filepath.Ext(resolved)) {
	case ".pdf":
		content, err = extractPDFText(resolved)
	case ".html", ".htm":
		content, err = extractReadableText(resolved)
	default:
		var data []byte
		data, err = os.ReadFile(resolved)
		content = string(data)
	}
	if err != nil {
		return "", fmt.Errorf("read error: %w", err)
	}
	if len(content) > maxReadChars {
		content = content[:maxReadChars] + "\n... (truncated)"
	}
	return content, nil
}

// WriteFile writes params["content"] to params["path"], creating parent
// directories as needed.
func (t *Tool) WriteFile(params map[string]any) (string, error) {
	path, _ := params["path"].(string)
	content, _ := params["content"].(string)
	resolved, err := t.resolvePath(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return "", fmt.Errorf("mkdir error: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write error: %w", err)
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(content), filepath.Base(resolved)), nil
}

// EditFile replaces a file's full content, the same underlying operation
// as WriteFile but requiring the file already exist.
func (t *Tool) EditFile(params map[string]any) (string, error) {
	path, _ := params["path"].(string)
	resolved, err := t.resolvePath(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(resolved); err != nil {
		return "", fmt.Errorf("edit error: %w", err)
	}
	content, _ := params["content"].(string)
	if err := os.WriteFile(resolved, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write error: %w", err)
	}
	return fmt.Sprintf("edited %s (%d bytes)", filepath.Base(resolved), len(content)), nil
}

// FindReplace replaces every occurrence of params["find"] with
// params["replace"] in a workspace file.
func (t *Tool) FindReplace(params map[string]any) (string, error) {
	path, _ := params["path"].(string)
	find, _ := params["find"].(string)
	replace, _ := params["replace"].(string)
	resolved, err := t.resolvePath(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read error: %w", err)
	}
	updated := strings.ReplaceAll(string(data), find, replace)
	count := strings.Count(string(data), find)
	if err := os.WriteFile(resolved, []byte(updated), 0644); err != nil {
		return "", fmt.Errorf("write error: %w", err)
	}
	return fmt.Sprintf("replaced %d occurrence(s) in %s", count, filepath.Base(resolved)), nil
}

// DiffFile returns a unified-style line diff between a file's current
// content and params["proposed"]. No third-party diff library is present
// in the retrieval pack's wired dependencies, so this is a small
// stdlib-only longest-common-subsequence diff (DESIGN.md justifies the
// stdlib fallback).
func (t *Tool) DiffFile(params map[string]any) (string, error) {
	path, _ := params["path"].(string)
	proposed, _ := params["proposed"].(string)
	resolved, err := t.resolvePath(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read error: %w", err)
	}
	return unifiedDiff(string(data), proposed), nil
}

func extractPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	total := r.NumPage()
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

func extractReadableText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	u, _ := url.Parse("file://" + path)
	article, err := readability.FromReader(f, u)
	if err != nil {
		return "", err
	}
	return article.TextContent, nil
}

// unifiedDiff renders a minimal +/- line diff; lines present only in
// `from` are prefixed "-", lines present only in `to` are prefixed "+",
// unchanged lines are prefixed " ".
func unifiedDiff(from, to string) string {
	fromLines := strings.Split(from, "\n")
	toLines := strings.Split(to, "\n")

	lcs := longestCommonSubsequence(fromLines, toLines)

	var b strings.Builder
	i, j, k := 0, 0, 0
	for i < len(fromLines) || j < len(toLines) {
		if k < len(lcs) && i < len(fromLines) && j < len(toLines) && fromLines[i] == lcs[k] && toLines[j] == lcs[k] {
			fmt.Fprintf(&b, "  %s\n", fromLines[i])
			i++
			j++
			k++
			continue
		}
		if i < len(fromLines) && (k >= len(lcs) || fromLines[i] != lcs[k]) {
			fmt.Fprintf(&b, "- %s\n", fromLines[i])
			i++
			continue
		}
		if j < len(toLines) {
			fmt.Fprintf(&b, "+ %s\n", toLines[j])
			j++
		}
	}
	return b.String()
}

func longestCommonSubsequence(a, b []string) []string {
	n, m := len(a), len(b)
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				dp[i][j] = dp[i+1][j+1] + 1
			} else if dp[i+1][j] >= dp[i][j+1] {
				dp[i][j] = dp[i+1][j]
			} else {
				dp[i][j] = dp[i][j+1]
			}
		}
	}
	var out []string
	i, j := 0, 0
	for i < n && j < m {
		if a[i] == b[j] {
			out = append(out, a[i])
			i++
			j++
		} else if dp[i+1][j] >= dp[i][j+1] {
			i++
		} else {
			j++
		}
	}
	return out
}
