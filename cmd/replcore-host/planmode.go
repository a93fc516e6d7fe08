package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yuin/goldmark"
)

// planFileName and planPreviewName are the plan-mode workspace artifacts:
// the agent writes its plan as Markdown to planFileName; exitPlanMode
// renders it to HTML at planPreviewName for a host UI to display the way
// the teacher's Telegram frontend renders agent output as rich text.
const (
	planFileName    = "PLAN.md"
	planPreviewName = "PLAN.html"
)

// enterPlanMode creates (or truncates) the workspace's plan file and
// returns its path, answering the registry's "enter_plan_mode" dispatch.
func enterPlanMode(workspaceDir string) (string, error) {
	path := filepath.Join(workspaceDir, planFileName)
	if err := os.MkdirAll(workspaceDir, 0755); err != nil {
		return "", fmt.Errorf("replcore-host: preparing plan workspace: %w", err)
	}
	if err := os.WriteFile(path, nil, 0644); err != nil {
		return "", fmt.Errorf("replcore-host: creating plan file: %w", err)
	}
	return path, nil
}

// exitPlanMode renders the plan file's Markdown to an HTML preview page
// alongside it, answering the registry's "exit_plan_mode" dispatch. decision
// is recorded in the preview but does not change what gets rendered — a
// rejected or edited plan is still worth previewing.
func exitPlanMode(workspaceDir, decision string) (string, error) {
	planPath := filepath.Join(workspaceDir, planFileName)
	md, err := os.ReadFile(planPath)
	if err != nil {
		return "", fmt.Errorf("replcore-host: reading plan file: %w", err)
	}

	var buf bytes.Buffer
	if err := goldmark.Convert(md, &buf); err != nil {
		return "", fmt.Errorf("replcore-host: rendering plan preview: %w", err)
	}

	previewPath := filepath.Join(workspaceDir, planPreviewName)
	page := fmt.Sprintf("<!doctype html>\n<meta charset=\"utf-8\">\n<title>plan (%s)</title>\n%s", decision, buf.String())
	if err := os.WriteFile(previewPath, []byte(page), 0644); err != nil {
		return "", fmt.Errorf("replcore-host: writing plan preview: %w", err)
	}
	return previewPath, nil
}
