package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/unclebandit/directmail-scheduler/internal/model"
)

const pageBreak = `<div style="page-break-after: always;"></div>`

// HTMLRenderer fills an HTML letter template once per lead and merges the
// letters into a single document, one page break between letters.
type HTMLRenderer struct{}

// Render writes the merged document into outputDir and returns its path.
func (HTMLRenderer) Render(_ context.Context, templatePath string, leads []model.Lead, outputDir, baseName string) (string, error) {
	if len(leads) == 0 {
		return "", fmt.Errorf("no leads to render")
	}

	raw, err := os.ReadFile(templatePath)
	if err != nil {
		return "", fmt.Errorf("read template: %w", err)
	}
	tmpl := string(raw)
	head, body, tail := splitBody(tmpl)

	var b strings.Builder
	b.WriteString(head)
	for i, l := range leads {
		if i > 0 {
			b.WriteString(pageBreak)
		}
		b.WriteString(RenderTemplate(body, Placeholders(l)))
	}
	b.WriteString(tail)

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s.html", baseName, uuid.NewString()[:8])
	path := filepath.Join(outputDir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	return path, nil
}

// splitBody separates the repeated letter body from the surrounding document
// so styles in <head> are emitted once.
func splitBody(doc string) (head, body, tail string) {
	lower := strings.ToLower(doc)
	open := strings.Index(lower, "<body")
	closeIdx := strings.LastIndex(lower, "</body>")
	if open < 0 || closeIdx < 0 {
		return "", doc, ""
	}
	openEnd := strings.Index(lower[open:], ">")
	if openEnd < 0 {
		return "", doc, ""
	}
	start := open + openEnd + 1
	if closeIdx < start {
		return "", doc, ""
	}
	return doc[:start], doc[start:closeIdx], doc[closeIdx:]
}
