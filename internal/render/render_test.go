package render

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/unclebandit/directmail-scheduler/internal/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCatalogResolve(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "intro.html"), "<p>hi</p>")
	writeFile(t, filepath.Join(dir, "templates.yaml"), "templates:\n  intro: intro.html\n  gone: missing.html\n")

	c, err := LoadCatalog(filepath.Join(dir, "templates.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	path, err := c.Resolve("intro")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if path != filepath.Join(dir, "intro.html") {
		t.Errorf("unexpected path %q", path)
	}

	for _, id := range []string{"", "unknown", "gone"} {
		if _, err := c.Resolve(id); err == nil {
			t.Errorf("expected error resolving %q", id)
		}
	}
}

func TestRenderTemplate(t *testing.T) {
	got := RenderTemplate("Dear {first_name}, about {address}", map[string]string{
		"first_name": "",
		"address":    "1 <Main>",
	})
	want := "Dear Homeowner, about 1 &lt;Main&gt;"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestHTMLRendererMergesLetters(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "t.html")
	writeFile(t, tmpl, "<html><head><style>p{}</style></head><body><p>Hi {first_name}</p></body></html>")

	leads := []model.Lead{{FirstName: "Ann"}, {FirstName: "Bob"}}
	out, err := HTMLRenderer{}.Render(context.Background(), tmpl, leads, filepath.Join(dir, "out"), "spring_stage1")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(out), "spring_stage1_") {
		t.Errorf("unexpected file name %q", out)
	}

	raw, _ := os.ReadFile(out)
	doc := string(raw)
	if strings.Count(doc, "<style>") != 1 {
		t.Errorf("expected head emitted once, got %q", doc)
	}
	if !strings.Contains(doc, "Hi Ann") || !strings.Contains(doc, "Hi Bob") {
		t.Errorf("expected both letters, got %q", doc)
	}
	if strings.Count(doc, "page-break-after") != 1 {
		t.Errorf("expected one page break between two letters")
	}
}

func TestHTMLRendererNoLeads(t *testing.T) {
	if _, err := (HTMLRenderer{}).Render(context.Background(), "x", nil, t.TempDir(), "b"); err == nil {
		t.Fatal("expected error for empty lead list")
	}
}

func TestGotenbergConverterHTML(t *testing.T) {
	var gotPath, gotFile, gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		_, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Errorf("bad multipart: %v", err)
				return
			}
			if p.FormName() == "files" {
				gotFile = p.FileName()
			}
		}
		w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	doc := filepath.Join(dir, "batch.html")
	writeFile(t, doc, "<p>x</p>")

	out, err := NewGotenbergConverter(srv.URL, "u", "p").Convert(context.Background(), doc)
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if out != filepath.Join(dir, "batch.pdf") {
		t.Errorf("unexpected output %q", out)
	}
	if gotPath != "/forms/chromium/convert/html" || gotFile != "index.html" || gotUser != "u" {
		t.Errorf("unexpected request path=%s file=%s user=%s", gotPath, gotFile, gotUser)
	}
	if raw, _ := os.ReadFile(out); string(raw) != "%PDF-1.7" {
		t.Errorf("pdf not written")
	}
}

func TestGotenbergConverterDocxRouteAndFailure(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		http.Error(w, "conversion failed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	doc := filepath.Join(dir, "batch.docx")
	writeFile(t, doc, "PK")

	_, err := NewGotenbergConverter(srv.URL, "", "").Convert(context.Background(), doc)
	if err == nil {
		t.Fatal("expected error on 500")
	}
	if gotPath != "/forms/libreoffice/convert" {
		t.Errorf("expected libreoffice route, got %s", gotPath)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "batch.pdf")); statErr == nil {
		t.Error("no pdf should be written on failure")
	}
}
