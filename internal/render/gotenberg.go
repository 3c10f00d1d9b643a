package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// GotenbergConverter turns rendered documents into PDFs through a Gotenberg instance.
// HTML goes through the Chromium route, office documents through LibreOffice.
type GotenbergConverter struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

// NewGotenbergConverter creates a client pointing at the given Gotenberg URL.
// If username and password are non-empty, every request will include HTTP Basic Auth.
func NewGotenbergConverter(baseURL, username, password string) *GotenbergConverter {
	return &GotenbergConverter{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		username: username,
		password: password,
		http: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Convert writes <doc>.pdf next to docPath and returns its path.
func (g *GotenbergConverter) Convert(ctx context.Context, docPath string) (string, error) {
	content, err := os.ReadFile(docPath)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	var route string
	switch strings.ToLower(filepath.Ext(docPath)) {
	case ".html", ".htm":
		route = "/forms/chromium/convert/html"
		fields := map[string]string{
			"paperWidth":      "8.5",
			"paperHeight":     "11",
			"marginTop":       "0.5",
			"marginBottom":    "0.5",
			"marginLeft":      "0.5",
			"marginRight":     "0.5",
			"printBackground": "true",
		}
		for k, v := range fields {
			if err := writer.WriteField(k, v); err != nil {
				return "", fmt.Errorf("write field %s: %w", k, err)
			}
		}
		if err := addFilePart(writer, "index.html", "text/html", content); err != nil {
			return "", err
		}
	case ".docx", ".doc", ".odt", ".rtf":
		route = "/forms/libreoffice/convert"
		if err := addFilePart(writer, filepath.Base(docPath), "application/octet-stream", content); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("unsupported document type %q", filepath.Ext(docPath))
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	pdf, err := g.doPost(ctx, route, body, writer.FormDataContentType())
	if err != nil {
		return "", err
	}

	out := strings.TrimSuffix(docPath, filepath.Ext(docPath)) + ".pdf"
	if err := os.WriteFile(out, pdf, 0o644); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}
	return out, nil
}

// doPost sends a POST request and reads the response body.
func (g *GotenbergConverter) doPost(ctx context.Context, path string, body *bytes.Buffer, contentType string) ([]byte, error) {
	url := g.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if g.username != "" && g.password != "" {
		req.SetBasicAuth(g.username, g.password)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gotenberg %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gotenberg %s returned %d: %s", path, resp.StatusCode, string(errBody))
	}

	result, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", path, err)
	}
	return result, nil
}

// addFilePart adds a file to the multipart form.
func addFilePart(w *multipart.Writer, filename, mimeType string, content []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, filename))
	h.Set("Content-Type", mimeType)

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create part %s: %w", filename, err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("write part %s: %w", filename, err)
	}
	return nil
}

// Passthrough prints the rendered document as-is when no converter is configured.
type Passthrough struct{}

func (Passthrough) Convert(_ context.Context, docPath string) (string, error) {
	return docPath, nil
}
