// Package render turns a stage template and its leads into a printable letter batch.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog resolves template ids to template files on disk.
//
// The YAML file looks like:
//
//	base_dir: /srv/letters/templates
//	templates:
//	  intro: intro.html
//	  followup-30: followup_30.docx
type Catalog struct {
	BaseDir   string            `yaml:"base_dir"`
	Templates map[string]string `yaml:"templates"`
}

// LoadCatalog reads a catalog file. Relative base_dir values are taken from the catalog's directory.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template catalog: %w", err)
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse template catalog: %w", err)
	}
	if c.BaseDir == "" || !filepath.IsAbs(c.BaseDir) {
		c.BaseDir = filepath.Join(filepath.Dir(path), c.BaseDir)
	}
	return &c, nil
}

// Resolve returns the path of the template file, or an error if the id is unknown
// or the file does not exist.
func (c *Catalog) Resolve(templateID string) (string, error) {
	id := strings.TrimSpace(templateID)
	if id == "" {
		return "", fmt.Errorf("stage has no template")
	}

	file, ok := c.Templates[id]
	if !ok {
		return "", fmt.Errorf("template %q not in catalog", id)
	}

	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.BaseDir, file)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("template %q: %w", id, err)
	}
	return path, nil
}
