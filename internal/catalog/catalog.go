// Package catalog reads tool metadata documents from JSON or YAML files.
package catalog

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"
	"github.com/toolmeta/toolregistry/pkg/types"
	"gopkg.in/yaml.v3"
)

// Entry is a document loaded from a file.
type Entry struct {
	Path     string
	Document types.ToolDocument
}

// Loader reads documents through an afero filesystem, so tests can use an in-memory one.
type Loader struct {
	fs afero.Fs
}

// NewLoader returns a loader over fs. A nil fs reads from the OS filesystem.
func NewLoader(fs afero.Fs) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Loader{fs: fs}
}

// IsDocumentFile reports whether path has an extension the loader can decode.
func IsDocumentFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// LoadFile reads a single document. The format is chosen by file extension.
func (l *Loader) LoadFile(path string) (types.ToolDocument, error) {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tool document %s: %w", path, err)
	}
	doc, err := Decode(filepath.Ext(path), data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tool document %s: %w", path, err)
	}
	return doc, nil
}

// LoadDir reads every JSON and YAML document directly inside dir, ordered by file name.
// Subdirectories and other files are skipped.
func (l *Loader) LoadDir(dir string) ([]Entry, error) {
	infos, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() || !IsDocumentFile(info.Name()) {
			continue
		}
		names = append(names, info.Name())
	}
	slices.Sort(names)

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		doc, err := l.LoadFile(path)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Path: path, Document: doc})
	}
	return entries, nil
}

// Decode parses data as JSON or YAML depending on ext and returns a JSON-compatible document.
func Decode(ext string, data []byte) (types.ToolDocument, error) {
	var raw any
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported file extension %q (acceptable values: .json, .yaml, .yml)", ext)
	}

	// round-trip through JSON so YAML input ends up with the same value types as JSON input
	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("document is not representable as JSON: %w", err)
	}
	var doc types.ToolDocument
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return nil, fmt.Errorf("document must be an object: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("document is empty")
	}
	return doc, nil
}
