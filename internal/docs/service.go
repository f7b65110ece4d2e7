// Package docs renders the embedded AsciiDoc documentation to HTML.
package docs

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/bytesparadise/libasciidoc"
	"github.com/bytesparadise/libasciidoc/pkg/configuration"
)

//go:embed content/*.adoc
var embedded embed.FS

var ErrNotFound = errors.New("document not found")

type Service struct {
	files fs.FS
	cache map[string]string // name -> html content
	mu    sync.RWMutex
}

// NewService serves the documents built into the binary.
func NewService() *Service {
	sub, err := fs.Sub(embedded, "content")
	if err != nil {
		panic(err)
	}
	return NewServiceFS(sub)
}

// NewServiceFS serves the .adoc files at the root of files.
func NewServiceFS(files fs.FS) *Service {
	return &Service{
		files: files,
		cache: make(map[string]string),
	}
}

// GetDoc renders name, with or without its .adoc suffix.
func (s *Service) GetDoc(name string) (string, error) {
	name = strings.TrimSuffix(path.Base(name), ".adoc") + ".adoc"

	s.mu.RLock()
	content, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return content, nil
	}

	data, err := fs.ReadFile(s.files, name)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read doc file: %w", err)
	}

	output := bytes.NewBuffer(nil)
	config := configuration.NewConfiguration(
		configuration.WithHeaderFooter(true),
		configuration.WithAttribute("toc", "left"),
	)
	if _, err := libasciidoc.Convert(bytes.NewReader(data), output, config); err != nil {
		return "", fmt.Errorf("failed to convert asciidoc: %w", err)
	}

	html := output.String()
	s.mu.Lock()
	s.cache[name] = html
	s.mu.Unlock()
	return html, nil
}

// ListDocs returns document names without the .adoc suffix, sorted.
func (s *Service) ListDocs() ([]string, error) {
	entries, err := fs.ReadDir(s.files, ".")
	if err != nil {
		return nil, err
	}

	var docs []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".adoc") {
			docs = append(docs, strings.TrimSuffix(entry.Name(), ".adoc"))
		}
	}
	sort.Strings(docs)
	return docs, nil
}
