package importers

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// Document is one markdown file rendered for import as an article.
type Document struct {
	Path  string // path relative to the import root
	Title string
	HTML  string
}

// md is the shared markdown converter. Unsafe rendering is deliberate:
// imported posts may embed raw HTML, and the server sanitizes on save.
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(
			highlighting.WithStyle("github"),
		),
	),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
	goldmark.WithRendererOptions(
		html.WithUnsafe(),
	),
)

// Render converts markdown source into a Document. The title is the
// first H1 heading, falling back to the file name without its extension.
func Render(relPath string, source []byte) (*Document, error) {
	var buf bytes.Buffer
	if err := md.Convert(source, &buf); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", relPath, err)
	}
	return &Document{
		Path:  relPath,
		Title: extractTitle(string(source), relPath),
		HTML:  buf.String(),
	}, nil
}

// Load reads and renders one markdown file under root.
func Load(root, relPath string) (*Document, error) {
	source, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(relPath)))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", relPath, err)
	}
	return Render(relPath, source)
}

// Discover walks root and returns the relative paths matching the
// include patterns and none of the exclude patterns, sorted.
func Discover(root string, include, exclude []string) ([]string, error) {
	if len(include) == 0 {
		include = []string{"**/*.md"}
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if matchesAny(rel, include) && !matchesAny(rel, exclude) {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// matchesAny checks relPath against glob patterns, matching the full
// relative path and the bare filename so patterns like "*.md" work from
// any depth.
func matchesAny(relPath string, patterns []string) bool {
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		if matched, err := doublestar.PathMatch(pattern, relPath); err == nil && matched {
			return true
		}
		if matched, err := doublestar.PathMatch(pattern, filepath.Base(relPath)); err == nil && matched {
			return true
		}
	}
	return false
}

// extractTitle finds the first H1 heading, falling back to the filename.
func extractTitle(content, relPath string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return strings.TrimSuffix(filepath.Base(relPath), filepath.Ext(relPath))
}
