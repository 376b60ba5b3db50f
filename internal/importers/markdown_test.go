package importers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestRenderBasics(t *testing.T) {
	doc, err := Render("posts/hello.md", []byte("# Hello World\n\nSome **bold** text.\n"))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if doc.Title != "Hello World" {
		t.Errorf("title = %q", doc.Title)
	}
	if !strings.Contains(doc.HTML, "<strong>bold</strong>") {
		t.Errorf("markdown not rendered: %q", doc.HTML)
	}
	if !strings.Contains(doc.HTML, `id="hello-world"`) {
		t.Errorf("heading missing auto id: %q", doc.HTML)
	}
}

func TestRenderGFMTable(t *testing.T) {
	doc, err := Render("t.md", []byte("| a | b |\n|---|---|\n| 1 | 2 |\n"))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(doc.HTML, "<table>") {
		t.Errorf("GFM table not rendered: %q", doc.HTML)
	}
}

func TestRenderCodeHighlighting(t *testing.T) {
	doc, err := Render("c.md", []byte("```go\nfunc main() {}\n```\n"))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(doc.HTML, "<pre") || !strings.Contains(doc.HTML, "style=") {
		t.Errorf("code block not highlighted: %q", doc.HTML)
	}
}

func TestRenderKeepsRawHTML(t *testing.T) {
	doc, err := Render("r.md", []byte("text\n\n<img src=\"/media/a.png\">\n"))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(doc.HTML, `<img src="/media/a.png">`) {
		t.Errorf("raw HTML stripped: %q", doc.HTML)
	}
}

func TestTitleFallsBackToFilename(t *testing.T) {
	doc, err := Render("drafts/summer-notes.md", []byte("no heading here\n"))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if doc.Title != "summer-notes" {
		t.Errorf("title = %q, want filename fallback", doc.Title)
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "# A")
	writeFile(t, root, "posts/b.md", "# B")
	writeFile(t, root, "posts/deep/c.md", "# C")
	writeFile(t, root, "notes.txt", "not markdown")
	writeFile(t, root, "drafts/skip.md", "# Skip")

	paths, err := Discover(root, []string{"**/*.md"}, []string{"drafts/**"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []string{"a.md", "posts/b.md", "posts/deep/c.md"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("paths = %v, want %v", paths, want)
		}
	}
}

func TestDiscoverDefaultInclude(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "# A")
	writeFile(t, root, "b.txt", "b")

	paths, err := Discover(root, nil, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(paths) != 1 || paths[0] != "a.md" {
		t.Errorf("paths = %v, want just a.md", paths)
	}
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "posts/hello.md", "# Hi\n\nbody\n")

	doc, err := Load(root, "posts/hello.md")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Title != "Hi" || doc.Path != "posts/hello.md" {
		t.Errorf("unexpected document %+v", doc)
	}
}
