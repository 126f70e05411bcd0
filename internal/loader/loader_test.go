package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	cerrors "github.com/therealmarv/cnx-epub/core/errors"
	"github.com/therealmarv/cnx-epub/core/tree"
	"github.com/therealmarv/cnx-epub/internal/validation"
)

const manifest = `{
  "type": "binder",
  "id": "book",
  "metadata": {"title": "Desserts", "language": "en"},
  "title_overrides": ["", "Citrus"],
  "contents": [
    {
      "type": "document",
      "id": "apple",
      "title": "Apple",
      "content": "apple.xhtml",
      "resources": [{"id": "small.jpg", "path": "img/small.jpg"}]
    },
    {
      "type": "translucent-binder",
      "title": "Sour",
      "contents": [
        {
          "type": "document",
          "id": "lemon",
          "html": "<body><p>Lemon</p></body>",
          "resources": [{"id": "small.jpg", "path": "img/small.jpg"}]
        }
      ]
    },
    {"type": "composite-document", "html": "<body><p>Summary</p></body>"},
    {"type": "document-pointer", "id": "pointer@1", "metadata": {"url": "https://cnx.org/contents/pointer@1"}}
  ]
}`

var jpeg = []byte{0xff, 0xd8, 0xff, 0xe0, 0, 0x10}

func writeBook(t *testing.T, data string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "img"), 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string][]byte{
		"book.json":     []byte(data),
		"apple.xhtml":   []byte(`<body><h1>Apple</h1><img src="/resources/small.jpg"/></body>`),
		"img/small.jpg": jpeg,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), content, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return filepath.Join(dir, "book.json")
}

func TestLoad(t *testing.T) {
	root, err := Load(writeBook(t, manifest))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	book, ok := root.(*tree.Binder)
	if !ok {
		t.Fatalf("root = %T, want *tree.Binder", root)
	}
	if book.ID() != "book" || book.Metadata().Title() != "Desserts" || book.Metadata().Language() != "en" {
		t.Errorf("book = %s %q %q", book.ID(), book.Metadata().Title(), book.Metadata().Language())
	}
	if title, ok := book.TitleFor(1); !ok || title != "Citrus" {
		t.Errorf("TitleFor(1) = %q, %v, want %q", title, ok, "Citrus")
	}
	if len(book.Children) != 4 {
		t.Fatalf("len(Children) = %d, want 4", len(book.Children))
	}

	apple := book.Children[0].(*tree.Document)
	if apple.Metadata().Title() != "Apple" {
		t.Errorf("apple title = %q, want %q", apple.Metadata().Title(), "Apple")
	}
	if apple.Content != `<body><h1>Apple</h1><img src="/resources/small.jpg"/></body>` {
		t.Errorf("apple content = %q", apple.Content)
	}
	if len(apple.Resources) != 1 {
		t.Fatalf("apple resources = %d, want 1", len(apple.Resources))
	}
	img := apple.Resources[0]
	if img.MediaType != "image/jpeg" || string(img.Data) != string(jpeg) {
		t.Errorf("resource = %q %v", img.MediaType, img.Data)
	}

	sour := book.Children[1].(*tree.TranslucentBinder)
	lemon := sour.Children[0].(*tree.Document)
	if lemon.Content != "<body><p>Lemon</p></body>" {
		t.Errorf("lemon content = %q", lemon.Content)
	}
	if lemon.Resources[0] != img {
		t.Error("pages referencing the same file should share one resource")
	}

	composite := book.Children[2].(*tree.CompositeDocument)
	if composite.ID() == "" {
		t.Error("composite document should get a generated id")
	}

	pointer := book.Children[3].(*tree.DocumentPointer)
	if pointer.URL() != "https://cnx.org/contents/pointer@1" {
		t.Errorf("pointer URL = %q", pointer.URL())
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		wantErr  error
	}{
		{
			name:     "invalid json",
			manifest: `{"type": "binder",`,
			wantErr:  cerrors.ErrStructural,
		},
		{
			name:     "unknown type",
			manifest: `{"type": "chapter", "id": "x"}`,
			wantErr:  cerrors.ErrStructural,
		},
		{
			name:     "binder without id",
			manifest: `{"type": "binder"}`,
			wantErr:  cerrors.ErrStructural,
		},
		{
			name:     "document without body",
			manifest: `{"type": "document", "id": "x"}`,
			wantErr:  cerrors.ErrStructural,
		},
		{
			name:     "content escapes manifest directory",
			manifest: `{"type": "document", "id": "x", "content": "../secret.xhtml"}`,
			wantErr:  validation.ErrPathTraversal,
		},
		{
			name:     "missing content file",
			manifest: `{"type": "document", "id": "x", "content": "nope.xhtml"}`,
			wantErr:  os.ErrNotExist,
		},
		{
			name:     "unsafe resource filename",
			manifest: `{"type": "document", "id": "x", "html": "<body/>", "resources": [{"id": "a", "path": "img/small.jpg", "filename": "../a.jpg"}]}`,
			wantErr:  validation.ErrInvalidFilename,
		},
		{
			name:     "resource without path",
			manifest: `{"type": "document", "id": "x", "html": "<body/>", "resources": [{"id": "a"}]}`,
			wantErr:  cerrors.ErrStructural,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeBook(t, tt.manifest))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingManifest(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "book.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want %v", err, os.ErrNotExist)
	}
}
