package epub

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/therealmarv/cnx-epub/core/merge"
	"github.com/therealmarv/cnx-epub/core/tree"
)

func mergedBook(t *testing.T) *merge.MergedDocument {
	t.Helper()
	jpg := &tree.Resource{ID: "1x1.jpg", MediaType: "image/jpeg", Filename: "small.jpg", Data: []byte{0xff, 0xd8}}
	apple := tree.NewDocument("apple",
		`<body><h1>Apple &amp; Pear</h1><img src="/resources/1x1.jpg"/></body>`,
		tree.Metadata{"title": "Apple"}, jpg)
	water := tree.NewDocument("water",
		`<body><p><math xmlns="http://www.w3.org/1998/Math/MathML"><mi>x</mi></math></p></body>`,
		tree.Metadata{"title": "Water"})
	chapter := tree.NewBinder("fruity", tree.Metadata{"title": "Fruity"}, apple)
	book := tree.NewBinder("Desserts", tree.Metadata{"title": "Desserts & More", "language": "en"}, chapter, water)

	merged, err := merge.Merge(book)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	return merged
}

func readFiles(t *testing.T, data []byte) map[string]string {
	t.Helper()
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Build output is not valid ZIP: %v", err)
	}
	files := make(map[string]string)
	for i, f := range r.File {
		if i == 0 && (f.Name != "mimetype" || f.Method != zip.Store) {
			t.Errorf("first entry = %s (method %d), want stored mimetype", f.Name, f.Method)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		content, _ := io.ReadAll(rc)
		rc.Close()
		files[f.Name] = string(content)
	}
	return files
}

func TestBuild(t *testing.T) {
	e := New(mergedBook(t))
	e.SetIdentifier("urn:uuid:1234")
	e.Metadata.Modified = time.Date(2016, 10, 31, 16, 6, 44, 0, time.UTC)

	data, err := e.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	files := readFiles(t, data)

	if files["mimetype"] != MimeType {
		t.Errorf("mimetype = %q, want %q", files["mimetype"], MimeType)
	}
	for _, name := range []string{"META-INF/container.xml", "OEBPS/content.opf", "OEBPS/nav.xhtml", "OEBPS/book.xhtml", "OEBPS/resources/small.jpg"} {
		if _, ok := files[name]; !ok {
			t.Errorf("archive is missing %s", name)
		}
	}

	opf := files["OEBPS/content.opf"]
	for _, want := range []string{
		`<dc:identifier id="BookId">urn:uuid:1234</dc:identifier>`,
		`<dc:title>Desserts &amp; More</dc:title>`,
		`<meta property="dcterms:modified">2016-10-31T16:06:44Z</meta>`,
		`<item id="book" href="book.xhtml" media-type="application/xhtml+xml" properties="mathml"/>`,
		`<item id="resource-1" href="resources/small.jpg" media-type="image/jpeg"/>`,
		`<itemref idref="book"/>`,
	} {
		if !strings.Contains(opf, want) {
			t.Errorf("content.opf missing %s\n%s", want, opf)
		}
	}

	book := files["OEBPS/book.xhtml"]
	if !strings.HasPrefix(book, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<!DOCTYPE html>\n<html") {
		t.Errorf("book.xhtml prologue = %q", book[:60])
	}
	if !strings.Contains(book, `src="resources/small.jpg"`) {
		t.Error("book.xhtml should reference the packaged resource")
	}

	nav := files["OEBPS/nav.xhtml"]
	for _, want := range []string{
		`<nav epub:type="toc" id="toc"><ol><li><span>Fruity</span><ol><li><a href="book.xhtml#page_apple">Apple</a></li></ol></li>`,
		`<li><a href="book.xhtml#page_water">Water</a></li>`,
	} {
		if !strings.Contains(nav, want) {
			t.Errorf("nav.xhtml missing %s\n%s", want, nav)
		}
	}
}

func TestBuildWithoutMath(t *testing.T) {
	page := tree.NewDocument("plain", `<body><p>Plain</p></body>`, tree.Metadata{"title": "Plain"})
	merged, err := merge.Merge(tree.NewBinder("b", tree.Metadata{"title": "B"}, page))
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	e := New(merged)
	e.SetCSS("body { margin: 1em; }")

	data, err := e.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	files := readFiles(t, data)
	opf := files["OEBPS/content.opf"]
	if strings.Contains(opf, `properties="mathml"`) {
		t.Error("book without MathML should not declare the mathml property")
	}
	if !strings.Contains(opf, `<dc:language>en</dc:language>`) {
		t.Errorf("language should default to en:\n%s", opf)
	}
	if files["OEBPS/style.css"] != "body { margin: 1em; }" {
		t.Errorf("style.css = %q", files["OEBPS/style.css"])
	}
	if !strings.Contains(files["OEBPS/nav.xhtml"], `href="style.css"`) {
		t.Error("nav.xhtml should link the stylesheet")
	}
}

func TestBuildEmpty(t *testing.T) {
	e := &EPUB{}
	if _, err := e.Build(); err == nil {
		t.Error("Build() of an empty EPUB should fail")
	}
}

func TestParseRoundTrip(t *testing.T) {
	e := New(mergedBook(t))
	data, err := e.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	info, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if info.Title != "Desserts & More" {
		t.Errorf("Title = %q, want %q", info.Title, "Desserts & More")
	}
	if info.Language != "en" {
		t.Errorf("Language = %q, want %q", info.Language, "en")
	}
	if !strings.HasPrefix(info.Identifier, "urn:uuid:") {
		t.Errorf("Identifier = %q, want a urn:uuid", info.Identifier)
	}
	if len(info.Spine) != 1 || info.Spine[0] != BookFile {
		t.Errorf("Spine = %v, want [%s]", info.Spine, BookFile)
	}
	if got := info.Manifest["resources/small.jpg"]; got != "image/jpeg" {
		t.Errorf("Manifest[resources/small.jpg] = %q, want image/jpeg", got)
	}
}

func TestParseNormalizesMetadataWhitespace(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := []struct{ name, body string }{
		{"mimetype", MimeType},
		{containerXML, `<container xmlns="urn:oasis:names:tc:opendocument:xmlns:container"><rootfiles>` +
			`<rootfile full-path="content.opf" media-type="application/oebps-package+xml"/></rootfiles></container>`},
		{"content.opf", `<package xmlns="http://www.idpf.org/2007/opf"><metadata xmlns:dc="http://purl.org/dc/elements/1.1/">` +
			"<dc:title>\n  Lemon\n\tDesserts  </dc:title><dc:language> en </dc:language></metadata></package>"},
	}
	for _, f := range files {
		w, err := zw.Create(f.name)
		if err != nil {
			t.Fatalf("Create(%s) error = %v", f.name, err)
		}
		w.Write([]byte(f.body))
	}
	zw.Close()

	info, err := Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if info.Title != "Lemon Desserts" {
		t.Errorf("Title = %q, want %q", info.Title, "Lemon Desserts")
	}
	if info.Language != "en" {
		t.Errorf("Language = %q, want %q", info.Language, "en")
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse([]byte("not a zip")); err == nil {
		t.Error("Parse() should reject non-zip data")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("mimetype")
	w.Write([]byte(MimeType))
	zw.Close()
	if _, err := Parse(buf.Bytes()); err == nil {
		t.Error("Parse() should fail without container.xml")
	}
}

func TestBookHref(t *testing.T) {
	tests := []struct{ in, want string }{
		{"#page_apple", "book.xhtml#page_apple"},
		{"https://cnx.org/contents/pointer", "https://cnx.org/contents/pointer"},
	}
	for _, tt := range tests {
		if got := bookHref(tt.in); got != tt.want {
			t.Errorf("bookHref(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
