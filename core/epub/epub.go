// Package epub packages a merged book as an EPUB 3 publication with a
// single spine document.
package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/google/uuid"

	"github.com/therealmarv/cnx-epub/core/encoding"
	"github.com/therealmarv/cnx-epub/core/merge"
	"github.com/therealmarv/cnx-epub/core/tree"
	"github.com/therealmarv/cnx-epub/core/xml"
)

// Paths inside the archive.
const (
	ContentDir   = "OEBPS"
	BookFile     = "book.xhtml"
	NavFile      = "nav.xhtml"
	PackageFile  = "content.opf"
	MimeType     = "application/epub+zip"
	containerXML = "META-INF/container.xml"
)

// EPUB is a publication built from one merged document.
type EPUB struct {
	Metadata   BookMetadata
	Content    string // serialized merged document
	Navigation []*merge.NavEntry
	Resources  []*tree.Resource
	HasMathML  bool
	css        string
}

// BookMetadata contains EPUB metadata.
type BookMetadata struct {
	Title      string
	Language   string
	Identifier string
	Rights     string
	Modified   time.Time
}

// New creates an EPUB for doc. The identifier defaults to a random urn:uuid.
func New(doc *merge.MergedDocument) *EPUB {
	content := doc.DOM.Serialize()
	return &EPUB{
		Metadata: BookMetadata{
			Title:      doc.Title,
			Language:   doc.Language,
			Identifier: "urn:uuid:" + uuid.NewString(),
			Modified:   time.Now().UTC(),
		},
		Content:    content,
		Navigation: doc.Navigation,
		Resources:  doc.Resources,
		HasMathML:  strings.Contains(content, xml.MathMLNamespace),
	}
}

// SetIdentifier sets the book identifier.
func (e *EPUB) SetIdentifier(id string) {
	e.Metadata.Identifier = id
}

// SetCSS sets the stylesheet linked from the navigation document.
func (e *EPUB) SetCSS(css string) {
	e.css = css
}

// Build creates the EPUB as bytes.
func (e *EPUB) Build() ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write writes the EPUB archive to w.
func (e *EPUB) Write(w io.Writer) error {
	if strings.TrimSpace(e.Content) == "" {
		return fmt.Errorf("EPUB must have content")
	}
	if e.Metadata.Language == "" {
		e.Metadata.Language = "en"
	}

	zw := zip.NewWriter(w)

	// mimetype must be first and uncompressed
	mimetypeWriter, err := zw.CreateHeader(&zip.FileHeader{
		Name:   "mimetype",
		Method: zip.Store,
	})
	if err != nil {
		return err
	}
	if _, err := mimetypeWriter.Write([]byte(MimeType)); err != nil {
		return err
	}

	files := []archiveFile{
		{containerXML, e.containerXML},
		{path.Join(ContentDir, PackageFile), e.packageDocument},
		{path.Join(ContentDir, NavFile), e.navDocument},
		{path.Join(ContentDir, BookFile), e.bookDocument},
	}
	if e.css != "" {
		files = append(files, archiveFile{path.Join(ContentDir, "style.css"), e.stylesheet})
	}
	for _, f := range files {
		data, err := f.data()
		if err != nil {
			return err
		}
		if err := writeFile(zw, f.name, data); err != nil {
			return err
		}
	}

	for _, r := range e.Resources {
		name := path.Join(ContentDir, merge.ResourceDir+r.OutputName())
		if err := writeFile(zw, name, r.Data); err != nil {
			return err
		}
	}

	return zw.Close()
}

type archiveFile struct {
	name string
	data func() ([]byte, error)
}

func writeFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (e *EPUB) containerXML() ([]byte, error) {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="` + ContentDir + "/" + PackageFile + `" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`), nil
}

func (e *EPUB) packageDocument() ([]byte, error) {
	var manifest strings.Builder
	manifest.WriteString(`    <item id="nav" href="` + NavFile + `" media-type="application/xhtml+xml" properties="nav"/>` + "\n")
	bookProps := ""
	if e.HasMathML {
		bookProps = ` properties="mathml"`
	}
	manifest.WriteString(`    <item id="book" href="` + BookFile + `" media-type="application/xhtml+xml"` + bookProps + "/>\n")
	if e.css != "" {
		manifest.WriteString(`    <item id="style" href="style.css" media-type="text/css"/>` + "\n")
	}
	for i, r := range e.Resources {
		mediaType := r.MediaType
		if mediaType == "" {
			mediaType = "application/octet-stream"
		}
		manifest.WriteString(fmt.Sprintf(`    <item id="resource-%d" href="%s" media-type="%s"/>`,
			i+1,
			encoding.EscapeXMLAttr(merge.ResourceDir+r.OutputName()),
			encoding.EscapeXMLAttr(mediaType)) + "\n")
	}

	var rights string
	if e.Metadata.Rights != "" {
		rights = "\n    <dc:rights>" + encoding.EscapeXML(e.Metadata.Rights) + "</dc:rights>"
	}

	opf := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="BookId">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="BookId">%s</dc:identifier>
    <dc:title>%s</dc:title>
    <dc:language>%s</dc:language>%s
    <meta property="dcterms:modified">%s</meta>
  </metadata>
  <manifest>
%s  </manifest>
  <spine>
    <itemref idref="book"/>
  </spine>
</package>`,
		encoding.EscapeXML(e.Metadata.Identifier),
		encoding.EscapeXML(e.Metadata.Title),
		encoding.EscapeXML(e.Metadata.Language),
		rights,
		e.Metadata.Modified.UTC().Format("2006-01-02T15:04:05Z"),
		manifest.String(),
	)
	return []byte(opf), nil
}

// navDocument renders the navigation outline with links into the book document.
func (e *EPUB) navDocument() ([]byte, error) {
	nav := xml.NewElement("nav")
	if err := navList(nav, e.Navigation); err != nil {
		return nil, err
	}

	var stylesheet string
	if e.css != "" {
		stylesheet = "\n  <link rel=\"stylesheet\" type=\"text/css\" href=\"style.css\"/>"
	}
	doc := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:m="http://www.w3.org/1998/Math/MathML" xmlns:epub="http://www.idpf.org/2007/ops">
<head>
  <title>%s</title>%s
</head>
<body>
  <nav epub:type="toc" id="toc">%s</nav>
</body>
</html>`,
		encoding.EscapeXML(e.Metadata.Title),
		stylesheet,
		xml.InnerXML(nav),
	)
	return []byte(doc), nil
}

func navList(parent *xmlquery.Node, entries []*merge.NavEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ol := xml.NewElement("ol")
	xml.AppendChild(parent, ol)
	for _, entry := range entries {
		li := xml.NewElement("li")
		xml.AppendChild(ol, li)
		label := xml.NewElement("span")
		if entry.Href != "" {
			label = xml.NewElement("a", "href", bookHref(entry.Href))
		}
		if err := xml.AppendHTML(label, entry.Title); err != nil {
			return err
		}
		xml.AppendChild(li, label)
		if err := navList(li, entry.Children); err != nil {
			return err
		}
	}
	return nil
}

// bookHref points same-document fragments at the book file; external
// links are kept.
func bookHref(href string) string {
	if strings.HasPrefix(href, "#") {
		return BookFile + href
	}
	return href
}

func (e *EPUB) stylesheet() ([]byte, error) {
	return []byte(e.css), nil
}

func (e *EPUB) bookDocument() ([]byte, error) {
	return []byte("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<!DOCTYPE html>\n" + e.Content), nil
}

// Info is the metadata read back from an EPUB package document.
type Info struct {
	Title      string
	Language   string
	Identifier string
	Spine      []string          // hrefs in reading order
	Manifest   map[string]string // href -> media type
}

// Parse reads the package document of an EPUB.
func Parse(data []byte) (*Info, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid EPUB archive: %w", err)
	}

	container, err := readXML(r, containerXML)
	if err != nil {
		return nil, err
	}
	rootfile := xmlquery.FindOne(container, `//*[local-name()="rootfile"]`)
	if rootfile == nil {
		return nil, fmt.Errorf("container.xml has no rootfile")
	}
	opfPath := rootfile.SelectAttr("full-path")
	opf, err := readXML(r, opfPath)
	if err != nil {
		return nil, err
	}

	text := func(name string) string {
		if n := xmlquery.FindOne(opf, `//*[local-name()="metadata"]/*[local-name()="`+name+`"]`); n != nil {
			return encoding.NormalizeSpace(n.InnerText())
		}
		return ""
	}
	info := &Info{
		Title:      text("title"),
		Language:   text("language"),
		Identifier: text("identifier"),
		Manifest:   make(map[string]string),
	}

	hrefs := make(map[string]string)
	for _, item := range xmlquery.Find(opf, `//*[local-name()="manifest"]/*[local-name()="item"]`) {
		hrefs[item.SelectAttr("id")] = item.SelectAttr("href")
		info.Manifest[item.SelectAttr("href")] = item.SelectAttr("media-type")
	}
	for _, ref := range xmlquery.Find(opf, `//*[local-name()="spine"]/*[local-name()="itemref"]`) {
		info.Spine = append(info.Spine, hrefs[ref.SelectAttr("idref")])
	}
	return info, nil
}

func readXML(r *zip.Reader, name string) (*xmlquery.Node, error) {
	f, err := r.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()
	doc, err := xmlquery.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return doc, nil
}
