// Package loader reads a book manifest from disk into a content tree.
//
// A manifest is a JSON file describing the root node. Page bodies and
// resource payloads are separate files referenced by paths relative to the
// manifest's directory:
//
//	{
//	  "type": "binder",
//	  "id": "book",
//	  "metadata": {"title": "Desserts", "language": "en"},
//	  "contents": [
//	    {"type": "document", "id": "apple", "content": "apple.xhtml",
//	     "resources": [{"id": "small.jpg", "path": "img/small.jpg"}]}
//	  ]
//	}
package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/therealmarv/cnx-epub/core/errors"
	"github.com/therealmarv/cnx-epub/core/tree"
	"github.com/therealmarv/cnx-epub/internal/validation"
)

// Node types accepted in a manifest.
const (
	TypeBinder            = "binder"
	TypeTranslucentBinder = "translucent-binder"
	TypeDocument          = "document"
	TypeCompositeDocument = "composite-document"
	TypeDocumentPointer   = "document-pointer"
)

// Entry is one node of a manifest.
type Entry struct {
	Type           string          `json:"type"`
	ID             string          `json:"id,omitempty"`
	Metadata       tree.Metadata   `json:"metadata,omitempty"`
	Title          string          `json:"title,omitempty"`
	Content        string          `json:"content,omitempty"`
	HTML           string          `json:"html,omitempty"`
	Resources      []ResourceEntry `json:"resources,omitempty"`
	Contents       []Entry         `json:"contents,omitempty"`
	TitleOverrides []string        `json:"title_overrides,omitempty"`
}

// ResourceEntry describes a resource file.
type ResourceEntry struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	Filename  string `json:"filename,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// Load reads the manifest at path and builds the content tree it describes.
func Load(path string) (tree.Node, error) {
	if err := validation.ValidatePath(path); err != nil {
		return nil, errors.Wrap(err, "manifest path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return Parse(data, filepath.Dir(path))
}

// Parse builds a content tree from manifest data, resolving file references
// against baseDir.
func Parse(data []byte, baseDir string) (tree.Node, error) {
	var root Entry
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, &errors.ParseError{Format: "manifest", Message: err.Error(), Err: err}
	}
	l := &loader{baseDir: baseDir, resources: map[string]*tree.Resource{}}
	return l.node(&root, "")
}

type loader struct {
	baseDir string

	// resources shares one *tree.Resource per path so that pages
	// referencing the same file are deduplicated on merge.
	resources map[string]*tree.Resource
}

func (l *loader) node(e *Entry, at string) (tree.Node, error) {
	meta := e.Metadata
	if e.Title != "" {
		if meta == nil {
			meta = tree.Metadata{}
		}
		if _, ok := meta[tree.KeyTitle]; !ok {
			meta[tree.KeyTitle] = e.Title
		}
	}
	where := at + "/" + e.ID

	switch e.Type {
	case TypeBinder, TypeTranslucentBinder:
		children := make([]tree.Node, 0, len(e.Contents))
		for i := range e.Contents {
			child, err := l.node(&e.Contents[i], where)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		if e.Type == TypeTranslucentBinder {
			b := tree.NewTranslucentBinder(meta, children...)
			b.TitleOverrides = e.TitleOverrides
			return b, nil
		}
		if e.ID == "" {
			return nil, errors.NewParse("manifest", where, "binder requires an id")
		}
		b := tree.NewBinder(e.ID, meta, children...)
		b.TitleOverrides = e.TitleOverrides
		resources, err := l.resourceList(e.Resources, where)
		if err != nil {
			return nil, err
		}
		b.Resources = resources
		return b, nil

	case TypeDocument, TypeCompositeDocument:
		body, err := l.body(e, where)
		if err != nil {
			return nil, err
		}
		resources, err := l.resourceList(e.Resources, where)
		if err != nil {
			return nil, err
		}
		if e.Type == TypeCompositeDocument {
			return tree.NewCompositeDocument(e.ID, body, meta, resources...), nil
		}
		if e.ID == "" {
			return nil, errors.NewParse("manifest", where, "document requires an id")
		}
		return tree.NewDocument(e.ID, body, meta, resources...), nil

	case TypeDocumentPointer:
		if e.ID == "" {
			return nil, errors.NewParse("manifest", where, "document pointer requires an id")
		}
		return tree.NewDocumentPointer(e.ID, meta), nil
	}
	return nil, errors.NewParse("manifest", where, fmt.Sprintf("unknown node type %q", e.Type))
}

func (l *loader) body(e *Entry, where string) (string, error) {
	if e.HTML != "" {
		return e.HTML, nil
	}
	if e.Content == "" {
		return "", errors.NewParse("manifest", where, "document has neither content nor html")
	}
	data, err := l.read(e.Content)
	if err != nil {
		return "", errors.Wrapf(err, "document %s", e.ID)
	}
	return string(data), nil
}

func (l *loader) resourceList(entries []ResourceEntry, where string) ([]*tree.Resource, error) {
	var resources []*tree.Resource
	for _, re := range entries {
		r, err := l.resource(re, where)
		if err != nil {
			return nil, err
		}
		resources = append(resources, r)
	}
	return resources, nil
}

func (l *loader) resource(re ResourceEntry, where string) (*tree.Resource, error) {
	if re.ID == "" || re.Path == "" {
		return nil, errors.NewParse("manifest", where, "resource requires id and path")
	}
	if r, ok := l.resources[re.Path]; ok {
		return r, nil
	}
	r := &tree.Resource{ID: re.ID, Filename: re.Filename, MediaType: re.MediaType}
	if err := validation.ValidateFilename(r.OutputName()); err != nil {
		return nil, errors.Wrapf(err, "resource %s", re.ID)
	}
	data, err := l.read(re.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "resource %s", re.ID)
	}
	r.Data = data
	if r.MediaType == "" {
		r.MediaType = validation.DetectMediaType(r.OutputName(), data)
	}
	l.resources[re.Path] = r
	return r, nil
}

// read loads a file that must stay inside the manifest directory.
func (l *loader) read(rel string) ([]byte, error) {
	clean, err := validation.LocalPath(rel)
	if err != nil {
		return nil, err
	}
	full := filepath.Join(l.baseDir, clean)
	info, err := os.Stat(full)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateSize(info.Size()); err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}
