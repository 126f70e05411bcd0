package merge

import (
	"strings"

	"github.com/therealmarv/cnx-epub/core/anchors"
	"github.com/therealmarv/cnx-epub/core/errors"
	"github.com/therealmarv/cnx-epub/core/links"
	"github.com/therealmarv/cnx-epub/core/tree"
	"github.com/therealmarv/cnx-epub/core/xml"
)

// ResourcePrefix is the path resources are referenced by in source markup.
const ResourcePrefix = "/resources/"

// ResourceDir is the relative directory resources are written to.
const ResourceDir = "resources/"

// referenceAttrs are the attributes that may point at a resource or page.
var referenceAttrs = []string{"src", "href", "data"}

// collectResources returns the union of the resources owned by nodes,
// deduplicated by identity. Two distinct resources sharing an output
// filename are an error.
func collectResources(nodes []tree.Node) ([]*tree.Resource, error) {
	var out []*tree.Resource
	seen := map[*tree.Resource]bool{}
	byName := map[string]*tree.Resource{}
	for _, n := range nodes {
		for _, r := range ownedResources(n) {
			if r == nil || seen[r] {
				continue
			}
			seen[r] = true
			name := r.OutputName()
			if first, ok := byName[name]; ok {
				return nil, &errors.AmbiguousResourceError{Filename: name, First: first.ID, Second: r.ID}
			}
			byName[name] = r
			out = append(out, r)
		}
	}
	return out, nil
}

func ownedResources(n tree.Node) []*tree.Resource {
	switch node := n.(type) {
	case tree.Page:
		return node.PageResources()
	case *tree.Binder:
		return node.Resources
	}
	return nil
}

// rewriteReferences points resource references at their output files and
// cross-page links at the in-document page anchors. A page resolves resource
// ids against its own resources first, then binder resources, then any
// resource in the book.
func (m *merger) rewriteReferences(resources []*tree.Resource) {
	var shared []*tree.Resource
	for _, n := range m.nodes {
		if b, ok := n.(*tree.Binder); ok {
			shared = append(shared, b.Resources...)
		}
	}
	fallback := indexResources(nil, shared)
	fallback = indexResources(fallback, resources)

	for _, page := range m.doc.Pages {
		byID := indexResources(nil, page.Node.PageResources())
		for id, r := range fallback {
			if _, ok := byID[id]; !ok {
				byID[id] = r
			}
		}
		for _, e := range xml.Elements(page.Element) {
			for _, name := range referenceAttrs {
				value, ok := xml.Attr(e, name)
				if !ok {
					continue
				}
				if rewritten, ok := m.rewrite(value, byID); ok {
					xml.SetAttr(e, name, rewritten)
				}
			}
		}
	}
}

// indexResources adds resources to byID, keeping the first resource seen per id.
func indexResources(byID map[string]*tree.Resource, resources []*tree.Resource) map[string]*tree.Resource {
	if byID == nil {
		byID = map[string]*tree.Resource{}
	}
	for _, r := range resources {
		if r == nil {
			continue
		}
		if _, ok := byID[r.ID]; !ok {
			byID[r.ID] = r
		}
	}
	return byID
}

func (m *merger) rewrite(value string, resources map[string]*tree.Resource) (string, bool) {
	if strings.HasPrefix(value, ResourcePrefix) {
		if r, ok := resources[strings.TrimPrefix(value, ResourcePrefix)]; ok {
			return ResourceDir + r.OutputName(), true
		}
		return "", false
	}
	ref, ok := links.Parse(value)
	if !ok {
		return "", false
	}
	token, ok := m.byID[ref.ID]
	if !ok {
		return "", false
	}
	switch {
	case ref.Fragment == "":
		return "#" + PageIDPrefix + token, true
	case anchors.IsAuto(ref.Fragment):
		return "#" + ref.Fragment, true
	default:
		return "#" + anchors.ID(token, ref.Fragment), true
	}
}
