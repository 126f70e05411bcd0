// Package anchors rewrites element ids so that many pages can share one
// document without collisions.
//
// Every id v on a page with token t becomes auto_<t>_<v>, and every
// same-page fragment link #v follows it. Ids that already carry the auto_
// prefix are left alone, which makes the rewrite idempotent.
package anchors

import (
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/therealmarv/cnx-epub/core/xml"
)

// Prefix marks ids that have already been namespaced.
const Prefix = "auto_"

// Token derives the namespace token for a page identifier: the version
// suffix is dropped and underscores removed so the token never contains
// the separator used by ID.
func Token(id string) string {
	if i := strings.IndexByte(id, '@'); i >= 0 {
		id = id[:i]
	}
	return strings.ReplaceAll(id, "_", "")
}

// ID returns the namespaced form of id for token.
func ID(token, id string) string {
	return Prefix + token + "_" + id
}

// IsAuto reports whether id was produced by a previous namespacing pass.
func IsAuto(id string) bool {
	return strings.HasPrefix(id, Prefix)
}

// NamespaceNode rewrites ids and same-page fragment links below root in
// place and returns the mapping from original to rewritten id.
func NamespaceNode(root *xmlquery.Node, token string) map[string]string {
	rewritten := map[string]string{}
	for _, e := range xml.Elements(root) {
		id, ok := xml.Attr(e, "id")
		if !ok || id == "" || IsAuto(id) {
			continue
		}
		auto := ID(token, id)
		xml.SetAttr(e, "id", auto)
		rewritten[id] = auto
	}
	if len(rewritten) == 0 {
		return rewritten
	}
	for _, e := range xml.Elements(root) {
		href, ok := xml.Attr(e, "href")
		if !ok || !strings.HasPrefix(href, "#") {
			continue
		}
		if auto, found := rewritten[href[1:]]; found {
			xml.SetAttr(e, "href", "#"+auto)
		}
	}
	return rewritten
}

// Namespace applies NamespaceNode to serialized markup.
func Namespace(markup, token string) (string, error) {
	doc, err := xml.ParseString(markup)
	if err != nil {
		return "", err
	}
	NamespaceNode(doc.Root(), token)
	return xml.Serialize(doc.Root()), nil
}

// Anchors returns the set of namespaced ids below root.
func Anchors(root *xmlquery.Node) map[string]bool {
	ids := map[string]bool{}
	for _, e := range xml.Elements(root) {
		if id := xml.AttrValue(e, "id"); IsAuto(id) {
			ids[id] = true
		}
	}
	return ids
}
