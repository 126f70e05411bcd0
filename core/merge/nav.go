package merge

import (
	"github.com/antchfx/xmlquery"

	"github.com/therealmarv/cnx-epub/core/xml"
)

// renderNavigation writes entries as nested ordered lists into nav.
func renderNavigation(nav *xmlquery.Node, entries []*NavEntry) error {
	ol := xml.NewElement("ol")
	xml.AppendChild(nav, ol)
	for _, entry := range entries {
		if err := renderEntry(ol, entry); err != nil {
			return err
		}
	}
	return nil
}

func renderEntry(ol *xmlquery.Node, entry *NavEntry) error {
	li := xml.NewElement("li")
	xml.AppendChild(ol, li)

	var label *xmlquery.Node
	if entry.Href != "" {
		label = xml.NewElement("a", "href", entry.Href)
	} else {
		label = xml.NewElement("span")
	}
	if err := xml.AppendHTML(label, entry.Title); err != nil {
		return err
	}
	xml.AppendChild(li, label)

	if len(entry.Children) == 0 {
		return nil
	}
	return renderNavigation(li, entry.Children)
}
