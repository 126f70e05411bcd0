package exercise

import (
	"context"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/therealmarv/cnx-epub/core/errors"
	"github.com/therealmarv/cnx-epub/core/inject"
	"github.com/therealmarv/cnx-epub/core/matcher"
	"github.com/therealmarv/cnx-epub/core/mathml"
	"github.com/therealmarv/cnx-epub/core/xml"
	"github.com/therealmarv/cnx-epub/internal/logging"
)

// DefaultMatch is the href fragment that marks an exercise injection link.
const DefaultMatch = "#ost/api/ex/"

// RuleConfig configures the exercise injection rule.
type RuleConfig struct {
	// Match is the href substring that marks a link; the tag follows it.
	Match string

	Client *Client

	// Converter converts equations; nil leaves TeX in place.
	Converter mathml.Converter
}

// Rule returns the injection rule replacing exercise links with exercises.
func Rule(cfg RuleConfig) inject.Rule {
	match := cfg.Match
	if match == "" {
		match = DefaultMatch
	}
	return inject.Rule{
		Name:    "exercise",
		Pattern: `//a[contains(@href, "` + match + `")]`,
		Transform: func(ctx context.Context, m inject.Match) (inject.Mutation, error) {
			return transform(ctx, cfg, match, m)
		},
	}
}

func transform(ctx context.Context, cfg RuleConfig, match string, m inject.Match) (inject.Mutation, error) {
	href := xml.AttrValue(m.Node, "href")
	tag := Tag(href, match)

	resp, err := cfg.Client.Lookup(ctx, tag)
	if err != nil {
		return nil, errors.Wrapf(err, "exercise %s", tag)
	}

	var fragment *xmlquery.Node
	if resp.TotalCount == 0 {
		logging.MissingExercise(ctx, tag, cfg.Client.URL(tag))
		fragment = Missing(tag)
	} else {
		fragment, err = render(ctx, cfg, resp, tag, href, m)
		if err != nil {
			return nil, err
		}
	}

	link := m.Node
	return func() error {
		xml.Replace(replacementTarget(link), fragment)
		return nil
	}, nil
}

func render(ctx context.Context, cfg RuleConfig, resp *Response, tag, href string, m inject.Match) (*xmlquery.Node, error) {
	if len(resp.Items) != 1 {
		return nil, &errors.NonsingularError{Count: len(resp.Items)}
	}
	item := &resp.Items[0]
	item.URL = cfg.Client.URL(tag)

	placement, err := matcher.Match(matcher.Input{
		Tags:       item.Tags,
		Href:       href,
		ParentPage: inject.PageOf(m.Node),
		Candidates: m.PageIDs,
		HasAnchor: func(page, anchor string) bool {
			return inject.HasAnchor(m.Document, page, anchor)
		},
	})
	if err != nil {
		return nil, err
	}
	var rc *Context
	if placement != nil {
		rc = &Context{Module: placement.Module, Feature: placement.Feature, Anchor: placement.Anchor}
	}

	fragment, err := Render(resp, rc)
	if err != nil {
		return nil, err
	}
	if cfg.Converter != nil {
		if err := mathml.ReplaceMath(ctx, cfg.Converter, fragment, tag); err != nil {
			return nil, err
		}
	}
	xml.Unify(fragment)
	return fragment, nil
}

// Tag extracts the exercise tag that follows match in href.
func Tag(href, match string) string {
	if i := strings.Index(href, match); i >= 0 {
		return href[i+len(match):]
	}
	return href
}

// Missing returns the placeholder for an exercise the service does not know.
func Missing(tag string) *xmlquery.Node {
	div := xml.NewElement("div", "class", "missing-exercise")
	xml.AppendChild(div, xml.NewText("MISSING EXERCISE: tag:"+tag))
	return div
}

// replacementTarget returns the link, or its paragraph when the paragraph
// holds nothing but the link.
func replacementTarget(link *xmlquery.Node) *xmlquery.Node {
	p := link.Parent
	if !xml.IsElement(p, "p") {
		return link
	}
	for c := p.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c == link:
		case c.Type == xmlquery.TextNode && strings.TrimSpace(c.Data) == "":
		default:
			return link
		}
	}
	return p
}
