// Package matcher decides where in the book an external exercise belongs,
// from the context tags the exercise service attaches to it.
package matcher

import (
	"strings"

	"github.com/therealmarv/cnx-epub/core/anchors"
	"github.com/therealmarv/cnx-epub/core/errors"
)

// Reserved tag prefixes.
const (
	ModuleTagPrefix  = "context-cnxmod:"
	FeatureTagPrefix = "context-cnxfeature:"
)

// Input describes one exercise to place.
type Input struct {
	// Tags are the exercise tags in service order.
	Tags []string

	// Href is the target of the link that triggered the injection.
	Href string

	// ParentPage is the page holding the triggering link, if any.
	ParentPage string

	// Candidates are the page ids of the book in document order.
	Candidates []string

	// HasAnchor reports whether page holds an element with id anchor.
	HasAnchor func(page, anchor string) bool
}

// Placement is the resolved context of an exercise.
type Placement struct {
	Module  string
	Feature string
	Anchor  string
}

// Feature returns the feature id from the first feature tag.
func Feature(tags []string) string {
	for _, tag := range tags {
		if strings.HasPrefix(tag, FeatureTagPrefix) {
			return strings.TrimPrefix(tag, FeatureTagPrefix)
		}
	}
	return ""
}

// Modules returns the module ids from the module tags, in tag order.
func Modules(tags []string) []string {
	var modules []string
	seen := map[string]bool{}
	for _, tag := range tags {
		if !strings.HasPrefix(tag, ModuleTagPrefix) {
			continue
		}
		m := strings.TrimPrefix(tag, ModuleTagPrefix)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		modules = append(modules, m)
	}
	return modules
}

// Match selects the page and anchor for an exercise. A nil Placement with
// a nil error means the exercise names no feature and gets no context.
//
// Preference order: the first tagged module that is a candidate and holds
// the feature anchor; then the page holding the triggering link; a tagged
// candidate without the anchor is then a FeatureNotInModuleError; then the
// single other candidate holding the anchor; otherwise NoCandidateError.
func Match(in Input) (*Placement, error) {
	feature := Feature(in.Tags)
	if feature == "" {
		return nil, nil
	}
	has := func(page string) bool {
		return in.HasAnchor != nil && in.HasAnchor(page, anchors.ID(page, feature))
	}
	placement := func(page string) *Placement {
		return &Placement{Module: page, Feature: feature, Anchor: anchors.ID(page, feature)}
	}

	candidates := make(map[string]bool, len(in.Candidates))
	for _, c := range in.Candidates {
		candidates[c] = true
	}

	var tagged []string
	for _, m := range Modules(in.Tags) {
		if candidates[m] {
			tagged = append(tagged, m)
		}
	}
	for _, m := range tagged {
		if has(m) {
			return placement(m), nil
		}
	}

	if in.ParentPage != "" && has(in.ParentPage) {
		return placement(in.ParentPage), nil
	}

	if len(tagged) > 0 {
		return nil, &errors.FeatureNotInModuleError{Feature: feature, Module: tagged[0], Href: in.Href}
	}

	var found []string
	for _, c := range in.Candidates {
		if c != in.ParentPage && has(c) {
			found = append(found, c)
		}
	}
	if len(found) == 1 {
		return placement(found[0]), nil
	}
	return nil, &errors.NoCandidateError{Feature: feature, Href: in.Href}
}
