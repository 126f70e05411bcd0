package exercise

import (
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/therealmarv/cnx-epub/core/errors"
	"github.com/therealmarv/cnx-epub/core/xml"
)

// Render builds the injected-exercise element for the single item in resp.
// The element is detached; rc may be nil when the exercise has no context.
func Render(resp *Response, rc *Context) (*xmlquery.Node, error) {
	if resp == nil || len(resp.Items) != 1 {
		count := 0
		if resp != nil {
			count = len(resp.Items)
		}
		return nil, &errors.NonsingularError{Count: count}
	}
	item := resp.Items[0]

	container := xml.NewElement("div",
		"data-type", "injected-exercise",
		"data-injected-from-nickname", item.Nickname,
		"data-injected-from-version", string(item.Version),
		"data-injected-from-url", item.URL,
		"data-tags", strings.Join(item.Tags, " "),
		"data-is-vocab", boolAttr(item.IsVocab),
	)

	if rc != nil {
		xml.AppendChild(container, renderContext(rc))
	}

	if err := appendBlock(container, item.StimulusHTML, false, "data-type", "exercise-stimulus"); err != nil {
		return nil, err
	}

	for _, q := range item.Questions {
		question, err := renderQuestion(q)
		if err != nil {
			return nil, err
		}
		xml.AppendChild(container, question)
	}
	return container, nil
}

func renderContext(rc *Context) *xmlquery.Node {
	div := xml.NewElement("div",
		"data-type", "exercise-context",
		"data-context-module", rc.Module,
		"data-context-feature", rc.Feature,
	)
	link := xml.NewElement("a", "class", "autogenerated-content", "href", "#"+rc.Anchor)
	xml.AppendChild(link, xml.NewText("[link]"))
	xml.AppendChild(div, link)
	return div
}

func renderQuestion(q Question) (*xmlquery.Node, error) {
	attrs := []string{
		"data-type", "exercise-question",
		"data-is-answer-order-important", boolAttr(q.IsAnswerOrderImportant),
		"data-formats", strings.Join(q.Formats, " "),
	}
	if q.ID != "" {
		attrs = append(attrs, "data-id", string(q.ID))
	}
	div := xml.NewElement("div", attrs...)

	if err := appendBlock(div, q.StimulusHTML, false, "data-type", "question-stimulus"); err != nil {
		return nil, err
	}
	if err := appendBlock(div, q.StemHTML, true, "data-type", "question-stem"); err != nil {
		return nil, err
	}

	for _, s := range q.CollaboratorSolutions {
		if err := appendSolution(div, "collaborator", s); err != nil {
			return nil, err
		}
	}
	for _, s := range q.CommunitySolutions {
		if err := appendSolution(div, "community", s); err != nil {
			return nil, err
		}
	}

	if len(q.Answers) > 0 {
		ol := xml.NewElement("ol", "data-type", "question-answers", "type", "a")
		for _, a := range q.Answers {
			li, err := renderAnswer(a)
			if err != nil {
				return nil, err
			}
			xml.AppendChild(ol, li)
		}
		xml.AppendChild(div, ol)
	}
	return div, nil
}

func appendSolution(parent *xmlquery.Node, source string, s Solution) error {
	return appendBlock(parent, s.ContentHTML, true,
		"data-type", "question-solution",
		"data-solution-source", source,
		"data-solution-type", s.SolutionType,
	)
}

func renderAnswer(a Answer) (*xmlquery.Node, error) {
	attrs := []string{
		"data-type", "question-answer",
		"data-correctness", a.Correctness,
	}
	if a.ID != "" {
		attrs = append(attrs, "data-id", string(a.ID))
	}
	li := xml.NewElement("li", attrs...)
	if err := appendBlock(li, a.ContentHTML, true, "data-type", "answer-content"); err != nil {
		return nil, err
	}
	if err := appendBlock(li, a.FeedbackHTML, false, "data-type", "answer-feedback"); err != nil {
		return nil, err
	}
	return li, nil
}

// appendBlock appends a div holding the trimmed markup. Blocks with empty
// markup are dropped unless always is set.
func appendBlock(parent *xmlquery.Node, markup string, always bool, attrs ...string) error {
	markup = strings.TrimSpace(markup)
	if markup == "" && !always {
		return nil
	}
	div := xml.NewElement("div", attrs...)
	if err := xml.AppendHTML(div, markup); err != nil {
		return err
	}
	xml.AppendChild(parent, div)
	return nil
}
