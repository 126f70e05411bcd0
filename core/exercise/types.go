// Package exercise injects externally authored exercises into a merged book.
//
// An injection link such as <a href="#ost/api/ex/book-ch01-ex001"> is
// replaced by the exercise the lookup service returns for its tag, rendered
// as annotated XHTML. Equations in the exercise are converted to MathML.
package exercise

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Response is the payload of the exercise lookup service.
type Response struct {
	TotalCount int    `json:"total_count"`
	Items      []Item `json:"items"`
}

// Item is one exercise.
type Item struct {
	Tags         []string   `json:"tags"`
	Version      Scalar     `json:"version"`
	Nickname     string     `json:"nickname"`
	URL          string     `json:"url"`
	IsVocab      *bool      `json:"is_vocab"`
	StimulusHTML string     `json:"stimulus_html"`
	Questions    []Question `json:"questions"`
}

// Question is one question of an exercise.
type Question struct {
	ID                     Scalar     `json:"id"`
	IsAnswerOrderImportant *bool      `json:"is_answer_order_important"`
	StimulusHTML           string     `json:"stimulus_html"`
	StemHTML               string     `json:"stem_html"`
	Answers                []Answer   `json:"answers"`
	Formats                []string   `json:"formats"`
	CollaboratorSolutions  []Solution `json:"collaborator_solutions"`
	CommunitySolutions     []Solution `json:"community_solutions"`
}

// Answer is one answer choice.
type Answer struct {
	ID           Scalar `json:"id"`
	ContentHTML  string `json:"content_html"`
	Correctness  string `json:"correctness"`
	FeedbackHTML string `json:"feedback_html"`
}

// Solution is a worked solution to a question.
type Solution struct {
	SolutionType string `json:"solution_type"`
	ContentHTML  string `json:"content_html"`
}

// Scalar is a JSON number or string kept as text. Ids and versions are
// numbers in current payloads and strings in older ones.
type Scalar string

// UnmarshalJSON accepts a number, a string or null.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Scalar(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = Scalar(n.String())
	return nil
}

// Context records where in the book the exercise belongs.
type Context struct {
	Module  string
	Feature string
	Anchor  string
}

// boolAttr renders an optional boolean the way the service spells it; an
// absent value renders as the empty string.
func boolAttr(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}
