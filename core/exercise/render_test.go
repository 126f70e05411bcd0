package exercise

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/therealmarv/cnx-epub/core/errors"
	"github.com/therealmarv/cnx-epub/core/xml"
)

const fullSetJSON = `{
	"total_count": 1,
	"items": [{
		"tags": ["type:practice", "all", "another-test-tag"],
		"version": 3,
		"nickname": "contmath98",
		"url": "test-url",
		"solutions_are_public": true,
		"is_vocab": false,
		"stimulus_html": "I am the intro.",
		"questions": [
			{
				"id": 176664,
				"is_answer_order_important": false,
				"stimulus_html": "",
				"stem_html": "I'm a question stem for question 1.",
				"answers": [],
				"formats": ["free-response"],
				"collaborator_solutions": [
					{"solution_type": "detailed", "content_html": "I'm a detailed solution for question 1\n"}
				],
				"community_solutions": []
			},
			{
				"id": 176665,
				"is_answer_order_important": false,
				"stem_html": "I'm a question stem for question 2.",
				"formats": ["free-response"],
				"collaborator_solutions": [
					{"solution_type": "another-solution-type", "content_html": "I'm a solution for question 2"}
				],
				"community_solutions": [
					{"solution_type": "detailed", "content_html": "test community solution"}
				]
			},
			{
				"id": 176660,
				"is_answer_order_important": true,
				"formats": ["multiple-choice", "test-format"],
				"stimulus_html": "i'm a question stimulus\n",
				"stem_html": "Testing a multiple choice question.",
				"answers": [
					{"id": 668496, "content_html": "mean - i'm distractor", "correctness": "0.0", "feedback_html": "choice level feedback"},
					{"id": 668497, "content_html": "median - distractor", "correctness": "0.0", "feedback_html": ""},
					{"id": 668498, "content_html": "mode - correct answer", "correctness": "1.0", "feedback_html": "choice level feedback"}
				]
			}
		]
	}]
}`

func decode(t *testing.T, s string) *Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal([]byte(s), &resp); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	return &resp
}

func TestRenderFullSet(t *testing.T) {
	rc := &Context{Module: "test-module-123", Feature: "test-feature-abc", Anchor: "auto_123_abc-test"}
	frag, err := Render(decode(t, fullSetJSON), rc)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	got := xml.Serialize(frag)

	wantInOrder := []string{
		`<div xmlns="http://www.w3.org/1999/xhtml" data-type="injected-exercise" data-injected-from-nickname="contmath98" ` +
			`data-injected-from-version="3" data-injected-from-url="test-url" ` +
			`data-tags="type:practice all another-test-tag" data-is-vocab="false">`,
		`<div data-type="exercise-context" data-context-module="test-module-123" data-context-feature="test-feature-abc">` +
			`<a class="autogenerated-content" href="#auto_123_abc-test">[link]</a></div>`,
		`<div data-type="exercise-stimulus">I am the intro.</div>`,
		`<div data-type="exercise-question" data-is-answer-order-important="false" data-formats="free-response" data-id="176664">` +
			`<div data-type="question-stem">I'm a question stem for question 1.</div>` +
			`<div data-type="question-solution" data-solution-source="collaborator" data-solution-type="detailed">` +
			`I'm a detailed solution for question 1</div></div>`,
		`<div data-type="question-solution" data-solution-source="collaborator" data-solution-type="another-solution-type">`,
		`<div data-type="question-solution" data-solution-source="community" data-solution-type="detailed">test community solution</div>`,
		`<div data-type="exercise-question" data-is-answer-order-important="true" data-formats="multiple-choice test-format" data-id="176660">` +
			`<div data-type="question-stimulus">i'm a question stimulus</div>`,
		`<ol data-type="question-answers" type="a">`,
		`<li data-type="question-answer" data-correctness="0.0" data-id="668496">` +
			`<div data-type="answer-content">mean - i'm distractor</div>` +
			`<div data-type="answer-feedback">choice level feedback</div></li>`,
		`<li data-type="question-answer" data-correctness="0.0" data-id="668497">` +
			`<div data-type="answer-content">median - distractor</div></li>`,
		`<li data-type="question-answer" data-correctness="1.0" data-id="668498">`,
	}

	rest := got
	for _, want := range wantInOrder {
		i := strings.Index(rest, want)
		if i < 0 {
			t.Fatalf("Render() = %s\nmissing (or out of order) %s", got, want)
		}
		rest = rest[i+len(want):]
	}
}

func TestRenderMinimumSet(t *testing.T) {
	resp := decode(t, `{
		"total_count": 1,
		"items": [{
			"tags": ["type:practice", "all"],
			"version": 3,
			"nickname": "contmath98",
			"url": "test-url",
			"is_vocab": false,
			"stimulus_html": "",
			"questions": [{"stem_html": "question stem"}]
		}]
	}`)
	frag, err := Render(resp, nil)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	want := `<div xmlns="http://www.w3.org/1999/xhtml" data-type="injected-exercise" data-injected-from-nickname="contmath98" ` +
		`data-injected-from-version="3" data-injected-from-url="test-url" data-tags="type:practice all" data-is-vocab="false">` +
		`<div data-type="exercise-question" data-is-answer-order-important="" data-formats="">` +
		`<div data-type="question-stem">question stem</div></div></div>`
	if got := xml.Serialize(frag); got != want {
		t.Errorf("Render() =\n%s\nwant\n%s", got, want)
	}
}

func TestRenderEmptyItem(t *testing.T) {
	frag, err := Render(decode(t, `{"total_count": 1, "items": [{}]}`), nil)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	want := `<div xmlns="http://www.w3.org/1999/xhtml" data-type="injected-exercise" data-injected-from-nickname="" ` +
		`data-injected-from-version="" data-injected-from-url="" data-tags="" data-is-vocab=""></div>`
	if got := xml.Serialize(frag); got != want {
		t.Errorf("Render() =\n%s\nwant\n%s", got, want)
	}
}

func TestRenderNonsingular(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"two items", `{"total_count": 1, "items": [{"nickname": "abc"}, {"nickname": "def"}]}`},
		{"no items", `{"total_count": 1, "items": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Render(decode(t, tt.json), nil)
			var nerr *errors.NonsingularError
			if !errors.As(err, &nerr) {
				t.Fatalf("Render() error = %v, want NonsingularError", err)
			}
			if got, want := err.Error(), `exercise "items" array is nonsingular`; got != want {
				t.Errorf("Error() = %q, want %q", got, want)
			}
		})
	}
}

func TestScalar(t *testing.T) {
	var q Question
	if err := json.Unmarshal([]byte(`{"id": "q-7"}`), &q); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if q.ID != "q-7" {
		t.Errorf("ID = %q, want %q", q.ID, "q-7")
	}
	if err := json.Unmarshal([]byte(`{"id": null}`), &q); err != nil || q.ID != "" {
		t.Errorf("null id = %q, %v", q.ID, err)
	}
	if err := json.Unmarshal([]byte(`{"id": true}`), &q); err == nil {
		t.Error("boolean id should not decode")
	}
}
