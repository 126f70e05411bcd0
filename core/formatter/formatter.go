// Package formatter assembles a Content Tree into a single XHTML document.
package formatter

import (
	"context"
	"time"

	"github.com/therealmarv/cnx-epub/core/inject"
	"github.com/therealmarv/cnx-epub/core/merge"
	"github.com/therealmarv/cnx-epub/core/tree"
	"github.com/therealmarv/cnx-epub/internal/logging"
)

// Options configures SingleHTML.
type Options struct {
	// Rules run in order over the merged document.
	Rules []inject.Rule

	// Concurrency bounds concurrent transforms per rule; zero uses the default.
	Concurrency int
}

// Result is an assembled book.
type Result struct {
	Document *merge.MergedDocument

	// HTML is the serialized document, DOCTYPE included.
	HTML string
}

// SingleHTML merges root, runs the injection rules and serializes the
// result. Any error leaves no document: a partially injected book is never
// returned.
func SingleHTML(ctx context.Context, root tree.Node, opts Options) (*Result, error) {
	start := time.Now()

	merged, err := merge.Merge(root)
	if err != nil {
		return nil, err
	}
	logging.DebugContext(ctx, "merged content tree",
		"pages", len(merged.Pages),
		"resources", len(merged.Resources),
	)

	if len(opts.Rules) > 0 {
		pipeline := inject.New(opts.Rules...)
		if opts.Concurrency > 0 {
			pipeline.Concurrency = opts.Concurrency
		}
		if err := pipeline.Run(ctx, merged.DOM); err != nil {
			return nil, err
		}
	}

	html := merged.Serialize()
	logging.InfoContext(ctx, "assembled book",
		"title", merged.Title,
		"pages", len(merged.Pages),
		"bytes", len(html),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &Result{Document: merged, HTML: html}, nil
}
