// Command cnxepub assembles a book manifest into a single XHTML document,
// injecting exercises and converting their equations to MathML.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"github.com/therealmarv/cnx-epub/core/cache"
	"github.com/therealmarv/cnx-epub/core/epub"
	"github.com/therealmarv/cnx-epub/core/exercise"
	"github.com/therealmarv/cnx-epub/core/formatter"
	"github.com/therealmarv/cnx-epub/core/inject"
	"github.com/therealmarv/cnx-epub/core/mathml"
	"github.com/therealmarv/cnx-epub/core/merge"
	"github.com/therealmarv/cnx-epub/core/sqlite"
	"github.com/therealmarv/cnx-epub/core/tree"
	"github.com/therealmarv/cnx-epub/internal/config"
	"github.com/therealmarv/cnx-epub/internal/loader"
	"github.com/therealmarv/cnx-epub/internal/logging"
	"github.com/therealmarv/cnx-epub/internal/validation"
)

const version = "0.1.0"

// CLI defines the command-line interface for cnxepub.
var CLI struct {
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" help:"Log format (json, text)"`

	Assemble AssembleCmd `cmd:"" help:"Assemble a book manifest into XHTML"`
	Version  VersionCmd  `cmd:"" help:"Print version information"`
}

// AssembleCmd assembles a manifest. Flags left empty fall back to the
// CNXEPUB_* environment.
type AssembleCmd struct {
	Manifest    string `arg:"" help:"Path to the book manifest (JSON)" type:"existingfile"`
	Out         string `name:"out" short:"o" required:"" help:"Output directory" type:"path"`
	EPUB        string `name:"epub" help:"Also write an EPUB 3 package to this file" type:"path"`
	CSS         string `name:"css" help:"Stylesheet to embed in the EPUB" type:"existingfile"`
	ExerciseURL string `name:"exercise-url" help:"Exercise service URL template containing {itemCode}"`
	Match       string `name:"match" help:"Href fragment marking exercise links"`
	Token       string `name:"token" help:"Bearer token for the exercise service"`
	MathMLURL   string `name:"mathml-url" help:"TeX to MathML conversion service URL"`
	Cache       string `name:"cache" help:"Cache: memory, redis://..., sqlite:<path> or dir:<path>"`
	Concurrency int    `name:"concurrency" short:"j" help:"Concurrent service lookups per rule"`
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("cnxepub version %s\n", version)
	d := sqlite.Active()
	fmt.Printf("sqlite driver: %s (%s)\n", d.Name, d.Package)
	return nil
}

// settings merges the flags over the environment configuration.
func (c *AssembleCmd) settings() config.Config {
	cfg := config.Load()
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.ExerciseURL, c.ExerciseURL)
	override(&cfg.ExerciseMatch, c.Match)
	override(&cfg.ExerciseToken, c.Token)
	override(&cfg.MathMLURL, c.MathMLURL)
	override(&cfg.Cache, c.Cache)
	override(&cfg.LogLevel, CLI.LogLevel)
	override(&cfg.LogFormat, CLI.LogFormat)
	if c.Concurrency != 0 {
		cfg.Concurrency = c.Concurrency
	}
	return cfg
}

func (c *AssembleCmd) Run() error {
	cfg := c.settings()
	if err := initLogging(cfg); err != nil {
		return err
	}
	if err := validation.ValidatePath(c.Out); err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}
	ctx := logging.WithAssemblyID(context.Background(), logging.NewAssemblyID())
	if err := assemble(ctx, cfg, c.Manifest, c.Out, c.EPUB, c.CSS); err != nil {
		logging.ErrorContext(ctx, "assembly failed", "manifest", c.Manifest, "error", err.Error())
		return err
	}
	return nil
}

func initLogging(cfg config.Config) error {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		return err
	}
	logging.InitLogger(level, format)
	return nil
}

// assemble runs one assembly and writes its outputs.
func assemble(ctx context.Context, cfg config.Config, manifest, out, epubPath, cssPath string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	root, err := loader.Load(manifest)
	if err != nil {
		return err
	}
	logging.DebugContext(ctx, "loaded manifest", "path", manifest, "pages", len(tree.Pages(root)))

	rules, closeRules, err := buildRules(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRules()

	res, err := formatter.SingleHTML(ctx, root, formatter.Options{Rules: rules, Concurrency: cfg.Concurrency})
	if err != nil {
		return err
	}

	var book []byte
	if epubPath != "" {
		if book, err = buildEPUB(cssPath, res.Document); err != nil {
			return err
		}
	}
	undo, err := writeBook(out, merge.Filename(root), res)
	if err != nil {
		return err
	}
	if epubPath != "" {
		if err := os.WriteFile(epubPath, book, 0o644); err != nil {
			undo()
			return fmt.Errorf("writing EPUB: %w", err)
		}
	}
	logging.InfoContext(ctx, "wrote book", "out", out, "epub", epubPath)
	return nil
}

// buildRules wires the exercise rule to its services and cache. The
// returned function releases the cache.
func buildRules(ctx context.Context, cfg config.Config) ([]inject.Rule, func(), error) {
	store, err := cache.Open(ctx, cfg.Cache)
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() {
		if store == nil {
			return
		}
		if err := store.Close(); err != nil {
			logging.WarnContext(ctx, "closing cache", "error", err)
		}
	}

	// A loader without a store still collapses concurrent duplicate lookups.
	cached := cache.NewLoader(store)
	httpClient := logging.NewClient(cfg.HTTPTimeout)

	rc := exercise.RuleConfig{
		Match:  cfg.ExerciseMatch,
		Client: exercise.NewClient(cfg.ExerciseURL, cfg.ExerciseToken, httpClient, cached),
	}
	if cfg.MathMLURL != "" {
		rc.Converter = mathml.NewClient(cfg.MathMLURL, httpClient, cached)
	}
	return []inject.Rule{exercise.Rule(rc)}, closeStore, nil
}

// writeBook writes the book and its resources under out. Everything is
// staged next to out first and moved into place only once all files are
// written. The returned function removes what was moved.
func writeBook(out, filename string, res *formatter.Result) (func(), error) {
	if err := validation.ValidateFilename(filename); err != nil {
		return nil, err
	}
	parent := filepath.Dir(filepath.Clean(out))
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	staging, err := os.MkdirTemp(parent, ".cnxepub-*")
	if err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := os.WriteFile(filepath.Join(staging, filename), []byte(res.HTML), 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", filename, err)
	}
	files := []string{filename}

	if len(res.Document.Resources) > 0 {
		dir := filepath.Join(staging, merge.ResourceDir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating resource directory: %w", err)
		}
		for _, r := range res.Document.Resources {
			name := r.OutputName()
			if err := validation.ValidateFilename(name); err != nil {
				return nil, fmt.Errorf("resource %s: %w", r.ID, err)
			}
			if err := os.WriteFile(filepath.Join(dir, name), r.Data, 0o644); err != nil {
				return nil, fmt.Errorf("writing resource %s: %w", name, err)
			}
			files = append(files, filepath.Join(merge.ResourceDir, name))
		}
	}
	return commit(staging, out, files)
}

// commit moves files from staging into out. On failure the files already
// moved are removed again, and out itself when commit created it.
func commit(staging, out string, files []string) (func(), error) {
	_, statErr := os.Stat(out)
	created := os.IsNotExist(statErr)

	var moved []string
	undo := func() {
		if created {
			os.RemoveAll(out)
			return
		}
		for _, f := range moved {
			os.Remove(filepath.Join(out, f))
		}
	}
	for _, f := range files {
		dst := filepath.Join(out, f)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			undo()
			return nil, fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
		}
		if err := os.Rename(filepath.Join(staging, f), dst); err != nil {
			undo()
			return nil, fmt.Errorf("moving %s into place: %w", f, err)
		}
		moved = append(moved, f)
	}
	return undo, nil
}

// buildEPUB packages doc, with the stylesheet at cssPath when one is given.
func buildEPUB(cssPath string, doc *merge.MergedDocument) ([]byte, error) {
	book := epub.New(doc)
	if cssPath != "" {
		css, err := os.ReadFile(cssPath)
		if err != nil {
			return nil, fmt.Errorf("reading stylesheet: %w", err)
		}
		book.SetCSS(string(css))
	}
	return book.Build()
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("cnxepub"),
		kong.Description("Assemble content trees into single-file XHTML books"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
