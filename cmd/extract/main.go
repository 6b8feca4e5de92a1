package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/wudi/pdfedit/extractor"
	"github.com/wudi/pdfedit/model"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/scripting"
	"github.com/wudi/pdfedit/sections"
)

type options struct {
	pdfPath  string
	runs     bool
	sections bool
	fonts    bool
	merge    bool
	altTitle bool
	script   string
	verbose  bool
}

type output struct {
	DocumentID string                `json:"documentId"`
	Pages      []model.Page          `json:"pages,omitempty"`
	Sections   []model.ResumeSection `json:"sections,omitempty"`
	Fonts      []model.Font          `json:"fonts,omitempty"`
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "extract: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "extract: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: go run ./cmd/extract [flags] <pdf>\n")
		flag.PrintDefaults()
	}
	flag.BoolVar(&opts.runs, "runs", false, "Emit text runs per page")
	flag.BoolVar(&opts.sections, "sections", false, "Emit résumé sections")
	flag.BoolVar(&opts.fonts, "fonts", false, "Emit the font catalog")
	flag.BoolVar(&opts.merge, "merge", false, "Merge sections of the same type")
	flag.BoolVar(&opts.altTitle, "alt-titles", false, "Keep merged section titles as alternates")
	flag.StringVar(&opts.script, "classify", "", "JavaScript file defining classify(title, words)")
	flag.BoolVar(&opts.verbose, "v", false, "Log parsing to stderr")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return options{}, fmt.Errorf("missing pdf path")
	}
	opts.pdfPath = flag.Arg(0)
	if !opts.runs && !opts.sections && !opts.fonts {
		opts.runs, opts.sections, opts.fonts = true, true, true
	}
	return opts, nil
}

func run(opts options) error {
	data, err := os.ReadFile(opts.pdfPath)
	if err != nil {
		return fmt.Errorf("open pdf: %w", err)
	}
	cfg := extractor.DefaultConfig()
	if opts.verbose {
		cfg.Logger = observability.NewSlogLogger(observability.NewHandlerLogger(os.Stderr, "debug", "text"))
	}
	res, err := extractor.New(cfg).Parse(context.Background(), data)
	if err != nil {
		return fmt.Errorf("parse pdf: %w", err)
	}

	out := output{DocumentID: res.Fingerprint}
	if opts.runs {
		out.Pages = res.Pages
	}
	if opts.fonts {
		out.Fonts = res.Fonts
	}
	if opts.sections {
		var secOpts sections.Options
		if opts.script != "" {
			c, err := scripting.LoadClassifier(opts.script, scripting.ClassifierOptions{Logger: cfg.Logger})
			if err != nil {
				return err
			}
			secOpts.Classifier = c
		}
		var runs []model.TextRun
		for _, p := range res.Pages {
			runs = append(runs, p.TextRuns...)
		}
		out.Sections = sections.ExtractWith(runs, secOpts)
		if opts.merge {
			out.Sections = sections.MergeByTypeWith(out.Sections, sections.MergeOptions{KeepTitleVariants: opts.altTitle})
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
