// Command pdfsamples runs named walkthroughs of the library against an input
// PDF, or against a document generated from built-in Markdown, and writes
// the results to a directory.
//
//	pdfsamples -out samples_out               # every scenario
//	pdfsamples -in report.pdf redact text     # selected scenarios
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/NityaNandPandey/AndroidPDF/convert"
	"github.com/NityaNandPandey/AndroidPDF/internal/cli"
	"github.com/NityaNandPandey/AndroidPDF/observability"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
)

// env is what every scenario gets.
type env struct {
	in       string
	password string
	outDir   string
	log      observability.Logger
}

// source opens the input document, or generates the sample document when
// no input was given. Each call returns a fresh document.
func (e *env) source(ctx context.Context) (*pdf.Doc, error) {
	if e.in != "" {
		return cli.Open(e.in, e.password, cli.TerminalPrompt, e.log)
	}
	doc := pdf.New()
	opts := convert.Options{Outline: true, Compress: true, Logger: e.log}
	if err := convert.FromMarkdown(ctx, doc, []byte(sampleMarkdown), opts); err != nil {
		doc.Close()
		return nil, err
	}
	return doc, nil
}

func (e *env) path(name string) string { return filepath.Join(e.outDir, name) }

func (e *env) save(doc *pdf.Doc, name string, flags pdf.Flags) error {
	if err := doc.Save(e.path(name), flags); err != nil {
		return err
	}
	fmt.Printf("  wrote %s\n", e.path(name))
	return nil
}

func main() {
	var e env
	list := flag.Bool("list", false, "List scenarios and exit")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.StringVar(&e.in, "in", "", "Input PDF (default: generated sample)")
	flag.StringVar(&e.password, "password", "", "Password of the input PDF")
	flag.StringVar(&e.outDir, "out", "samples_out", "Output directory")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: pdfsamples [flags] [scenario...]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *list {
		for _, name := range scenarioNames() {
			fmt.Printf("%-12s %s\n", name, scenarios[name].about)
		}
		return
	}
	names := flag.Args()
	if len(names) == 0 {
		names = scenarioNames()
	}
	for _, n := range names {
		if _, ok := scenarios[n]; !ok {
			fmt.Fprintf(os.Stderr, "pdfsamples: unknown scenario %q (try -list)\n", n)
			os.Exit(2)
		}
	}
	e.log = cli.NewLogger(*verbose)
	if err := os.MkdirAll(e.outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "pdfsamples: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	var failed []string
	for _, n := range names {
		if ctx.Err() != nil {
			break
		}
		fmt.Printf("%s:\n", n)
		start := time.Now()
		if err := scenarios[n].run(ctx, &e); err != nil {
			fmt.Printf("  FAILED: %v\n", err)
			failed = append(failed, n)
			continue
		}
		fmt.Printf("  ok (%s)\n", time.Since(start).Round(time.Millisecond))
	}
	if len(failed) > 0 {
		fmt.Fprintf(os.Stderr, "pdfsamples: failed: %s\n", strings.Join(failed, ", "))
		os.Exit(1)
	}
}

func scenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for n := range scenarios {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

const sampleMarkdown = `# Sample Report

This document was generated from Markdown. It is used as the input of the
sample scenarios when no PDF is given. Contact **sales@example.com** or visit
[the website](https://example.com/) for details.

## Figures

- Revenue grew in every quarter.
- Costs stayed *flat*.
- Confidential: account 4417-1234-5678-9113.

The ratio is $$\frac{a+b}{c}$$

## Notes

` + "```" + `
total = a + b
` + "```" + `

> Quoted text is indented.
`
