// Command pdftokens prints the lexical tokens of a PDF file, or of the
// decoded content stream of one page.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/NityaNandPandey/AndroidPDF/internal/cli"
	"github.com/NityaNandPandey/AndroidPDF/scanner"
)

func main() {
	page := flag.Int("page", 0, "Tokenize the content of this page instead of the file")
	password := flag.String("password", "", "Password to open encrypted PDFs")
	limit := flag.Int("limit", 200000, "Stop after this many tokens")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: pdftokens [flags] <pdf>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(flag.Arg(0), *page, *password, *limit); err != nil {
		fmt.Fprintf(os.Stderr, "pdftokens: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, page int, password string, limit int) error {
	var data []byte
	cfg := scanner.Config{}
	if page > 0 {
		doc, err := cli.Open(path, password, cli.TerminalPrompt, cli.NewLogger(false))
		if err != nil {
			return err
		}
		defer doc.Close()
		p := doc.Page(page)
		if p == nil {
			return fmt.Errorf("page %d out of range 1-%d", page, doc.PageCount())
		}
		if data, err = p.ContentBytes(context.Background()); err != nil {
			return err
		}
		cfg.Content = true
	} else {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return err
		}
	}

	s := scanner.NewBytes(data, cfg)
	for i := 0; i < limit; i++ {
		tok, err := s.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("offset %d: %w", s.Position(), err)
		}
		fmt.Printf("%d\t%s\t%s\n", tok.Pos, tok.Type, value(tok))
		if tok.Type == scanner.TokenKeyword && tok.Str == "stream" && !cfg.Content {
			// Stream data is not tokenized.
			end := bytes.Index(data[s.Position():], []byte("endstream"))
			if end < 0 {
				return nil
			}
			if err := s.Seek(s.Position() + int64(end)); err != nil {
				return err
			}
		}
	}
	return nil
}

func value(t scanner.Token) string {
	switch t.Type {
	case scanner.TokenName:
		return "/" + t.Str
	case scanner.TokenKeyword:
		return t.Str
	case scanner.TokenString:
		if t.Hex {
			return fmt.Sprintf("<%x>", t.Bytes)
		}
		return fmt.Sprintf("%q", t.Bytes)
	case scanner.TokenNumber:
		if t.IsInt {
			return fmt.Sprint(t.Int)
		}
		return fmt.Sprint(t.Float)
	case scanner.TokenBoolean:
		return fmt.Sprint(t.Bool)
	}
	return ""
}
