package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dubedition/guidecore/internal/guide"
	"github.com/dubedition/guidecore/internal/search"
)

// PlainSession is the line-oriented search fallback for CI and pipes. One
// query per line; commands start with a colon.
type PlainSession struct {
	engine *guide.Engine
	in     io.Reader
	out    io.Writer
}

// NewPlainSession creates a plain session reading queries from cfg.Input.
func NewPlainSession(engine *guide.Engine, cfg Config) *PlainSession {
	in := cfg.Input
	if in == nil {
		in = os.Stdin
	}
	return &PlainSession{
		engine: engine,
		in:     in,
		out:    cfg.Output,
	}
}

// Run implements Session. It reads queries until EOF, :quit, or context
// cancellation.
func (s *PlainSession) Run(ctx context.Context) error {
	_, _ = fmt.Fprintln(s.out, "GuideCore search. One query per line. Commands: :load  :status  :quit")

	scanner := bufio.NewScanner(s.in)
	_, _ = fmt.Fprint(s.out, "> ")
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case ":quit", ":q":
			return nil
		case ":load":
			s.loadAll(ctx)
		case ":status":
			info := NewStatusInfo(s.engine.Status())
			_ = NewStatusRenderer(s.out, true).Render(info)
		default:
			s.printOutcome(s.engine.Search(line))
		}

		_, _ = fmt.Fprint(s.out, "> ")
	}
	return scanner.Err()
}

// loadAll loads every pending fragment and reports per-record failures.
func (s *PlainSession) loadAll(ctx context.Context) {
	batch := s.engine.LoadAll(ctx)
	_, _ = fmt.Fprintf(s.out, "Loaded %d fragments, %d failed, %d already loaded\n",
		batch.Loaded, batch.Failed, batch.Skipped)

	ids := make([]string, 0, len(batch.Errors))
	for id := range batch.Errors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		_, _ = fmt.Fprintf(s.out, "  %s: %s\n", id, batch.Errors[id])
	}
}

// printOutcome writes a ranked result list, or the state message when
// there is nothing to rank.
func (s *PlainSession) printOutcome(outcome search.Outcome) {
	if msg := outcome.Message(); msg != "" {
		_, _ = fmt.Fprintln(s.out, msg)
		return
	}

	if outcome.Total > len(outcome.Results) {
		_, _ = fmt.Fprintf(s.out, "%d results for %q (showing %d)\n",
			outcome.Total, outcome.Query, len(outcome.Results))
	} else {
		_, _ = fmt.Fprintf(s.out, "%d result(s) for %q\n", outcome.Total, outcome.Query)
	}

	for i, r := range outcome.Results {
		title := r.Unit.Title
		if title == "" {
			title = r.Unit.ID
		}
		tag := ""
		if r.Unit.Kind == search.KindHeading {
			tag = " [jump-to]"
		}

		_, _ = fmt.Fprintf(s.out, "%2d. %s%s  (#%s, score %d)\n", i+1, title, tag, r.Unit.ID, r.Score)
		if r.Snippet != "" {
			_, _ = fmt.Fprintf(s.out, "    %s\n", r.Snippet)
		}
	}
}

// Ensure PlainSession implements Session
var _ Session = (*PlainSession)(nil)
