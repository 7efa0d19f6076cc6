package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dyike/CortexDash/internal/export"
	"github.com/dyike/CortexDash/internal/pipeline"
	"github.com/dyike/CortexDash/internal/session"
	"github.com/dyike/CortexDash/models"
)

type headlessOptions struct {
	OutDir  string
	Timeout time.Duration
	// Mode and Language override the view when set.
	Mode     models.DisplayMode
	Language models.Language
}

// progressPrinter writes one line per agent status change.
type progressPrinter struct {
	out  io.Writer
	last map[string]models.AgentStatus
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out, last: make(map[string]models.AgentStatus)}
}

func (p *progressPrinter) update(st pipeline.State) {
	for _, team := range st.Teams {
		for _, a := range team.Agents {
			prev, seen := p.last[a.Name]
			p.last[a.Name] = a.Status
			if a.Status == prev || (!seen && a.Status == models.StatusPending) {
				continue
			}
			fmt.Fprintln(p.out, renderTransition(a.Name, a.Status))
		}
	}
}

// runHeadless starts req, prints progress until the run ends and then
// prints and optionally exports the report.
func runHeadless(ctx context.Context, sess *session.Session, req models.StartRequest, opts headlessOptions, out io.Writer) (pipeline.State, error) {
	changes, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	sent, err := sess.StartRun(req)
	if err != nil {
		return pipeline.State{}, err
	}
	fmt.Fprintf(out, "🚀 Starting analysis for %s on %s (run %s)\n", sent.Ticker, sent.AnalysisDate, sent.RunID)

	printer := newProgressPrinter(out)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				printer.update(sess.Snapshot().State)
			}
		}
	}()

	waitCtx, cancel := ctx, context.CancelFunc(func() {})
	if opts.Timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
	}
	st, waitErr := sess.WaitRun(waitCtx, sent.RunID)
	cancel()
	if errors.Is(waitErr, context.DeadlineExceeded) || errors.Is(waitErr, context.Canceled) {
		if err := sess.StopRun(); err != nil {
			fmt.Fprintln(out, warnStyle.Render("stop failed: "+err.Error()))
		}
		st = sess.Snapshot().State
	}

	close(done)
	wg.Wait()
	printer.update(st)

	if opts.Mode != "" {
		sess.SetDisplayMode(opts.Mode)
	}
	if opts.Language != "" {
		sess.SetLanguage(opts.Language)
	}
	snap := sess.Snapshot()
	meta := export.MetaOf(st, snap.Mode, snap.Language)
	entries := sess.View()

	fmt.Fprintln(out)
	fmt.Fprintln(out, export.Markdown(meta, entries))
	fmt.Fprintln(out, renderOutcome(st.Run.Outcome, st.Decision))

	if opts.OutDir != "" {
		md, html, err := export.WriteFiles(opts.OutDir, meta, entries)
		if err != nil {
			return st, err
		}
		fmt.Fprintf(out, "📄 %s\n📄 %s\n", md, html)
	}

	switch {
	case waitErr != nil && errors.Is(waitErr, context.DeadlineExceeded):
		return st, fmt.Errorf("run %s timed out after %s", sent.RunID, opts.Timeout)
	case waitErr != nil:
		return st, waitErr
	case st.Run.Outcome == models.OutcomeFailed:
		return st, fmt.Errorf("run %s failed", sent.RunID)
	}
	return st, nil
}
