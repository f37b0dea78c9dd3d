// Package render prints judge data for the terminal.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"webcoder/internal/judge/aggregate"
	"webcoder/internal/judge/model"
	"webcoder/internal/judge/verdict"
	pkgerrors "webcoder/pkg/errors"

	"github.com/fatih/color"
)

// Options tunes a Renderer.
type Options struct {
	NoColor bool
	Pretty  bool
	// Language picks the problem title translation.
	Language string
}

// Renderer writes to out. It is safe for concurrent use; each call writes
// one complete block.
type Renderer struct {
	mu     sync.Mutex
	out    io.Writer
	pretty bool
	lang   string

	ok      *color.Color
	judging *color.Color
	fail    *color.Color
	compile *color.Color
	broken  *color.Color
	dim     *color.Color
}

// New creates a Renderer.
func New(out io.Writer, opts Options) *Renderer {
	if opts.Language == "" {
		opts.Language = "en"
	}
	r := &Renderer{
		out:     out,
		pretty:  opts.Pretty,
		lang:    opts.Language,
		ok:      color.New(color.FgGreen, color.Bold),
		judging: color.New(color.FgYellow),
		fail:    color.New(color.FgRed, color.Bold),
		compile: color.New(color.FgMagenta, color.Bold),
		broken:  color.New(color.FgHiRed, color.Bold, color.Underline),
		dim:     color.New(color.Faint),
	}
	for _, c := range []*color.Color{r.ok, r.judging, r.fail, r.compile, r.broken, r.dim} {
		if opts.NoColor {
			c.DisableColor()
		} else {
			c.EnableColor()
		}
	}
	return r
}

// ShowsActualOutput reports whether a test's program output is worth
// showing for v.
func ShowsActualOutput(v verdict.Verdict) bool {
	return v == verdict.WrongAnswer || v == verdict.RuntimeError
}

// ShowsErrorOutput reports whether a test's error stream is worth showing
// for v.
func ShowsErrorOutput(v verdict.Verdict) bool {
	switch v {
	case verdict.RuntimeError, verdict.CompileError, verdict.InternalError:
		return true
	}
	return false
}

// Verdict colors label according to the verdict it stands for.
func (r *Renderer) Verdict(v verdict.Verdict, label string) string {
	switch {
	case v.IsInFlight():
		return r.judging.Sprint(label)
	case v == verdict.Accepted:
		return r.ok.Sprint(label)
	case v == verdict.CompileError:
		return r.compile.Sprint(label)
	case v == verdict.InternalError || v == verdict.Unknown:
		return r.broken.Sprint(label)
	default:
		return r.fail.Sprint(label)
	}
}

// Snapshot prints one submission snapshot with its test table.
func (r *Renderer) Snapshot(s aggregate.Snapshot) {
	var b strings.Builder
	r.writeSnapshot(&b, s)
	r.write(b.String())
}

// Update prints a compact progress line for a watched submission, followed
// by the full snapshot once it is terminal.
func (r *Renderer) Update(s aggregate.Snapshot) {
	if s.IsTerminal {
		r.Snapshot(s)
		return
	}
	line := fmt.Sprintf("[%s] %s  tests %d", s.SubmissionID, r.Verdict(s.Verdict, s.DisplayVerdict), s.Summary.Total)
	if s.Summary.Expected > 0 {
		line += fmt.Sprintf("/%d", s.Summary.Expected)
	}
	r.write(line + r.dim.Sprintf("  (poll #%d)", s.Attempt) + "\n")
}

// Failure prints an error for a submission. last is the last snapshot known
// to be good and may be nil.
func (r *Renderer) Failure(id model.SubmissionID, last *aggregate.Snapshot, err error) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s\n", id, r.fail.Sprint("error:"), describe(err))
	if last != nil {
		fmt.Fprintf(&b, "  last known: %s (poll #%d, %s)\n",
			r.Verdict(last.Verdict, last.DisplayVerdict), last.Attempt, last.FetchedAt.Format("15:04:05"))
	}
	r.write(b.String())
}

// Error prints a command failure.
func (r *Renderer) Error(err error) {
	r.write(r.fail.Sprint("error:") + " " + describe(err) + "\n")
}

// Problem prints a problem summary.
func (r *Renderer) Problem(p model.Problem) {
	var b strings.Builder
	fmt.Fprintf(&b, "Problem %s  %s\n", p.ID, p.Title(r.lang))
	if p.Difficulty != "" {
		fmt.Fprintf(&b, "  difficulty: %s\n", p.Difficulty)
	}
	if len(p.AllowedLanguages) > 0 {
		fmt.Fprintf(&b, "  languages:  %s\n", strings.Join(p.AllowedLanguages, ", "))
	}
	fmt.Fprintf(&b, "  tests:      %d\n", len(p.TestCases))
	r.write(b.String())
}

// Problems prints one line per problem.
func (r *Renderer) Problems(list []model.Problem) {
	if len(list) == 0 {
		r.write("no problems\n")
		return
	}
	var b strings.Builder
	for _, p := range list {
		fmt.Fprintf(&b, "%-6s %-40s %s\n", p.ID, p.Title(r.lang), r.dim.Sprint(p.Difficulty))
	}
	r.write(b.String())
}

// History prints one line per stored snapshot.
func (r *Renderer) History(list []aggregate.Snapshot) {
	if len(list) == 0 {
		r.write("no tracked submissions\n")
		return
	}
	var b strings.Builder
	for _, s := range list {
		fmt.Fprintf(&b, "%-8s problem %-6s %-10s %s\n",
			s.SubmissionID, s.ProblemID, s.Language, r.Verdict(s.Verdict, s.DisplayVerdict))
	}
	r.write(b.String())
}

// JSON prints v as JSON, indented when the renderer is pretty.
func (r *Renderer) JSON(v interface{}) {
	var (
		data []byte
		err  error
	)
	if r.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		r.Error(err)
		return
	}
	r.write(string(data) + "\n")
}

// Line prints a formatted line.
func (r *Renderer) Line(format string, args ...interface{}) {
	r.write(fmt.Sprintf(format, args...) + "\n")
}

func (r *Renderer) write(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = io.WriteString(r.out, s)
}

func (r *Renderer) writeSnapshot(b *strings.Builder, s aggregate.Snapshot) {
	fmt.Fprintf(b, "Submission %s  %s\n", s.SubmissionID, r.Verdict(s.Verdict, s.DisplayVerdict))
	title := s.ProblemTitle
	if title == "" {
		title = "-"
	}
	fmt.Fprintf(b, "  problem:  %s (%s)\n", s.ProblemID, title)
	fmt.Fprintf(b, "  language: %s\n", s.Language)
	if s.Score != nil {
		fmt.Fprintf(b, "  score:    %g\n", *s.Score)
	}
	if s.ExecutionTimeMs != nil {
		fmt.Fprintf(b, "  time:     %d ms\n", *s.ExecutionTimeMs)
	}
	if s.MemoryUsedKb != nil {
		fmt.Fprintf(b, "  memory:   %d KB\n", *s.MemoryUsedKb)
	}
	tests := fmt.Sprintf("%d/%d passed", s.Summary.Passed, s.Summary.Total)
	if s.Summary.Expected > 0 {
		tests += fmt.Sprintf(" (%d expected)", s.Summary.Expected)
	}
	fmt.Fprintf(b, "  tests:    %s\n", tests)
	if s.IsTerminal && s.Outcome != aggregate.OutcomeComplete {
		fmt.Fprintf(b, "  outcome:  %s\n", strings.ReplaceAll(string(s.Outcome), "_", " "))
	}
	if s.DetailedFeedback != "" {
		fmt.Fprintf(b, "  feedback: %s\n", s.DetailedFeedback)
	}

	for i, t := range s.Tests {
		label := t.Verdict.Short()
		if t.Verdict == verdict.Unknown && t.RawVerdict != "" {
			label = t.RawVerdict
		}
		num := i + 1
		if t.Order != nil {
			num = *t.Order
		}
		sample := ""
		if t.IsSample {
			sample = r.dim.Sprint(" sample")
		}
		fmt.Fprintf(b, "  #%-3d %s%s%s\n", num, r.Verdict(t.Verdict, fmt.Sprintf("%-4s", label)), usage(t), sample)
		if ShowsActualOutput(t.Verdict) && t.ActualOutput != "" {
			fmt.Fprintf(b, "       output: %s\n", oneLine(t.ActualOutput))
		}
		if ShowsErrorOutput(t.Verdict) && t.ErrorOutput != "" {
			fmt.Fprintf(b, "       stderr: %s\n", oneLine(t.ErrorOutput))
		}
	}
}

func usage(t aggregate.TestResultView) string {
	var parts []string
	if t.ExecutionTimeMs != nil {
		parts = append(parts, fmt.Sprintf("%d ms", *t.ExecutionTimeMs))
	}
	if t.MemoryUsedKb != nil {
		parts = append(parts, fmt.Sprintf("%d KB", *t.MemoryUsedKb))
	}
	if len(parts) == 0 {
		return ""
	}
	return "  " + strings.Join(parts, ", ")
}

func oneLine(s string) string {
	return strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", `\n`)
}

func describe(err error) string {
	if err == nil {
		return ""
	}
	e := pkgerrors.GetError(err)
	if e == nil {
		return err.Error()
	}
	msg := e.Error()
	if e.Err != nil && e.Err.Error() != msg {
		msg += ": " + e.Err.Error()
	}
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, fmt.Sprintf("%s=%v", k, e.Details[k]))
		}
		msg += " (" + strings.Join(pairs, ", ") + ")"
	}
	return msg
}
