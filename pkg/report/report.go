// Package report renders a pass Report for people and for the log file.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/paulschiretz/pgl-mirror/pkg/pathsync"
	"github.com/paulschiretz/pgl-mirror/pkg/plog"
)

// Reporter writes the console rendering of a report to out and one structured
// line per action to the plog sink.
type Reporter struct {
	out     io.Writer
	summary bool

	header  lipgloss.Style
	label   lipgloss.Style
	faint   lipgloss.Style
	created lipgloss.Style
	updated lipgloss.Style
	removed lipgloss.Style
	failed  lipgloss.Style
}

// New creates a Reporter for out. Colors are used only when out is a terminal.
// With summaryOnly set the per-action console detail is left out; the log sink
// always gets every action.
func New(out io.Writer, summaryOnly bool) *Reporter {
	r := lipgloss.NewRenderer(out)
	return &Reporter{
		out:     out,
		summary: summaryOnly,
		header:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		label:   r.NewStyle().Foreground(lipgloss.Color("248")),
		faint:   r.NewStyle().Foreground(lipgloss.Color("242")),
		created: r.NewStyle().Foreground(lipgloss.Color("10")),
		updated: r.NewStyle().Foreground(lipgloss.Color("11")),
		removed: r.NewStyle().Foreground(lipgloss.Color("9")),
		failed:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
}

// Render writes the summary counts first, then the details of every action.
func (r *Reporter) Render(rep *pathsync.Report) error {
	r.logToSink(rep)

	title := fmt.Sprintf("Pass %s  %s -> %s", shortID(rep.PassID), rep.SourceRoot, rep.ReplicaRoot)
	if rep.Interrupted {
		title += "  (interrupted)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", r.header.Render(title))
	fmt.Fprintf(&b, "%s %d updated, %d created, %d removed\n", r.label.Render("Folders:"),
		len(rep.FoldersUpdated), len(rep.FoldersCreated), len(rep.FoldersRemoved))
	fmt.Fprintf(&b, "%s %d updated, %d created, %d removed\n", r.label.Render("Files:  "),
		len(rep.FilesUpdated), len(rep.FilesCreated), len(rep.FilesRemoved))
	fmt.Fprintf(&b, "%s %s in %s\n", r.label.Render("Written:"),
		humanize.IBytes(uint64(rep.BytesWritten)), rep.Duration.Round(time.Millisecond))
	if len(rep.Errors) > 0 {
		fmt.Fprintf(&b, "%s\n", r.failed.Render(fmt.Sprintf("Errors: %d", len(rep.Errors))))
	}

	switch {
	case rep.IsEmpty() && rep.Interrupted:
		fmt.Fprintf(&b, "%s\n", r.faint.Render("Stopped before any change."))
	case rep.IsEmpty():
		fmt.Fprintf(&b, "%s\n", r.faint.Render("Replica is up to date."))
	case !r.summary:
		for _, a := range rep.Actions() {
			r.renderAction(&b, a)
		}
		for _, err := range rep.Errors {
			fmt.Fprintf(&b, "%s %v\n", r.failed.Render("error"), err)
		}
	}

	_, err := io.WriteString(r.out, b.String())
	return err
}

func (r *Reporter) renderAction(b *strings.Builder, a pathsync.ActionRecord) {
	style := r.created
	switch a.Method() {
	case pathsync.ReasonModified.String():
		style = r.updated
	case pathsync.MethodRemoved:
		style = r.removed
	}
	fmt.Fprintf(b, "%s %s\n", style.Render(fmt.Sprintf("%-6s %-8s", a.Kind(), a.Method())), a.Path())

	switch rec := a.(type) {
	case pathsync.Copied:
		fmt.Fprintf(b, "  %s %s\n", r.faint.Render("source: "), rec.SourcePath)
		fmt.Fprintf(b, "  %s %s\n", r.faint.Render("replica:"), rec.ReplicaPath)
	case pathsync.Removed:
		fmt.Fprintf(b, "  %s %s\n", r.faint.Render("replica:"), rec.ReplicaPath)
	}
}

// logToSink writes the pass summary and one line per action to the log file.
func (r *Reporter) logToSink(rep *pathsync.Report) {
	sink := plog.Sink()
	sink.Info("Pass summary",
		"pass", rep.PassID,
		"source", rep.SourceRoot,
		"replica", rep.ReplicaRoot,
		"folders_updated", len(rep.FoldersUpdated),
		"folders_created", len(rep.FoldersCreated),
		"folders_removed", len(rep.FoldersRemoved),
		"files_updated", len(rep.FilesUpdated),
		"files_created", len(rep.FilesCreated),
		"files_removed", len(rep.FilesRemoved),
		"bytes_written", rep.BytesWritten,
		"errors", len(rep.Errors),
		"duration", rep.Duration.Round(time.Millisecond),
		"interrupted", rep.Interrupted,
	)
	for _, a := range rep.Actions() {
		args := []any{"pass", rep.PassID, "kind", a.Kind().String(), "path", a.Path()}
		switch rec := a.(type) {
		case pathsync.Copied:
			args = append(args, "source_path", rec.SourcePath, "replica_path", rec.ReplicaPath)
		case pathsync.Removed:
			args = append(args, "replica_path", rec.ReplicaPath)
		}
		args = append(args, "method", a.Method())
		sink.Info("Action", args...)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
