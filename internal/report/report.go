// Package report renders finished test sessions for the terminal or as JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/gotestctl/internal/classify"
	"github.com/fyrsmithlabs/gotestctl/internal/decision"
	"github.com/fyrsmithlabs/gotestctl/internal/session"
)

// Format selects the output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// styles are bound to one renderer so the color profile follows the writer.
type styles struct {
	header  lipgloss.Style
	section lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	dim     lipgloss.Style
	healthy lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		header: r.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1),
		section: r.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true),
		label:   r.NewStyle().Foreground(lipgloss.Color("45")),
		value:   r.NewStyle().Foreground(lipgloss.Color("231")).Bold(true),
		dim:     r.NewStyle().Foreground(lipgloss.Color("245")),
		healthy: r.NewStyle().Foreground(lipgloss.Color("46")).Bold(true),
		warning: r.NewStyle().Foreground(lipgloss.Color("226")).Bold(true),
		failure: r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
}

// Printer writes session reports.
type Printer struct {
	w      io.Writer
	format Format
	styles styles
}

// NewPrinter creates a printer for w. Colors are used only when w is a terminal.
func NewPrinter(w io.Writer, format Format) *Printer {
	if format == "" {
		format = FormatText
	}
	return &Printer{
		w:      w,
		format: format,
		styles: newStyles(lipgloss.NewRenderer(w)),
	}
}

// Print writes rep in the printer's format.
func (p *Printer) Print(rep *session.Report) error {
	if rep == nil {
		return fmt.Errorf("nil report")
	}
	switch p.format {
	case FormatJSON:
		return WriteJSON(p.w, rep)
	case FormatText:
		_, err := io.WriteString(p.w, p.Render(rep))
		return err
	default:
		return fmt.Errorf("unknown report format %q", p.format)
	}
}

// Render returns the styled text form of rep.
func (p *Printer) Render(rep *session.Report) string {
	s := p.styles
	var b strings.Builder

	b.WriteString(s.header.Render("gotestctl") + " " + s.dim.Render("session "+rep.SessionID) + "\n\n")

	b.WriteString(s.label.Render("Status:   ") + p.statusBadge(rep) + "\n")
	b.WriteString(s.label.Render("Exit:     ") + s.value.Render(fmt.Sprintf("%d", rep.ExitCode)) + "\n")
	if rep.Reason != "" {
		b.WriteString(s.label.Render("Reason:   ") + s.value.Render(rep.Reason) + "\n")
	}
	b.WriteString(s.label.Render("Duration: ") + s.value.Render(FormatDuration(rep.Duration)) + "\n")

	if len(rep.Rounds) > 0 {
		b.WriteString("\n" + s.section.Render("┃ Rounds") + "\n")
		for _, round := range rep.Rounds {
			p.renderRound(&b, round)
		}
	}

	if len(rep.Fallbacks) > 0 {
		b.WriteString("\n" + s.section.Render("┃ Fallbacks") + "\n")
		for i, trig := range rep.Fallbacks {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, s.warning.Render(trig.String()))
		}
	}

	if len(rep.Errors) > 0 {
		b.WriteString("\n" + s.section.Render("┃ Errors") + "\n")
		for _, rec := range rep.Errors {
			p.renderError(&b, rec)
		}
	}

	return b.String()
}

func (p *Printer) statusBadge(rep *session.Report) string {
	switch rep.Status {
	case session.StatusCompleted:
		return p.styles.healthy.Render("✓ " + string(rep.Status))
	case session.StatusStopped:
		return p.styles.failure.Render("✗ " + string(rep.Status))
	default:
		return p.styles.warning.Render("⚠ " + string(rep.Status))
	}
}

func (p *Printer) renderRound(b *strings.Builder, round session.RoundReport) {
	s := p.styles

	failed := 0
	for _, u := range round.Units {
		if u.Classification != classify.KindSuccess {
			failed++
		}
	}

	fmt.Fprintf(b, "  %d. %s %s\n",
		round.Number,
		s.value.Render(round.Name),
		s.dim.Render(fmt.Sprintf("%d units, %d failed, %s", len(round.Units), failed, FormatDuration(round.Duration))))

	for _, u := range round.Units {
		if u.Classification == classify.KindSuccess {
			continue
		}
		line := fmt.Sprintf("exit %d %s", u.ExitCode, u.Classification)
		if u.Decision != "" {
			line += " → " + string(u.Decision)
		}
		style := s.failure
		if u.Decision == decision.KindContinue {
			style = s.warning
		}
		fmt.Fprintf(b, "     %s %s %s\n", style.Render("✗"), strings.Join(u.Targets, " "), s.dim.Render(line))
	}
}

func (p *Printer) renderError(b *strings.Builder, rec decision.ErrorRecord) {
	s := p.styles
	line := fmt.Sprintf("  %s %s %s",
		s.dim.Render(rec.Timestamp.Format(time.TimeOnly)),
		rec.Target,
		s.failure.Render(fmt.Sprintf("%s (exit %d)", rec.ErrorType, rec.ExitCode)))
	if rec.Message != "" {
		line += " " + s.dim.Render(rec.Message)
	}
	b.WriteString(line + "\n")
}

// document is the JSON form of a report. Fallback triggers are written as
// their descriptions.
type document struct {
	*session.Report
	Fallbacks []string `json:"fallbacks"`
}

// WriteJSON writes rep as indented JSON.
func WriteJSON(w io.Writer, rep *session.Report) error {
	doc := document{Report: rep, Fallbacks: make([]string, 0, len(rep.Fallbacks))}
	for _, trig := range rep.Fallbacks {
		doc.Fallbacks = append(doc.Fallbacks, trig.String())
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

// FormatDuration rounds d for display.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}
