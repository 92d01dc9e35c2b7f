package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/armorclaw/pitchscope/pkg/errors"
	"github.com/armorclaw/pitchscope/pkg/pitch"
)

// printer writes command output, styled when it goes to a terminal
type printer struct {
	w      io.Writer
	styled bool

	title lipgloss.Style
	note  lipgloss.Style
	dim   lipgloss.Style
	good  lipgloss.Style
	warn  lipgloss.Style
	bad   lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}

	r := lipgloss.NewRenderer(w)
	return &printer{
		w:      w,
		styled: styled,
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		note:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("13")),
		dim:    r.NewStyle().Faint(true),
		good:   r.NewStyle().Foreground(lipgloss.Color("10")),
		warn:   r.NewStyle().Foreground(lipgloss.Color("11")),
		bad:    r.NewStyle().Foreground(lipgloss.Color("9")),
	}
}

func (p *printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func (p *printer) println(a ...interface{}) {
	fmt.Fprintln(p.w, a...)
}

// centsStyle grades how far a reading is from the nearest semitone
func (p *printer) centsStyle(cents int) lipgloss.Style {
	if cents < 0 {
		cents = -cents
	}
	switch {
	case cents <= 5:
		return p.good
	case cents <= 20:
		return p.warn
	default:
		return p.bad
	}
}

func formatCents(cents int) string {
	return fmt.Sprintf("%+d cents", cents)
}

// reading renders one analyzed frequency
func (p *printer) reading(r pitch.Reading) string {
	return fmt.Sprintf("%10.2f Hz  %-4s %s  %s",
		r.Frequency,
		p.render(p.note, r.Note),
		p.render(p.dim, fmt.Sprintf("(%d)", r.Semitone)),
		p.render(p.centsStyle(r.Cents), formatCents(r.Cents)),
	)
}

// semitone renders one semitone and its frequency
func (p *printer) semitone(n int, freq float64) string {
	return fmt.Sprintf("%4d  %-5s %.2f Hz",
		n,
		p.render(p.note, pitch.NoteName(n)),
		freq,
	)
}

// record renders a stored error record
func (p *printer) record(rec errors.ErrorRecord) string {
	var sb strings.Builder
	sb.WriteString(p.render(p.bad, rec.Message))
	sb.WriteString("\n")
	sb.WriteString(p.render(p.dim, fmt.Sprintf("  #%d %s  %s  %s",
		rec.Seq,
		rec.CapturedAt.UTC().Format("2006-01-02 15:04:05"),
		rec.Context.From,
		rec.Location(),
	)))
	return sb.String()
}

func (p *printer) heading(text string) string {
	return p.render(p.title, text)
}
