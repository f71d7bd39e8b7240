package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	green  = lipgloss.Color("#a6e3a1")
	yellow = lipgloss.Color("#f9e2af")
	red    = lipgloss.Color("#f38ba8")
	subtle = lipgloss.Color("#a6adc8")
)

// printer writes status lines, coloured only when the writer is a terminal.
type printer struct {
	out, err io.Writer

	success lipgloss.Style
	warn    lipgloss.Style
	fail    lipgloss.Style
	dim     lipgloss.Style
}

func newPrinter(out, errOut io.Writer) *printer {
	outR := lipgloss.NewRenderer(out)
	errR := lipgloss.NewRenderer(errOut)
	return &printer{
		out:     out,
		err:     errOut,
		success: outR.NewStyle().Foreground(green).Bold(true),
		warn:    errR.NewStyle().Foreground(yellow),
		fail:    errR.NewStyle().Foreground(red).Bold(true),
		dim:     errR.NewStyle().Foreground(subtle),
	}
}

func (p *printer) Successf(format string, args ...any) {
	fmt.Fprintln(p.out, p.success.Render(fmt.Sprintf(format, args...)))
}

func (p *printer) Infof(format string, args ...any) {
	fmt.Fprintln(p.err, p.dim.Render("[gulp] "+fmt.Sprintf(format, args...)))
}

func (p *printer) Warnf(format string, args ...any) {
	fmt.Fprintln(p.err, p.warn.Render("[gulp] "+fmt.Sprintf(format, args...)))
}

func (p *printer) Errorf(format string, args ...any) {
	fmt.Fprintln(p.err, p.fail.Render("Error: "+fmt.Sprintf(format, args...)))
}
