package cli

// This file implements terminal output for the CLI on top of pterm.
// Logs go through zap; the printer is for the human-facing summary.

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"golang.org/x/term"
)

// Printer writes user-facing output. Quiet suppresses everything except errors.
type Printer struct {
	Quiet bool
	// Interactive enables spinners; off when stdout is not a terminal.
	Interactive bool
}

// DefaultPrinter is the printer used by the package-level helpers.
var DefaultPrinter = newDefaultPrinter()

func newDefaultPrinter() *Printer {
	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	if !interactive {
		pterm.DisableStyling()
	}
	return &Printer{Interactive: interactive}
}

func (p *Printer) Header(msg string) {
	if p.Quiet {
		return
	}
	pterm.DefaultHeader.WithFullWidth().Println(msg)
}

func (p *Printer) Section(msg string) {
	if p.Quiet {
		return
	}
	pterm.DefaultSection.Println(msg)
}

func (p *Printer) Step(msg string) {
	if p.Quiet {
		return
	}
	pterm.Println(pterm.Cyan("→ ") + msg)
}

func (p *Printer) Info(msg string) {
	if p.Quiet {
		return
	}
	pterm.Info.Println(msg)
}

func (p *Printer) Success(msg string) {
	if p.Quiet {
		return
	}
	pterm.Success.Println(msg)
}

func (p *Printer) Warn(msg string) {
	if p.Quiet {
		return
	}
	pterm.Warning.Println(msg)
}

// Error is printed even in quiet mode.
func (p *Printer) Error(msg string) {
	pterm.Error.Println(msg)
}

func (p *Printer) Println(args ...any) {
	if p.Quiet {
		return
	}
	pterm.Println(args...)
}

// Table renders rows with the first row as header.
func (p *Printer) Table(data [][]string) {
	p.renderTable(data, false)
}

// TableBoxed renders rows inside a box with the first row as header.
func (p *Printer) TableBoxed(data [][]string) {
	p.renderTable(data, true)
}

func (p *Printer) renderTable(data [][]string, boxed bool) {
	if p.Quiet || len(data) == 0 {
		return
	}
	table := pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData(data))
	if boxed {
		table = table.WithBoxed()
	}
	if err := table.Render(); err != nil {
		pterm.Error.Println(fmt.Sprintf("render table: %v", err))
	}
}

// SpinnerStart shows a spinner for msg and returns a function that stops it
// with a success or failure line.
func (p *Printer) SpinnerStart(msg string) func(ok bool, final string) {
	if p.Quiet {
		return func(bool, string) {}
	}
	if !p.Interactive {
		p.Step(msg)
		return func(ok bool, final string) {
			if ok {
				p.Success(final)
			} else {
				p.Error(final)
			}
		}
	}
	spinner, err := pterm.DefaultSpinner.Start(msg)
	if err != nil {
		p.Step(msg)
		return func(bool, string) {}
	}
	return func(ok bool, final string) {
		if ok {
			spinner.Success(final)
		} else {
			spinner.Fail(final)
		}
	}
}

func Header(msg string)          { DefaultPrinter.Header(msg) }
func Section(msg string)         { DefaultPrinter.Section(msg) }
func Info(msg string)            { DefaultPrinter.Info(msg) }
func Success(msg string)         { DefaultPrinter.Success(msg) }
func Warn(msg string)            { DefaultPrinter.Warn(msg) }
func Error(msg string)           { DefaultPrinter.Error(msg) }
func Table(data [][]string)      { DefaultPrinter.Table(data) }
func TableBoxed(data [][]string) { DefaultPrinter.TableBoxed(data) }
func Green(a ...any) string      { return pterm.Green(a...) }
func Yellow(a ...any) string     { return pterm.Yellow(a...) }
func Red(a ...any) string        { return pterm.Red(a...) }
func Cyan(a ...any) string       { return pterm.Cyan(a...) }
