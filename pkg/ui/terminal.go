// Package ui prints the short colored status lines of the command line tool.
// Logs go to stderr through the logger; these helpers write results to stdout.
package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

const (
	cyan    = "\033[36m"
	yellow  = "\033[33m"
	red     = "\033[31m"
	green   = "\033[32m"
	magenta = "\033[35m"
	dim     = "\033[2m"
	reset   = "\033[0m"
)

// Printer writes colored status lines to w
type Printer struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
	quiet bool
	// live enables redrawing the progress line in place
	live bool
}

// NewPrinter colors output only when w is a terminal and NO_COLOR is unset
func NewPrinter(w io.Writer) *Printer {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}
	return &Printer{w: w, color: tty && os.Getenv("NO_COLOR") == "", live: tty}
}

// SetColor forces colors on or off
func (p *Printer) SetColor(on bool) {
	p.mu.Lock()
	p.color = on
	p.mu.Unlock()
}

// SetLive turns the in-place progress line on or off
func (p *Printer) SetLive(on bool) {
	p.mu.Lock()
	p.live = on
	p.mu.Unlock()
}

// SetQuiet suppresses everything but errors
func (p *Printer) SetQuiet(on bool) {
	p.mu.Lock()
	p.quiet = on
	p.mu.Unlock()
}

func (p *Printer) paint(code, text string) string {
	if !p.color {
		return text
	}
	return code + text + reset
}

func (p *Printer) println(isError bool, line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.quiet && !isError {
		return
	}
	fmt.Fprintln(p.w, line)
}

// raw writes text unchanged unless the printer is quiet
func (p *Printer) raw(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.quiet {
		return
	}
	fmt.Fprint(p.w, text)
}

func (p *Printer) isLive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live && !p.quiet
}

func detail(msg string, args []interface{}) string {
	if len(args) > 0 {
		return msg + ": " + fmt.Sprintf("%v", args[0])
	}
	return msg
}

// Error prints msg in red, followed by the first arg when given
func (p *Printer) Error(msg string, args ...interface{}) {
	p.println(true, p.paint(red, detail(msg, args)))
}

// Warning prints msg in yellow
func (p *Printer) Warning(msg string, args ...interface{}) {
	p.println(false, p.paint(yellow, detail(msg, args)))
}

func (p *Printer) Success(msg string) {
	p.println(false, p.paint(green, msg))
}

// Info prints a label: value pair
func (p *Printer) Info(label, value string) {
	p.println(false, p.paint(cyan, label)+": "+p.paint(yellow, value))
}

func (p *Printer) Highlight(msg string) {
	p.println(false, p.paint(magenta, msg))
}

func (p *Printer) Dim(msg string) {
	p.println(false, p.paint(dim, msg))
}

var std = NewPrinter(os.Stdout)

// Default returns the stdout printer used by the package level helpers
func Default() *Printer { return std }

func SetColor(on bool) { std.SetColor(on) }
func SetQuiet(on bool) { std.SetQuiet(on) }

func PrintError(msg string, args ...interface{})   { std.Error(msg, args...) }
func PrintWarning(msg string, args ...interface{}) { std.Warning(msg, args...) }
func PrintSuccess(msg string)                      { std.Success(msg) }
func PrintInfo(label, value string)                { std.Info(label, value) }
func PrintHighlight(msg string)                    { std.Highlight(msg) }
