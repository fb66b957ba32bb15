package util

import (
	"fmt"
	"io"

	"github.com/buger/goterm"
)

// ConsoleProgress prints the steps of a run as they start.
type ConsoleProgress struct {
	out   io.Writer
	total int
	done  int
}

// NewConsoleProgress creates a ConsoleProgress for a run with `total` steps.
func NewConsoleProgress(out io.Writer, total int) *ConsoleProgress {
	return &ConsoleProgress{out: out, total: total}
}

func (p *ConsoleProgress) SubTask(name string) {
	counter := fmt.Sprintf("[%d/%d]", p.done+1, p.total)
	fmt.Fprintf(p.out, "%s %s..\n", goterm.Color(counter, goterm.BLUE), name)
}

func (p *ConsoleProgress) Worked(units int) {
	p.done += units
}

// Succeeded prints a message marking the end of the run.
func (p *ConsoleProgress) Succeeded(msg string) {
	fmt.Fprintln(p.out, goterm.Color(msg, goterm.GREEN))
}

// Failed prints a message marking that the run failed.
func (p *ConsoleProgress) Failed(msg string) {
	fmt.Fprintln(p.out, goterm.Color(msg, goterm.RED))
}
