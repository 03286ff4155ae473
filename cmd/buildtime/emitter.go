package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// consoleEmitter prints summary lines, coloured by the outcome they report.
type consoleEmitter struct {
	out io.Writer
}

func newConsoleEmitter(out io.Writer) *consoleEmitter {
	return &consoleEmitter{out: out}
}

func (e *consoleEmitter) EmitSummaryLine(text string) {
	fmt.Fprintln(e.out, lineColor(text).Sprint(text))
}

var (
	successColor   = color.New(color.FgGreen)
	failureColor   = color.New(color.FgRed, color.Bold)
	cancelledColor = color.New(color.FgYellow)
	summaryColor   = color.New(color.FgCyan)
)

func lineColor(text string) *color.Color {
	switch {
	case strings.Contains(text, "> Build completed successfully"):
		return successColor
	case strings.Contains(text, "> Build failed"):
		return failureColor
	case strings.Contains(text, "> Build was cancelled"):
		return cancelledColor
	default:
		return summaryColor
	}
}
