// Package ui renders human-facing CLI messages. Everything goes to stderr by
// default because stdout carries the archived records.
package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	gabGreen = lipgloss.Color("#21CF7A")
	amber    = lipgloss.Color("#FFB000")
	alertRed = lipgloss.Color("#FF4D4D")
	steel    = lipgloss.Color("#7AA2F7")
	dimGray  = lipgloss.Color("#8A8A8A")

	successStyle = lipgloss.NewStyle().Foreground(gabGreen).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(amber)
	errorStyle   = lipgloss.NewStyle().Foreground(alertRed).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(steel).Bold(true)
	valueStyle   = lipgloss.NewStyle().Foreground(amber)
	dimStyle     = lipgloss.NewStyle().Foreground(dimGray)
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(gabGreen).
			Padding(0, 1)
)

var (
	mu  sync.Mutex
	out io.Writer = os.Stderr
)

// SetOutput redirects messages, returning the previous writer
func SetOutput(w io.Writer) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	prev := out
	out = w
	return prev
}

func println(s string) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintln(out, s)
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		println(errorStyle.Render(msg + ": " + fmt.Sprintf("%v", args[0])))
	} else {
		println(errorStyle.Render(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	println(successStyle.Render(msg))
}

// PrintInfo prints a label/value pair
func PrintInfo(label string, value string) {
	println(labelStyle.Render(label+":") + " " + valueStyle.Render(value))
}

// PrintWarning prints a warning message in amber
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		println(warningStyle.Render(msg + ": " + fmt.Sprintf("%v", args[0])))
	} else {
		println(warningStyle.Render(msg))
	}
}

// PrintDim prints secondary text
func PrintDim(msg string) {
	println(dimStyle.Render(msg))
}

// PrintBox prints lines inside a bordered box
func PrintBox(lines ...string) {
	println(boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
}
