// Package output prints styled messages for the t4out command line.
//
// Functions use lipgloss for styling but abstract away the details from
// callers. Reporter adapts the same styles to the reconciliation engine's
// error reporting channel.
package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("green")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("red")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("yellow"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("cyan"))
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	mu          sync.Mutex
	out         io.Writer = os.Stdout
	verboseMode bool
)

// SetVerbose enables or disables verbose output for debugging.
// This should be called by the CLI when the --verbose flag is set.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verboseMode = v
}

// SetWriter redirects all output and returns the previous writer.
func SetWriter(w io.Writer) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	prev := out
	out = w
	return prev
}

func emit(s string) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintln(out, s)
}

// Success prints a success message in green.
//
// Example:
//
//	output.Success("Generated 3 files from Foo.tt")
func Success(msg string) {
	emit(successStyle.Render("✔ " + msg))
}

// Error prints an error message with ❌ emoji and red color.
func Error(msg string) {
	emit(errorStyle.Render("❌ " + msg))
}

// Warning prints a warning in yellow.
func Warning(msg string) {
	emit(warningStyle.Render("⚠️  " + msg))
}

// Info prints an informational message in cyan.
func Info(msg string) {
	emit(infoStyle.Render("ℹ️  " + msg))
}

// Step prints an indented step message in gray.
//
// Example:
//
//	output.Step("write Generated/User.cs")
func Step(msg string) {
	emit(stepStyle.Render("   " + msg))
}

// Verbose prints a debug message only if verbose mode is enabled.
func Verbose(msg string) {
	mu.Lock()
	v := verboseMode
	mu.Unlock()
	if v {
		emit(stepStyle.Render("🔍 " + msg))
	}
}

// Reporter prints reconciliation problems attributed to an input file.
type Reporter struct {
	errors   int
	warnings int
}

// Error prints a problem that stopped reconciliation of input.
func (r *Reporter) Error(input, message string) {
	r.errors++
	Error(fmt.Sprintf("%s: %s", input, message))
}

// Warning prints a non-fatal problem found while reconciling input.
func (r *Reporter) Warning(input, message string) {
	r.warnings++
	Warning(fmt.Sprintf("%s: %s", input, message))
}

// Errors returns the number of errors reported so far.
func (r *Reporter) Errors() int {
	return r.errors
}

// Warnings returns the number of warnings reported so far.
func (r *Reporter) Warnings() int {
	return r.warnings
}
