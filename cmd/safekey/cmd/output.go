package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	// Output streams, replaced in tests.
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr

	// Color definitions.
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	boldColor    = color.New(color.Bold)
	dimColor     = color.New(color.Faint)
)

// Success prints a success message in green.
func Success(format string, a ...any) {
	successColor.Fprintf(stdout, "✓ "+format+"\n", a...)
}

// Error prints an error message in red.
func Error(format string, a ...any) {
	errorColor.Fprintf(stderr, "✗ "+format+"\n", a...)
}

// Warning prints a warning message in yellow.
func Warning(format string, a ...any) {
	warningColor.Fprintf(stderr, "⚠ "+format+"\n", a...)
}

// Info prints an info message in cyan.
func Info(format string, a ...any) {
	infoColor.Fprintf(stderr, "ℹ "+format+"\n", a...)
}

// Bold prints text in bold.
func Bold(format string, a ...any) string {
	return boldColor.Sprintf(format, a...)
}

// Dim prints text in dim/faint style.
func Dim(format string, a ...any) string {
	return dimColor.Sprintf(format, a...)
}

// PromptConfirm asks for user confirmation and returns true if confirmed.
func PromptConfirm(message string) bool {
	response, err := prompter.ReadLine(fmt.Sprintf("%s [y/N]: ", message))
	if err != nil {
		return false
	}

	switch response {
	case "y", "Y", "yes", "Yes", "YES":
		return true
	}
	return false
}

// PrintKeyValue prints a key-value pair with the key highlighted.
func PrintKeyValue(key, value string) {
	fmt.Fprintf(stdout, "%s: %s\n", boldColor.Sprint(key), value)
}

// PrintTableHeader writes a tab-separated header with bold column names to w.
func PrintTableHeader(w io.Writer, columns ...string) {
	for i, col := range columns {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, boldColor.Sprint(col))
	}
	fmt.Fprintln(w)
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
