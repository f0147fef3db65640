// Package printer writes the CLI's colored, human-facing output.
package printer

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dyluth/roost/pkg/board"
	"github.com/fatih/color"
)

func init() {
	// NO_COLOR disables color, otherwise it is kept on when piped
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	// Out and Err are swapped by tests.
	Out io.Writer = os.Stdout
	Err io.Writer = os.Stderr

	green   = color.New(color.FgGreen)
	yellow  = color.New(color.FgYellow)
	red     = color.New(color.FgRed, color.Bold)
	cyan    = color.New(color.FgCyan)
	magenta = color.New(color.FgMagenta, color.Bold)
	faint   = color.New(color.Faint)
)

// Success prints a green message with a checkmark.
func Success(format string, a ...any) {
	green.Fprintf(Out, "✓ %s", strings.TrimPrefix(fmt.Sprintf(format, a...), "✓ "))
}

// Info prints an uncolored message.
func Info(format string, a ...any) {
	fmt.Fprintf(Out, format, a...)
}

// Warning prints a yellow message with a warning sign.
func Warning(format string, a ...any) {
	yellow.Fprintf(Out, "⚠️  %s", strings.TrimPrefix(fmt.Sprintf(format, a...), "⚠️  "))
}

// Step prints one step of a multi-step operation.
func Step(format string, a ...any) {
	cyan.Fprintf(Out, "→ %s", fmt.Sprintf(format, a...))
}

// Error prints a titled error with an explanation and suggestions to Err and
// returns a plain error carrying only the title, for cobra to exit with.
func Error(title, explanation string, suggestions []string) error {
	return ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error with extra key/value detail lines.
func ErrorWithContext(title, explanation string, context map[string]string, suggestions []string) error {
	red.Fprintf(Err, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(Err, "%s\n", explanation)
	}

	if len(context) > 0 {
		fmt.Fprintln(Err)
		for key, value := range context {
			fmt.Fprintf(Err, "  %s: %s\n", key, value)
		}
	}

	switch len(suggestions) {
	case 0:
	case 1:
		fmt.Fprintf(Err, "\n%s\n", suggestions[0])
	default:
		fmt.Fprintf(Err, "\nEither:\n")
		for i, suggestion := range suggestions {
			fmt.Fprintf(Err, "  %d. %s\n", i+1, suggestion)
		}
	}

	return fmt.Errorf("%s", title)
}

// Phase renders a session phase as a colored upper-case label.
func Phase(p board.Phase, paused bool) string {
	label := strings.ToUpper(string(p))
	if paused {
		return yellow.Sprint(label + " (PAUSED)")
	}

	switch p {
	case board.PhaseReading:
		return cyan.Sprint(label)
	case board.PhaseVoting:
		return green.Sprint(label)
	case board.PhaseFinished:
		return magenta.Sprint(label)
	default:
		return faint.Sprint(label)
	}
}

// Println prints a plain line.
func Println(a ...any) {
	fmt.Fprintln(Out, a...)
}

// Printf prints plain formatted output.
func Printf(format string, a ...any) {
	fmt.Fprintf(Out, format, a...)
}
