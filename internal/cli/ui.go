// Package cli provides the terminal front-end for the file manager: colored
// output and an interactive menu.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/fruitsalade/filedesk/pkg/models"
)

// UI writes user-facing messages.
type UI struct {
	output io.Writer

	colorInfo    *color.Color
	colorSuccess *color.Color
	colorWarning *color.Color
	colorError   *color.Color
	colorBold    *color.Color
	colorCyan    *color.Color
}

// New creates a UI writing to stderr.
func New() *UI {
	return &UI{
		output:       os.Stderr,
		colorInfo:    color.New(color.FgBlue),
		colorSuccess: color.New(color.FgGreen),
		colorWarning: color.New(color.FgYellow),
		colorError:   color.New(color.FgRed),
		colorBold:    color.New(color.Bold),
		colorCyan:    color.New(color.FgCyan, color.Bold),
	}
}

// NewWithWriter creates a UI with a custom output writer.
func NewWithWriter(w io.Writer) *UI {
	ui := New()
	ui.output = w
	return ui
}

func (u *UI) Info(msg string)    { u.colorInfo.Fprintf(u.output, "[INFO] %s\n", msg) }
func (u *UI) Success(msg string) { u.colorSuccess.Fprintf(u.output, "[✓] %s\n", msg) }
func (u *UI) Warning(msg string) { u.colorWarning.Fprintf(u.output, "[WARNING] %s\n", msg) }
func (u *UI) Error(msg string)   { u.colorError.Fprintf(u.output, "[ERROR] %s\n", msg) }

// Successf prints a formatted success message.
func (u *UI) Successf(format string, args ...interface{}) { u.Success(fmt.Sprintf(format, args...)) }

// Errorf prints a formatted error message.
func (u *UI) Errorf(format string, args ...interface{}) { u.Error(fmt.Sprintf(format, args...)) }

// Header prints a boxed title.
func (u *UI) Header(title string) {
	border := strings.Repeat("=", 50)
	u.colorCyan.Fprintln(u.output, border)
	u.colorCyan.Fprintf(u.output, "  %s\n", title)
	u.colorCyan.Fprintln(u.output, border)
}

// FileList prints entries as a numbered list.
func (u *UI) FileList(entries []models.FileEntry) {
	if len(entries) == 0 {
		u.Info("No files yet")
		return
	}
	u.colorBold.Fprintf(u.output, "Files (%d):\n", len(entries))
	for i, e := range entries {
		fmt.Fprintf(u.output, "  %3d  %s\n", i+1, e.Name)
	}
}
