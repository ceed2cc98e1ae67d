package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Confirmation is a warning box followed by a typed confirmation prompt.
type Confirmation struct {
	Title    string
	Warnings []string
	// Phrase must be typed exactly to proceed.
	Phrase string
	Width  int
}

// Confirm renders the warning box to out and reads one line from in. It
// returns true only if the line equals Phrase after trimming whitespace.
func (c *Confirmation) Confirm(in io.Reader, out io.Writer) bool {
	width := c.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	lines := []string{
		"",
		lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true).
			Render(fmt.Sprintf("   %s  WARNING  ─  %s", WarningMarker, c.Title)),
		"",
	}
	bulletStyle := lipgloss.NewStyle().Foreground(TextColor)
	for _, warning := range c.Warnings {
		lines = append(lines, bulletStyle.Render("   • "+warning))
	}
	lines = append(lines, "")

	box := resultBoxStyle(width, WarningColor).Render(strings.Join(lines, "\n"))
	fmt.Fprintln(out, box)
	fmt.Fprintln(out)

	promptStyle := lipgloss.NewStyle().
		Foreground(WarningColor).
		Bold(true)
	fmt.Fprint(out, promptStyle.Render(fmt.Sprintf("To proceed, type %q and press Enter: ", c.Phrase)))

	// A read error still leaves whatever was typed before EOF in input.
	input, _ := bufio.NewReader(in).ReadString('\n')
	fmt.Fprintln(out)

	if strings.TrimSpace(input) == c.Phrase {
		return true
	}

	fmt.Fprintln(out, lipgloss.NewStyle().Foreground(MutedColor).Render("  Operation cancelled."))
	fmt.Fprintln(out)
	return false
}

// ClearCredentialsConfirmation is the prompt shown before stored wifi
// credentials are deleted.
func ClearCredentialsConfirmation(ssid, path string) *Confirmation {
	return &Confirmation{
		Title: "FORGET WIFI CREDENTIALS",
		Warnings: []string{
			fmt.Sprintf("The stored credentials for %q will be deleted", ssid),
			"File: " + path,
			"The device will start its setup access point on the next run",
		},
		Phrase: "yes",
		Width:  GetTerminalWidth(),
	}
}
