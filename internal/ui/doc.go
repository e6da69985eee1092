// Package ui styles terminal output for the CLI with lipgloss.
//
// [Palette] holds the named styles; [Card] renders a resolved stream and [ProgressPrinter]
// turns batch progress updates into one styled line each.
package ui
