// Package ui holds the terminal styling shared by ce's console output:
// the color palette, status symbols, tables rendered with lipgloss, and
// the play summary block.
//
// Colors are ANSI codes so they follow the terminal theme. Call
// ConfigureColors once at startup; it drops to plain ASCII when stdout is
// not a terminal or --no-color was given.
package ui
