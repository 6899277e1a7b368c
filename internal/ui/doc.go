// Package ui renders command results for the terminal.
//
// Results are written in one of three formats:
//
//   - text: one line per result, "action(status): path (type) [message]",
//     followed by any listed items or server records and, when more than one
//     result was shown, an action summary
//   - json: one JSON object per line
//   - yaml: one YAML document per result
//
// Text output is styled with Lipgloss. The renderer detects the color
// profile of its writer, so redirected output carries no escape sequences.
// Three palettes are available (Nightfox, Kanagawa and Slate); unknown names
// fall back to Nightfox.
package ui
