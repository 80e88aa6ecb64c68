// Package cli provides terminal helpers shared by the pixpal commands:
// result output (YAML, JSON, raw), request-file loading, styled status
// lines, and the lipgloss theme used by the chat view.
package cli
