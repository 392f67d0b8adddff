// Package ui holds the host-owned UI context handle, the Surface plugins
// render into and the UI service lent to plugins.
package ui

import (
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"
)

// Styles groups the lipgloss styles shared by every surface of a Handle.
type Styles struct {
	Title     lipgloss.Style
	Label     lipgloss.Style
	Value     lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style
	Window    lipgloss.Style
	Separator string
}

// DefaultStyles returns the host's stock palette.
func DefaultStyles() Styles {
	return Styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		Label:     lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		Value:     lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Muted:     lipgloss.NewStyle().Faint(true),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		Window:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
		Separator: "─",
	}
}

// Handle is the shared UI context. The host creates one and lends it to the
// UI service and to each plugin context; it is never globally reachable.
type Handle struct {
	name   string
	styles Styles
	width  atomic.Int32
	frame  atomic.Uint64
}

// NewHandle returns a Handle named name using styles.
func NewHandle(name string, styles Styles) *Handle {
	h := &Handle{name: name, styles: styles}
	h.width.Store(80)
	return h
}

func (h *Handle) Name() string { return h.name }

func (h *Handle) Styles() Styles { return h.styles }

// Width is the column budget for rendered windows.
func (h *Handle) Width() int { return int(h.width.Load()) }

func (h *Handle) SetWidth(w int) {
	if w > 0 {
		h.width.Store(int32(w))
	}
}

// BeginFrame advances and returns the frame counter.
func (h *Handle) BeginFrame() uint64 { return h.frame.Add(1) }

// Frame returns the current frame number.
func (h *Handle) Frame() uint64 { return h.frame.Load() }
