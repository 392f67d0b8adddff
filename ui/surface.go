package ui

import (
	"fmt"
	"strings"
)

// Surface is the immediate-mode drawing target handed to render callbacks.
type Surface interface {
	Handle() *Handle
	Window(title string, body func(Surface))
	Text(format string, args ...any)
	Label(key string, value any)
	Error(format string, args ...any)
	Separator()
}

// TextSurface renders into a string buffer using the handle's lipgloss styles.
type TextSurface struct {
	h     *Handle
	b     strings.Builder
	depth int
}

// NewTextSurface returns an empty TextSurface bound to h.
func NewTextSurface(h *Handle) *TextSurface {
	if h == nil {
		h = NewHandle("text", DefaultStyles())
	}
	return &TextSurface{h: h}
}

func (s *TextSurface) Handle() *Handle { return s.h }

// Window renders body inside a bordered box titled title.
func (s *TextSurface) Window(title string, body func(Surface)) {
	inner := &TextSurface{h: s.h, depth: s.depth + 1}
	if body != nil {
		body(inner)
	}
	st := s.h.Styles()
	content := st.Title.Render(title) + "\n" + strings.TrimRight(inner.b.String(), "\n")
	width := s.h.Width() - 2*s.depth
	if width < 10 {
		width = 10
	}
	s.b.WriteString(st.Window.Width(width - 2).Render(content))
	s.b.WriteByte('\n')
}

func (s *TextSurface) Text(format string, args ...any) {
	s.b.WriteString(s.h.Styles().Value.Render(fmt.Sprintf(format, args...)))
	s.b.WriteByte('\n')
}

func (s *TextSurface) Label(key string, value any) {
	st := s.h.Styles()
	s.b.WriteString(st.Label.Render(key+":") + " " + st.Value.Render(fmt.Sprint(value)))
	s.b.WriteByte('\n')
}

func (s *TextSurface) Error(format string, args ...any) {
	s.b.WriteString(s.h.Styles().Error.Render(fmt.Sprintf(format, args...)))
	s.b.WriteByte('\n')
}

func (s *TextSurface) Separator() {
	n := s.h.Width() / 2
	if n < 4 {
		n = 4
	}
	s.b.WriteString(s.h.Styles().Muted.Render(strings.Repeat(s.h.Styles().Separator, n)))
	s.b.WriteByte('\n')
}

// String returns everything rendered so far.
func (s *TextSurface) String() string { return s.b.String() }

// Reset clears the buffer for the next frame.
func (s *TextSurface) Reset() { s.b.Reset() }
