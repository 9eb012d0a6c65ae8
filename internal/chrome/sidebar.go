package chrome

import (
	"strconv"
	"strings"
)

// SidebarBreakpoint is the viewport width below which the sidebar collapses.
const SidebarBreakpoint = 900

type Sidebar struct {
	Visible bool
}

// Init sets visibility for a freshly loaded or resized viewport.
func (s *Sidebar) Init(width int) {
	s.Visible = width >= SidebarBreakpoint
}

// Hamburger toggles on narrow viewports and always shows on wide ones.
func (s *Sidebar) Hamburger(width int) {
	if width < SidebarBreakpoint {
		s.Visible = !s.Visible
		return
	}
	s.Visible = true
}

func (s *Sidebar) Close() {
	s.Visible = false
}

// ViewportWidth parses a Sec-CH-Viewport-Width style value. Unknown widths
// are treated as wide.
func ViewportWidth(raw string) int {
	width, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || width <= 0 {
		return SidebarBreakpoint
	}
	return width
}
