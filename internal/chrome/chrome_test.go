package chrome

import (
	"path/filepath"
	"testing"
)

func TestLoadThemeDefaultsToLight(t *testing.T) {
	store := NewMemoryStore()
	theme, err := LoadTheme(store)
	if err != nil || theme != Light {
		t.Fatalf("expected light, got %q %v", theme, err)
	}
	_ = store.Set(ThemeKey, "purple")
	if theme, _ := LoadTheme(store); theme != Light {
		t.Fatalf("unknown values read as light, got %q", theme)
	}
}

func TestToggleThemePersists(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "theme.env"))
	theme, err := ToggleTheme(store, Light)
	if err != nil || theme != Dark {
		t.Fatalf("expected dark, got %q %v", theme, err)
	}

	reopened := NewFileStore(store.path)
	loaded, err := LoadTheme(reopened)
	if err != nil || loaded != Dark {
		t.Fatalf("expected persisted dark, got %q %v", loaded, err)
	}

	theme, err = ToggleTheme(reopened, loaded)
	if err != nil || theme != Light {
		t.Fatalf("expected light after second toggle, got %q %v", theme, err)
	}
	if value, ok, _ := reopened.Get(ThemeKey); !ok || value != "light" {
		t.Fatalf("expected stored light, got %q %v", value, ok)
	}
}

func TestSidebarBreakpoint(t *testing.T) {
	var s Sidebar
	s.Init(800)
	if s.Visible {
		t.Fatalf("narrow viewport should start hidden")
	}
	s.Hamburger(800)
	if !s.Visible {
		t.Fatalf("hamburger should open on narrow viewport")
	}
	s.Hamburger(800)
	if s.Visible {
		t.Fatalf("hamburger should close on narrow viewport")
	}
	s.Hamburger(1200)
	s.Hamburger(1200)
	if !s.Visible {
		t.Fatalf("hamburger always shows on wide viewport")
	}
	s.Close()
	if s.Visible {
		t.Fatalf("close should hide")
	}
	s.Init(900)
	if !s.Visible {
		t.Fatalf("breakpoint width counts as wide")
	}
}

func TestViewportWidth(t *testing.T) {
	if ViewportWidth("640") != 640 {
		t.Fatalf("expected parsed width")
	}
	if ViewportWidth("") != SidebarBreakpoint || ViewportWidth("abc") != SidebarBreakpoint {
		t.Fatalf("unknown width should be wide")
	}
}
