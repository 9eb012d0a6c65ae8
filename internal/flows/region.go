package flows

import (
	"sync"

	"github.com/phillip-england/attendhash/internal/render"
)

// Tone is the color class a status line is shown with.
type Tone string

const (
	ToneNeutral Tone = ""
	ToneInfo    Tone = "info"
	ToneSuccess Tone = "success"
	ToneError   Tone = "error"
)

// Region is one status line plus one results table. Flows write into a
// region; front ends read snapshots of it. Concurrent writers are
// last-writer-wins.
type Region struct {
	mu     sync.Mutex
	status string
	tone   Tone
	table  render.Table
	alert  string
}

type Snapshot struct {
	Status string
	Tone   Tone
	Table  render.Table
	Alert  string
}

// Failed reports whether the last flow into the region ended in an error
// status or a blocking alert.
func (s Snapshot) Failed() bool {
	return s.Tone == ToneError || s.Alert != ""
}

func NewRegion() *Region {
	return &Region{table: render.Hidden()}
}

func (r *Region) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{Status: r.status, Tone: r.tone, Table: r.table, Alert: r.alert}
}

func (r *Region) SetStatus(msg string, tone Tone) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = msg
	r.tone = tone
}

// SetTable replaces the table body and clears the hidden state. A fade-in
// already applied to the region stays applied.
func (r *Region) SetTable(t render.Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.FadeIn = t.FadeIn || r.table.FadeIn
	r.table = t
}

func (r *Region) HideTable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table = render.Hidden()
}

// Alert records a blocking notification.
func (r *Region) Alert(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alert = msg
}

// Clear hides the table, empties its body and blanks the status.
func (r *Region) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = ""
	r.tone = ToneNeutral
	r.table = render.Hidden()
}
