package flows

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/phillip-england/attendhash/internal/attendapi"
	"github.com/phillip-england/attendhash/internal/debounce"
	"github.com/phillip-england/attendhash/internal/render"
)

// Search runs one dynamic query. An empty filter clears the region without
// contacting the backend.
func (a *App) Search(ctx context.Context, region *Region, filter attendapi.QueryFilter) {
	a.query(ctx, filter)(region)
}

// query performs the request and returns how its outcome applies to a
// region, so callers can decide whether the outcome is still wanted.
func (a *App) query(ctx context.Context, filter attendapi.QueryFilter) func(*Region) {
	if filter.Empty() {
		return (*Region).Clear
	}

	resp, err := a.api.SearchDynamic(ctx, filter)
	if err != nil {
		log.Printf("live search error: %v", err)
		return func(r *Region) {
			r.SetStatus("❌ Search error: "+err.Error(), ToneError)
		}
	}
	if !resp.OK() {
		status := resp.StatusCode
		return func(r *Region) {
			r.SetStatus(fmt.Sprintf("❌ Search failed (%d)", status), ToneError)
		}
	}

	records, _ := resp.JSON().Records()
	if len(records) == 0 {
		return func(r *Region) {
			r.HideTable()
			r.SetStatus("⚠️ No matching records found.", ToneNeutral)
		}
	}
	table := render.Build(records, render.WithPlaceholder)
	return func(r *Region) {
		r.SetTable(table)
		r.SetStatus(fmt.Sprintf("✅ Found %d record(s).", len(records)), ToneNeutral)
	}
}

// Field names accepted by LiveSearch.SetField.
const (
	FieldID         = "id"
	FieldName       = "name"
	FieldDepartment = "department"
)

// LiveSearch debounces filter edits into dynamic queries. Only the newest
// dispatched query may write to the region: responses from superseded
// queries are dropped when they arrive.
type LiveSearch struct {
	app       *App
	ctx       context.Context
	region    *Region
	debouncer *debounce.Debouncer

	mu         sync.Mutex
	raw        [3]string
	generation uint64
	// scheduled is true from the first edit of a burst until a dispatch
	// claims it or Clear drops it. inflight counts it as one unit of work.
	scheduled bool
	inflight  sync.WaitGroup

	// OnSettled, when set, observes the region after each applied query.
	OnSettled func(Snapshot)
}

func (a *App) NewLiveSearch(ctx context.Context, region *Region, wait time.Duration) *LiveSearch {
	return &LiveSearch{
		app:       a,
		ctx:       ctx,
		region:    region,
		debouncer: debounce.New(wait),
	}
}

// Input replaces all three inputs and schedules a query.
func (l *LiveSearch) Input(id, name, department string) {
	l.mu.Lock()
	l.raw = [3]string{id, name, department}
	l.markScheduledLocked()
	l.mu.Unlock()
	l.debouncer.Trigger(l.dispatch)
}

func (l *LiveSearch) markScheduledLocked() {
	if !l.scheduled {
		l.scheduled = true
		l.inflight.Add(1)
	}
}

// SetField changes one input and schedules a query.
func (l *LiveSearch) SetField(field, value string) error {
	l.mu.Lock()
	switch field {
	case FieldID:
		l.raw[0] = value
	case FieldName:
		l.raw[1] = value
	case FieldDepartment:
		l.raw[2] = value
	default:
		l.mu.Unlock()
		return fmt.Errorf("unknown search field %q", field)
	}
	l.markScheduledLocked()
	l.mu.Unlock()
	l.debouncer.Trigger(l.dispatch)
	return nil
}

func (l *LiveSearch) Filter() attendapi.QueryFilter {
	l.mu.Lock()
	defer l.mu.Unlock()
	return attendapi.NewQueryFilter(l.raw[0], l.raw[1], l.raw[2])
}

// Clear empties the inputs and the region at once and invalidates any query
// still in flight.
func (l *LiveSearch) Clear() {
	l.debouncer.Cancel()
	l.mu.Lock()
	l.raw = [3]string{}
	l.generation++
	if l.scheduled {
		l.scheduled = false
		l.inflight.Done()
	}
	l.mu.Unlock()
	l.region.Clear()
}

// Wait blocks until every scheduled or dispatched query has returned. Call it
// from the goroutine that feeds Input and SetField.
func (l *LiveSearch) Wait() {
	l.inflight.Wait()
}

// Flush dispatches a pending query immediately instead of waiting out the
// debounce window. It reports whether anything was pending.
func (l *LiveSearch) Flush() bool {
	l.debouncer.Cancel()
	l.mu.Lock()
	pending := l.scheduled
	l.mu.Unlock()
	if !pending {
		return false
	}
	l.dispatch()
	return true
}

func (l *LiveSearch) dispatch() {
	l.mu.Lock()
	if !l.scheduled {
		l.mu.Unlock()
		return
	}
	l.scheduled = false
	defer l.inflight.Done()
	l.generation++
	gen := l.generation
	filter := attendapi.NewQueryFilter(l.raw[0], l.raw[1], l.raw[2])
	l.mu.Unlock()

	apply := l.app.query(l.ctx, filter)

	l.mu.Lock()
	if gen != l.generation {
		l.mu.Unlock()
		log.Printf("live search: dropped stale result for %q", filter.Encode())
		return
	}
	apply(l.region)
	l.mu.Unlock()

	if l.OnSettled != nil {
		l.OnSettled(l.region.Snapshot())
	}
}
