package flows

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/phillip-england/attendhash/internal/attendapi"
	"github.com/phillip-england/attendhash/internal/render"
)

type LookupKind string

const (
	LookupByID   LookupKind = "id"
	LookupByName LookupKind = "name"
)

// Lookup runs the single-field search endpoints, which answer with a
// {record}, a {records} list or a bare array.
func (a *App) Lookup(ctx context.Context, region *Region, kind LookupKind, value string) {
	var (
		resp *attendapi.Response
		err  error
	)
	switch kind {
	case LookupByID:
		resp, err = a.api.SearchByID(ctx, value)
	case LookupByName:
		resp, err = a.api.SearchByName(ctx, value)
	default:
		region.Alert(fmt.Sprintf("Unknown lookup %q.", kind))
		return
	}

	var verr *attendapi.ValidationError
	if errors.As(err, &verr) {
		region.Alert(verr.Message)
		return
	}
	if err != nil {
		log.Printf("lookup error: %v", err)
		region.SetStatus("❌ Search error: "+err.Error(), ToneError)
		return
	}

	payload := resp.JSON()
	if !resp.OK() {
		region.SetStatus("❌ "+payload.Message("Search failed!"), ToneError)
		return
	}

	records := payload.LookupRecords()
	region.SetTable(render.Build(records, render.WithPlaceholder))
	region.SetStatus(fmt.Sprintf("✅ Found %d record(s).", len(records)), ToneNeutral)
}
