package flows

import (
	"context"
	"log"

	"github.com/phillip-england/attendhash/internal/attendapi"
	"github.com/phillip-england/attendhash/internal/render"
)

// Sort renders the backend's records in the requested order. The response
// status is not inspected and an empty list renders without a placeholder.
func (a *App) Sort(ctx context.Context, region *Region, order string) {
	dir, err := attendapi.ParseDirection(order)
	if err != nil {
		region.Alert("Sort failed: " + err.Error())
		return
	}

	resp, err := a.api.Sort(ctx, dir)
	if err != nil {
		log.Printf("sort error: %v", err)
		region.Alert("Sort failed: " + err.Error())
		return
	}

	payload := resp.JSON()
	records, ok := payload.Records()
	if !ok {
		records, _ = payload.RecordsAt("data")
	}
	region.SetTable(render.Build(records, render.Bare))
}
