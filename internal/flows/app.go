package flows

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"

	"github.com/phillip-england/attendhash/internal/attendapi"
	"github.com/phillip-england/attendhash/internal/render"
)

// errFetchRecords is shown verbatim after "Failed to load data: ".
var errFetchRecords = errors.New("Failed to fetch records.")

// App runs the user-triggered flows against the attendance backend. Every
// flow reports its outcome through a Region and never returns an error.
type App struct {
	api *attendapi.Client
}

func New(api *attendapi.Client) *App {
	return &App{api: api}
}

// File is a spreadsheet picked for upload.
type File struct {
	Name    string
	Content io.Reader
}

// Upload sends file, shows what the backend inserted and then resyncs the
// region with a full reload.
func (a *App) Upload(ctx context.Context, region *Region, file *File) {
	if file == nil || file.Content == nil {
		region.Alert("Please select a file!")
		return
	}

	region.SetStatus("Uploading...", ToneInfo)
	resp, err := a.api.Upload(ctx, file.Name, file.Content)
	if err != nil {
		log.Printf("upload error: %v", err)
		region.SetStatus("❌ Upload failed: "+err.Error(), ToneError)
		return
	}

	payload := resp.JSON()
	if !resp.OK() {
		region.SetStatus("❌ "+payload.Message("Upload failed!"), ToneError)
		return
	}

	rows, _ := payload.RecordsAt("data")
	count, ok := payload.Count()
	if !ok {
		count = strconv.Itoa(len(rows))
	}
	region.SetStatus(fmt.Sprintf("✅ Upload successful! %s record(s) added to database.", count), ToneSuccess)

	table := render.Build(rows, render.WithPlaceholder)
	table.FadeIn = true
	region.SetTable(table)

	a.ReloadAll(ctx, region)
}

// ReloadAll renders the backend's full record set. Unlike upload, a non-2xx
// answer is a hard load failure.
func (a *App) ReloadAll(ctx context.Context, region *Region) {
	records, err := a.fetchAll(ctx)
	if err != nil {
		log.Printf("view error: %v", err)
		region.SetStatus("❌ Failed to load data: "+err.Error(), ToneError)
		return
	}
	if len(records) == 0 {
		region.SetTable(render.Build(nil, render.WithPlaceholder))
		return
	}
	region.SetTable(render.Build(records, render.WithPlaceholder))
	region.SetStatus(fmt.Sprintf("📋 Showing %d record(s) from database.", len(records)), ToneInfo)
}

func (a *App) fetchAll(ctx context.Context) ([]attendapi.Record, error) {
	resp, err := a.api.ViewAll(ctx)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, errFetchRecords
	}
	records, _ := resp.JSON().Records()
	return records, nil
}
