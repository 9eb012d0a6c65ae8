package flows

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/phillip-england/attendhash/internal/attendapi"
)

// Handle names a payload a Downloader is holding for a save.
type Handle string

// Downloader exposes a binary payload to a save mechanism. Every handle
// returned by Acquire is released exactly once.
type Downloader interface {
	Acquire(data []byte) (Handle, error)
	Save(h Handle, filename string) error
	Release(h Handle)
}

func ReportFilename(threshold string) string {
	return "attendance_report_" + threshold + ".pdf"
}

// Report downloads the PDF report for threshold and hands it to d. It
// returns the filename and whether the save went through.
func (a *App) Report(ctx context.Context, region *Region, threshold string, d Downloader) (string, bool) {
	threshold = strings.TrimSpace(threshold)
	if threshold == "" {
		region.Alert("Enter a percentage value.")
		return "", false
	}

	data, err := a.api.DownloadReport(ctx, threshold)
	var rej *attendapi.RejectionError
	switch {
	case errors.As(err, &rej):
		region.Alert("Failed to generate PDF: " + rej.Message)
		return "", false
	case err != nil:
		log.Printf("download error: %v", err)
		region.Alert("Download failed: " + err.Error())
		return "", false
	}

	filename := ReportFilename(threshold)
	if err := save(d, data, filename); err != nil {
		log.Printf("download error: %v", err)
		region.Alert("Download failed: " + err.Error())
		return "", false
	}
	return filename, true
}

func save(d Downloader, data []byte, filename string) error {
	h, err := d.Acquire(data)
	if err != nil {
		return err
	}
	defer d.Release(h)
	return d.Save(h, filename)
}

// DirDownloader stages payloads in temporary files and copies them into Dir
// on save.
type DirDownloader struct {
	Dir string

	mu    sync.Mutex
	temps map[Handle]string
}

func NewDirDownloader(dir string) *DirDownloader {
	return &DirDownloader{Dir: dir, temps: map[Handle]string{}}
}

func (d *DirDownloader) Acquire(data []byte) (Handle, error) {
	f, err := os.CreateTemp("", "attendhash-*.download")
	if err != nil {
		return "", fmt.Errorf("stage download: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("stage download: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("stage download: %w", err)
	}
	h := Handle(f.Name())
	d.mu.Lock()
	d.temps[h] = f.Name()
	d.mu.Unlock()
	return h, nil
}

func (d *DirDownloader) Save(h Handle, filename string) error {
	d.mu.Lock()
	src, ok := d.temps[h]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown download handle")
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}
	out, err := os.Create(d.Path(filename))
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func (d *DirDownloader) Release(h Handle) {
	d.mu.Lock()
	src, ok := d.temps[h]
	delete(d.temps, h)
	d.mu.Unlock()
	if ok {
		_ = os.Remove(src)
	}
}

// Path is where Save writes filename. Path separators in filename are
// flattened so a threshold cannot escape Dir.
func (d *DirDownloader) Path(filename string) string {
	flat := strings.NewReplacer("/", "_", "\\", "_").Replace(filename)
	return filepath.Join(d.Dir, flat)
}

// Outstanding is the number of acquired handles not yet released.
func (d *DirDownloader) Outstanding() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.temps)
}
