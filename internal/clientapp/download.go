package clientapp

import (
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/phillip-england/attendhash/internal/flows"
)

// responseDownloader holds acquired payloads in memory and saves them by
// writing an attachment response.
type responseDownloader struct {
	w http.ResponseWriter

	mu       sync.Mutex
	payloads map[flows.Handle][]byte
}

func newResponseDownloader(w http.ResponseWriter) *responseDownloader {
	return &responseDownloader{w: w, payloads: map[flows.Handle][]byte{}}
}

func (d *responseDownloader) Acquire(data []byte) (flows.Handle, error) {
	h := flows.Handle(uuid.NewString())
	d.mu.Lock()
	d.payloads[h] = data
	d.mu.Unlock()
	return h, nil
}

func (d *responseDownloader) Save(h flows.Handle, filename string) error {
	d.mu.Lock()
	data, ok := d.payloads[h]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown download handle")
	}

	filename = strings.NewReplacer("/", "_", "\\", "_").Replace(filename)
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	if disposition == "" {
		disposition = "attachment"
	}
	d.w.Header().Set("Content-Type", "application/pdf")
	d.w.Header().Set("Content-Disposition", disposition)
	d.w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	d.w.Header().Set("Cache-Control", "no-store")
	d.w.WriteHeader(http.StatusOK)
	_, err := d.w.Write(data)
	return err
}

func (d *responseDownloader) Release(h flows.Handle) {
	d.mu.Lock()
	delete(d.payloads, h)
	d.mu.Unlock()
}

func (d *responseDownloader) outstanding() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.payloads)
}
