package stubapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/phillip-england/attendhash/internal/envutil"
	"github.com/phillip-england/attendhash/internal/middleware"
)

const maxUploadBytes = 20 << 20

type Config struct {
	Addr         string `validate:"required"`
	SnapshotPath string
}

func DefaultConfigFromEnv() Config {
	return Config{
		Addr:         envutil.OrDefault("STUB_ADDR", ":8080"),
		SnapshotPath: strings.TrimSpace(envutil.OrDefault("STUB_SNAPSHOT_PATH", "")),
	}
}

type server struct {
	store        *memoryStore
	snapshotPath string
}

// NewHandler builds the attendance backend, restoring rows from
// cfg.SnapshotPath when set. Addr is not required here.
func NewHandler(cfg Config) (http.Handler, error) {
	s := &server{store: newMemoryStore(), snapshotPath: cfg.SnapshotPath}
	if s.snapshotPath != "" {
		if err := s.store.loadSnapshot(s.snapshotPath); err != nil {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/upload", s.upload)
	mux.HandleFunc("/view", s.view)
	mux.HandleFunc("/search/dynamic", s.searchDynamic)
	mux.HandleFunc("/search/id/", s.searchByID)
	mux.HandleFunc("/search/name/", s.searchByName)
	mux.HandleFunc("/sort/", s.sortRecords)
	mux.HandleFunc("/download/pdf/", s.downloadPDF)

	return middleware.Chain(
		mux,
		middleware.RequestLog("stub"),
		middleware.SecurityHeaders(middleware.SecurityHeadersConfig{ContentSecurityPolicy: "default-src 'none'"}),
	), nil
}

func Run(ctx context.Context, cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid stub config: %w", err)
	}
	handler, err := NewHandler(cfg)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("stub api listening on http://localhost%s", cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *server) upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	parsed, err := parseAttendanceSheet(file, header.Filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	saved := s.store.upsert(parsed)
	if s.snapshotPath != "" {
		if err := s.store.saveSnapshot(s.snapshotPath); err != nil {
			log.Printf("save snapshot failed: %v", err)
			writeError(w, http.StatusInternalServerError, "unable to persist records")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("%d record(s) uploaded", len(saved)),
		"count":   len(saved),
		"data":    records(saved),
	})
}

func (s *server) view(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, records(s.store.all()))
}

func (s *server) searchDynamic(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	q := r.URL.Query()
	id, name, department := strings.TrimSpace(q.Get("id")), strings.TrimSpace(q.Get("name")), strings.TrimSpace(q.Get("department"))
	if id == "" && name == "" && department == "" {
		writeError(w, http.StatusBadRequest, "at least one of id, name or department is required")
		return
	}
	writeJSON(w, http.StatusOK, records(s.store.search(id, name, department)))
}

func (s *server) searchByID(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	id, ok := pathValue(r, "/search/id/")
	if !ok {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	e, found := s.store.get(id)
	if !found {
		writeError(w, http.StatusNotFound, "Employee not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"record": e.record()})
}

func (s *server) searchByName(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	name, ok := pathValue(r, "/search/name/")
	if !ok {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	matches := s.store.search("", name, "")
	if len(matches) == 0 {
		writeError(w, http.StatusNotFound, "No employees found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records(matches)})
}

func (s *server) sortRecords(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	order, _ := pathValue(r, "/sort/")
	switch order {
	case "asc":
		writeJSON(w, http.StatusOK, records(s.store.sorted(false)))
	case "desc":
		writeJSON(w, http.StatusOK, records(s.store.sorted(true)))
	default:
		writeError(w, http.StatusBadRequest, "order must be asc or desc")
	}
}

func (s *server) downloadPDF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	raw, _ := pathValue(r, "/download/pdf/")
	threshold, err := parseThreshold(raw)
	if err != nil {
		http.Error(w, "Invalid percentage value", http.StatusBadRequest)
		return
	}
	data, err := buildReportPDF(threshold, s.store.below(threshold))
	if err != nil {
		log.Printf("build report failed: %v", err)
		http.Error(w, "Unable to generate report", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="attendance_report_%s.pdf"`, formatNumber(threshold)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// parseThreshold accepts "75", "75.5" or "75%".
func parseThreshold(raw string) (float64, error) {
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "%")
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0, fmt.Errorf("percentage out of range: %s", raw)
	}
	return value, nil
}

// pathValue returns the unescaped remainder of the path after prefix. It
// works on the escaped path so an encoded "/" stays inside the value.
func pathValue(r *http.Request, prefix string) (string, bool) {
	rest := strings.TrimPrefix(r.URL.EscapedPath(), prefix)
	value, err := url.PathUnescape(rest)
	if err != nil {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
