package clientapp

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/phillip-england/attendhash/internal/attendapi"
	"github.com/phillip-england/attendhash/internal/chrome"
	"github.com/phillip-england/attendhash/internal/debounce"
	"github.com/phillip-england/attendhash/internal/envutil"
	"github.com/phillip-england/attendhash/internal/flows"
	"github.com/phillip-england/attendhash/internal/middleware"
	"github.com/phillip-england/attendhash/internal/render"
)

//go:embed templates/layout.html templates/results.html templates/upload.html templates/view.html templates/search.html templates/lookup.html templates/sort.html templates/report.html assets/app.css
var templatesFS embed.FS

const defaultMaxUploadBytes = 20 << 20

type Config struct {
	Addr         string           `validate:"required"`
	API          attendapi.Config `validate:"-"`
	ReadTimeout  time.Duration    `validate:"gte=0"`
	WriteTimeout time.Duration    `validate:"gte=0"`

	// MaxUploadBytes caps spreadsheet uploads; zero means 20 MiB.
	MaxUploadBytes int64 `validate:"gte=0"`
}

func DefaultConfigFromEnv() Config {
	return Config{
		Addr:         envutil.OrDefault("CLIENT_ADDR", ":3000"),
		API:          attendapi.DefaultConfigFromEnv(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid client config: %w", err)
	}
	return c.API.Validate()
}

type resultsView struct {
	Status string
	Tone   flows.Tone
	Table  template.HTML
}

type pageData struct {
	Title          string
	Active         string
	Path           string
	Theme          chrome.Theme
	SidebarVisible bool
	Breakpoint     int
	Alert          string
	Results        resultsView

	Filter         attendapi.QueryFilter
	DebounceMillis int64
	LookupKind     string
	LookupValue    string
	Order          string
	Threshold      string
}

type server struct {
	app        *flows.App
	maxUpload  int64
	uploadTmpl *template.Template
	viewTmpl   *template.Template
	searchTmpl *template.Template
	lookupTmpl *template.Template
	sortTmpl   *template.Template
	reportTmpl *template.Template
}

func parsePage(name string) *template.Template {
	return template.Must(template.ParseFS(templatesFS, "templates/layout.html", "templates/results.html", "templates/"+name))
}

// NewHandler wires the front end routes against the configured backend.
func NewHandler(cfg Config) (http.Handler, error) {
	if err := cfg.API.Validate(); err != nil {
		return nil, err
	}
	api, err := attendapi.New(cfg.API)
	if err != nil {
		return nil, err
	}

	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}

	s := &server{
		app:        flows.New(api),
		maxUpload:  maxUpload,
		uploadTmpl: parsePage("upload.html"),
		viewTmpl:   parsePage("view.html"),
		searchTmpl: parsePage("search.html"),
		lookupTmpl: parsePage("lookup.html"),
		sortTmpl:   parsePage("sort.html"),
		reportTmpl: parsePage("report.html"),
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.HandlerFunc(s.rootRoute))
	mux.Handle("/upload", http.HandlerFunc(s.uploadRoute))
	mux.Handle("/view", http.HandlerFunc(s.viewPage))
	mux.Handle("/search", http.HandlerFunc(s.searchPage))
	mux.Handle("/search/results", http.HandlerFunc(s.searchResults))
	mux.Handle("/lookup", http.HandlerFunc(s.lookupPage))
	mux.Handle("/sort", http.HandlerFunc(s.sortPage))
	mux.Handle("/report", http.HandlerFunc(s.reportPage))
	mux.Handle("/report/download", http.HandlerFunc(s.reportDownload))
	mux.Handle("/theme", http.HandlerFunc(s.toggleTheme))
	mux.Handle("/assets/app.css", http.HandlerFunc(s.appCSSFile))

	csp := strings.Join([]string{
		"default-src 'self'",
		"style-src 'self' 'unsafe-inline'",
		"img-src 'self' data:",
		"script-src 'self' 'unsafe-inline'",
		"connect-src 'self'",
		"frame-ancestors 'none'",
	}, "; ")

	return middleware.Chain(
		mux,
		middleware.RequestLog("client"),
		middleware.SecurityHeaders(middleware.SecurityHeadersConfig{ContentSecurityPolicy: csp}),
	), nil
}

func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	handler, err := NewHandler(cfg)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("client listening on http://localhost%s (backend %s)", cfg.Addr, cfg.API.BaseURL)
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

func (s *server) rootRoute(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/upload", http.StatusFound)
}

func (s *server) appCSSFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := templatesFS.ReadFile("assets/app.css")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "private, max-age=300")
	_, _ = w.Write(data)
}

// newPage fills the chrome shared by every page: theme from the cookie,
// sidebar state from the viewport client hint and the sidebar query param.
func newPage(w http.ResponseWriter, r *http.Request, title, active string) pageData {
	theme, err := chrome.LoadTheme(newCookieStore(w, r))
	if err != nil {
		log.Printf("theme load failed: %v", err)
	}

	width := chrome.ViewportWidth(r.Header.Get("Sec-CH-Viewport-Width"))
	var sidebar chrome.Sidebar
	sidebar.Init(width)
	switch r.URL.Query().Get("sidebar") {
	case "toggle":
		sidebar.Hamburger(width)
	case "close":
		sidebar.Close()
	}
	w.Header().Set("Accept-CH", "Sec-CH-Viewport-Width")
	w.Header().Add("Vary", "Sec-CH-Viewport-Width")

	return pageData{
		Title:          title,
		Active:         active,
		Path:           r.URL.Path,
		Theme:          theme,
		SidebarVisible: sidebar.Visible,
		Breakpoint:     chrome.SidebarBreakpoint,
		Results:        resultsView{Table: mustTableHTML(render.Hidden())},
	}
}

// withRegion copies a region snapshot into the page.
func (p *pageData) withRegion(region *flows.Region) error {
	snap := region.Snapshot()
	table, err := render.HTML(snap.Table)
	if err != nil {
		return err
	}
	p.Alert = snap.Alert
	p.Results = resultsView{Status: snap.Status, Tone: snap.Tone, Table: table}
	return nil
}

func mustTableHTML(t render.Table) template.HTML {
	markup, err := render.HTML(t)
	if err != nil {
		log.Printf("table render failed: %v", err)
		return ""
	}
	return markup
}

func renderHTMLTemplate(w http.ResponseWriter, tmpl *template.Template, data pageData) error {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := w.Write(buf.Bytes())
	return err
}

func (s *server) renderPage(w http.ResponseWriter, tmpl *template.Template, data pageData, region *flows.Region) {
	if region != nil {
		if err := data.withRegion(region); err != nil {
			http.Error(w, "template render failed", http.StatusInternalServerError)
			log.Printf("%s table render failed: %v", data.Active, err)
			return
		}
	}
	if err := renderHTMLTemplate(w, tmpl, data); err != nil {
		http.Error(w, "template render failed", http.StatusInternalServerError)
		log.Printf("%s template render failed: %v", data.Active, err)
	}
}

func (s *server) uploadRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.renderPage(w, s.uploadTmpl, newPage(w, r, "Upload", "upload"), nil)
	case http.MethodPost:
		s.upload(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *server) upload(w http.ResponseWriter, r *http.Request) {
	page := newPage(w, r, "Upload", "upload")
	region := flows.NewRegion()

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	var file *flows.File
	if err := r.ParseMultipartForm(s.maxUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		log.Printf("upload form parse failed: %v", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			region.Alert(fmt.Sprintf("File too large. Uploads are limited to %d bytes.", s.maxUpload))
		} else {
			region.Alert("Invalid upload form.")
		}
		s.renderPage(w, s.uploadTmpl, page, region)
		return
	}
	if f, header, err := r.FormFile("file"); err == nil {
		defer f.Close()
		if header.Filename != "" {
			file = &flows.File{Name: header.Filename, Content: f}
		}
	}

	s.app.Upload(r.Context(), region, file)
	s.renderPage(w, s.uploadTmpl, page, region)
}

func (s *server) viewPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	region := flows.NewRegion()
	s.app.ReloadAll(r.Context(), region)
	s.renderPage(w, s.viewTmpl, newPage(w, r, "View all", "view"), region)
}

func filterFromQuery(r *http.Request) attendapi.QueryFilter {
	q := r.URL.Query()
	return attendapi.NewQueryFilter(q.Get("id"), q.Get("name"), q.Get("department"))
}

func (s *server) searchPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	page := newPage(w, r, "Search", "search")
	page.DebounceMillis = debounce.DefaultWait.Milliseconds()
	page.Filter = filterFromQuery(r)

	region := flows.NewRegion()
	s.app.Search(r.Context(), region, page.Filter)
	s.renderPage(w, s.searchTmpl, page, region)
}

// searchResults answers the live search with just the results region.
func (s *server) searchResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	region := flows.NewRegion()
	s.app.Search(r.Context(), region, filterFromQuery(r))

	var page pageData
	if err := page.withRegion(region); err != nil {
		http.Error(w, "template render failed", http.StatusInternalServerError)
		log.Printf("search results render failed: %v", err)
		return
	}
	var buf bytes.Buffer
	if err := s.searchTmpl.ExecuteTemplate(&buf, "results", page.Results); err != nil {
		http.Error(w, "template render failed", http.StatusInternalServerError)
		log.Printf("search results render failed: %v", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *server) lookupPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	page := newPage(w, r, "Lookup", "lookup")
	q := r.URL.Query()
	page.LookupKind = q.Get("kind")
	page.LookupValue = q.Get("value")
	if page.LookupKind == "" {
		page.LookupKind = string(flows.LookupByID)
		s.renderPage(w, s.lookupTmpl, page, nil)
		return
	}

	region := flows.NewRegion()
	s.app.Lookup(r.Context(), region, flows.LookupKind(page.LookupKind), page.LookupValue)
	s.renderPage(w, s.lookupTmpl, page, region)
}

func (s *server) sortPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	page := newPage(w, r, "Sort", "sort")
	if !r.URL.Query().Has("order") {
		s.renderPage(w, s.sortTmpl, page, nil)
		return
	}
	page.Order = r.URL.Query().Get("order")

	region := flows.NewRegion()
	s.app.Sort(r.Context(), region, page.Order)
	s.renderPage(w, s.sortTmpl, page, region)
}

func (s *server) reportPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.renderPage(w, s.reportTmpl, newPage(w, r, "Report", "report"), nil)
}

// reportDownload streams the PDF as an attachment, or re-renders the report
// page with the alert when the download fails.
func (s *server) reportDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	threshold := r.URL.Query().Get("threshold")
	region := flows.NewRegion()
	downloader := newResponseDownloader(w)
	if _, ok := s.app.Report(r.Context(), region, threshold, downloader); ok {
		return
	}

	page := newPage(w, r, "Report", "report")
	page.Threshold = threshold
	w.Header().Set("Cache-Control", "no-store")
	s.renderPage(w, s.reportTmpl, page, region)
}

func (s *server) toggleTheme(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	store := newCookieStore(w, r)
	current, err := chrome.LoadTheme(store)
	if err != nil {
		log.Printf("theme load failed: %v", err)
	}
	if _, err := chrome.ToggleTheme(store, current); err != nil {
		log.Printf("theme toggle failed: %v", err)
	}

	target := "/upload"
	if err := r.ParseForm(); err == nil {
		if ret := r.FormValue("return"); strings.HasPrefix(ret, "/") && !strings.HasPrefix(ret, "//") {
			target = ret
		}
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
