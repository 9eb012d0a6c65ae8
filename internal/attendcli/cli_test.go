package attendcli

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phillip-england/attendhash/internal/envutil"
	"github.com/phillip-england/attendhash/internal/stubapi"
)

const sheet = "id,name,department,attendance,total_days\n" +
	"1,Ada Lovelace,Engineering,7,8\n" +
	"2,Grace Hopper,Ops,8,8\n" +
	"3,Alan Turing,Engineering,2,3\n"

type harness struct {
	t       *testing.T
	dir     string
	baseURL string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	handler, err := stubapi.NewHandler(stubapi.Config{})
	if err != nil {
		t.Fatalf("stub handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &harness{t: t, dir: t.TempDir(), baseURL: srv.URL}
}

func (h *harness) run(stdin string, args ...string) (string, string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	full := append(args, "--api-base-url", h.baseURL, "--env-file", filepath.Join(h.dir, ".env"))
	err := execute(full, streams{in: strings.NewReader(stdin), out: &out, err: &errOut})
	return out.String(), errOut.String(), err
}

func (h *harness) upload(t *testing.T) {
	t.Helper()
	path := filepath.Join(h.dir, "sheet.csv")
	if err := os.WriteFile(path, []byte(sheet), 0o600); err != nil {
		t.Fatalf("write sheet: %v", err)
	}
	out, _, err := h.run("", "upload", path)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.Contains(out, "📋 Showing 3 record(s) from database.") {
		t.Fatalf("unexpected upload output %q", out)
	}
}

func TestUsageErrors(t *testing.T) {
	h := newHarness(t)
	for _, args := range [][]string{
		{},
		{"bogus"},
		{"sort"},
		{"lookup", "email", "x"},
		{"search"},
		{"theme", "flip"},
		{"view", "--nope"},
	} {
		_, _, err := h.run("", args...)
		if !errors.Is(err, ErrUsage) {
			t.Fatalf("%v: expected usage error, got %v", args, err)
		}
	}
}

func TestUploadViewSortAndSearch(t *testing.T) {
	h := newHarness(t)
	h.upload(t)

	out, _, err := h.run("", "view")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if !strings.Contains(out, "Grace Hopper") || !strings.Contains(out, "87.5%") {
		t.Fatalf("unexpected view output %q", out)
	}

	out, _, err = h.run("", "sort", "asc")
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	turing, ada := strings.Index(out, "Alan Turing"), strings.Index(out, "Ada Lovelace")
	if turing < 0 || ada < 0 || turing > ada {
		t.Fatalf("expected ascending order, got %q", out)
	}

	out, _, err = h.run("", "search", "--id", "3")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.HasPrefix(out, "✅ Found 1 record(s).") || !strings.Contains(out, "Alan Turing") {
		t.Fatalf("unexpected search output %q", out)
	}
}

func TestFailedFlowsReturnErrFlowFailed(t *testing.T) {
	h := newHarness(t)

	_, stderr, err := h.run("", "sort", "sideways")
	if !errors.Is(err, ErrFlowFailed) || !strings.HasPrefix(stderr, "Sort failed: ") {
		t.Fatalf("expected sort alert, got %v %q", err, stderr)
	}

	out, _, err := h.run("", "lookup", "id", "42")
	if !errors.Is(err, ErrFlowFailed) || strings.TrimSpace(out) != "❌ Employee not found" {
		t.Fatalf("expected lookup failure, got %v %q", err, out)
	}

	_, _, err = h.run("", "upload", filepath.Join(h.dir, "missing.csv"))
	if err == nil || errors.Is(err, ErrUsage) {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestReportSavesIntoDir(t *testing.T) {
	h := newHarness(t)
	h.upload(t)
	dir := filepath.Join(h.dir, "reports")

	out, _, err := h.run("", "report", "90", "--dir", dir)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	want := filepath.Join(dir, "attendance_report_90.pdf")
	if strings.TrimSpace(out) != "saved "+want {
		t.Fatalf("unexpected output %q", out)
	}
	data, err := os.ReadFile(want)
	if err != nil || !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("expected pdf at %s: %v", want, err)
	}

	_, stderr, err := h.run("", "report", "abc", "--dir", dir)
	if !errors.Is(err, ErrFlowFailed) || !strings.HasPrefix(stderr, "Failed to generate PDF: ") {
		t.Fatalf("expected report failure, got %v %q", err, stderr)
	}
}

func TestLiveSearchDebouncesStdinEdits(t *testing.T) {
	h := newHarness(t)
	h.upload(t)

	out, _, err := h.run("name=a\nname=al\nname=ala\nname=alan\ndepartment=eng\nquit\n", "search", "--live")
	if err != nil {
		t.Fatalf("live search: %v", err)
	}
	if n := strings.Count(out, "✅ Found"); n != 1 {
		t.Fatalf("expected one settled query, got %d in %q", n, out)
	}
	if !strings.Contains(out, "✅ Found 1 record(s).") || !strings.Contains(out, "Alan Turing") {
		t.Fatalf("expected the last filter to win, got %q", out)
	}
}

func TestSetupAndTheme(t *testing.T) {
	h := newHarness(t)
	envPath := filepath.Join(h.dir, ".env")
	if _, _, err := h.run("", "setup"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	values, err := envutil.ReadDotEnv(envPath)
	if err != nil {
		t.Fatalf("read env: %v", err)
	}
	if values["API_BASE_URL"] != h.baseURL || values["CLIENT_ADDR"] != ":3000" {
		t.Fatalf("unexpected env values %v", values)
	}
	if _, _, err := h.run("", "setup"); err == nil {
		t.Fatalf("setup must not overwrite without --force")
	}

	t.Setenv("THEME_FILE", filepath.Join(h.dir, "theme"))
	out, _, err := h.run("", "theme")
	if err != nil || strings.TrimSpace(out) != "light" {
		t.Fatalf("expected light theme, got %q %v", out, err)
	}
	out, _, err = h.run("", "theme", "toggle")
	if err != nil || strings.TrimSpace(out) != "dark" {
		t.Fatalf("expected dark theme, got %q %v", out, err)
	}
	out, _, _ = h.run("", "theme")
	if strings.TrimSpace(out) != "dark" {
		t.Fatalf("theme should persist, got %q", out)
	}
}
