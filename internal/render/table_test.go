package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/phillip-england/attendhash/internal/attendapi"
)

func parseTable(t *testing.T, table Table) *goquery.Document {
	t.Helper()
	markup, err := HTML(table)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(markup)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func sampleRecords(n int) []attendapi.Record {
	records := make([]attendapi.Record, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, attendapi.Record{
			ID:                   attendapi.Text(string(rune('1' + i))),
			Name:                 attendapi.Text("Name"),
			AttendancePercentage: attendapi.Text("50"),
		})
	}
	return records
}

func TestRowCountIsMaxOneAndLength(t *testing.T) {
	for n := 0; n <= 5; n++ {
		doc := parseTable(t, Build(sampleRecords(n), WithPlaceholder))
		rows := doc.Find("tbody tr")
		want := n
		if want < 1 {
			want = 1
		}
		if rows.Length() != want {
			t.Fatalf("n=%d: expected %d rows, got %d", n, want, rows.Length())
		}
		placeholders := doc.Find("tbody tr.placeholder").Length()
		if n == 0 && placeholders != 1 {
			t.Fatalf("expected exactly one placeholder row, got %d", placeholders)
		}
		if n > 0 && placeholders != 0 {
			t.Fatalf("unexpected placeholder rows for n=%d", n)
		}
	}
}

func TestPlaceholderSpansAllColumns(t *testing.T) {
	doc := parseTable(t, Build(nil, WithPlaceholder))
	cell := doc.Find("tbody tr.placeholder td")
	if colspan, _ := cell.Attr("colspan"); colspan != "7" {
		t.Fatalf("expected colspan 7, got %q", colspan)
	}
	if strings.TrimSpace(cell.Text()) != PlaceholderText {
		t.Fatalf("unexpected placeholder text %q", cell.Text())
	}
}

func TestBareModeRendersNoRowsForEmptyList(t *testing.T) {
	table := Build(nil, Bare)
	if table.Hidden {
		t.Fatalf("bare table should be visible")
	}
	doc := parseTable(t, table)
	if n := doc.Find("tbody tr").Length(); n != 0 {
		t.Fatalf("expected no rows, got %d", n)
	}
}

func TestBareModeKeepsPercentSuffix(t *testing.T) {
	rec := attendapi.Record{ID: attendapi.Text("1"), AttendancePercentage: attendapi.Text("87.5")}
	for _, mode := range []Mode{WithPlaceholder, Bare} {
		table := Build([]attendapi.Record{rec}, mode)
		if len(table.Rows) != 1 || table.Rows[0].Cells[5] != "87.5%" {
			t.Fatalf("mode %d: unexpected rows %+v", mode, table.Rows)
		}
	}
}

func TestCellsBlankMissingFieldsAndAppendPercent(t *testing.T) {
	cells := Cells(attendapi.Record{ID: attendapi.Text("3"), AttendancePercentage: attendapi.Text("100")})
	want := []string{"3", "", "", "", "", "100%", ""}
	for i := range want {
		if cells[i] != want[i] {
			t.Fatalf("cell %d: expected %q, got %q", i, want[i], cells[i])
		}
	}
	blank := Cells(attendapi.Record{})
	if blank[5] != "%" {
		t.Fatalf("missing percentage still renders the suffix, got %q", blank[5])
	}
}

func TestHTMLEscapesRecordFields(t *testing.T) {
	rec := attendapi.Record{Name: attendapi.Text(`<script>alert("x")</script>`), HashIndex: attendapi.Text(`<img src=x onerror=1>`)}
	markup, err := HTML(Build([]attendapi.Record{rec}, WithPlaceholder))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(string(markup), "<script>") || strings.Contains(string(markup), "<img") {
		t.Fatalf("record fields leaked markup: %s", markup)
	}
	doc := parseTable(t, Build([]attendapi.Record{rec}, WithPlaceholder))
	if doc.Find("tbody script, tbody img").Length() != 0 {
		t.Fatalf("unexpected elements parsed from record fields")
	}
	if got := doc.Find("tbody td").Eq(1).Text(); got != `<script>alert("x")</script>` {
		t.Fatalf("expected text to round-trip, got %q", got)
	}
}

func TestHiddenAndFadeInClasses(t *testing.T) {
	doc := parseTable(t, Hidden())
	if !doc.Find("table").HasClass("hidden") {
		t.Fatalf("expected hidden class")
	}
	table := Build(sampleRecords(1), WithPlaceholder)
	table.FadeIn = true
	doc = parseTable(t, table)
	if doc.Find("table").HasClass("hidden") || !doc.Find("table").HasClass("fade-in") {
		t.Fatalf("expected visible fading table")
	}
}

func TestTextWritesRowsAndPlaceholder(t *testing.T) {
	var buf bytes.Buffer
	if err := Text(&buf, Build(nil, WithPlaceholder)); err != nil {
		t.Fatalf("text: %v", err)
	}
	if !strings.Contains(buf.String(), PlaceholderText) {
		t.Fatalf("expected placeholder in output: %q", buf.String())
	}

	buf.Reset()
	rec := attendapi.Record{ID: attendapi.Text("1"), Name: attendapi.Text("Ada\tLovelace")}
	if err := Text(&buf, Build([]attendapi.Record{rec}, Bare)); err != nil {
		t.Fatalf("text: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "Ada Lovelace") {
		t.Fatalf("unexpected text table: %q", buf.String())
	}

	buf.Reset()
	if err := Text(&buf, Hidden()); err != nil || buf.Len() != 0 {
		t.Fatalf("hidden table should write nothing, got %q %v", buf.String(), err)
	}
}
