package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/phillip-england/attendhash/internal/attendapi"
)

// Mode selects how an empty record list renders.
type Mode int

const (
	// WithPlaceholder renders an empty list as one full-width "No records
	// found." row. Upload, reload-all and lookup use it.
	WithPlaceholder Mode = iota
	// Bare renders an empty list as an empty body. The sort view uses it.
	// Rows still carry the "%" suffix on the percentage cell, same as
	// WithPlaceholder.
	Bare
)

const (
	Columns         = 7
	PlaceholderText = "No records found."
)

var Headers = []string{"ID", "Name", "Department", "Attendance", "Total Days", "Attendance %", "Hash Index"}

type Row struct {
	Cells       []string
	Placeholder bool
}

type Table struct {
	Rows   []Row
	Hidden bool
	FadeIn bool
}

// Build turns records into rows in the order given.
func Build(records []attendapi.Record, mode Mode) Table {
	if len(records) == 0 {
		if mode == WithPlaceholder {
			return Table{Rows: []Row{{Placeholder: true}}}
		}
		return Table{Rows: []Row{}}
	}
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Row{Cells: Cells(rec)})
	}
	return Table{Rows: rows}
}

// Hidden is an empty, hidden table.
func Hidden() Table {
	return Table{Rows: []Row{}, Hidden: true}
}

func Cells(rec attendapi.Record) []string {
	return []string{
		rec.ID.String(),
		rec.Name.String(),
		rec.Department.String(),
		rec.Attendance.String(),
		rec.TotalDays.String(),
		rec.AttendancePercentage.String() + "%",
		rec.HashIndex.String(),
	}
}

//go:embed templates/table.html
var templatesFS embed.FS

var tableTmpl = template.Must(template.ParseFS(templatesFS, "templates/table.html"))

type tableView struct {
	Table
	Headers         []string
	Columns         int
	PlaceholderText string
}

// HTML renders the table markup. Cell values are escaped by html/template, so
// backend data never becomes markup.
func HTML(t Table) (template.HTML, error) {
	var buf bytes.Buffer
	if err := tableTmpl.ExecuteTemplate(&buf, "table", tableView{
		Table:           t,
		Headers:         Headers,
		Columns:         Columns,
		PlaceholderText: PlaceholderText,
	}); err != nil {
		return "", fmt.Errorf("render table: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// Text writes the table for a terminal. Hidden tables write nothing.
func Text(w io.Writer, t Table) error {
	if t.Hidden {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(Headers, "\t"))
	for _, row := range t.Rows {
		if row.Placeholder {
			fmt.Fprintln(tw, PlaceholderText)
			continue
		}
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			cells[i] = sanitizeCell(c)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func sanitizeCell(value string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return ' '
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, value)
}
