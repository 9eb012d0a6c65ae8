package stubapi

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

var headerAliases = map[string]string{
	"id":                 "id",
	"employee_id":        "id",
	"emp_id":             "id",
	"name":               "name",
	"employee_name":      "name",
	"department":         "department",
	"dept":               "department",
	"attendance":         "attendance",
	"days_present":       "attendance",
	"present":            "attendance",
	"total_days":         "total_days",
	"working_days":       "total_days",
	"total_working_days": "total_days",
}

// parseAttendanceSheet reads the first worksheet (or CSV body) and returns one
// entry per non-blank data row.
func parseAttendanceSheet(reader io.Reader, filename string) ([]entry, error) {
	rows, err := readRowsFromSpreadsheet(reader, filename)
	if err != nil {
		return nil, err
	}

	headerIndex := map[string]int{}
	for i, header := range rows[0] {
		if canonical, ok := headerAliases[normalizeHeader(header)]; ok {
			if _, seen := headerIndex[canonical]; !seen {
				headerIndex[canonical] = i
			}
		}
	}
	for _, required := range []string{"id", "name", "attendance", "total_days"} {
		if _, ok := headerIndex[required]; !ok {
			return nil, fmt.Errorf("missing required column: %s", required)
		}
	}
	deptIdx := -1
	if idx, ok := headerIndex["department"]; ok {
		deptIdx = idx
	}

	var entries []entry
	for n, row := range rows[1:] {
		if rowIsBlank(row) {
			continue
		}
		line := n + 2
		id := cellValue(row, headerIndex["id"])
		if id == "" {
			return nil, fmt.Errorf("row %d: id is required", line)
		}
		attendance, err := parseCount(cellValue(row, headerIndex["attendance"]))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid attendance: %w", line, err)
		}
		totalDays, err := parseCount(cellValue(row, headerIndex["total_days"]))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid total_days: %w", line, err)
		}
		if totalDays <= 0 {
			return nil, fmt.Errorf("row %d: total_days must be positive", line)
		}
		if attendance > totalDays {
			return nil, fmt.Errorf("row %d: attendance exceeds total_days", line)
		}
		entries = append(entries, newEntry(
			id,
			cellValue(row, headerIndex["name"]),
			cellValue(row, deptIdx),
			attendance,
			totalDays,
		))
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no attendance rows found")
	}
	return entries, nil
}

func readRowsFromSpreadsheet(reader io.Reader, filename string) ([][]string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xls":
		workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, err
		}
		if workbook.NumSheets() == 0 {
			return nil, fmt.Errorf("no worksheet found")
		}
		rows = workbook.ReadAllCells(100000)
	case ".csv":
		r := csv.NewReader(bytes.NewReader(data))
		r.FieldsPerRecord = -1
		r.TrimLeadingSpace = true
		rows, err = r.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
	case ".xlsx", ".xlsm":
		file, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer func() { _ = file.Close() }()

		sheetName := file.GetSheetName(0)
		if sheetName == "" {
			return nil, fmt.Errorf("no worksheet found")
		}
		rows, err = file.GetRows(sheetName)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported file type %q (use .xlsx, .xls or .csv)", filepath.Ext(filename))
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("worksheet is empty")
	}
	return rows, nil
}

func normalizeHeader(header string) string {
	h := strings.TrimPrefix(header, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(h)
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func rowIsBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func parseCount(raw string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", raw)
	}
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%q is out of range", raw)
	}
	return value, nil
}
