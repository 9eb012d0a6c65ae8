package attendapi

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
)

// Field is a present-or-blank record value. Absent keys and JSON null both
// read as blank; anything else keeps a display form of its JSON value.
type Field struct {
	text    string
	present bool
}

func Text(value string) Field {
	return Field{text: value, present: true}
}

func (f Field) String() string {
	return f.text
}

func (f Field) Present() bool {
	return f.present
}

func (f *Field) UnmarshalJSON(raw []byte) error {
	f.text, f.present = displayJSON(raw)
	return nil
}

func (f Field) MarshalJSON() ([]byte, error) {
	if !f.present {
		return []byte("null"), nil
	}
	if json.Valid([]byte(f.text)) && looksNumeric(f.text) {
		return []byte(f.text), nil
	}
	return json.Marshal(f.text)
}

// Record is one attendance row as the backend reports it. The client never
// mutates records.
type Record struct {
	ID                   Field `json:"id"`
	Name                 Field `json:"name"`
	Department           Field `json:"department"`
	Attendance           Field `json:"attendance"`
	TotalDays            Field `json:"total_days"`
	AttendancePercentage Field `json:"attendance_percentage"`
	HashIndex            Field `json:"hash_index"`
}

// decodeRecordList decodes a JSON array into records. Elements that are not
// objects become all-blank records.
func decodeRecordList(raw json.RawMessage) ([]Record, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	records := make([]Record, 0, len(items))
	for _, item := range items {
		var rec Record
		if trimmed := bytes.TrimSpace(item); len(trimmed) > 0 && trimmed[0] == '{' {
			_ = json.Unmarshal(trimmed, &rec)
		}
		records = append(records, rec)
	}
	return records, true
}

func displayJSON(raw []byte) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", false
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", false
		}
		return s, true
	case 't', 'f':
		return string(trimmed), true
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return string(trimmed), true
		}
		return buf.String(), true
	default:
		if n, err := strconv.ParseFloat(string(trimmed), 64); err == nil {
			return strconv.FormatFloat(n, 'f', -1, 64), true
		}
		return string(trimmed), true
	}
}

func looksNumeric(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	return c == '-' || (c >= '0' && c <= '9')
}

// QueryFilter is the id/name/department triple behind a dynamic search.
type QueryFilter struct {
	ID         string
	Name       string
	Department string
}

func NewQueryFilter(id, name, department string) QueryFilter {
	return QueryFilter{
		ID:         strings.TrimSpace(id),
		Name:       strings.TrimSpace(name),
		Department: strings.TrimSpace(department),
	}
}

func (f QueryFilter) Empty() bool {
	return f.ID == "" && f.Name == "" && f.Department == ""
}

// Encode returns the query string for the populated fields in id, name,
// department order.
func (f QueryFilter) Encode() string {
	parts := make([]string, 0, 3)
	for _, kv := range [][2]string{{"id", f.ID}, {"name", f.Name}, {"department", f.Department}} {
		if kv[1] == "" {
			continue
		}
		parts = append(parts, kv[0]+"="+url.QueryEscape(kv[1]))
	}
	return strings.Join(parts, "&")
}

type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

func ParseDirection(raw string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(raw))) {
	case Ascending:
		return Ascending, nil
	case Descending:
		return Descending, nil
	default:
		return "", validationf("unknown sort order %q (use asc or desc)", raw)
	}
}
