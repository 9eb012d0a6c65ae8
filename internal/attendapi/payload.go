package attendapi

import (
	"bytes"
	"encoding/json"
)

// Payload is a decoded JSON response body. Bodies that fail to parse read as
// an empty object so callers can still probe for optional fields.
type Payload struct {
	raw       json.RawMessage
	object    map[string]json.RawMessage
	malformed bool
}

func ParsePayload(body []byte) Payload {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) || len(trimmed) == 0 {
		return Payload{raw: json.RawMessage("{}"), object: map[string]json.RawMessage{}, malformed: true}
	}
	p := Payload{raw: json.RawMessage(trimmed)}
	if trimmed[0] == '{' {
		_ = json.Unmarshal(trimmed, &p.object)
	}
	return p
}

// Malformed reports whether the body was not valid JSON.
func (p Payload) Malformed() bool {
	return p.malformed
}

func (p Payload) IsArray() bool {
	return len(p.raw) > 0 && p.raw[0] == '['
}

// Records decodes the payload as a bare record list. ok is false when the
// payload is not an array.
func (p Payload) Records() ([]Record, bool) {
	if !p.IsArray() {
		return nil, false
	}
	return decodeRecordList(p.raw)
}

// RecordsAt decodes the array stored under key of an object payload.
func (p Payload) RecordsAt(key string) ([]Record, bool) {
	raw, ok := p.object[key]
	if !ok {
		return nil, false
	}
	return decodeRecordList(raw)
}

// Text returns the display form of a top-level field and whether it is set
// to something other than null.
func (p Payload) Text(key string) (string, bool) {
	raw, ok := p.object[key]
	if !ok {
		return "", false
	}
	return displayJSON(raw)
}

// Message picks the first truthy of "message" and "error", or fallback.
// Truthiness follows the JSON value, so the string "0" is a message while
// the number 0 is not.
func (p Payload) Message(fallback string) string {
	for _, key := range []string{"message", "error"} {
		raw, ok := p.object[key]
		if !ok || !truthy(raw) {
			continue
		}
		if text, ok := displayJSON(raw); ok {
			return text
		}
	}
	return fallback
}

// Count returns the backend-supplied "count" when present and not null.
func (p Payload) Count() (string, bool) {
	return p.Text("count")
}

// LookupRecords accepts the shapes the single-record search endpoints answer
// with: {"record": {...}}, {"records": [...]} or a bare array.
func (p Payload) LookupRecords() []Record {
	if records, ok := p.Records(); ok {
		return records
	}
	if records, ok := p.RecordsAt("records"); ok {
		return records
	}
	if raw, ok := p.object["record"]; ok {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && trimmed[0] == '{' {
			var rec Record
			if err := json.Unmarshal(trimmed, &rec); err == nil {
				return []Record{rec}
			}
		}
	}
	return nil
}

// truthy reports whether a raw JSON value counts as set: null, false, 0 and
// "" do not.
func truthy(raw json.RawMessage) bool {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	default:
		return true
	}
}
