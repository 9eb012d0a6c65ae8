package stubapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/phillip-england/attendhash/internal/attendapi"
	"github.com/phillip-england/attendhash/internal/security"
	"github.com/ulikunitz/xz"
)

type entry struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Department string  `json:"department"`
	Attendance float64 `json:"attendance"`
	TotalDays  float64 `json:"total_days"`
	Percentage float64 `json:"attendance_percentage"`
	HashIndex  string  `json:"hash_index"`
	Seq        int     `json:"seq"`
}

func newEntry(id, name, department string, attendance, totalDays float64) entry {
	e := entry{
		ID:         strings.TrimSpace(id),
		Name:       strings.TrimSpace(name),
		Department: strings.TrimSpace(department),
		Attendance: attendance,
		TotalDays:  totalDays,
		Percentage: math.Round(attendance/totalDays*10000) / 100,
	}
	e.HashIndex = security.RecordHash(e.ID, e.Name, e.Department, formatNumber(e.Attendance), formatNumber(e.TotalDays))
	return e
}

func (e entry) record() attendapi.Record {
	return attendapi.Record{
		ID:                   attendapi.Text(e.ID),
		Name:                 attendapi.Text(e.Name),
		Department:           attendapi.Text(e.Department),
		Attendance:           attendapi.Text(formatNumber(e.Attendance)),
		TotalDays:            attendapi.Text(formatNumber(e.TotalDays)),
		AttendancePercentage: attendapi.Text(formatNumber(e.Percentage)),
		HashIndex:            attendapi.Text(e.HashIndex),
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func records(entries []entry) []attendapi.Record {
	out := make([]attendapi.Record, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.record())
	}
	return out
}

// memoryStore holds attendance rows keyed by id. Upserts keep the original
// insertion position of an existing id.
type memoryStore struct {
	mu      sync.RWMutex
	byID    map[string]entry
	nextSeq int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{byID: map[string]entry{}}
}

func storeKey(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func (s *memoryStore) upsert(entries []entry) []entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := make([]entry, 0, len(entries))
	for _, e := range entries {
		key := storeKey(e.ID)
		if current, ok := s.byID[key]; ok {
			e.Seq = current.Seq
		} else {
			s.nextSeq++
			e.Seq = s.nextSeq
		}
		s.byID[key] = e
		saved = append(saved, e)
	}
	return saved
}

func (s *memoryStore) all() []entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entry, 0, len(s.byID))
	for _, e := range s.byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (s *memoryStore) get(id string) (entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[storeKey(id)]
	return e, ok
}

// search ANDs an exact id match with case-insensitive substring matches on
// name and department. Empty criteria match everything.
func (s *memoryStore) search(id, name, department string) []entry {
	id = storeKey(id)
	name = strings.ToLower(strings.TrimSpace(name))
	department = strings.ToLower(strings.TrimSpace(department))

	var out []entry
	for _, e := range s.all() {
		if id != "" && storeKey(e.ID) != id {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(e.Name), name) {
			continue
		}
		if department != "" && !strings.Contains(strings.ToLower(e.Department), department) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// sorted orders by attendance percentage, ties by insertion order.
func (s *memoryStore) sorted(descending bool) []entry {
	out := s.all()
	sort.SliceStable(out, func(i, j int) bool {
		if descending {
			return out[i].Percentage > out[j].Percentage
		}
		return out[i].Percentage < out[j].Percentage
	})
	return out
}

func (s *memoryStore) below(threshold float64) []entry {
	var out []entry
	for _, e := range s.sorted(false) {
		if e.Percentage < threshold {
			out = append(out, e)
		}
	}
	return out
}

// saveSnapshot writes all rows as xz-compressed JSON, replacing path
// atomically.
func (s *memoryStore) saveSnapshot(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	tmpPath := path + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if err := writeSnapshot(file, s.all()); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("install snapshot: %w", err)
	}
	return nil
}

func writeSnapshot(w io.Writer, entries []entry) error {
	zw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("open xz writer: %w", err)
	}
	if err := json.NewEncoder(zw).Encode(entries); err != nil {
		_ = zw.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}
	return nil
}

// ErrTamperedSnapshot marks a snapshot row whose hash index no longer
// matches its fields.
var ErrTamperedSnapshot = errors.New("snapshot hash mismatch")

func (e entry) verify() bool {
	return security.VerifyRecordHash(e.HashIndex, e.ID, e.Name, e.Department,
		formatNumber(e.Attendance), formatNumber(e.TotalDays))
}

// loadSnapshot restores rows from path. A missing file leaves the store empty.
func (s *memoryStore) loadSnapshot(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	zr, err := xz.NewReader(file)
	if err != nil {
		return fmt.Errorf("open xz reader: %w", err)
	}
	var entries []entry
	if err := json.NewDecoder(zr).Decode(&entries); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	for _, e := range entries {
		if !e.verify() {
			return fmt.Errorf("%w: record %q", ErrTamperedSnapshot, e.ID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]entry, len(entries))
	s.nextSeq = 0
	for _, e := range entries {
		s.byID[storeKey(e.ID)] = e
		if e.Seq > s.nextSeq {
			s.nextSeq = e.Seq
		}
	}
	return nil
}
