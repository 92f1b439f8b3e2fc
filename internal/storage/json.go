package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rewired-gh/elecwatch/internal/models"
)

// legacyTimeLayout is the zone-less timestamp format of early history files.
const legacyTimeLayout = "2006-01-02 15:04:05"

// quarantineLayout timestamps moved-aside corrupt files so earlier ones survive.
const quarantineLayout = "20060102T150405.000000000Z"

// fileRecord is the on-disk shape of a record. Early history files used the
// key "kWh", which encoding/json matches to the kwh tag case-insensitively.
type fileRecord struct {
	Time           string  `json:"time"`
	KWh            float64 `json:"kwh"`
	Power1h        float64 `json:"power_1h"`
	Power24h       float64 `json:"power_24h"`
	EstimatedHours float64 `json:"estimated_hours"`
}

// JSONFile stores history as one JSON object keyed by unit id.
type JSONFile struct {
	path            string
	filePermissions os.FileMode
	dirPermissions  os.FileMode
	legacyLocation  *time.Location
	readOnly        bool
	now             func() time.Time
}

// NewJSONFile creates a JSON backend at path. Zone-less legacy timestamps are
// interpreted in loc; nil means UTC.
func NewJSONFile(path string, loc *time.Location) *JSONFile {
	if loc == nil {
		loc = time.UTC
	}
	return &JSONFile{
		path:            path,
		filePermissions: 0o644,
		dirPermissions:  0o755,
		legacyLocation:  loc,
		now:             time.Now,
	}
}

// NewReadOnlyJSONFile is NewJSONFile for inspection: a corrupt file is
// reported but left in place, and Write fails.
func NewReadOnlyJSONFile(path string, loc *time.Location) *JSONFile {
	j := NewJSONFile(path, loc)
	j.readOnly = true
	return j
}

// Path returns the file the backend reads and writes.
func (j *JSONFile) Path() string {
	return j.path
}

// Read decodes the history file. A missing file yields an empty history. A
// file that cannot be decoded is moved aside to <path>.corrupt-<UTC time> so
// the next save does not destroy it.
func (j *JSONFile) Read() (map[string][]models.Record, error) {
	jsonData, err := os.ReadFile(j.path)
	if os.IsNotExist(err) {
		return map[string][]models.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(bytes.TrimSpace(jsonData)) == 0 {
		return map[string][]models.Record{}, nil
	}

	var raw map[string][]fileRecord
	if err := json.Unmarshal(jsonData, &raw); err != nil {
		return nil, j.quarantine(fmt.Errorf("%w: %v", ErrCorrupt, err))
	}

	out := make(map[string][]models.Record, len(raw))
	for id, frs := range raw {
		records := make([]models.Record, 0, len(frs))
		for i, fr := range frs {
			t, err := j.parseTime(fr.Time)
			if err != nil {
				return nil, j.quarantine(fmt.Errorf("%w: unit %s record %d: %v", ErrCorrupt, id, i, err))
			}
			records = append(records, models.Record{
				Time:           t,
				KWh:            fr.KWh,
				Power1h:        fr.Power1h,
				Power24h:       fr.Power24h,
				EstimatedHours: fr.EstimatedHours,
			})
		}
		out[id] = records
	}
	return out, nil
}

// Write replaces the history file atomically.
func (j *JSONFile) Write(h map[string][]models.Record) error {
	if j.readOnly {
		return fmt.Errorf("history file %s is opened read-only", j.path)
	}
	raw := make(map[string][]fileRecord, len(h))
	for id, records := range h {
		frs := make([]fileRecord, len(records))
		for i, r := range records {
			frs[i] = fileRecord{
				Time:           r.Time.Format(time.RFC3339Nano),
				KWh:            r.KWh,
				Power1h:        r.Power1h,
				Power24h:       r.Power24h,
				EstimatedHours: r.EstimatedHours,
			}
		}
		raw[id] = frs
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(raw); err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	return WriteFileAtomic(j.path, buf.Bytes(), j.filePermissions, j.dirPermissions)
}

// Close is a no-op for file storage.
func (j *JSONFile) Close() error {
	return nil
}

func (j *JSONFile) parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(legacyTimeLayout, s, j.legacyLocation)
}

func (j *JSONFile) quarantine(cause error) error {
	if j.readOnly {
		return cause
	}
	dest := j.path + ".corrupt-" + j.now().UTC().Format(quarantineLayout)
	if err := os.Rename(j.path, dest); err != nil {
		return fmt.Errorf("%w (could not move file aside: %v)", cause, err)
	}
	return fmt.Errorf("%w (moved aside to %s)", cause, dest)
}
