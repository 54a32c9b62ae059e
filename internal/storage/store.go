// Package storage keeps recordings of live sessions: a metadata.json per
// run plus a tension.csv with every accepted tension report.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	metadataFile = "metadata.json"
	tensionFile  = "tension.csv"
)

// ErrNotFound is returned for an unknown run id.
var ErrNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// Dir is the base directory of the store.
func (s *Store) Dir() string {
	return s.baseDir
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Model     string             `json:"model"`
	Source    string             `json:"source"`
	Template  string             `json:"template"`
	Color     string             `json:"color"`
	Timestamp time.Time          `json:"timestamp"`
	Duration  float64            `json:"duration"`
	Reports   int                `json:"reports"`
	Stats     map[string]float64 `json:"stats,omitempty"`
}

// Sample is one tension report, Time seconds after the run started.
type Sample struct {
	Time    float64 `json:"t"`
	Tension float64 `json:"tension"`
}

// Recorder appends tension reports to a run as they arrive. It is safe for
// concurrent use.
type Recorder struct {
	store *Store
	dir   string
	now   func() time.Time

	mu     sync.Mutex
	meta   RunMetadata
	start  time.Time
	file   *os.File
	w      *csv.Writer
	closed bool
}

// NewRunID returns a sortable, unique run id.
func NewRunID(now time.Time) string {
	return fmt.Sprintf("%s_%s", now.Format("20060102-150405"), uuid.NewString()[:8])
}

// Record starts a new run. meta.ID and meta.Timestamp are filled in.
func (s *Store) Record(meta RunMetadata) (*Recorder, error) {
	return s.record(meta, time.Now)
}

func (s *Store) record(meta RunMetadata, now func() time.Time) (*Recorder, error) {
	start := now()
	meta.ID = NewRunID(start)
	meta.Timestamp = start
	dir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if err := writeMetadata(dir, meta); err != nil {
		return nil, err
	}

	f, err := os.Create(filepath.Join(dir, tensionFile))
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"time", "tension"}); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()

	return &Recorder{
		store: s,
		dir:   dir,
		now:   now,
		meta:  meta,
		start: start,
		file:  f,
		w:     w,
	}, nil
}

// ID is the run id.
func (r *Recorder) ID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.meta.ID
}

// Add records one tension report at the current time.
func (r *Recorder) Add(tension float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	t := r.now().Sub(r.start).Seconds()
	row := []string{
		strconv.FormatFloat(t, 'f', 3, 64),
		strconv.FormatFloat(tension, 'f', 4, 64),
	}
	if err := r.w.Write(row); err != nil {
		return err
	}
	r.w.Flush()
	r.meta.Reports++
	return r.w.Error()
}

// Close finishes the run, storing its duration and stats.
func (r *Recorder) Close(stats map[string]float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.w.Flush()
	werr := r.w.Error()
	cerr := r.file.Close()

	r.meta.Duration = r.now().Sub(r.start).Seconds()
	r.meta.Stats = stats
	if err := writeMetadata(r.dir, r.meta); err != nil {
		return err
	}
	return errors.Join(werr, cerr)
}

func writeMetadata(dir string, meta RunMetadata) error {
	f, err := os.Create(filepath.Join(dir, metadataFile))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

// List returns every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

// Latest returns the most recent run.
func (s *Store) Latest() (*RunMetadata, error) {
	runs, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNotFound
	}
	return &runs[len(runs)-1], nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: parse %s metadata: %w", runID, err)
	}
	return &meta, nil
}

// LoadTension reads the recorded timeline. Malformed rows are skipped.
func (s *Store) LoadTension(runID string) ([]Sample, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, tensionFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []Sample{}, nil
	}

	samples := make([]Sample, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) < 2 {
			continue
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			continue
		}
		v, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			continue
		}
		samples = append(samples, Sample{Time: t, Tension: v})
	}
	return samples, nil
}
