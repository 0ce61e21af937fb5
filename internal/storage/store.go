package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/chronodyn/internal/cosmo"
	"github.com/san-kum/chronodyn/internal/dynamo"
	"github.com/san-kum/chronodyn/internal/sim"
)

const (
	metadataFile = "metadata.json"
	statesFile   = "states.csv"
)

var ErrRunNotFound = errors.New("storage: run not found")

// Store keeps one directory per run holding metadata.json and states.csv.
type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

type RunMetadata struct {
	ID         string        `json:"id"`
	Model      string        `json:"model"`
	Timestamp  time.Time     `json:"timestamp"`
	Integrator string        `json:"integrator"`
	Span       [2]float64    `json:"span"`
	Params     *cosmo.Params `json:"params,omitempty"`

	Success bool           `json:"success"`
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Stats   sim.Stats      `json:"stats"`
	Events  []sim.EventHit `json:"events,omitempty"`

	// Columns names every value column after tau. The first StateDim of
	// them are the integrated state; the rest are derived.
	Columns  []string `json:"columns"`
	StateDim int      `json:"state_dim"`

	Metrics map[string]float64 `json:"metrics,omitempty"`
	Reports map[string]any     `json:"reports,omitempty"`
}

// Run is a stored result: metadata plus one row of values per sample.
type Run struct {
	Meta  RunMetadata
	Times []float64
	Rows  [][]float64
}

// NewRun copies the samples of tr. derived, when non-nil, appends extra
// columns to every row and must match tr's length.
func NewRun(model string, tr *sim.Trajectory, stateColumns []string, derived map[string][]float64) (*Run, error) {
	dim := 0
	if tr.Len() > 0 {
		dim = len(tr.States[0])
	}
	if len(stateColumns) != dim {
		return nil, fmt.Errorf("%w: %d column names for %d state variables", dynamo.ErrDimensionMismatch, len(stateColumns), dim)
	}

	names := make([]string, 0, len(derived))
	for name, col := range derived {
		if len(col) != tr.Len() {
			return nil, fmt.Errorf("%w: column %s has %d values for %d samples", dynamo.ErrDimensionMismatch, name, len(col), tr.Len())
		}
		names = append(names, name)
	}
	sort.Strings(names)

	run := &Run{
		Meta: RunMetadata{
			Model:      model,
			Integrator: string(tr.Method),
			Span:       tr.Span(),
			Success:    tr.Success,
			Status:     tr.Status.String(),
			Message:    tr.Message,
			Stats:      tr.Stats,
			Events:     tr.Events,
			Columns:    append(append([]string(nil), stateColumns...), names...),
			StateDim:   dim,
		},
		Times: append([]float64(nil), tr.Times...),
		Rows:  make([][]float64, tr.Len()),
	}
	for i, st := range tr.States {
		row := append([]float64(nil), st...)
		for _, name := range names {
			row = append(row, derived[name][i])
		}
		run.Rows[i] = row
	}
	return run, nil
}

// Trajectory rebuilds the integrated state columns with dense output.
func (r *Run) Trajectory() *sim.Trajectory {
	states := make([]dynamo.State, len(r.Rows))
	for i, row := range r.Rows {
		states[i] = dynamo.State(append([]float64(nil), row[:r.Meta.StateDim]...))
	}
	tr := sim.NewTrajectory(r.Times, states)
	tr.Stats = r.Meta.Stats
	tr.Success = r.Meta.Success
	tr.Message = r.Meta.Message
	tr.Events = r.Meta.Events
	return tr
}

// Column returns every value of the named column, or nil if absent. "tau"
// names the time column.
func (r *Run) Column(name string) []float64 {
	if name == "tau" {
		return append([]float64(nil), r.Times...)
	}
	for j, c := range r.Meta.Columns {
		if c != name {
			continue
		}
		out := make([]float64, len(r.Rows))
		for i, row := range r.Rows {
			out[i] = row[j]
		}
		return out
	}
	return nil
}

// Save writes the run under a fresh ID and returns it.
func (s *Store) Save(run *Run) (string, error) {
	now := s.now()
	run.Meta.ID = fmt.Sprintf("%s_%d", run.Meta.Model, now.UnixNano())
	run.Meta.Timestamp = now
	runDir := filepath.Join(s.baseDir, run.Meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(run.Meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, statesFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteCSV(csvFile, run); err != nil {
		return "", err
	}
	return run.Meta.ID, csvFile.Sync()
}

// WriteCSV writes a tau column followed by the run's value columns. Values
// use the shortest exact representation.
func WriteCSV(out io.Writer, run *Run) error {
	w := csv.NewWriter(out)

	header := append([]string{"tau"}, run.Meta.Columns...)
	if err := w.Write(header); err != nil {
		return err
	}
	for i, row := range run.Rows {
		rec := make([]string, 0, len(row)+1)
		rec = append(rec, strconv.FormatFloat(run.Times[i], 'g', -1, 64))
		for _, v := range row {
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

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
		meta, err := s.LoadMeta(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) LoadMeta(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode %s metadata: %w", runID, err)
	}
	return &meta, nil
}

// Load reads a run's metadata and samples.
func (s *Store) Load(runID string) (*Run, error) {
	meta, err := s.LoadMeta(runID)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	times, rows, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("read %s states: %w", runID, err)
	}
	return &Run{Meta: *meta, Times: times, Rows: rows}, nil
}

// ReadCSV parses the format written by WriteCSV.
func ReadCSV(in io.Reader) ([]float64, [][]float64, error) {
	r := csv.NewReader(in)
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) < 2 {
		return []float64{}, [][]float64{}, nil
	}

	times := make([]float64, 0, len(records)-1)
	rows := make([][]float64, 0, len(records)-1)
	for line, record := range records[1:] {
		vals := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("line %d column %d: %w", line+2, j+1, err)
			}
			vals[j] = v
		}
		times = append(times, vals[0])
		rows = append(rows, vals[1:])
	}
	return times, rows, nil
}
