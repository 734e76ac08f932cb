package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/fixstep/internal/config"
	"github.com/san-kum/fixstep/internal/integrators"
	"github.com/san-kum/fixstep/internal/sim"
)

const (
	metadataFile = "metadata.json"
	statesFile   = "states.csv"
)

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

type RunMetadata struct {
	ID          string                    `json:"id"`
	Model       string                    `json:"model"`
	Timestamp   time.Time                 `json:"timestamp"`
	Seed        int64                     `json:"seed"`
	Dt          float64                   `json:"dt"`
	Duration    float64                   `json:"duration"`
	Integrator  string                    `json:"integrator"`
	Control     string                    `json:"control"`
	Params      map[string]float64        `json:"params,omitempty"`
	Newton      integrators.NewtonOptions `json:"newton"`
	StateDim    int                       `json:"state_dim"`
	ControlDim  int                       `json:"control_dim"`
	StepsTaken  int                       `json:"steps_taken"`
	EnergyDrift float64                   `json:"energy_drift"`
	Stats       integrators.Stats         `json:"stats"`
	Metrics     map[string]float64        `json:"metrics"`
}

// Trajectory is a run read back from states.csv. Controls has one entry per
// step, so it is one shorter than States.
type Trajectory struct {
	Times    []float64
	States   [][]float64
	Controls [][]float64
}

// Save stores a run under a fresh id derived from the model name.
func (s *Store) Save(cfg *config.Config, result *sim.Result) (string, error) {
	runID := fmt.Sprintf("%s_%d", cfg.Model, s.now().UnixMilli())
	if err := s.SaveAs(runID, cfg, result); err != nil {
		return "", err
	}
	return runID, nil
}

// SaveAs stores a run under runID, replacing any run with that id.
func (s *Store) SaveAs(runID string, cfg *config.Config, result *sim.Result) error {
	if runID == "" || filepath.Base(runID) != runID {
		return fmt.Errorf("invalid run id %q", runID)
	}
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return err
	}

	meta := RunMetadata{
		ID:          runID,
		Model:       cfg.Model,
		Timestamp:   s.now(),
		Seed:        cfg.Seed,
		Dt:          cfg.Dt,
		Duration:    cfg.Duration,
		Integrator:  result.Integrator,
		Control:     controlKind(cfg),
		Params:      cfg.Params,
		Newton:      cfg.Newton,
		StepsTaken:  result.StepsTaken,
		EnergyDrift: result.EnergyDrift,
		Stats:       result.Stats,
		Metrics:     result.Metrics,
	}
	if len(result.States) > 0 {
		meta.StateDim = len(result.States[0])
	}
	if len(result.Controls) > 0 {
		meta.ControlDim = len(result.Controls[0])
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return err
	}
	return writeStates(filepath.Join(runDir, statesFile), meta, result)
}

func controlKind(cfg *config.Config) string {
	if cfg.Control.Kind == "" {
		return config.ControlZero
	}
	return cfg.Control.Kind
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeStates(path string, meta RunMetadata, result *sim.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"time"}
	for i := 0; i < meta.StateDim; i++ {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	for i := 0; i < meta.ControlDim; i++ {
		header = append(header, fmt.Sprintf("u%d", i))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i := range result.States {
		row := []string{formatFloat(result.Times[i])}
		for _, val := range result.States[i] {
			row = append(row, formatFloat(val))
		}
		// the final state has no control applied after it
		if i < len(result.Controls) {
			for _, val := range result.Controls[i] {
				row = append(row, formatFloat(val))
			}
		} else {
			for j := 0; j < meta.ControlDim; j++ {
				row = append(row, "")
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// List returns every stored run, oldest first. Directories without readable
// metadata are skipped.
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
		if runs[i].Timestamp.Equal(runs[j].Timestamp) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadTrajectory(runID string) (*Trajectory, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = 1 + meta.StateDim + meta.ControlDim
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	traj := &Trajectory{}
	if len(records) < 2 {
		return traj, nil
	}

	for line, record := range records[1:] {
		values := make([]float64, len(record))
		blank := 0
		for j, field := range record {
			if field == "" && j > meta.StateDim {
				blank++
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("run %s line %d: %w", runID, line+2, err)
			}
			values[j] = v
		}

		traj.Times = append(traj.Times, values[0])
		traj.States = append(traj.States, values[1:1+meta.StateDim])
		if blank == 0 && line < len(records)-2 {
			traj.Controls = append(traj.Controls, values[1+meta.StateDim:])
		}
	}
	return traj, nil
}
