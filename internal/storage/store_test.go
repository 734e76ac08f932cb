package storage

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/san-kum/fixstep/internal/config"
	"github.com/san-kum/fixstep/internal/dynamo"
	"github.com/san-kum/fixstep/internal/integrators"
	"github.com/san-kum/fixstep/internal/sim"
)

func testResult() *sim.Result {
	return &sim.Result{
		Integrator: "rk4",
		States: []dynamo.State{
			{1.0, 0.0},
			{0.9, -0.1},
			{0.1 + 0.2, -0.25},
		},
		Controls: []dynamo.Control{
			{0.5},
			{-0.5},
		},
		Times:      []float64{0.0, 0.01, 0.02},
		StepsTaken: 2,
		Stats:      integrators.Stats{Steps: 2, Evaluations: 8, LastTime: 0.02},
		Metrics: map[string]float64{
			"energy": 1.5,
		},
	}
}

func fixedClock(s *Store, start time.Time) {
	next := start
	s.now = func() time.Time {
		t := next
		next = next.Add(time.Second)
		return t
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Model = "test"
	cfg.Seed = 42
	runID, err := st.Save(cfg, testResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if runID == "" {
		t.Error("expected non-empty run id")
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Model != "test" {
		t.Errorf("expected model 'test', got '%s'", meta.Model)
	}
	if meta.Seed != 42 {
		t.Errorf("expected seed 42, got %d", meta.Seed)
	}
	if meta.Metrics["energy"] != 1.5 {
		t.Errorf("expected energy 1.5, got %f", meta.Metrics["energy"])
	}
	if meta.StateDim != 2 || meta.ControlDim != 1 || meta.Stats.Evaluations != 8 {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if meta.Control != config.ControlZero {
		t.Errorf("control = %q", meta.Control)
	}

	traj, err := st.LoadTrajectory(runID)
	if err != nil {
		t.Fatalf("load trajectory failed: %v", err)
	}
	if len(traj.States) != 3 || len(traj.Times) != 3 {
		t.Fatalf("expected 3 samples, got %d states and %d times", len(traj.States), len(traj.Times))
	}
	if len(traj.Controls) != 2 || traj.Controls[1][0] != -0.5 {
		t.Errorf("unexpected controls %v", traj.Controls)
	}
	if traj.States[2][0] != 0.1+0.2 {
		t.Errorf("states must round-trip exactly, got %v", traj.States[2][0])
	}
}

func TestStoreList(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	fixedClock(st, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	cfg := config.DefaultConfig()
	for _, model := range []string{"pendulum", "lorenz"} {
		cfg.Model = model
		if _, err := st.Save(cfg, testResult()); err != nil {
			t.Fatal(err)
		}
	}
	// stray directory without metadata
	if err := os.MkdirAll(filepath.Join(st.baseDir, "junk"), 0755); err != nil {
		t.Fatal(err)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Model != "pendulum" || runs[1].Model != "lorenz" {
		t.Errorf("runs not in save order: %s, %s", runs[0].Model, runs[1].Model)
	}
}

func TestStoreList_Missing(t *testing.T) {
	runs, err := New(filepath.Join(t.TempDir(), "nothing")).List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no runs, got %d", len(runs))
	}
}

func TestSaveAs_InvalidID(t *testing.T) {
	st := New(t.TempDir())
	for _, id := range []string{"", "../escape", "a/b"} {
		if err := st.SaveAs(id, config.DefaultConfig(), testResult()); err == nil {
			t.Errorf("expected error for id %q", id)
		}
	}
}

func TestLoad_Missing(t *testing.T) {
	st := New(t.TempDir())
	if _, err := st.Load("nope"); err == nil {
		t.Error("expected error")
	}
	if _, err := st.LoadTrajectory("nope"); err == nil {
		t.Error("expected error")
	}
}

func TestExportJSON(t *testing.T) {
	st := New(t.TempDir())
	cfg := config.DefaultConfig()
	if err := st.SaveAs("run1", cfg, testResult()); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := st.ExportJSON("run1", &buf); err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["id"] != "run1" || got["model"] != "pendulum" {
		t.Errorf("metadata fields not flattened: %v", got)
	}
	if got["steps"].(float64) != 3 {
		t.Errorf("steps = %v", got["steps"])
	}
	if len(got["controls"].([]any)) != 2 {
		t.Errorf("controls = %v", got["controls"])
	}
}
