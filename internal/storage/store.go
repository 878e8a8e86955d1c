// Package storage keeps one directory per job under a workspace root. A
// job holds its statepoint (statepoint.yaml), its document of run metadata
// (document.json) and the files the engine writes.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/polysim/internal/config"
	"github.com/san-kum/polysim/internal/metrics"
	"github.com/san-kum/polysim/internal/units"
)

const (
	StatepointFile = "statepoint.yaml"
	DocumentFile   = "document.json"
	TrajectoryFile = "trajectory.zst"
	LogFile        = "sim_data.txt"
)

var ErrNotFound = errors.New("storage: job not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Dir() string { return s.baseDir }

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// Document is the run metadata of a job. The stage flags record completed
// stages so a workflow can tell finished jobs from ones to restart.
type Document struct {
	ID            string    `json:"id"`
	Created       time.Time `json:"created"`
	Updated       time.Time `json:"updated"`
	RefEnergy     float64   `json:"ref_energy,omitempty"`
	RefDistance   float64   `json:"ref_distance,omitempty"`
	RefMass       float64   `json:"ref_mass,omitempty"`
	StepsPerFrame uint64    `json:"steps_per_frame,omitempty"`
	StepsPerLog   uint64    `json:"steps_per_log,omitempty"`
	ShrinkDone    bool      `json:"shrink_done"`
	NVTDone       bool      `json:"NVT_done"`
	NPTDone       bool      `json:"NPT_done"`
	NVEDone       bool      `json:"NVE_done,omitempty"`
	LangevinDone  bool      `json:"langevin_done,omitempty"`
	StagesDone    int       `json:"stages_done"`
	FinalTimestep uint64    `json:"final_timestep"`
	Done          bool      `json:"done"`
	Error         string    `json:"error,omitempty"`
}

type Job struct {
	ID  string
	Dir string
	Doc Document
}

// Create makes a new job with a random id and writes its statepoint.
func (s *Store) Create(cfg *config.Config) (*Job, error) {
	id := uuid.NewString()
	dir := filepath.Join(s.baseDir, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if err := config.Save(filepath.Join(dir, StatepointFile), cfg); err != nil {
		return nil, fmt.Errorf("write statepoint: %w", err)
	}
	now := time.Now().UTC()
	j := &Job{ID: id, Dir: dir, Doc: Document{ID: id, Created: now, Updated: now}}
	if err := j.Save(); err != nil {
		return nil, err
	}
	return j, nil
}

func (s *Store) Open(id string) (*Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q is not a job id", ErrNotFound, id)
	}
	dir := filepath.Join(s.baseDir, id)
	data, err := os.ReadFile(filepath.Join(dir, DocumentFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	j := &Job{ID: id, Dir: dir}
	if err := json.Unmarshal(data, &j.Doc); err != nil {
		return nil, fmt.Errorf("job %s: %w", id, err)
	}
	return j, nil
}

// List returns every readable job, oldest first. Directories that are not
// jobs are skipped.
func (s *Store) List() ([]*Job, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Job{}, nil
		}
		return nil, err
	}
	jobs := make([]*Job, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		j, err := s.Open(entry.Name())
		if err != nil {
			continue
		}
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(a, b int) bool {
		if jobs[a].Doc.Created.Equal(jobs[b].Doc.Created) {
			return jobs[a].ID < jobs[b].ID
		}
		return jobs[a].Doc.Created.Before(jobs[b].Doc.Created)
	})
	return jobs, nil
}

func (j *Job) Path(name string) string { return filepath.Join(j.Dir, name) }

func (j *Job) Statepoint() (*config.Config, error) {
	return config.Load(j.Path(StatepointFile))
}

// Save writes the document through a temporary file so readers never see
// a partial document.
func (j *Job) Save() error {
	j.Doc.Updated = time.Now().UTC()
	data, err := json.MarshalIndent(j.Doc, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(j.Dir, ".document-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), j.Path(DocumentFile))
}

// Update applies fn to the document and saves it.
func (j *Job) Update(fn func(d *Document)) error {
	fn(&j.Doc)
	return j.Save()
}

func (j *Job) SetReferenceUnits(ref units.ReferenceUnits, stepsPerFrame, stepsPerLog uint64) error {
	return j.Update(func(d *Document) {
		d.RefEnergy = ref.Energy
		d.RefDistance = ref.Distance
		d.RefMass = ref.Mass
		d.StepsPerFrame = stepsPerFrame
		d.StepsPerLog = stepsPerLog
	})
}

// MarkStage records that plan stage idx, of the given kind, completed. The
// kind flags mirror the original document; StagesDone is what a restart
// resumes from.
func (j *Job) MarkStage(idx int, kind string) error {
	return j.Update(func(d *Document) {
		d.StagesDone = max(d.StagesDone, idx+1)
		switch kind {
		case config.StageShrink:
			d.ShrinkDone = true
		case config.StageNVT:
			d.NVTDone = true
		case config.StageNPT:
			d.NPTDone = true
		case config.StageNVE:
			d.NVEDone = true
		case config.StageLangevin:
			d.LangevinDone = true
		}
	})
}

func (j *Job) Finish(finalTimestep uint64) error {
	return j.Update(func(d *Document) {
		d.FinalTimestep = finalTimestep
		d.Done = true
		d.Error = ""
	})
}

// Fail records err without marking the job done.
func (j *Job) Fail(finalTimestep uint64, err error) error {
	return j.Update(func(d *Document) {
		d.FinalTimestep = finalTimestep
		d.Error = err.Error()
	})
}

// HasTrajectory reports whether the engine has written frames the job can
// restart from.
func (j *Job) HasTrajectory() bool {
	info, err := os.Stat(j.Path(TrajectoryFile))
	return err == nil && info.Size() > 0
}

// Export is the JSON form of a job written by Job.Export.
type Export struct {
	ID         string             `json:"id"`
	Statepoint *config.Config     `json:"statepoint"`
	Document   Document           `json:"document"`
	Log        *metrics.TableData `json:"log,omitempty"`
}

// Export writes the statepoint, document and log table of the job as one
// JSON object.
func (j *Job) Export(w io.Writer) error {
	sp, err := j.Statepoint()
	if err != nil {
		return err
	}
	out := Export{ID: j.ID, Statepoint: sp, Document: j.Doc}
	if data, err := metrics.ReadTableFile(j.Path(LogFile)); err == nil {
		out.Log = data
	} else if !os.IsNotExist(err) {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
