package traj

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/san-kum/polysim/internal/box"
	"github.com/san-kum/polysim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

func frameState(ts uint64) *dynamo.State {
	s := dynamo.NewState(3, box.Box{Lx: 4, Ly: 5, Lz: 6, XY: 0.1}, 1)
	for i := range s.Positions {
		f := float64(i) + float64(ts)/10
		s.Positions[i] = r3.Vec{X: f, Y: -f / 3, Z: 0.5}
		s.Velocities[i] = r3.Vec{X: 1.0 / 3, Y: f, Z: -2}
		s.TypeIDs[i] = i % 2
	}
	s.Timestep = ts
	return s
}

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, 3, map[string]string{"types": "A,B", "seed": "7"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, ts := range []uint64{10, 20} {
		if err := w.WriteFrame(frameState(ts)); err != nil {
			t.Fatal(err)
		}
	}
	if w.Frames() != 2 {
		t.Errorf("frames = %d", w.Frames())
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, h, err := NewReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if h["types"] != "A,B" || h["seed"] != "7" {
		t.Errorf("header = %v", h)
	}
	if r.Len() != 3 {
		t.Errorf("natoms = %d", r.Len())
	}
	for _, ts := range []uint64{10, 20} {
		fr, err := r.Next()
		if err != nil {
			t.Fatal(err)
		}
		want := frameState(ts)
		if fr.Timestep != ts {
			t.Errorf("timestep = %d, want %d", fr.Timestep, ts)
		}
		if fr.Box != want.Box {
			t.Errorf("box = %v", fr.Box)
		}
		for i := range want.Positions {
			if fr.Positions[i] != want.Positions[i] || fr.Velocities[i] != want.Velocities[i] {
				t.Errorf("particle %d differs: %v %v", i, fr.Positions[i], fr.Velocities[i])
			}
			if fr.TypeIDs[i] != want.TypeIDs[i] {
				t.Errorf("type %d = %d", i, fr.TypeIDs[i])
			}
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestReadLastAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traj.zst")
	w, err := Create(path, 3, nil, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !w.Trigger().Fire(15) || w.Trigger().Fire(16) {
		t.Error("writer trigger should be periodic in 5")
	}
	for _, ts := range []uint64{5, 10, 15} {
		if err := w.WriteFrame(frameState(ts)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	fr, _, err := ReadLast(path)
	if err != nil {
		t.Fatal(err)
	}
	if fr.Timestep != 15 {
		t.Fatalf("last timestep = %d", fr.Timestep)
	}

	s := dynamo.NewState(3, box.Cubic(1), 1)
	s.MarkCurrent()
	if err := fr.Apply(s); err != nil {
		t.Fatal(err)
	}
	if s.Timestep != 15 || s.Box != fr.Box || s.Positions[2] != fr.Positions[2] {
		t.Error("frame not applied")
	}
	if !s.Stale() {
		t.Error("applied state should need a force evaluation")
	}

	if err := fr.Apply(dynamo.NewState(2, box.Cubic(1), 1)); !errors.Is(err, ErrFormat) {
		t.Errorf("expected ErrFormat, got %v", err)
	}
}

func TestReadLastEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.zst")
	w, err := Create(path, 3, map[string]string{"natoms": "3"}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ReadLast(path); !errors.Is(err, ErrNoFrame) {
		t.Errorf("expected ErrNoFrame, got %v", err)
	}
}

func TestWriteWrongSize(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, 2, nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.WriteFrame(frameState(0)); !errors.Is(err, ErrFormat) {
		t.Errorf("expected ErrFormat, got %v", err)
	}
}

func readAll(t *testing.T, path string) []uint64 {
	t.Helper()
	r, _, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	var ts []uint64
	for {
		fr, err := r.Next()
		if err != nil {
			break
		}
		ts = append(ts, fr.Timestep)
	}
	return ts
}

func TestResumeKeepsFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traj.zst")
	w, err := Create(path, 3, nil, 5)
	if err != nil {
		t.Fatal(err)
	}
	for _, ts := range []uint64{5, 10} {
		if err := w.WriteFrame(frameState(ts)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	rw, err := Resume(path, 3, map[string]string{"seed": "1"}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if rw.Frames() != 2 {
		t.Errorf("copied frames = %d, want 2", rw.Frames())
	}
	// the resumed file must still hold the restart frame before anything new
	// is written
	if fr, _, err := ReadLast(path); err != nil || fr.Timestep != 10 {
		t.Fatalf("last frame after resume = %v, %v", fr, err)
	}
	if err := rw.WriteFrame(frameState(15)); err != nil {
		t.Fatal(err)
	}
	if err := rw.Close(); err != nil {
		t.Fatal(err)
	}

	got := readAll(t, path)
	want := []uint64{5, 10, 15}
	if len(got) != len(want) {
		t.Fatalf("frames = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frames = %v, want %v", got, want)
		}
	}
	matches, _ := filepath.Glob(path + ".*")
	if len(matches) != 0 {
		t.Errorf("temporary files left behind: %v", matches)
	}
}

func TestResumeWrongSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traj.zst")
	w, err := Create(path, 3, nil, 5)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteFrame(frameState(5)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := Resume(path, 4, nil, 5); !errors.Is(err, ErrFormat) {
		t.Errorf("expected ErrFormat, got %v", err)
	}
	if fr, _, err := ReadLast(path); err != nil || fr.Timestep != 5 {
		t.Errorf("original trajectory damaged: %v, %v", fr, err)
	}
}
