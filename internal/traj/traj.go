// Package traj stores trajectory frames as a zstd-compressed text stream.
//
// A file starts with key=value header lines and a "** natoms" line. Each
// frame is
//
//	frame <timestep>
//	box <Lx> <Ly> <Lz> <xy> <xz> <yz>
//	<typeid> <x> <y> <z> <vx> <vy> <vz>   (natoms lines)
//	*
//
// The encoder is flushed after every frame, so a reader sees every frame
// written before a crash.
package traj

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/san-kum/polysim/internal/box"
	"github.com/san-kum/polysim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrFormat  = errors.New("traj: malformed trajectory")
	ErrNoFrame = errors.New("traj: trajectory has no frames")
)

type Frame struct {
	Timestep   uint64
	Box        box.Box
	TypeIDs    []int
	Positions  []r3.Vec
	Velocities []r3.Vec
}

// Apply copies the frame into s, which must hold the same particles.
func (f *Frame) Apply(s *dynamo.State) error {
	if len(f.Positions) != s.N() {
		return fmt.Errorf("%w: frame has %d particles, state has %d", ErrFormat, len(f.Positions), s.N())
	}
	copy(s.Positions, f.Positions)
	copy(s.Velocities, f.Velocities)
	s.Box = f.Box
	s.Timestep = f.Timestep
	s.MarkStale()
	return nil
}

type Writer struct {
	f       *os.File
	z       *zstd.Encoder
	w       *bufio.Writer
	natoms  int
	frames  int
	trigger dynamo.Trigger
}

// Create truncates path and writes the header.
func Create(path string, natoms int, header map[string]string, period uint64) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f, natoms, header, period)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.f = f
	return w, nil
}

// Resume continues the trajectory at path. Its complete frames are copied
// into a fresh stream next to it, which replaces path only once the copy is
// synced; a truncated trailing frame is dropped. Frames counts the copied
// frames too.
func Resume(path string, natoms int, header map[string]string, period uint64) (*Writer, error) {
	r, _, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if r.Len() != natoms {
		return nil, fmt.Errorf("%w: %s holds %d particles, want %d", ErrFormat, path, r.Len(), natoms)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*Writer, error) {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, err
	}
	w, err := NewWriter(tmp, natoms, header, period)
	if err != nil {
		return fail(err)
	}
	for {
		fr, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			if w.frames > 0 && !errors.Is(err, ErrFormat) {
				break
			}
			w.z.Close()
			return fail(fmt.Errorf("traj: copy %s: %w", path, err))
		}
		if err := w.writeFrame(fr.Timestep, fr.Box, fr.TypeIDs, fr.Positions, fr.Velocities); err != nil {
			w.z.Close()
			return fail(err)
		}
	}
	if err := tmp.Sync(); err != nil {
		w.z.Close()
		return fail(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		w.z.Close()
		return fail(err)
	}
	w.f = tmp
	return w, nil
}

func NewWriter(out io.Writer, natoms int, header map[string]string, period uint64) (*Writer, error) {
	z, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("traj: zstd writer: %w", err)
	}
	w := &Writer{z: z, w: bufio.NewWriter(z), natoms: natoms, trigger: dynamo.Periodic{Period: period}}

	keys := make([]string, 0, len(header))
	for k := range header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w.w, "%s=%s\n", k, header[k])
	}
	fmt.Fprintf(w.w, "** %d\n", natoms)
	if err := w.flush(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) Trigger() dynamo.Trigger { return w.trigger }
func (w *Writer) Frames() int             { return w.frames }

func (w *Writer) Write(sim *dynamo.Simulation) error {
	return w.WriteFrame(sim.State())
}

func (w *Writer) WriteFrame(s *dynamo.State) error {
	if s.N() != w.natoms {
		return fmt.Errorf("%w: %d particles given, %d expected", ErrFormat, s.N(), w.natoms)
	}
	return w.writeFrame(s.Timestep, s.Box, s.TypeIDs, s.Positions, s.Velocities)
}

func (w *Writer) writeFrame(ts uint64, b box.Box, types []int, pos, vel []r3.Vec) error {
	fmt.Fprintf(w.w, "frame %d\n", ts)
	fmt.Fprintf(w.w, "box %s %s %s %s %s %s\n", ff(b.Lx), ff(b.Ly), ff(b.Lz), ff(b.XY), ff(b.XZ), ff(b.YZ))
	for i, p := range pos {
		v := vel[i]
		fmt.Fprintf(w.w, "%d %s %s %s %s %s %s\n", types[i],
			ff(p.X), ff(p.Y), ff(p.Z), ff(v.X), ff(v.Y), ff(v.Z))
	}
	w.w.WriteString("*\n")
	if err := w.flush(); err != nil {
		return err
	}
	w.frames++
	return nil
}

func (w *Writer) flush() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("traj: %w", err)
	}
	if err := w.z.Flush(); err != nil {
		return fmt.Errorf("traj: %w", err)
	}
	return nil
}

func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil {
		return err
	}
	if err := w.z.Close(); err != nil {
		return err
	}
	if w.f != nil {
		return w.f.Close()
	}
	return nil
}

func ff(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

type Reader struct {
	f      *os.File
	z      *zstd.Decoder
	r      *bufio.Reader
	natoms int
}

// Open reads the header of the trajectory at path.
func Open(path string) (*Reader, map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	r, h, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	r.f = f
	return r, h, nil
}

func NewReader(in io.Reader) (*Reader, map[string]string, error) {
	z, err := zstd.NewReader(in)
	if err != nil {
		return nil, nil, fmt.Errorf("traj: zstd reader: %w", err)
	}
	r := &Reader{z: z, r: bufio.NewReader(z), natoms: -1}
	header := make(map[string]string)
	for {
		line, err := r.line()
		if err != nil {
			z.Close()
			return nil, nil, fmt.Errorf("%w: header: %v", ErrFormat, err)
		}
		if strings.HasPrefix(line, "**") {
			n, err := strconv.Atoi(strings.TrimSpace(line[2:]))
			if err != nil || n < 0 {
				z.Close()
				return nil, nil, fmt.Errorf("%w: atom count %q", ErrFormat, line)
			}
			r.natoms = n
			return r, header, nil
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			z.Close()
			return nil, nil, fmt.Errorf("%w: header line %q", ErrFormat, line)
		}
		header[k] = v
	}
}

func (r *Reader) Len() int { return r.natoms }

func (r *Reader) line() (string, error) {
	s, err := r.r.ReadString('\n')
	if err != nil {
		if err == io.EOF && s != "" {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return strings.TrimRight(s, "\n"), nil
}

// Next returns the next frame, or io.EOF after the last complete one.
func (r *Reader) Next() (*Frame, error) {
	head, err := r.line()
	if err != nil {
		return nil, err
	}
	ts, ok := strings.CutPrefix(head, "frame ")
	if !ok {
		return nil, fmt.Errorf("%w: expected frame line, got %q", ErrFormat, head)
	}
	fr := &Frame{
		TypeIDs:    make([]int, r.natoms),
		Positions:  make([]r3.Vec, r.natoms),
		Velocities: make([]r3.Vec, r.natoms),
	}
	if fr.Timestep, err = strconv.ParseUint(ts, 10, 64); err != nil {
		return nil, fmt.Errorf("%w: timestep %q", ErrFormat, ts)
	}

	bl, err := r.line()
	if err != nil {
		return nil, unexpected(err)
	}
	bv, err := parseFloats(strings.TrimPrefix(bl, "box "), 6)
	if err != nil {
		return nil, err
	}
	fr.Box = box.Box{Lx: bv[0], Ly: bv[1], Lz: bv[2], XY: bv[3], XZ: bv[4], YZ: bv[5]}

	for i := 0; i < r.natoms; i++ {
		l, err := r.line()
		if err != nil {
			return nil, unexpected(err)
		}
		typ, rest, _ := strings.Cut(l, " ")
		if fr.TypeIDs[i], err = strconv.Atoi(typ); err != nil {
			return nil, fmt.Errorf("%w: type id %q", ErrFormat, typ)
		}
		v, err := parseFloats(rest, 6)
		if err != nil {
			return nil, err
		}
		fr.Positions[i] = r3.Vec{X: v[0], Y: v[1], Z: v[2]}
		fr.Velocities[i] = r3.Vec{X: v[3], Y: v[4], Z: v[5]}
	}

	end, err := r.line()
	if err != nil {
		return nil, unexpected(err)
	}
	if end != "*" {
		return nil, fmt.Errorf("%w: expected frame terminator, got %q", ErrFormat, end)
	}
	return fr, nil
}

func (r *Reader) Close() error {
	r.z.Close()
	if r.f != nil {
		return r.f.Close()
	}
	return nil
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

func parseFloats(s string, n int) ([]float64, error) {
	fields := strings.Fields(s)
	if len(fields) != n {
		return nil, fmt.Errorf("%w: %d values in %q, want %d", ErrFormat, len(fields), s, n)
	}
	out := make([]float64, n)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		out[i] = v
	}
	return out, nil
}

// ReadLast returns the last complete frame of the trajectory at path. A
// truncated trailing frame is ignored.
func ReadLast(path string) (*Frame, map[string]string, error) {
	r, h, err := Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()

	var last *Frame
	for {
		fr, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			if last != nil && !errors.Is(err, ErrFormat) {
				break
			}
			return nil, nil, err
		}
		last = fr
	}
	if last == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoFrame, path)
	}
	return last, h, nil
}
