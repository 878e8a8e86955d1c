package metrics

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/san-kum/polysim/internal/dynamo"
)

const columnWidth = 20

// Columns lists the fixed log columns; one "<force>_energy" column per force
// term follows them.
var Columns = []string{
	"timestep",
	"tps",
	"kinetic_temperature",
	"potential_energy",
	"kinetic_energy",
	"volume",
	"pressure",
	"pressure_tensor_xx",
	"pressure_tensor_xy",
	"pressure_tensor_xz",
	"pressure_tensor_yy",
	"pressure_tensor_yz",
	"pressure_tensor_zz",
}

// Table writes one row of thermodynamic quantities each time its trigger
// fires. The header is written before the first row.
type Table struct {
	w       *bufio.Writer
	closer  io.Closer
	trigger dynamo.Trigger
	forces  []string
	header  bool
	rows    int
}

func NewTable(w io.Writer, period uint64, forces []string) *Table {
	t := &Table{
		w:       bufio.NewWriter(w),
		trigger: dynamo.Periodic{Period: period},
		forces:  append([]string(nil), forces...),
	}
	if c, ok := w.(io.Closer); ok {
		t.closer = c
	}
	return t
}

// CreateTable opens path for writing. With appendRows an existing non-empty
// file keeps its header and rows.
func CreateTable(path string, period uint64, forces []string, appendRows bool) (*Table, error) {
	flag := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendRows {
		flag = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log table: %w", err)
	}
	t := NewTable(f, period, forces)
	if appendRows {
		if info, err := f.Stat(); err == nil && info.Size() > 0 {
			t.header = true
		}
	}
	return t, nil
}

func (t *Table) Trigger() dynamo.Trigger { return t.trigger }

// Header returns the column names in file order.
func (t *Table) Header() []string {
	h := append([]string(nil), Columns...)
	for _, f := range t.forces {
		h = append(h, f+"_energy")
	}
	return h
}

func (t *Table) Rows() int { return t.rows }

func (t *Table) Write(sim *dynamo.Simulation) error {
	s := sim.State()
	if !t.header {
		if err := t.writeRow(t.Header()); err != nil {
			return err
		}
		t.header = true
	}

	th := Compute(s)
	vals := []float64{
		float64(s.Timestep),
		sim.TPS(),
		th.KineticTemperature,
		th.PotentialEnergy,
		th.KineticEnergy,
		th.Volume,
		th.Pressure,
	}
	vals = append(vals, th.PressureTensor[:]...)
	for _, f := range t.forces {
		vals = append(vals, th.ForceEnergies[f])
	}

	cells := make([]string, len(vals))
	cells[0] = strconv.FormatUint(s.Timestep, 10)
	for i := 1; i < len(vals); i++ {
		cells[i] = strconv.FormatFloat(vals[i], 'g', 10, 64)
	}
	if err := t.writeRow(cells); err != nil {
		return err
	}
	t.rows++
	return t.w.Flush()
}

func (t *Table) writeRow(cells []string) error {
	for i, c := range cells {
		if i > 0 {
			if err := t.w.WriteByte(' '); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(t.w, "%*s", columnWidth, c); err != nil {
			return err
		}
	}
	return t.w.WriteByte('\n')
}

func (t *Table) Close() error {
	if err := t.w.Flush(); err != nil {
		return err
	}
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

// TableData is a parsed log table.
type TableData struct {
	Columns []string
	Rows    [][]float64
}

// Column returns the values of the named column, or false if it is absent.
func (d *TableData) Column(name string) ([]float64, bool) {
	idx := -1
	for i, c := range d.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	out := make([]float64, len(d.Rows))
	for i, r := range d.Rows {
		out[i] = r[idx]
	}
	return out, true
}

func ReadTable(r io.Reader) (*TableData, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	d := &TableData{}
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if d.Columns == nil {
			d.Columns = fields
			continue
		}
		if len(fields) != len(d.Columns) {
			return nil, fmt.Errorf("log table line %d: %d fields, header has %d", line, len(fields), len(d.Columns))
		}
		row := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("log table line %d column %s: %w", line, d.Columns[i], err)
			}
			row[i] = v
		}
		d.Rows = append(d.Rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return d, nil
}

func ReadTableFile(path string) (*TableData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTable(f)
}
