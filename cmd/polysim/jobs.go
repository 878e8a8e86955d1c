package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/polysim/internal/automation"
	"github.com/san-kum/polysim/internal/config"
	"github.com/san-kum/polysim/internal/experiment"
	"github.com/san-kum/polysim/internal/metrics"
	"github.com/san-kum/polysim/internal/storage"
	"github.com/spf13/cobra"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("242")).Width(16)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	todoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func planOf(cfg *config.Config) []config.Stage {
	return automation.FromConfig(cfg).Stages
}

func printResult(res *experiment.Result) {
	fmt.Printf("completed in %v\n", res.Elapsed.Round(time.Millisecond))
	fmt.Printf("final timestep: %d\n", res.FinalTimestep)
	fmt.Printf("reference units: %s\n", res.Ref)
	fmt.Printf("box: %s\n", res.Box)
	fmt.Printf("temperature: %.4f  potential: %.4f  kinetic: %.4f\n",
		res.Thermo.KineticTemperature, res.Thermo.PotentialEnergy, res.Thermo.KineticEnergy)
}

func listJobs(_ *cobra.Command, _ []string) error {
	jobs, err := storage.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("no jobs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tMOLECULE\tE_FACTOR\tTIMESTEP\tSTATUS")
	for _, j := range jobs {
		mol, ef := "?", 0.0
		if sp, err := j.Statepoint(); err == nil {
			mol, ef = sp.Molecule, sp.EFactor
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%d\t%s\n",
			j.ID,
			j.Doc.Created.Format("2006-01-02 15:04:05"),
			mol,
			ef,
			j.Doc.FinalTimestep,
			status(j.Doc),
		)
	}
	return w.Flush()
}

func status(d storage.Document) string {
	switch {
	case d.Error != "":
		return "failed"
	case d.Done:
		return "done"
	case d.ShrinkDone || d.NVTDone || d.NPTDone:
		return "partial"
	default:
		return "new"
	}
}

func showJob(_ *cobra.Command, args []string) error {
	job, err := storage.New(dataDir).Open(args[0])
	if err != nil {
		return err
	}
	if asJSON {
		return job.Export(os.Stdout)
	}
	sp, err := job.Statepoint()
	if err != nil {
		return err
	}

	var b strings.Builder
	row := func(k, v string) { b.WriteString(keyStyle.Render(k) + v + "\n") }
	b.WriteString(titleStyle.Render("job "+job.ID) + "\n\n")
	row("molecule", fmt.Sprintf("%s %v x %v", sp.Molecule, sp.NMols, sp.ChainLengths))
	row("forcefield", fmt.Sprintf("%s (e_factor %g, united atom %t)", sp.Forcefield, sp.EFactor, sp.RemoveHydrogens))
	row("density", fmt.Sprintf("%g g/cm^3", sp.Density))
	if job.Doc.RefDistance > 0 {
		row("ref units", fmt.Sprintf("mass %.4g amu, energy %.4g kJ/mol, distance %.4g nm",
			job.Doc.RefMass, job.Doc.RefEnergy, job.Doc.RefDistance))
	}
	row("timestep", fmt.Sprintf("%d", job.Doc.FinalTimestep))
	b.WriteString("\n")

	done := map[string]bool{
		config.StageShrink:   job.Doc.ShrinkDone,
		config.StageNVT:      job.Doc.NVTDone,
		config.StageNPT:      job.Doc.NPTDone,
		config.StageNVE:      job.Doc.NVEDone,
		config.StageLangevin: job.Doc.LangevinDone,
	}
	for _, st := range planOf(sp) {
		mark := todoStyle.Render("pending")
		if done[st.Kind] {
			mark = okStyle.Render("done")
		}
		row(st.Kind, fmt.Sprintf("%-8s %d steps, kT %g", mark, st.Steps, st.KT))
	}
	if job.Doc.Error != "" {
		b.WriteString("\n" + errStyle.Render(job.Doc.Error) + "\n")
	}
	fmt.Println(panelStyle.Render(strings.TrimRight(b.String(), "\n")))
	return nil
}

func plotJob(_ *cobra.Command, args []string) error {
	job, err := storage.New(dataDir).Open(args[0])
	if err != nil {
		return err
	}
	data, err := metrics.ReadTableFile(job.Path(storage.LogFile))
	if err != nil {
		return err
	}
	values, ok := data.Column(column)
	if !ok {
		return fmt.Errorf("no column %q in log (have %s)", column, strings.Join(data.Columns, ", "))
	}
	if len(values) == 0 {
		return fmt.Errorf("no data to plot")
	}
	steps, _ := data.Column("timestep")

	fmt.Printf("job: %s\n", job.ID)
	fmt.Printf("rows: %d (timestep %g to %g)\n\n", len(values), steps[0], steps[len(steps)-1])
	fmt.Println(asciigraph.Plot(values,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(column+" vs timestep"),
	))
	return nil
}
