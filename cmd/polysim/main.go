package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/san-kum/polysim/internal/box"
	"github.com/san-kum/polysim/internal/builder"
	"github.com/san-kum/polysim/internal/config"
	"github.com/san-kum/polysim/internal/experiment"
	"github.com/san-kum/polysim/internal/sim"
	"github.com/san-kum/polysim/internal/storage"
	"github.com/san-kum/polysim/internal/telemetry"
	"github.com/spf13/cobra"
)

var (
	dataDir     string
	logLevel    string
	jsonLogs    bool
	metricsFile string

	configFile string
	preset     string
	dt         float64
	seed       uint64
	eFactor    float64
	device     string

	factors []float64
	workers int

	molecule string
	nMols    []int
	lengths  []int
	density  float64
	fixX     float64
	fixY     float64
	fixZ     float64

	column string
	asJSON bool
	width  int
	height int

	logger zerolog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "polysim",
		Short:         "staged molecular dynamics of polymer melts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			logger, err = telemetry.NewLogger(os.Stderr, logLevel, !jsonLogs)
			return err
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "workspace", "job workspace directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (default $LOG_LEVEL or info)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "write logs as JSON lines")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "create a job and run its stages",
		Args:  cobra.NoArgs,
		RunE:  runJob,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "statepoint file (yaml or toml)")
	runCmd.Flags().StringVar(&preset, "preset", "", "start from a named preset")
	runCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep in reduced units")
	runCmd.Flags().Uint64Var(&seed, "seed", config.DefaultSeed, "velocity seed")
	runCmd.Flags().Float64Var(&eFactor, "e-factor", 1, "epsilon scale factor")
	runCmd.Flags().StringVar(&device, "device", "cpu", "compute device (cpu, serial, gpu, auto)")
	runCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write prometheus metrics to this textfile")

	resumeCmd := &cobra.Command{
		Use:   "resume [job_id]",
		Short: "continue an unfinished job from its last frame",
		Args:  cobra.ExactArgs(1),
		RunE:  resumeJob,
	}
	resumeCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write prometheus metrics to this textfile")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "run one job per epsilon factor",
		Args:  cobra.NoArgs,
		RunE:  sweepJobs,
	}
	sweepCmd.Flags().StringVar(&configFile, "config", "", "statepoint file (yaml or toml)")
	sweepCmd.Flags().StringVar(&preset, "preset", "", "start from a named preset")
	sweepCmd.Flags().Float64SliceVar(&factors, "factors", []float64{0.8, 1.0, 1.2}, "epsilon factors")
	sweepCmd.Flags().IntVar(&workers, "workers", 2, "jobs run at once")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list jobs",
		Args:  cobra.NoArgs,
		RunE:  listJobs,
	}

	showCmd := &cobra.Command{
		Use:   "show [job_id]",
		Short: "show a job's statepoint and progress",
		Args:  cobra.ExactArgs(1),
		RunE:  showJob,
	}
	showCmd.Flags().BoolVar(&asJSON, "json", false, "export statepoint, document and log as JSON")

	plotCmd := &cobra.Command{
		Use:   "plot [job_id]",
		Short: "plot a column of the job's log table",
		Args:  cobra.ExactArgs(1),
		RunE:  plotJob,
	}
	plotCmd.Flags().StringVar(&column, "column", "potential_energy", "log column")
	plotCmd.Flags().IntVar(&width, "width", 80, "plot width")
	plotCmd.Flags().IntVar(&height, "height", 12, "plot height")

	boxCmd := &cobra.Command{
		Use:   "box",
		Short: "solve the target box for a density",
		Args:  cobra.NoArgs,
		RunE:  solveBox,
	}
	boxCmd.Flags().StringVar(&molecule, "molecule", config.DefaultMolecule, "molecule")
	boxCmd.Flags().IntSliceVar(&nMols, "n-mols", []int{30}, "molecule counts")
	boxCmd.Flags().IntSliceVar(&lengths, "lengths", []int{10}, "chain lengths")
	boxCmd.Flags().Float64Var(&density, "density", config.DefaultDensity, "density in g/cm^3")
	boxCmd.Flags().Float64Var(&fixX, "x", 0, "fixed x edge in nm")
	boxCmd.Flags().Float64Var(&fixY, "y", 0, "fixed y edge in nm")
	boxCmd.Flags().Float64Var(&fixZ, "z", 0, "fixed z edge in nm")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tMOLECULE\tCHAINS\tFORCEFIELD\tSTAGES")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%s\t%v x %v\t%s\t%s\n",
					name, p.Molecule, p.NMols, p.ChainLengths, p.Forcefield, stageKinds(p))
			}
			return w.Flush()
		},
	}

	rootCmd.AddCommand(runCmd, resumeCmd, sweepCmd, listCmd, showCmd, plotCmd, boxCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadStatepoint resolves preset, then config file, then explicitly set
// flags, each overriding the last.
func loadStatepoint(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("seed") {
		cfg.SimSeed = seed
	}
	if flags.Changed("e-factor") {
		cfg.EFactor = eFactor
	}
	if flags.Changed("device") {
		cfg.Device = device
	}
	return cfg, cfg.Validate()
}

func runJob(cmd *cobra.Command, args []string) error {
	cfg, err := loadStatepoint(cmd)
	if err != nil {
		return err
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	job, err := st.Create(cfg)
	if err != nil {
		return err
	}
	fmt.Printf("job id: %s\n", job.ID)
	return sample(job)
}

func resumeJob(cmd *cobra.Command, args []string) error {
	job, err := storage.New(dataDir).Open(args[0])
	if err != nil {
		return err
	}
	if job.Doc.Done {
		fmt.Printf("job %s is already done at timestep %d\n", job.ID, job.Doc.FinalTimestep)
		return nil
	}
	return sample(job)
}

func sample(job *storage.Job) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m := telemetry.NewMetrics(prometheus.Labels{"job": job.ID})
	res, err := experiment.Sample(ctx, job, experiment.Options{Logger: logger, Observers: []sim.Observer{m}})
	if metricsFile != "" {
		if werr := m.WriteTextfile(metricsFile); werr != nil {
			logger.Error().Err(werr).Str("file", metricsFile).Msg("write metrics")
		}
	}
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

func sweepJobs(cmd *cobra.Command, args []string) error {
	cfg, err := loadStatepoint(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := experiment.Sweep(ctx, storage.New(dataDir), cfg, factors, workers, experiment.Options{Logger: logger})
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "E_FACTOR\tJOB\tREF_ENERGY\tFINAL_TIMESTEP\tSTATUS")
	for _, r := range results {
		status := "done"
		var refE float64
		var final uint64
		if r.Result != nil {
			refE, final = r.Result.Ref.Energy, r.Result.FinalTimestep
		}
		if r.Err != nil {
			status = "failed"
		}
		fmt.Fprintf(w, "%g\t%s\t%.6g\t%d\t%s\n", r.EFactor, r.JobID, refE, final, status)
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	return err
}

func solveBox(cmd *cobra.Command, args []string) error {
	factory, err := experiment.NewRegistry().GetMolecule(molecule)
	if err != nil {
		return err
	}
	b, err := builder.New(factory, nMols, lengths, density, builder.Options{Logger: logger})
	if err != nil {
		return err
	}
	var fixed []box.Fixed
	for _, f := range []box.Fixed{{Axis: box.X, Length: fixX}, {Axis: box.Y, Length: fixY}, {Axis: box.Z, Length: fixZ}} {
		if f.Length != 0 {
			fixed = append(fixed, f)
		}
	}
	solved, err := box.Solve(b.Mass(), density, fixed...)
	if err != nil {
		return err
	}
	fmt.Printf("mass: %.3f amu\n", b.Mass())
	fmt.Printf("box: %s nm\n", solved)
	fmt.Printf("volume: %.4f nm^3\n", solved.Volume())
	return nil
}

func stageKinds(cfg *config.Config) string {
	plan := planOf(cfg)
	kinds := make([]string, len(plan))
	for i, st := range plan {
		kinds[i] = st.Kind
	}
	return strings.Join(kinds, ",")
}
