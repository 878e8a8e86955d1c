package sim

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/polysim/internal/box"
	"github.com/san-kum/polysim/internal/dynamo"
	"github.com/san-kum/polysim/internal/integrators"
	"github.com/san-kum/polysim/internal/metrics"
	"github.com/san-kum/polysim/internal/topology"
	"github.com/san-kum/polysim/internal/traj"
	"gonum.org/v1/gonum/spatial/r3"
)

// lattice places n³ identical atoms on a simple cubic lattice filling a
// cube of edge l nm. Sigma 0.35 nm, epsilon 0.5 kJ/mol and mass 12 amu make
// every reference unit equal to the atom's own parameters.
func lattice(n int, l float64) *topology.Topology {
	top := &topology.Topology{}
	a := l / float64(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				top.AddAtom(topology.Atom{
					Name: "A", Type: "A", Mass: 12, Epsilon: 0.5, Sigma: 0.35,
					Position: r3.Vec{
						X: -l/2 + (float64(i)+0.5)*a,
						Y: -l/2 + (float64(j)+0.5)*a,
						Z: -l/2 + (float64(k)+0.5)*a,
					},
				})
			}
		}
	}
	return top
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Dt = 0.005
	cfg.TrajectoryFile = ""
	cfg.LogFile = ""
	return cfg
}

type recorder struct {
	started  []Stage
	finished []Stage
	errs     []error
}

func (r *recorder) StageStarted(st Stage) { r.started = append(r.started, st) }
func (r *recorder) StageFinished(st Stage, err error) {
	r.finished = append(r.finished, st)
	r.errs = append(r.errs, err)
}

var _ = Describe("Engine", func() {
	var e *Engine

	BeforeEach(func() {
		var err error
		e, err = New(lattice(3, 3.5), box.Cubic(3.5), testConfig())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(e.Close)
	})

	Describe("construction", func() {
		It("reduces the system to reference units", func() {
			ref := e.ReferenceUnits()
			Expect(ref.Mass).To(Equal(12.0))
			Expect(ref.Energy).To(Equal(0.5))
			Expect(ref.Distance).To(Equal(0.35))
			Expect(e.Box().Lx).To(BeNumerically("~", 10, 1e-12))
			s := e.Snapshot()
			Expect(s.Masses[0]).To(Equal(1.0))
			Expect(s.TypeNames).To(Equal([]string{"A"}))
		})

		It("starts configured without an integrator", func() {
			Expect(e.Phase()).To(Equal(Configured))
			Expect(e.Timestep()).To(BeZero())
			Expect(e.MethodCount()).To(BeZero())
			_, err := e.MethodKind()
			Expect(err).To(MatchError(dynamo.ErrNoIntegrator))
		})

		It("adds a Coulomb term only for charged systems and bonded terms only when present", func() {
			Expect(e.ForceNames()).To(Equal([]string{"lj"}))

			top := lattice(2, 2)
			top.Atoms[0].Charge = 0.4
			top.Atoms[1].Charge = -0.4
			top.Bonds = append(top.Bonds, topology.Bond{I: 0, J: 1, K: 1000, R0: 1})
			top.Angles = append(top.Angles, topology.Angle{I: 0, J: 1, K: 3, KTheta: 100, Theta0: 2})
			charged, err := New(top, box.Cubic(2), testConfig())
			Expect(err).NotTo(HaveOccurred())
			defer charged.Close()
			Expect(charged.ForceNames()).To(Equal([]string{"lj", "coulomb", "bond_harmonic", "angle_harmonic"}))
		})

		It("gives differently parameterized atoms of one type separate type ids", func() {
			top := lattice(2, 2)
			top.Atoms[3].Epsilon = 0.25
			other, err := New(top, box.Cubic(2), testConfig())
			Expect(err).NotTo(HaveOccurred())
			defer other.Close()
			s := other.Snapshot()
			Expect(s.TypeNames).To(Equal([]string{"A", "A_1"}))
			Expect(s.TypeIDs[3]).To(Equal(1))
		})

		It("rejects an invalid box or config", func() {
			_, err := New(lattice(2, 2), box.Box{Lx: 2, Ly: -1, Lz: 2}, testConfig())
			Expect(err).To(MatchError(ErrGeometry))

			cfg := testConfig()
			cfg.Dt = 0
			_, err = New(lattice(2, 2), box.Cubic(2), cfg)
			Expect(err).To(MatchError(ErrConfig))
		})
	})

	Describe("set-method", func() {
		It("keeps exactly one method across repeated NVT stages", func() {
			Expect(e.RunNVT(100, dynamo.Constant(1), 0.5, true)).To(Succeed())
			Expect(e.RunNVT(100, dynamo.Constant(1), 0.5, true)).To(Succeed())
			Expect(e.MethodCount()).To(Equal(1))
			Expect(e.MethodKind()).To(Equal(integrators.KindNVT))
			Expect(e.Timestep()).To(Equal(uint64(200)))
			Expect(e.Phase()).To(Equal(Producing))
		})

		It("reuses the integrator when the ensemble changes", func() {
			Expect(e.RunNVT(10, dynamo.Constant(1), 0.5, true)).To(Succeed())
			in := e.sim.Integrator()
			Expect(e.RunNVE(10)).To(Succeed())
			Expect(e.sim.Integrator()).To(BeIdenticalTo(in))
			Expect(e.MethodKind()).To(Equal(integrators.KindNVE))
			Expect(e.MethodCount()).To(Equal(1))
		})

		It("tracks total energy drift through an NVE stage", func() {
			Expect(e.RunNVT(100, dynamo.Constant(1), 0.5, true)).To(Succeed())
			Expect(e.RunNVE(200)).To(Succeed())
			Expect(e.EnergyDrift()).To(And(BeNumerically(">=", 0), BeNumerically("<", 0.05)))
		})

		It("updates the live integrator timestep", func() {
			Expect(e.RunNVE(0)).To(Succeed())
			Expect(e.SetDt(0.002)).To(Succeed())
			Expect(e.Dt()).To(Equal(0.002))
			Expect(e.sim.Integrator().Dt).To(Equal(0.002))
			Expect(e.SetDt(-1)).To(MatchError(dynamo.ErrParameterBounds))
		})
	})

	Describe("timestep accounting", func() {
		It("advances by exactly the requested steps across ensemble switches", func() {
			Expect(e.RunShrink(100, 10, dynamo.Constant(1), 0.5, [3]float64{9, 9, 9}, true)).To(Succeed())
			Expect(e.RunNVT(50, e.TemperatureRamp(50, 1, 1.5), 0.5, true)).To(Succeed())
			Expect(e.Phase()).To(Equal(Annealing))
			Expect(e.RunNPT(50, dynamo.Constant(1.5), dynamo.Constant(0.1), 0.5, 5, DefaultNPTOptions())).To(Succeed())
			Expect(e.Phase()).To(Equal(Equilibrating))
			Expect(e.RunNVE(30)).To(Succeed())
			Expect(e.RunLangevin(20, dynamo.Constant(1), 0, DefaultLangevinOptions())).To(Succeed())
			Expect(e.Timestep()).To(Equal(uint64(250)))
			Expect(e.MethodKind()).To(Equal(integrators.KindLangevin))
			Expect(e.Phase()).To(Equal(Producing))
		})

		It("rejects negative step counts", func() {
			Expect(e.RunNVE(-1)).To(MatchError(dynamo.ErrParameterBounds))
			Expect(e.Timestep()).To(BeZero())
		})
	})

	Describe("shrink", func() {
		It("ends on the final box and leaves it there after expiry", func() {
			final := [3]float64{6, 6, 6}
			Expect(e.RunShrink(1000, 10, dynamo.Constant(1), 0.5, final, true)).To(Succeed())
			Expect(e.Box()).To(Equal(box.FromLengths(final)))
			Expect(e.Phase()).To(Equal(Shrinking))
			Expect(e.MethodKind()).To(Equal(integrators.KindShrink))

			Expect(e.RunNVT(500, dynamo.Constant(1), 0.5, false)).To(Succeed())
			Expect(e.Timestep()).To(Equal(uint64(1500)))
			Expect(e.Box()).To(Equal(box.FromLengths(final)))
		})

		It("reaches the final box when the period does not divide the steps", func() {
			final := [3]float64{8, 8, 8}
			Expect(e.RunShrink(95, 10, dynamo.Constant(1), 0.5, final, true)).To(Succeed())
			Expect(e.Box()).To(Equal(box.FromLengths(final)))
		})

		It("rejects a non-positive final box without touching the state", func() {
			err := e.RunShrink(100, 10, dynamo.Constant(1), 0.5, [3]float64{6, 0, 6}, true)
			Expect(errors.Is(err, ErrGeometry)).To(BeTrue())
			Expect(e.Timestep()).To(BeZero())
			Expect(e.Phase()).To(Equal(Configured))
			Expect(e.sim.Updaters()).To(BeEmpty())
		})

		It("leaves no resize behind when thermalizing fails", func() {
			before := e.Box()
			err := e.RunShrink(100, 10, dynamo.Constant(math.NaN()), 0.5, [3]float64{6, 6, 6}, true)
			Expect(errors.Is(err, dynamo.ErrParameterBounds)).To(BeTrue())
			Expect(e.sim.Updaters()).To(BeEmpty())
			Expect(e.Phase()).To(Equal(Configured))

			Expect(e.RunNVT(20, dynamo.Constant(1), 0.5, true)).To(Succeed())
			Expect(e.Box()).To(Equal(before))
		})

		It("runs the long shrink and anneal scenario", func() {
			if testing.Short() {
				Skip("long scenario")
			}
			long, err := New(lattice(3, 4.9), box.Cubic(4.9), testConfig())
			Expect(err).NotTo(HaveOccurred())
			defer long.Close()
			Expect(long.SetDt(0.001)).To(Succeed())

			Expect(long.RunShrink(200000, 1000, dynamo.Constant(8), 0.5, [3]float64{10, 10, 10}, true)).To(Succeed())
			Expect(long.RunNVT(500000, dynamo.Constant(2), 0.5, true)).To(Succeed())
			Expect(long.Timestep()).To(Equal(uint64(700000)))
			Expect(long.Box().Lengths()).To(Equal([3]float64{10, 10, 10}))
		})
	})

	Describe("thermalization", func() {
		It("uses the starting value of a ramp", func() {
			ramp := e.TemperatureRamp(100, 3, 0.5)
			Expect(ramp.Start()).To(BeZero())
			Expect(e.Timestep()).To(BeZero())
			Expect(e.RunNVT(0, ramp, 0.5, true)).To(Succeed())
			Expect(e.Snapshot().Temperature()).To(BeNumerically(">", 1.5))
		})

		It("never thermalizes NVE", func() {
			Expect(e.RunNVE(0)).To(Succeed())
			Expect(e.Snapshot().KineticEnergy()).To(BeZero())
		})
	})

	Describe("failures", func() {
		It("refuses to integrate an empty system", func() {
			cfg := testConfig()
			cfg.AutoScale = false
			empty, err := New(&topology.Topology{}, box.Cubic(1), cfg)
			Expect(err).NotTo(HaveOccurred())
			defer empty.Close()
			Expect(empty.RunNVT(10, dynamo.Constant(1), 0.5, true)).To(MatchError(ErrIntegratorState))
			Expect(empty.RunShrink(10, 1, dynamo.Constant(1), 0.5, [3]float64{1, 1, 1}, true)).To(MatchError(ErrIntegratorState))
			Expect(empty.Timestep()).To(BeZero())
		})

		It("is done after Close", func() {
			Expect(e.Close()).To(Succeed())
			Expect(e.Phase()).To(Equal(Finished))
			Expect(e.RunNVE(1)).To(MatchError(ErrClosed))
			Expect(e.Close()).To(Succeed())
		})
	})

	Describe("observers", func() {
		It("sees every stage start and finish", func() {
			rec := &recorder{}
			e.AddObserver(rec)
			Expect(e.RunNVT(20, dynamo.Constant(1), 0.5, true)).To(Succeed())
			Expect(e.RunNVE(10)).To(Succeed())
			Expect(rec.started).To(HaveLen(2))
			Expect(rec.finished).To(HaveLen(2))
			Expect(rec.errs).To(Equal([]error{nil, nil}))
			Expect(rec.finished[1].StartTimestep).To(Equal(uint64(20)))
			Expect(rec.finished[1].EndTimestep).To(Equal(uint64(30)))
			Expect(rec.finished[0].Method).To(Equal(integrators.KindNVT))
		})
	})

	Describe("writers", func() {
		It("logs the table and trajectory at their cadence and restarts from the last frame", func() {
			dir := GinkgoT().TempDir()
			cfg := testConfig()
			cfg.LogFile = filepath.Join(dir, "sim_data.txt")
			cfg.LogWriteFreq = 10
			cfg.TrajectoryFile = filepath.Join(dir, "trajectory.zst")
			cfg.TrajectoryWriteFreq = 25

			first, err := New(lattice(3, 3.5), box.Cubic(3.5), cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.RunNVT(50, dynamo.Constant(1), 0.5, true)).To(Succeed())
			want := first.Snapshot()
			Expect(first.Close()).To(Succeed())

			data, err := metrics.ReadTableFile(cfg.LogFile)
			Expect(err).NotTo(HaveOccurred())
			Expect(data.Rows).To(HaveLen(5))
			Expect(data.Columns).To(ContainElement("lj_energy"))
			ts, ok := data.Column("timestep")
			Expect(ok).To(BeTrue())
			Expect(ts).To(Equal([]float64{10, 20, 30, 40, 50}))

			rcfg := testConfig()
			rcfg.Restart = cfg.TrajectoryFile
			second, err := New(lattice(3, 3.5), box.Cubic(3.5), rcfg)
			Expect(err).NotTo(HaveOccurred())
			defer second.Close()
			got := second.Snapshot()
			Expect(got.Timestep).To(Equal(uint64(50)))
			Expect(got.Positions).To(Equal(want.Positions))
			Expect(got.Velocities).To(Equal(want.Velocities))
			Expect(second.RunNVE(10)).To(Succeed())
			Expect(second.Timestep()).To(Equal(uint64(60)))
		})

		It("keeps the trajectory it resumes from", func() {
			dir := GinkgoT().TempDir()
			cfg := testConfig()
			cfg.TrajectoryFile = filepath.Join(dir, "trajectory.zst")
			cfg.TrajectoryWriteFreq = 25

			first, err := New(lattice(3, 3.5), box.Cubic(3.5), cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.RunNVT(50, dynamo.Constant(1), 0.5, true)).To(Succeed())
			Expect(first.Close()).To(Succeed())

			cfg.Restart = cfg.TrajectoryFile
			second, err := New(lattice(3, 3.5), box.Cubic(3.5), cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.RunNVE(10)).To(Succeed())
			Expect(second.Close()).To(Succeed())

			fr, _, err := traj.ReadLast(cfg.TrajectoryFile)
			Expect(err).NotTo(HaveOccurred())
			Expect(fr.Timestep).To(Equal(uint64(50)))

			third, err := New(lattice(3, 3.5), box.Cubic(3.5), cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(third.Timestep()).To(Equal(uint64(50)))
			Expect(third.RunNVT(25, dynamo.Constant(1), 0.5, false)).To(Succeed())
			Expect(third.Close()).To(Succeed())

			r, _, err := traj.Open(cfg.TrajectoryFile)
			Expect(err).NotTo(HaveOccurred())
			defer r.Close()
			var steps []uint64
			for {
				f, err := r.Next()
				if err != nil {
					break
				}
				steps = append(steps, f.Timestep)
			}
			Expect(steps).To(Equal([]uint64{25, 50, 75}))
		})
	})
})
