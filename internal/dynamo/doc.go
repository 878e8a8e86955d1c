// Package dynamo provides the molecular dynamics primitives the staged
// engine drives.
//
//   - [State]: particle positions, velocities, forces, box and timestep
//   - [Variant]: a constant or linearly ramped control signal
//   - [Trigger]: decides on which timesteps an operation runs
//   - [Force]: a potential energy term
//   - [Method]: an integration method (thermostat, barostat, ...)
//   - [Integrator]: velocity Verlet over a set of forces and methods
//   - [Simulation]: advances a state and runs updaters and writers
//
// # Example
//
//	st := dynamo.NewState(n, b, seed)
//	in := dynamo.NewIntegrator(0.005, forces...)
//	in.SetMethod(st, integrators.NewNVE())
//	sim := dynamo.NewSimulation(st)
//	sim.SetIntegrator(in)
//	err := sim.Run(1000)
//
// # Thread Safety
//
// Simulations are NOT thread-safe. Independent runs need independent
// States; nothing in this package is shared between them.
package dynamo
