// Package physics implements the force terms of a bead-spring polymer
// model in reduced units: Lennard-Jones and cutoff Coulomb pair forces over
// a Verlet neighbour list, and harmonic bonds and angles.
//
// Pair forces skip 1-2 and 1-3 bonded pairs and run on the
// [compute.Device] they were built with.
package physics
