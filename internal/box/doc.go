// Package box provides simulation box geometry and the density solver used
// to size the target box of a packed system.
//
//   - [Box]: three edge lengths plus tilt factors
//   - [Solve]: edge lengths that reproduce a target mass density
//
// Lengths returned by [Solve] are in nanometres. Masses are in amu and
// densities in g/cm³.
package box
