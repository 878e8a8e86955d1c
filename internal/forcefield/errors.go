package forcefield

import "errors"

// ErrUnparameterized indicates an atom, bond or angle the forcefield has no
// parameters for.
var ErrUnparameterized = errors.New("forcefield: missing parameters")
