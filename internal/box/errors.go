package box

import "errors"

// ErrInvalidConstraint indicates a mass, density or fixed edge that cannot
// produce a physical box.
var ErrInvalidConstraint = errors.New("box: invalid constraint")
