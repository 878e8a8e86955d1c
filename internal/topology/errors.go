package topology

import "errors"

// ErrTopology indicates bonding that violates an assumption of the caller,
// e.g. a hydrogen with more or fewer than one bond partner.
var ErrTopology = errors.New("topology: malformed topology")
