// Package compute provides the devices force kernels run on.
//
// A device is chosen explicitly when an engine is built; there is no
// process-wide default.
//
//   - cpu: data-parallel over all cores
//   - serial: a single worker, useful for reproducible debugging
//   - gpu: requires a build with the cuda tag
//
// Example:
//
//	dev, err := compute.NewDevice("cpu")
//	if err != nil {
//		return err
//	}
//	defer dev.Close()
//	dev.ParallelFor(n, func(worker, start, end int) { ... })
package compute
