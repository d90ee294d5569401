// Package util holds small generic helpers shared by the bus packages.
package util

// CloneSlice returns a copy of src with length cloneSize. A cloneSize of 0
// clones the whole of src.
//
// Results handed to completion handlers are cloned so handlers may keep
// them while the controller reuses its buffers.
func CloneSlice[T any](src []T, cloneSize int) []T {
	if cloneSize == 0 {
		cloneSize = len(src)
	}
	clone := make([]T, cloneSize)
	copy(clone, src)

	return clone
}
