// Package atomicfloat provides a lock-free float64 cell for values mutated
// by many goroutines and read by one (or vice versa), adapted from a
// personal-project helper for lockless accumulation into a shared matrix.
//
// WARNING: relies on unsafe.Pointer bit-punning over atomic.Uint64. Keep
// critical regions short; the gc must not be given a chance to observe the
// pointer as stale.
package atomicfloat

import (
	"math"
	"sync/atomic"
	"unsafe"
)

// Float64 encapsulates a float64 for non-locking atomic operations.
type Float64 struct {
	val float64
}

// New returns a lock-free float64 cell initialized to val.
func New(val float64) *Float64 {
	return &Float64{val: val}
}

// Read atomically reads the float64, synchronized with main memory.
func (af *Float64) Read() float64 {
	bits := atomic.LoadUint64((*uint64)(unsafe.Pointer(&af.val)))
	return math.Float64frombits(bits)
}

// AtomicAdd attempts to add addend to the cell via compare-and-swap.
// If the cell changed concurrently the CAS fails and succeeded is false;
// the caller may retry or drop the update as appropriate.
func (af *Float64) AtomicAdd(addend float64) (newVal float64, succeeded bool) {
	old := af.Read()
	newVal = old + addend
	succeeded = atomic.CompareAndSwapUint64(
		(*uint64)(unsafe.Pointer(&af.val)),
		math.Float64bits(old),
		math.Float64bits(newVal))
	return
}

// Add retries AtomicAdd until it succeeds and returns the resulting value.
// Used where every caller's delta must eventually be applied (no drop-on-contention).
func (af *Float64) Add(addend float64) float64 {
	for {
		if newVal, ok := af.AtomicAdd(addend); ok {
			return newVal
		}
	}
}

// Set unconditionally overwrites the cell.
func (af *Float64) Set(newVal float64) {
	for {
		old := af.Read()
		if atomic.CompareAndSwapUint64(
			(*uint64)(unsafe.Pointer(&af.val)),
			math.Float64bits(old),
			math.Float64bits(newVal)) {
			return
		}
	}
}
