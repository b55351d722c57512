// Package framering implements the frame-lifecycle core of a real-time 3D
// renderer: a fixed ring of per-frame GPU resources whose reuse is gated by
// a monotonically increasing completion marker (fence value).
//
// # Overview
//
// Each frame the [Driver] rotates the [Ring] to the next [Resource], blocks
// only when the GPU has not yet finished the work that last referenced that
// slot, rewrites the slot's constant buffers, records and submits a command
// list that references only that slot, presents, and stamps the slot with a
// new marker that the queue signals once the GPU gets there.
//
//	Rotate -> Synchronize -> Update -> Record -> Submit -> Present -> Stamp
//
// With a ring of N slots the CPU may run up to N frames ahead of the GPU
// before [Tracker.EnsureSlotReusable] suspends it.
//
// # Dirty propagation
//
// Every slot owns its own per-object buffer, so a single transform change
// must be written N times, once into each slot. [ObjectState] carries a
// countdown that a mutation resets to N and that [PropagateObjectUpdates]
// decrements each time it writes the object into the current slot.
// Materials follow the same rule through [MaterialState].
//
// # Devices
//
// The core talks to the GPU through the small [Device], [Queue], [Fence],
// [CommandAllocator] and [Surface] interfaces. Two implementations live in
// this module: a software timeline used by tests and the headless CLI
// (internal/softgpu), and a gogpu/wgpu HAL backend (internal/halgpu).
//
// # Concurrency
//
// A single goroutine drives the Driver. The GPU is an asynchronous timeline;
// the only shared state between the two is the marker protocol. Nothing in
// this package locks the constant buffers: CPU writes are legal only after
// the Synchronize step has observed that the slot's marker was reached.
package framering
