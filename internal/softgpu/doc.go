// Package softgpu is an in-process framering.Device whose GPU timeline runs
// on its own goroutine.
//
// Submitted command lists and fence signals execute strictly in queue order.
// A list reads the constant buffer elements it references when it executes,
// not when it is recorded, exactly like a real GPU reading mapped upload
// memory. The device records a checksum of every referenced element at
// submit time and compares it on execution; a mismatch means the CPU
// overwrote memory the GPU had not consumed yet and is reported as a
// Violation.
//
// In the default mode the timeline runs freely, optionally slowed by a fixed
// per-list latency. With WithManualTimeline nothing executes until Release
// lets the timeline run up to a given marker, which makes CPU/GPU
// interleavings reproducible in tests.
package softgpu
