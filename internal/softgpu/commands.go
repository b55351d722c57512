package softgpu

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/framering"
)

// CommandAllocator backs the lists of one ring slot. It counts lists that
// were submitted but not executed and refuses to reset while any remain.
type CommandAllocator struct {
	label    string
	dev      *Device
	inFlight atomic.Int32
	resets   int
}

// Reset recycles the allocator's memory.
func (a *CommandAllocator) Reset() error {
	if n := a.inFlight.Load(); n > 0 {
		return fmt.Errorf("%w: %s has %d", ErrAllocatorInUse, a.label, n)
	}
	a.resets++
	return nil
}

// Begin opens a command list bound to pipeline kind.
func (a *CommandAllocator) Begin(kind framering.PipelineKind) (framering.CommandList, error) {
	l := &CommandList{alloc: a}
	l.SetPipeline(kind)
	return l, nil
}

// Destroy is a no-op; allocator memory is garbage collected.
func (a *CommandAllocator) Destroy() {}

type cmdKind int

const (
	cmdBarrier cmdKind = iota
	cmdBeginPass
	cmdSetPipeline
	cmdPassConstants
	cmdDraw
	cmdEndPass
)

type command struct {
	kind     cmdKind
	target   int
	before   framering.TargetState
	after    framering.TargetState
	clear    [4]float32
	pipeline framering.PipelineKind
	draw     framering.DrawCall
	buf      *UploadBuffer
	index    int
}

// elementRef is one constant buffer element read by a list, with the
// checksum it had when the list was submitted.
type elementRef struct {
	buf   *UploadBuffer
	index int
	sum   uint32
}

// CommandList records commands for the timeline goroutine. Nothing is
// executed at record time.
type CommandList struct {
	alloc    *CommandAllocator
	commands []command
	refs     []elementRef
	closed   bool
	err      error
}

var _ framering.CommandList = (*CommandList)(nil)

// Barrier records a back buffer state transition.
func (l *CommandList) Barrier(t framering.Target, before, after framering.TargetState) {
	l.add(command{kind: cmdBarrier, target: t.Index(), before: before, after: after})
}

// BeginPass records the start of a render pass.
func (l *CommandList) BeginPass(t framering.Target, clear [4]float32) {
	l.add(command{kind: cmdBeginPass, target: t.Index(), clear: clear})
}

// SetPipeline records a pipeline switch.
func (l *CommandList) SetPipeline(kind framering.PipelineKind) {
	l.add(command{kind: cmdSetPipeline, pipeline: kind})
}

// SetPassConstants binds element index of buf as the pass record.
func (l *CommandList) SetPassConstants(buf framering.UploadBuffer, index int) {
	b, ok := buf.(*UploadBuffer)
	if !ok {
		l.fail(ErrForeignResource)
		return
	}
	if index < 0 || index >= b.count {
		l.fail(fmt.Errorf("%w: pass %s[%d]", framering.ErrObjectIndexOutOfRange, b.label, index))
		return
	}
	l.add(command{kind: cmdPassConstants, buf: b, index: index})
	l.refs = append(l.refs, elementRef{buf: b, index: index})
}

// Draw records an indexed draw after validating its ranges.
func (l *CommandList) Draw(c framering.DrawCall) error {
	if l.closed {
		return ErrListClosed
	}
	mesh, ok := c.Mesh.(*Mesh)
	if !ok {
		return ErrForeignResource
	}
	if int(c.StartIndex)+int(c.IndexCount) > len(mesh.indices) {
		return fmt.Errorf("%w: %s [%d, %d) of %d", ErrDrawOutOfRange,
			mesh.label, c.StartIndex, c.StartIndex+c.IndexCount, len(mesh.indices))
	}
	objects, ok := c.Objects.(*UploadBuffer)
	if !ok {
		return ErrForeignResource
	}
	if c.ObjectIndex < 0 || c.ObjectIndex >= objects.count {
		return fmt.Errorf("%w: object %s[%d]", framering.ErrObjectIndexOutOfRange, objects.label, c.ObjectIndex)
	}
	l.refs = append(l.refs, elementRef{buf: objects, index: c.ObjectIndex})
	if c.Materials != nil {
		materials, ok := c.Materials.(*UploadBuffer)
		if !ok {
			return ErrForeignResource
		}
		if c.MaterialIndex < 0 || c.MaterialIndex >= materials.count {
			return fmt.Errorf("%w: material %s[%d]", framering.ErrObjectIndexOutOfRange, materials.label, c.MaterialIndex)
		}
		l.refs = append(l.refs, elementRef{buf: materials, index: c.MaterialIndex})
	}
	l.add(command{kind: cmdDraw, draw: c})
	return nil
}

// EndPass records the end of the render pass.
func (l *CommandList) EndPass() { l.add(command{kind: cmdEndPass}) }

// Close finishes recording and reports the first recording error.
func (l *CommandList) Close() error {
	if l.closed {
		return ErrListClosed
	}
	l.closed = true
	return l.err
}

func (l *CommandList) add(c command) {
	if l.closed {
		l.fail(ErrListClosed)
		return
	}
	l.commands = append(l.commands, c)
}

func (l *CommandList) fail(err error) {
	if l.err == nil {
		l.err = err
	}
}

// snapshot captures the checksum of every referenced element.
func (l *CommandList) snapshot() {
	for i := range l.refs {
		r := &l.refs[i]
		r.sum = r.buf.checksum(r.index)
	}
}

// Execution describes one command list run by the timeline.
type Execution struct {
	Allocator string

	// Epoch is the marker that completes after this list.
	Epoch uint64

	Target    int
	Pipelines []framering.PipelineKind
	Draws     int
	Clear     [4]float32
}

// Violation is a hazard detected while executing a list.
type Violation struct {
	Epoch  uint64
	Reason string
}

func (v Violation) String() string {
	return fmt.Sprintf("epoch %d: %s", v.Epoch, v.Reason)
}

func (d *Device) execute(o op) {
	l := o.list
	defer l.alloc.inFlight.Add(-1)

	exec := Execution{Allocator: l.alloc.label, Epoch: o.epoch, Target: -1}
	var violations []Violation
	report := func(format string, args ...any) {
		violations = append(violations, Violation{Epoch: o.epoch, Reason: fmt.Sprintf(format, args...)})
	}

	for _, r := range l.refs {
		if sum := r.buf.checksum(r.index); sum != r.sum {
			report("%s[%d] overwritten while in flight", r.buf.label, r.index)
		}
	}
	for _, c := range l.commands {
		switch c.kind {
		case cmdBarrier:
			if err := d.surface.transition(c.target, c.before, c.after); err != nil {
				report("%v", err)
			}
		case cmdBeginPass:
			exec.Target = c.target
			exec.Clear = c.clear
		case cmdSetPipeline:
			exec.Pipelines = append(exec.Pipelines, c.pipeline)
		case cmdDraw:
			exec.Draws++
		}
	}

	d.logMu.Lock()
	d.executions = append(d.executions, exec)
	d.violations = append(d.violations, violations...)
	d.logMu.Unlock()

	for _, v := range violations {
		slogger().Warn("softgpu: hazard", "epoch", v.Epoch, "reason", v.Reason)
	}
	slogger().Debug("softgpu: list executed",
		"allocator", exec.Allocator, "epoch", exec.Epoch, "draws", exec.Draws)
}
