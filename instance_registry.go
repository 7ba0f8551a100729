// instance_registry.go: Main-thread ownership of wrapped plugin instances
//
// Every wrapped plugin instance created by a wrapper lives in the wrapper's
// registry. Other parts of the system, most importantly the audio thread,
// only ever hold an InstanceHandle. A handle carries the slot generation it
// was issued for, so a handle to an instance that has since been destroyed
// is detected instead of reaching a reused slot.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	"sync"
)

// InstanceHandle identifies an instance in an instanceRegistry.
type InstanceHandle struct {
	index      uint32
	generation uint32
}

// IsZero reports whether the handle was never issued.
func (h InstanceHandle) IsZero() bool { return h.generation == 0 }

// pluginInstance is one wrapped plugin created from a bundle.
type pluginInstance struct {
	plugin   Plugin
	bundle   *Bundle
	pluginID string
	host     *wrapperHost

	activated bool
	processor Processor
}

// Extension lookups on the wrapped plugin.

func (p *pluginInstance) params() (ParamsExtension, bool) {
	ext, ok := p.plugin.(ParamsExtension)
	return ext, ok
}

func (p *pluginInstance) state() (StateExtension, bool) {
	ext, ok := p.plugin.(StateExtension)
	return ext, ok
}

func (p *pluginInstance) gui() (GUIExtension, bool) {
	ext, ok := p.plugin.(GUIExtension)
	return ext, ok
}

func (p *pluginInstance) audioPorts() (AudioPortsExtension, bool) {
	ext, ok := p.plugin.(AudioPortsExtension)
	return ext, ok
}

func (p *pluginInstance) notePorts() (NotePortsExtension, bool) {
	ext, ok := p.plugin.(NotePortsExtension)
	return ext, ok
}

func (p *pluginInstance) latency() (LatencyExtension, bool) {
	ext, ok := p.plugin.(LatencyExtension)
	return ext, ok
}

func (p *pluginInstance) timer() (TimerExtension, bool) {
	ext, ok := p.plugin.(TimerExtension)
	return ext, ok
}

// deactivate releases the processor if the instance is active.
func (p *pluginInstance) deactivate() {
	if !p.activated {
		return
	}
	p.plugin.Deactivate()
	p.activated = false
	p.processor = nil
}

// destroy deactivates and destroys the wrapped plugin.
func (p *pluginInstance) destroy() {
	p.deactivate()
	p.plugin.Destroy()
}

type registrySlot struct {
	generation uint32
	instance   *pluginInstance
}

// instanceRegistry is a generation-checked slot arena.
type instanceRegistry struct {
	mu    sync.RWMutex
	slots []registrySlot
	free  []uint32
	count int
}

func newInstanceRegistry() *instanceRegistry {
	return &instanceRegistry{}
}

// insert stores inst and returns its handle.
func (r *instanceRegistry) insert(inst *pluginInstance) InstanceHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	var index uint32
	if n := len(r.free); n > 0 {
		index = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, registrySlot{})
		index = uint32(len(r.slots) - 1) // #nosec G115 -- bounded by live instance count
	}

	slot := &r.slots[index]
	slot.generation++
	if slot.generation == 0 {
		slot.generation = 1
	}
	slot.instance = inst
	r.count++

	return InstanceHandle{index: index, generation: slot.generation}
}

// get returns the live instance for h.
func (r *instanceRegistry) get(h InstanceHandle) (*pluginInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if int(h.index) >= len(r.slots) {
		return nil, NewStaleInstanceHandleError(h)
	}
	slot := r.slots[h.index]
	if slot.instance == nil || slot.generation != h.generation {
		return nil, NewStaleInstanceHandleError(h)
	}
	return slot.instance, nil
}

// remove takes the instance out of the registry. The handle becomes stale.
func (r *instanceRegistry) remove(h InstanceHandle) (*pluginInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if int(h.index) >= len(r.slots) {
		return nil, NewStaleInstanceHandleError(h)
	}
	slot := &r.slots[h.index]
	if slot.instance == nil || slot.generation != h.generation {
		return nil, NewStaleInstanceHandleError(h)
	}
	inst := slot.instance
	slot.instance = nil
	r.free = append(r.free, h.index)
	r.count--
	return inst, nil
}

// len returns the number of live instances.
func (r *instanceRegistry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// handles returns the handles of every live instance.
func (r *instanceRegistry) handles() []InstanceHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]InstanceHandle, 0, r.count)
	for i, slot := range r.slots {
		if slot.instance != nil {
			out = append(out, InstanceHandle{index: uint32(i), generation: slot.generation}) // #nosec G115
		}
	}
	return out
}
