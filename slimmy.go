// Package slimmy is a minimal runtime harness for OTA-delivered WebAssembly
// modules on resource-constrained devices. It loads a manifest (package
// manifest), optionally checks its Ed25519 signature (package sign), fetches
// module bytes from a flash-backed or in-memory source (package storage),
// and drives a pluggable execution engine (the Engine interface below, with
// implementations under engine/) through a tiny orchestrator defined here.
package slimmy

import "github.com/tinyrange/slimmy/internal/slimerr"

// ModuleId is the process-wide unique key used by every source and engine
// lookup in this package.
type ModuleId = uint32

// ModuleSource fetches raw module bytes for an id. The returned slice must
// remain valid for the duration of the caller's use of it but need not be
// stable across calls — a flash-backed source is free to reuse one internal
// buffer.
type ModuleSource interface {
	Fetch(id ModuleId) ([]byte, bool)
}

// Engine is the execution backend abstraction: wasm3-style interpreter,
// wasmtime-style compiler, or a no-op engine for bring-up and tests. Handle
// is the engine's opaque, copyable token for a loaded module; Context is a
// per-invocation value threaded through Invoke (often struct{}).
//
// This mirrors the Rust crate's associated-type trait
// (`trait Engine { type ModuleHandle; type Context; ... }`) with Go generics
// standing in for associated types, keeping dispatch static instead of going
// through an interface vtable on the hot path.
type Engine[H comparable, C any] interface {
	// Load compiles or parses module once per id. Implementations may reuse
	// a prior handle for the same id instead of reloading (the reference
	// wasm3 adapter instead overwrites its stored bytes and keeps the id as
	// the handle — see engine/wasm3).
	Load(id ModuleId, module []byte) (H, error)
	// Invoke locates an exported, no-argument, no-return function named
	// entry and calls it.
	Invoke(handle H, entry string, ctx *C) error
	// DropModule performs optional cleanup. The default behavior (when an
	// engine has nothing to clean up) is a no-op.
	DropModule(handle H)
}

// Runtime is the orchestrator: construct it from an Engine and a
// ModuleSource, then call Execute. It imposes no policy beyond "fetch, load,
// invoke in that order, surface the first error."
type Runtime[H comparable, C any, E Engine[H, C]] struct {
	engine E
	source ModuleSource
}

// NewRuntime creates a runtime from an engine and a module source.
func NewRuntime[H comparable, C any, E Engine[H, C]](engine E, source ModuleSource) *Runtime[H, C, E] {
	return &Runtime[H, C, E]{engine: engine, source: source}
}

// Execute fetches the module's bytes, loads them into the engine, and
// invokes entry. The first error from any of the three steps is returned
// verbatim.
func (r *Runtime[H, C, E]) Execute(id ModuleId, entry string, ctx *C) error {
	moduleBytes, ok := r.source.Fetch(id)
	if !ok {
		return slimerr.ModuleNotFound()
	}
	handle, err := r.engine.Load(id, moduleBytes)
	if err != nil {
		return err
	}
	return r.engine.Invoke(handle, entry, ctx)
}

// EngineRef returns a pointer to the engine for fine-grained control (e.g.
// configuring imports before the first Execute).
func (r *Runtime[H, C, E]) EngineRef() *E {
	return &r.engine
}

// Source returns the module source backing this runtime.
func (r *Runtime[H, C, E]) Source() ModuleSource {
	return r.source
}

// IntoParts consumes the runtime and returns its engine and source, mirroring
// the Rust crate's `into_parts`.
func (r *Runtime[H, C, E]) IntoParts() (E, ModuleSource) {
	return r.engine, r.source
}

// MemoryStore is an owned, in-memory module store: the reference
// ModuleSource implementation for hosts with alloc but no flash. Keys are
// unique; upsert replaces in place, last-write-wins.
type MemoryStore struct {
	modules map[ModuleId][]byte
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{modules: make(map[ModuleId][]byte)}
}

// Upsert inserts or replaces a module's bytes.
func (s *MemoryStore) Upsert(id ModuleId, bytes []byte) {
	s.modules[id] = bytes
}

// Clear drops all modules, useful when reclaiming RAM.
func (s *MemoryStore) Clear() {
	s.modules = make(map[ModuleId][]byte)
}

// Fetch implements ModuleSource.
func (s *MemoryStore) Fetch(id ModuleId) ([]byte, bool) {
	bytes, ok := s.modules[id]
	return bytes, ok
}

// CachedEngine wraps an inner Engine with a handle cache keyed by ModuleId,
// so repeated Execute calls for the same id skip the inner engine's Load.
// Two consecutive Load calls for the same id always return the same handle
// (see §9 Open Question (a): re-loading with different bytes under the same
// id is accepted and the first load wins — this is a deliberate choice
// carried over from the reference implementation, not an oversight).
type CachedEngine[H comparable, C any, E Engine[H, C]] struct {
	inner E
	cache map[ModuleId]H
}

// NewCachedEngine wraps inner with an empty cache.
func NewCachedEngine[H comparable, C any, E Engine[H, C]](inner E) *CachedEngine[H, C, E] {
	return &CachedEngine[H, C, E]{inner: inner, cache: make(map[ModuleId]H)}
}

// Load returns the cached handle for id if present, otherwise delegates to
// the inner engine and records the result.
func (c *CachedEngine[H, C, E]) Load(id ModuleId, module []byte) (H, error) {
	if handle, ok := c.cache[id]; ok {
		return handle, nil
	}
	handle, err := c.inner.Load(id, module)
	if err != nil {
		var zero H
		return zero, err
	}
	c.cache[id] = handle
	return handle, nil
}

// Invoke passes through to the inner engine unchanged.
func (c *CachedEngine[H, C, E]) Invoke(handle H, entry string, ctx *C) error {
	return c.inner.Invoke(handle, entry, ctx)
}

// DropModule removes handle from the cache (by value, matching any id that
// maps to it) and forwards to the inner engine's cleanup.
func (c *CachedEngine[H, C, E]) DropModule(handle H) {
	c.DropCached(handle)
}

// DropCached removes the cached entry equal to handle, if any, then calls
// the inner engine's DropModule.
func (c *CachedEngine[H, C, E]) DropCached(handle H) {
	for id, cached := range c.cache {
		if cached == handle {
			delete(c.cache, id)
			break
		}
	}
	c.inner.DropModule(handle)
}

// IntoInner returns the wrapped engine, discarding the cache.
func (c *CachedEngine[H, C, E]) IntoInner() E {
	return c.inner
}
