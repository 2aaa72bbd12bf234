// Package noop implements slimmy.Engine as a minimal, always-available
// bring-up engine: it validates and remembers a module's size on Load and
// succeeds on Invoke for any handle it has loaded, without running any WASM
// at all. This is the Go equivalent of the reference implementation's demo
// NoopEngine (original_source/host-demo/src/main.rs's `run_module` fallback
// path), not the runtime crate's own aspirational WAMR placeholder
// (engines/wamr.rs, which always returns Unsupported) — spec §9 calls for a
// no-op engine variant that actually brings the pipeline up for bring-up and
// tests, and a permanently-unsupported engine cannot serve that role.
package noop

import (
	"sync"

	"github.com/tinyrange/slimmy/internal/slimerr"
)

// Engine is a slimmy.Engine[uint32, struct{}] that records each loaded
// module's size and succeeds on Invoke without executing anything.
type Engine struct {
	mu          sync.Mutex
	moduleSizes map[uint32]int
}

// New returns a ready-to-use no-op engine.
func New() *Engine {
	return &Engine{moduleSizes: make(map[uint32]int)}
}

// Load implements slimmy.Engine. It rejects an empty module (mirroring the
// reference NoopEngine's "module is empty" check) and otherwise records the
// module's size under id.
func (e *Engine) Load(id uint32, module []byte) (uint32, error) {
	if len(module) == 0 {
		return 0, slimerr.Engine("module is empty")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.moduleSizes[id] = len(module)
	return id, nil
}

// Invoke implements slimmy.Engine. It succeeds for any handle previously
// returned by Load and reports ModuleNotFound otherwise.
func (e *Engine) Invoke(handle uint32, entry string, ctx *struct{}) error {
	e.mu.Lock()
	_, ok := e.moduleSizes[handle]
	e.mu.Unlock()
	if !ok {
		return slimerr.ModuleNotFound()
	}
	return nil
}

// DropModule implements slimmy.Engine by forgetting handle's recorded size.
func (e *Engine) DropModule(handle uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.moduleSizes, handle)
}

// ModuleSize returns the size recorded for handle by Load, if any — useful
// for a caller (e.g. cmd/slimmy-demo) that wants to report what "ran".
func (e *Engine) ModuleSize(handle uint32) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	size, ok := e.moduleSizes[handle]
	return size, ok
}
