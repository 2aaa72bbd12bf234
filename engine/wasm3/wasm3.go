// Package wasm3 adapts a host-installed wasm3 (libm3) shared library into
// slimmy.Engine via github.com/ebitengine/purego — dlopen-based FFI, no cgo,
// mirroring the teacher's clipboard/window bindings
// (internal/gowin/window/clipboard_linux.go) and grounded on the reference
// implementation's wasm3 crate binding (original_source/runtime/src/engines/
// wasm3.rs): the engine keeps a copy of each module's bytes and reparses the
// module fresh on every invoke, trading a little CPU for simpler lifetime
// management. Pairing with slimmy.CachedEngine reuses handles across
// repeated Execute calls and so skips the repeated Load copy; Invoke still
// reparses the module on every call.
package wasm3

import (
	"strings"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/tinyrange/slimmy/internal/slimerr"
)

// DefaultStackSlots is the default wasm3 runtime stack size, in 4-byte
// slots. 4 KiB of stack (1024 slots) is enough for tiny modules.
const DefaultStackSlots = 1024

type bindings struct {
	newEnvironment  func() uintptr
	newRuntime      func(env uintptr, stackBytes uint32, userdata uintptr) uintptr
	parseModule     func(env uintptr, module *uintptr, data *byte, size uint32) uintptr
	loadModule      func(rt uintptr, module uintptr) uintptr
	findFunction    func(fn *uintptr, rt uintptr, name *byte) uintptr
	call            func(fn uintptr, argc uint32, argv uintptr) uintptr
	errorMessage    func(result uintptr) *byte
	freeRuntime     func(rt uintptr)
	freeEnvironment func(env uintptr)
}

var (
	libOnce  sync.Once
	lib      bindings
	libErr   error
)

// libraryNames lists the shared library names probed, in order, across the
// common host platforms wasm3 is packaged for.
var libraryNames = []string{"libm3.so", "libwasm3.so", "libm3.dylib", "libwasm3.dylib"}

func loadLibrary() {
	var handle uintptr
	var err error
	for _, name := range libraryNames {
		handle, err = purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			break
		}
	}
	if handle == 0 {
		libErr = slimerr.Engine("wasm3: libm3 shared library not found")
		return
	}

	purego.RegisterLibFunc(&lib.newEnvironment, handle, "m3_NewEnvironment")
	purego.RegisterLibFunc(&lib.newRuntime, handle, "m3_NewRuntime")
	purego.RegisterLibFunc(&lib.parseModule, handle, "m3_ParseModule")
	purego.RegisterLibFunc(&lib.loadModule, handle, "m3_LoadModule")
	purego.RegisterLibFunc(&lib.findFunction, handle, "m3_FindFunction")
	purego.RegisterLibFunc(&lib.call, handle, "m3_Call")
	purego.RegisterLibFunc(&lib.errorMessage, handle, "m3_GetErrorString")
	purego.RegisterLibFunc(&lib.freeRuntime, handle, "m3_FreeRuntime")
	purego.RegisterLibFunc(&lib.freeEnvironment, handle, "m3_FreeEnvironment")
}

// Engine is a slimmy.Engine[uint32, struct{}] backed by wasm3. The module
// handle is the module's own id: Load stores the bytes, Invoke reparses and
// reruns them against a fresh m3 runtime each time.
type Engine struct {
	mu         sync.Mutex
	env        uintptr
	stackBytes uint32
	modules    map[uint32][]byte
}

// New opens libm3 and creates a wasm3 environment. stackSlots is the m3
// runtime stack size in 4-byte slots; pass DefaultStackSlots if unsure.
func New(stackSlots uint32) (*Engine, error) {
	libOnce.Do(loadLibrary)
	if libErr != nil {
		return nil, libErr
	}

	env := lib.newEnvironment()
	if env == 0 {
		return nil, slimerr.Engine("wasm3: environment creation failed")
	}

	return &Engine{
		env:        env,
		stackBytes: stackSlots * 4,
		modules:    make(map[uint32][]byte),
	}, nil
}

// Load implements slimmy.Engine: it validates the module is non-empty and
// stores a copy of its bytes for later reparsing, without touching libm3.
func (e *Engine) Load(id uint32, module []byte) (uint32, error) {
	if len(module) == 0 {
		return 0, slimerr.Engine("wasm3: empty module")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	stored := make([]byte, len(module))
	copy(stored, module)
	e.modules[id] = stored
	return id, nil
}

// Invoke implements slimmy.Engine: it creates a fresh m3 runtime, parses and
// loads the stored bytes for handle, finds a zero-argument export named
// entry, and calls it.
func (e *Engine) Invoke(handle uint32, entry string, ctx *struct{}) error {
	e.mu.Lock()
	bytes, ok := e.modules[handle]
	e.mu.Unlock()
	if !ok {
		return slimerr.ModuleNotFound()
	}

	rt := lib.newRuntime(e.env, e.stackBytes, 0)
	if rt == 0 {
		return slimerr.Engine("wasm3: runtime creation failed")
	}
	defer lib.freeRuntime(rt)

	var mod uintptr
	if res := lib.parseModule(e.env, &mod, &bytes[0], uint32(len(bytes))); res != 0 {
		return mapResult(res, "wasm3: parse failed")
	}
	if res := lib.loadModule(rt, mod); res != 0 {
		return mapResult(res, "wasm3: load failed")
	}

	entryC := append([]byte(entry), 0)
	var fn uintptr
	if res := lib.findFunction(&fn, rt, &entryC[0]); res != 0 || fn == 0 {
		return slimerr.EntryNotFound()
	}

	if res := lib.call(fn, 0, 0); res != 0 {
		return mapCallResult(res)
	}
	return nil
}

// DropModule implements slimmy.Engine by freeing the stored bytes for
// handle; there is no persistent runtime state to release since Invoke
// tears its runtime down each call.
func (e *Engine) DropModule(handle uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.modules, handle)
}

// Close releases the wasm3 environment. The Engine must not be used
// afterward.
func (e *Engine) Close() {
	if e.env != 0 {
		lib.freeEnvironment(e.env)
		e.env = 0
	}
}

func mapResult(result uintptr, fallback string) error {
	msg := resultMessage(result)
	if msg == "" {
		return slimerr.Engine(fallback)
	}
	return slimerr.Engine("wasm3: " + msg)
}

// mapCallResult projects a failing m3_Call result the way the reference
// adapter's map_err does: a stack-overflow trap always yields the stable
// "stack overflow" message (callers branch on this), anything else falls
// back to the raw libm3 error string.
func mapCallResult(result uintptr) error {
	return mapCallResultForMessage(resultMessage(result))
}

// mapCallResultForMessage is mapCallResult's message-to-error projection,
// split out so it can be exercised directly by tests without a libm3 call.
func mapCallResultForMessage(msg string) error {
	if isStackOverflowTrap(msg) {
		return slimerr.Engine("wasm3: stack overflow")
	}
	if msg == "" {
		return slimerr.Engine("wasm3: call failed")
	}
	return slimerr.Engine("wasm3: " + msg)
}

// isStackOverflowTrap matches both the readable form ("[trap] stack
// overflow") and the identifier form ("m3Err_trapStackOverflow").
func isStackOverflowTrap(msg string) bool {
	norm := strings.NewReplacer(" ", "", "_", "").Replace(strings.ToLower(msg))
	return strings.Contains(norm, "stackoverflow")
}

func resultMessage(result uintptr) string {
	if lib.errorMessage == nil {
		return ""
	}
	msgPtr := lib.errorMessage(result)
	if msgPtr == nil {
		return ""
	}
	return cString(msgPtr)
}

func cString(ptr *byte) string {
	if ptr == nil {
		return ""
	}
	n := 0
	for {
		b := *(*byte)(unsafe.Add(unsafe.Pointer(ptr), n))
		if b == 0 {
			break
		}
		n++
	}
	return string(unsafe.Slice(ptr, n))
}
