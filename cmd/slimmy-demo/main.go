// Command slimmy-demo loads a single WASM module into a MemoryStore and
// executes it once through a CachedEngine, mirroring the reference
// implementation's host-demo binary. It defaults to the always-available
// no-op engine so the demo runs on a machine with no wasm3/wasmtime
// installed; pass -engine wasm3 to exercise a real backend. The wasmtime
// engine is not selectable from this command.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/tinyrange/slimmy"
	"github.com/tinyrange/slimmy/engine/noop"
	"github.com/tinyrange/slimmy/engine/wasm3"
)

func main() {
	modulePath := flag.String("module", "", "path to a .wasm module to run (passed to the engine as raw bytes; .smny manifests are not unpacked)")
	entry := flag.String("entry", "main", "exported function name to invoke")
	moduleId := flag.Uint("module-id", 1, "module id to register in the store")
	engineName := flag.String("engine", "noop", "execution engine: noop, wasm3")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: slimmy-demo -module PATH [options]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if *modulePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*modulePath, *entry, uint32(*moduleId), *engineName); err != nil {
		slog.Error("slimmy-demo failed", "error", err)
		os.Exit(1)
	}
}

func run(modulePath, entry string, moduleId uint32, engineName string) error {
	moduleBytes, err := os.ReadFile(modulePath)
	if err != nil {
		return fmt.Errorf("read module: %w", err)
	}

	store := slimmy.NewMemoryStore()
	store.Upsert(moduleId, moduleBytes)

	switch engineName {
	case "wasm3":
		return runWasm3(store, moduleId, entry)
	case "noop":
		return runNoop(store, moduleId, entry)
	default:
		return fmt.Errorf("unknown engine %q (want noop or wasm3)", engineName)
	}
}

func runNoop(store *slimmy.MemoryStore, moduleId uint32, entry string) error {
	inner := noop.New()
	engine := slimmy.NewCachedEngine[uint32, struct{}, *noop.Engine](inner)
	rt := slimmy.NewRuntime[uint32, struct{}, *slimmy.CachedEngine[uint32, struct{}, *noop.Engine]](engine, store)

	slog.Debug("executing with no-op engine", "module_id", moduleId, "entry", entry)
	if err := rt.Execute(moduleId, entry, &struct{}{}); err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	size, _ := inner.ModuleSize(moduleId)
	slog.Info("call finished", "module_id", moduleId, "entry", entry, "engine", "noop", "bytes", size)
	return nil
}

func runWasm3(store *slimmy.MemoryStore, moduleId uint32, entry string) error {
	inner, err := wasm3.New(wasm3.DefaultStackSlots)
	if err != nil {
		return fmt.Errorf("init wasm3: %w", err)
	}
	defer inner.Close()

	engine := slimmy.NewCachedEngine[uint32, struct{}, *wasm3.Engine](inner)
	rt := slimmy.NewRuntime[uint32, struct{}, *slimmy.CachedEngine[uint32, struct{}, *wasm3.Engine]](engine, store)

	slog.Debug("executing with wasm3 engine", "module_id", moduleId, "entry", entry)
	if err := rt.Execute(moduleId, entry, &struct{}{}); err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	slog.Info("call finished", "module_id", moduleId, "entry", entry, "engine", "wasm3")
	return nil
}
