package noop

import (
	"errors"
	"testing"

	"github.com/tinyrange/slimmy/internal/slimerr"
)

func TestLoadRejectsEmptyModule(t *testing.T) {
	e := New()
	if _, err := e.Load(1, nil); err == nil {
		t.Fatal("expected empty module to be rejected")
	}
}

func TestLoadThenInvokeSucceeds(t *testing.T) {
	e := New()
	handle, err := e.Load(7, []byte{0xAA, 0xBB, 0xCC})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := e.Invoke(handle, "start", &struct{}{}); err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	size, ok := e.ModuleSize(handle)
	if !ok || size != 3 {
		t.Fatalf("ModuleSize = %d, %v, want 3, true", size, ok)
	}
}

func TestInvokeUnknownHandle(t *testing.T) {
	e := New()
	if err := e.Invoke(42, "main", &struct{}{}); !errors.Is(err, slimerr.ModuleNotFound()) {
		t.Fatalf("Invoke error = %v, want ModuleNotFound", err)
	}
}

func TestDropModuleForgetsSize(t *testing.T) {
	e := New()
	handle, err := e.Load(1, []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	e.DropModule(handle)

	if _, ok := e.ModuleSize(handle); ok {
		t.Fatal("expected size to be forgotten after DropModule")
	}
	if err := e.Invoke(handle, "main", &struct{}{}); !errors.Is(err, slimerr.ModuleNotFound()) {
		t.Fatalf("Invoke after drop = %v, want ModuleNotFound", err)
	}
}
