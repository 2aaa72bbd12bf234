package storage

import (
	"bytes"
	"testing"
)

func TestMemoryFlashRoundTrip(t *testing.T) {
	f := NewMemoryFlash(64)
	if f.Capacity() != 64 {
		t.Fatalf("capacity = %d, want 64", f.Capacity())
	}

	data := []byte{1, 2, 3, 4}
	if err := f.EraseWrite(10, data); err != nil {
		t.Fatalf("EraseWrite: %v", err)
	}

	buf := make([]byte, 4)
	if err := f.Read(10, buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(buf, data) {
		t.Fatalf("got %v, want %v", buf, data)
	}

	// untouched region is still 0xFF, like erased NOR flash.
	virgin := make([]byte, 4)
	if err := f.Read(0, virgin); err != nil {
		t.Fatalf("Read: %v", err)
	}
	for _, b := range virgin {
		if b != 0xFF {
			t.Fatalf("expected erased byte 0xFF, got %#x", b)
		}
	}
}

func TestMemoryFlashOutOfBounds(t *testing.T) {
	f := NewMemoryFlash(8)
	if err := f.EraseWrite(6, []byte{1, 2, 3}); err == nil {
		t.Fatal("expected out-of-bounds write error")
	}
	if err := f.Read(6, make([]byte, 3)); err == nil {
		t.Fatal("expected out-of-bounds read error")
	}
	if err := f.EraseWrite(-1, []byte{1}); err == nil {
		t.Fatal("expected error for negative offset")
	}
}

func TestPartitionSliceSource(t *testing.T) {
	region := []byte{1, 2, 3, 4}
	s := NewPartitionSliceSource(region, 7)

	got, ok := s.Fetch(7)
	if !ok || !bytes.Equal(got, region) {
		t.Fatalf("Fetch(7) = %v, %v", got, ok)
	}

	if _, ok := s.Fetch(8); ok {
		t.Fatal("expected Fetch for unknown id to fail")
	}
}

func TestIndexedSliceSource(t *testing.T) {
	region := make([]byte, 16)
	for i := range region {
		region[i] = byte(i)
	}
	entries := []IndexEntry{
		{Id: 1, Offset: 0, Len: 4},
		{Id: 2, Offset: 4, Len: 4},
		{Id: 3, Offset: 12, Len: 100}, // out of range
		{Id: 4, Offset: -1, Len: 4},   // negative offset
	}
	s := NewIndexedSliceSource(region, entries)

	got, ok := s.Fetch(1)
	if !ok || !bytes.Equal(got, region[0:4]) {
		t.Fatalf("Fetch(1) = %v, %v", got, ok)
	}

	got, ok = s.Fetch(2)
	if !ok || !bytes.Equal(got, region[4:8]) {
		t.Fatalf("Fetch(2) = %v, %v", got, ok)
	}

	if _, ok := s.Fetch(3); ok {
		t.Fatal("expected out-of-range entry to be not-found")
	}
	if _, ok := s.Fetch(4); ok {
		t.Fatal("expected negative-offset entry to be not-found")
	}
	if _, ok := s.Fetch(99); ok {
		t.Fatal("expected unknown id to be not-found")
	}
}

func TestIndexedSliceSourceOverflow(t *testing.T) {
	region := make([]byte, 8)
	entries := []IndexEntry{
		{Id: 1, Offset: 4, Len: int(^uint(0) >> 1)}, // Offset+Len overflows
	}
	s := NewIndexedSliceSource(region, entries)
	if _, ok := s.Fetch(1); ok {
		t.Fatal("expected overflowing entry to be not-found")
	}
}

func TestHalFlashAlignment(t *testing.T) {
	backing := make([]byte, 32)
	h := &HalFlash{
		EraseWriteFn: func(offset int, data []byte) error {
			copy(backing[offset:], data)
			return nil
		},
		ReadFn: func(offset int, buf []byte) error {
			copy(buf, backing[offset:offset+len(buf)])
			return nil
		},
		CapacityFn: func() int { return len(backing) },
		EraseBlock: 8,
	}

	if err := h.EraseWrite(8, make([]byte, 8)); err != nil {
		t.Fatalf("aligned write: %v", err)
	}

	if err := h.EraseWrite(3, make([]byte, 8)); err == nil {
		t.Fatal("expected erase offset not aligned error")
	}
	if err := h.EraseWrite(8, make([]byte, 5)); err == nil {
		t.Fatal("expected erase len not aligned error")
	}

	// EraseBlock == 0 disables alignment checks.
	h.EraseBlock = 0
	if err := h.EraseWrite(3, make([]byte, 5)); err != nil {
		t.Fatalf("unaligned write with EraseBlock=0: %v", err)
	}
}

func TestHalFlashBounds(t *testing.T) {
	h := &HalFlash{
		EraseWriteFn: func(offset int, data []byte) error { return nil },
		ReadFn:       func(offset int, buf []byte) error { return nil },
		CapacityFn:   func() int { return 16 },
	}
	if err := h.EraseWrite(10, make([]byte, 10)); err == nil {
		t.Fatal("expected out-of-bounds write error")
	}
	if err := h.Read(10, make([]byte, 10)); err == nil {
		t.Fatal("expected out-of-bounds read error")
	}
}

func TestPartitionFlashEraseRounding(t *testing.T) {
	backing := make([]byte, 64)
	var erasedOffset, erasedLen int
	pf := &PartitionFlash{
		EraseRangeFn: func(offset, length int) error {
			erasedOffset, erasedLen = offset, length
			return nil
		},
		WriteFn: func(offset int, data []byte) error {
			copy(backing[offset:], data)
			return nil
		},
		ReadFn: func(offset int, buf []byte) error {
			copy(buf, backing[offset:offset+len(buf)])
			return nil
		},
		CapacityFn: func() int { return len(backing) },
		EraseBlock: 16,
	}

	data := make([]byte, 5)
	for i := range data {
		data[i] = byte(i + 1)
	}
	if err := pf.EraseWrite(0, data); err != nil {
		t.Fatalf("EraseWrite: %v", err)
	}
	if erasedOffset != 0 || erasedLen != 16 {
		t.Fatalf("erase range = (%d,%d), want (0,16)", erasedOffset, erasedLen)
	}

	buf := make([]byte, 5)
	if err := pf.Read(0, buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(buf, data) {
		t.Fatalf("got %v, want %v", buf, data)
	}
}

func TestPartitionFlashEraseOutOfBounds(t *testing.T) {
	pf := &PartitionFlash{
		EraseRangeFn: func(offset, length int) error { return nil },
		WriteFn:      func(offset int, data []byte) error { return nil },
		ReadFn:       func(offset int, buf []byte) error { return nil },
		CapacityFn:   func() int { return 16 },
		EraseBlock:   16,
	}
	// rounds 5 bytes up to 16, offset 8 -> erase range [8,24) exceeds capacity 16.
	if err := pf.EraseWrite(8, make([]byte, 5)); err == nil {
		t.Fatal("expected out-of-bounds erase error")
	}
}

func TestFlashBufferedSourceScenario(t *testing.T) {
	// MemoryFlash(64) + FlashBufferedSource(base=0, len=8, id=7):
	// write_module([1,2,3,4]) then fetch_or_load() starts with [1,2,3,4].
	flash := NewMemoryFlash(64)
	src := NewFlashBufferedSource(flash, 0, 8, 7)

	if err := src.WriteModule([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("WriteModule: %v", err)
	}

	got, err := src.FetchOrLoad()
	if err != nil {
		t.Fatalf("FetchOrLoad: %v", err)
	}
	if !bytes.Equal(got[:4], []byte{1, 2, 3, 4}) {
		t.Fatalf("got %v, want prefix [1 2 3 4]", got[:4])
	}

	// Fetch never touches flash; it reflects whatever FetchOrLoad cached.
	fetched, ok := src.Fetch(7)
	if !ok || !bytes.Equal(fetched, got) {
		t.Fatalf("Fetch(7) = %v, %v; want %v, true", fetched, ok, got)
	}
	if _, ok := src.Fetch(99); ok {
		t.Fatal("expected Fetch for unknown id to fail")
	}
}

func TestFlashBufferedSourceFetchBeforeLoad(t *testing.T) {
	flash := NewMemoryFlash(16)
	src := NewFlashBufferedSource(flash, 0, 8, 7)
	if _, ok := src.Fetch(7); ok {
		t.Fatal("expected Fetch to miss before any load")
	}
}

func TestFlashBufferedSourceSlotTooSmall(t *testing.T) {
	flash := NewMemoryFlash(64)
	src := NewFlashBufferedSource(flash, 0, 4, 7)
	if err := src.WriteModule(make([]byte, 8)); err == nil {
		t.Fatal("expected flash slot too small error")
	}
}

func TestFlashOnDemandSource(t *testing.T) {
	flash := NewMemoryFlash(32)
	if err := flash.EraseWrite(0, []byte{9, 8, 7, 6}); err != nil {
		t.Fatalf("EraseWrite: %v", err)
	}

	src := NewFlashOnDemandSource(flash, 0, 4, 3)

	if _, ok := src.Fetch(3); ok {
		t.Fatal("expected Fetch to miss before scratch is populated")
	}

	got, err := src.FetchIntoScratch()
	if err != nil {
		t.Fatalf("FetchIntoScratch: %v", err)
	}
	if !bytes.Equal(got, []byte{9, 8, 7, 6}) {
		t.Fatalf("got %v", got)
	}

	fetched, ok := src.Fetch(3)
	if !ok || !bytes.Equal(fetched, got) {
		t.Fatalf("Fetch(3) = %v, %v", fetched, ok)
	}

	buf := make([]byte, 4)
	if _, err := src.ReadInto(buf); err != nil {
		t.Fatalf("ReadInto: %v", err)
	}
	if !bytes.Equal(buf, []byte{9, 8, 7, 6}) {
		t.Fatalf("got %v", buf)
	}

	if _, err := src.ReadInto(make([]byte, 3)); err == nil {
		t.Fatal("expected buffer len mismatch error")
	}
}

func TestFileFlashRoundTrip(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFileFlash(dir+"/flash.bin", 32)
	if err != nil {
		t.Fatalf("NewFileFlash: %v", err)
	}

	data := []byte{5, 6, 7, 8}
	if err := f.EraseWrite(4, data); err != nil {
		t.Fatalf("EraseWrite: %v", err)
	}

	buf := make([]byte, 4)
	if err := f.Read(4, buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(buf, data) {
		t.Fatalf("got %v, want %v", buf, data)
	}

	if err := f.EraseWrite(30, []byte{1, 2, 3}); err == nil {
		t.Fatal("expected out-of-bounds write error")
	}
}
