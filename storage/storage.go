// Package storage implements slimmy.ModuleSource over RAM, a contiguous
// flash/ROM slice, an indexed multi-module region, and flash accessed
// through the FlashIo capability (buffered or on-demand).
//
// Platform-specific glue (NVS/partition reads, QSPI, memory-mapped OTA
// partitions) is expected to produce a []byte view or a FlashIo
// implementation and feed it into one of the types below; storage policy
// (which offsets hold which module ids) stays out of the core and lives in
// package layout.
package storage

import "github.com/tinyrange/slimmy/internal/slimerr"

// IndexEntry locates one module inside a shared backing region.
type IndexEntry struct {
	Id     uint32
	Offset int
	Len    int
}

// PartitionSliceSource treats a single contiguous region as one module
// bound to a fixed id — the simplest mapping for a device whose flash is
// memory-mapped and dedicated to a single OTA partition.
type PartitionSliceSource struct {
	region []byte
	id     uint32
}

// NewPartitionSliceSource wraps region as the module identified by id.
func NewPartitionSliceSource(region []byte, id uint32) *PartitionSliceSource {
	return &PartitionSliceSource{region: region, id: id}
}

// Fetch implements slimmy.ModuleSource.
func (s *PartitionSliceSource) Fetch(id uint32) ([]byte, bool) {
	if id != s.id {
		return nil, false
	}
	return s.region, true
}

// IndexedSliceSource maps several modules within one shared backing slice
// using an index table. Offsets and lengths should already respect the
// target flash device's erase/program boundaries — that policy is the
// caller's, not this type's.
type IndexedSliceSource struct {
	region  []byte
	entries []IndexEntry
}

// NewIndexedSliceSource wraps region with the given index entries.
func NewIndexedSliceSource(region []byte, entries []IndexEntry) *IndexedSliceSource {
	return &IndexedSliceSource{region: region, entries: entries}
}

// Fetch implements slimmy.ModuleSource. It finds the first matching entry
// and returns the bounds-checked subslice; offset+len overflow or an
// out-of-range entry both count as "not found" rather than panicking.
func (s *IndexedSliceSource) Fetch(id uint32) ([]byte, bool) {
	for _, e := range s.entries {
		if e.Id != id {
			continue
		}
		end := e.Offset + e.Len
		if end < e.Offset || e.Offset < 0 || end > len(s.region) {
			return nil, false
		}
		return s.region[e.Offset:end], true
	}
	return nil, false
}

// FlashIo is the generic flash I/O capability behind platform-specific
// ModuleSource implementations. erase_write is atomic at the slot
// granularity: it is all-or-nothing from the caller's point of view. All
// operations bounds-check against Capacity and fail with an out-of-bounds
// error on overrun, including arithmetic overflow in offset+len.
type FlashIo interface {
	// EraseWrite erases and writes data at offset, respecting any
	// erase-block alignment the concrete implementation enforces.
	EraseWrite(offset int, data []byte) error
	// Read reads len(buf) bytes starting at offset into buf.
	Read(offset int, buf []byte) error
	// Capacity returns total addressable capacity in bytes.
	Capacity() int
}

// MemoryFlash is an in-RAM FlashIo, initialized to 0xFF like erased NOR
// flash. Useful for tests and RAM-only targets.
type MemoryFlash struct {
	storage []byte
}

// NewMemoryFlash creates a MemoryFlash of the given size, filled with 0xFF.
func NewMemoryFlash(size int) *MemoryFlash {
	storage := make([]byte, size)
	for i := range storage {
		storage[i] = 0xFF
	}
	return &MemoryFlash{storage: storage}
}

// EraseWrite implements FlashIo by overwriting the range directly.
func (f *MemoryFlash) EraseWrite(offset int, data []byte) error {
	end := offset + len(data)
	if offset < 0 || end < offset || end > len(f.storage) {
		return slimerr.Engine("write out of bounds")
	}
	copy(f.storage[offset:end], data)
	return nil
}

// Read implements FlashIo.
func (f *MemoryFlash) Read(offset int, buf []byte) error {
	end := offset + len(buf)
	if offset < 0 || end < offset || end > len(f.storage) {
		return slimerr.Engine("read out of bounds")
	}
	copy(buf, f.storage[offset:end])
	return nil
}

// Capacity implements FlashIo.
func (f *MemoryFlash) Capacity() int { return len(f.storage) }

// HalFlash adapts a callback pair plus a capacity and erase-block size into
// FlashIo, mirroring the reference implementation's STM32/HAL integration
// shape (function pointers supplied by vendor HAL code). It does not round
// lengths up (see PartitionFlash for that). EraseBlock == 0 disables
// alignment checks entirely; otherwise both offset and len(data) must be
// multiples of EraseBlock.
type HalFlash struct {
	EraseWriteFn func(offset int, data []byte) error
	ReadFn       func(offset int, buf []byte) error
	CapacityFn   func() int
	EraseBlock   int
}

// EraseWrite implements FlashIo, enforcing erase-block alignment when
// EraseBlock != 0 before delegating to EraseWriteFn.
func (f *HalFlash) EraseWrite(offset int, data []byte) error {
	if err := f.checkBounds(offset, len(data)); err != nil {
		return err
	}
	if f.EraseBlock != 0 {
		if offset%f.EraseBlock != 0 {
			return slimerr.Engine("erase offset not aligned")
		}
		if len(data)%f.EraseBlock != 0 {
			return slimerr.Engine("erase len not aligned")
		}
	}
	return f.EraseWriteFn(offset, data)
}

// Read implements FlashIo.
func (f *HalFlash) Read(offset int, buf []byte) error {
	if err := f.checkBounds(offset, len(buf)); err != nil {
		return slimerr.Engine("read out of bounds")
	}
	return f.ReadFn(offset, buf)
}

// Capacity implements FlashIo.
func (f *HalFlash) Capacity() int { return f.CapacityFn() }

func (f *HalFlash) checkBounds(offset, length int) error {
	end := offset + length
	if offset < 0 || end < offset || end > f.CapacityFn() {
		return slimerr.Engine("write out of bounds")
	}
	return nil
}

// PartitionFlash models erase-write semantics for a partition-backed flash
// device whose erase granularity is a fixed block: EraseWrite rounds the
// write length up to the next block multiple, erases that range, then
// writes the data. This is the Go equivalent of the reference crate's
// ESP-IDF `esp_partition_erase_range`/`esp_partition_write` pairing, with
// the actual device calls left to EraseRangeFn/WriteFn/ReadFn so this type
// stays host-testable.
type PartitionFlash struct {
	EraseRangeFn func(offset, length int) error
	WriteFn      func(offset int, data []byte) error
	ReadFn       func(offset int, buf []byte) error
	CapacityFn   func() int
	EraseBlock   int
}

// EraseWrite rounds len(data) up to the next EraseBlock multiple, verifies
// the rounded range fits within capacity, erases it, then writes data.
func (f *PartitionFlash) EraseWrite(offset int, data []byte) error {
	eraseLen := roundUp(len(data), f.EraseBlock)
	end := offset + eraseLen
	if offset < 0 || end < offset || end > f.CapacityFn() {
		return slimerr.Engine("write out of bounds")
	}
	if err := f.EraseRangeFn(offset, eraseLen); err != nil {
		return err
	}
	writeEnd := offset + len(data)
	if writeEnd > f.CapacityFn() {
		return slimerr.Engine("write out of bounds")
	}
	return f.WriteFn(offset, data)
}

// Read implements FlashIo.
func (f *PartitionFlash) Read(offset int, buf []byte) error {
	end := offset + len(buf)
	if offset < 0 || end < offset || end > f.CapacityFn() {
		return slimerr.Engine("read out of bounds")
	}
	return f.ReadFn(offset, buf)
}

// Capacity implements FlashIo.
func (f *PartitionFlash) Capacity() int { return f.CapacityFn() }

func roundUp(n, block int) int {
	if block <= 0 {
		return n
	}
	if n%block == 0 {
		return n
	}
	return (n/block + 1) * block
}

// FlashBufferedSource wraps a FlashIo for one (baseOffset, len, moduleId)
// slot. WriteModule programs the slot; Fetch (the ModuleSource method)
// returns the cache if already populated and otherwise reports not-found —
// it never reads flash itself, because Fetch takes no mutable receiver
// conceptually (see §9 Open Question (b)): callers must pre-load via
// FetchOrLoad or FetchIntoCache before relying on Fetch.
type FlashBufferedSource struct {
	io         FlashIo
	baseOffset int
	len        int
	moduleId   uint32
	cache      []byte
}

// NewFlashBufferedSource creates a buffered source over io for the module
// slot [baseOffset, baseOffset+len) bound to moduleId.
func NewFlashBufferedSource(io FlashIo, baseOffset, length int, moduleId uint32) *FlashBufferedSource {
	return &FlashBufferedSource{io: io, baseOffset: baseOffset, len: length, moduleId: moduleId}
}

// WriteModule programs bytes into the flash slot. It fails if bytes is
// larger than the slot.
func (s *FlashBufferedSource) WriteModule(bytes []byte) error {
	if len(bytes) > s.len {
		return slimerr.Engine("flash slot too small")
	}
	return s.io.EraseWrite(s.baseOffset, bytes)
}

// FetchIntoCache reads the full slot from flash into the internal cache and
// returns it.
func (s *FlashBufferedSource) FetchIntoCache() ([]byte, error) {
	s.cache = make([]byte, s.len)
	if err := s.io.Read(s.baseOffset, s.cache); err != nil {
		return nil, slimerr.Engine("flash read failed")
	}
	return s.cache, nil
}

// FetchOrLoad returns the cache if populated, otherwise loads it from flash.
func (s *FlashBufferedSource) FetchOrLoad() ([]byte, error) {
	if len(s.cache) == 0 {
		return s.FetchIntoCache()
	}
	return s.cache, nil
}

// Fetch implements slimmy.ModuleSource. It never touches flash; see the
// type doc comment.
func (s *FlashBufferedSource) Fetch(id uint32) ([]byte, bool) {
	if id != s.moduleId {
		return nil, false
	}
	if len(s.cache) == 0 {
		return nil, false
	}
	return s.cache, true
}

// FlashOnDemandSource never reads flash implicitly: Fetch yields bytes only
// after FetchIntoScratch has filled the internal scratch buffer. ReadInto
// reads into the caller's buffer and leaves what Fetch returns unchanged.
// Functionally the scratch buffer behaves the same as FlashBufferedSource's
// cache, but the name signals "no implicit caching policy" to integrators
// wiring up a new platform.
type FlashOnDemandSource struct {
	io         FlashIo
	baseOffset int
	len        int
	moduleId   uint32
	scratch    []byte
}

// NewFlashOnDemandSource creates an on-demand source over io for the module
// slot [baseOffset, baseOffset+len) bound to moduleId.
func NewFlashOnDemandSource(io FlashIo, baseOffset, length int, moduleId uint32) *FlashOnDemandSource {
	return &FlashOnDemandSource{io: io, baseOffset: baseOffset, len: length, moduleId: moduleId}
}

// ReadInto reads the module into buf, whose length must equal the slot
// length, and returns buf.
func (s *FlashOnDemandSource) ReadInto(buf []byte) ([]byte, error) {
	if len(buf) != s.len {
		return nil, slimerr.Engine("buffer len mismatch")
	}
	if err := s.io.Read(s.baseOffset, buf); err != nil {
		return nil, slimerr.Engine("flash read failed")
	}
	return buf, nil
}

// FetchIntoScratch reads the module into the internal scratch buffer and
// returns it.
func (s *FlashOnDemandSource) FetchIntoScratch() ([]byte, error) {
	s.scratch = make([]byte, s.len)
	if err := s.io.Read(s.baseOffset, s.scratch); err != nil {
		return nil, slimerr.Engine("flash read failed")
	}
	return s.scratch, nil
}

// Fetch implements slimmy.ModuleSource, returning the scratch buffer if it
// has been populated by a prior FetchIntoScratch call.
func (s *FlashOnDemandSource) Fetch(id uint32) ([]byte, bool) {
	if id != s.moduleId {
		return nil, false
	}
	if len(s.scratch) == 0 {
		return nil, false
	}
	return s.scratch, true
}
