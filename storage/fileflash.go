package storage

import (
	"io"
	"os"

	"github.com/tinyrange/slimmy/internal/slimerr"
)

// FileFlash emulates flash using a regular file — for host testing and
// tooling only, never for production firmware. Each operation seeks and
// performs the primitive directly against the file.
type FileFlash struct {
	path     string
	capacity int
}

// NewFileFlash opens (creating if necessary) a file at path sized to
// capacity bytes and returns a FlashIo backed by it.
func NewFileFlash(path string, capacity int) (*FileFlash, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, slimerr.Wrap("open flash file", err)
	}
	defer f.Close()
	if err := f.Truncate(int64(capacity)); err != nil {
		return nil, slimerr.Wrap("size flash file", err)
	}
	return &FileFlash{path: path, capacity: capacity}, nil
}

// EraseWrite implements FlashIo by seeking and overwriting in place.
func (f *FileFlash) EraseWrite(offset int, data []byte) error {
	end := offset + len(data)
	if offset < 0 || end < offset || end > f.capacity {
		return slimerr.Engine("write out of bounds")
	}
	file, err := os.OpenFile(f.path, os.O_RDWR, 0o644)
	if err != nil {
		return slimerr.Engine("open flash file")
	}
	defer file.Close()
	if _, err := file.Seek(int64(offset), io.SeekStart); err != nil {
		return slimerr.Engine("seek flash file")
	}
	if _, err := file.Write(data); err != nil {
		return slimerr.Engine("write flash file")
	}
	return nil
}

// Read implements FlashIo.
func (f *FileFlash) Read(offset int, buf []byte) error {
	end := offset + len(buf)
	if offset < 0 || end < offset || end > f.capacity {
		return slimerr.Engine("read out of bounds")
	}
	file, err := os.OpenFile(f.path, os.O_RDONLY, 0o644)
	if err != nil {
		return slimerr.Engine("open flash file")
	}
	defer file.Close()
	if _, err := file.Seek(int64(offset), io.SeekStart); err != nil {
		return slimerr.Engine("seek flash file")
	}
	if _, err := io.ReadFull(file, buf); err != nil {
		return slimerr.Engine("read flash file")
	}
	return nil
}

// Capacity implements FlashIo.
func (f *FileFlash) Capacity() int { return f.capacity }
