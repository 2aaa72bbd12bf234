//go:build unix

package storage

import (
	"golang.org/x/sys/unix"

	"github.com/tinyrange/slimmy/internal/slimerr"
)

// MmapPartitionSource is a PartitionSliceSource backed by a memory-mapped
// file — the host-side analogue of a device whose OTA partition is
// memory-mapped QSPI/NOR flash. Unmap must be called when the caller is
// done with it to release the mapping.
type MmapPartitionSource struct {
	*PartitionSliceSource
	region []byte
}

// NewMmapPartitionSource opens path and mmaps its full contents read-only,
// returning a PartitionSliceSource over the mapped bytes bound to id.
func NewMmapPartitionSource(path string, id uint32) (*MmapPartitionSource, error) {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return nil, slimerr.Wrap("open partition file", err)
	}
	defer unix.Close(fd)

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		return nil, slimerr.Wrap("stat partition file", err)
	}
	size := int(stat.Size)
	if size == 0 {
		return nil, slimerr.Engine("partition file is empty")
	}

	region, err := unix.Mmap(fd, 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, slimerr.Wrap("mmap partition file", err)
	}

	return &MmapPartitionSource{
		PartitionSliceSource: NewPartitionSliceSource(region, id),
		region:               region,
	}, nil
}

// Unmap releases the memory mapping. The source must not be used
// afterward.
func (s *MmapPartitionSource) Unmap() error {
	if s.region == nil {
		return nil
	}
	err := unix.Munmap(s.region)
	s.region = nil
	return err
}
