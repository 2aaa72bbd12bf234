// Package layout loads a YAML description of which module ids live at which
// flash offsets, following the normalize()-after-unmarshal idiom the teacher
// uses for its bundle metadata (internal/bundle/bundle.go). Flash slot
// layout is external policy (the module ids that live in a shared flash
// region and where), kept out of package storage entirely — storage only
// knows how to address bytes once told where they are.
package layout

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tinyrange/slimmy/storage"
)

// DefaultEraseBlock fills Layout.EraseBlock when the document leaves it
// unset or zero.
const DefaultEraseBlock = 4096

// Layout describes a flash region split into module slots.
type Layout struct {
	Version    int    `yaml:"version"`
	EraseBlock int    `yaml:"eraseBlock,omitempty"`
	Slots      []Slot `yaml:"slots"`
}

// Slot is one module's location within the flash region.
type Slot struct {
	ModuleId uint32 `yaml:"moduleId"`
	Offset   int    `yaml:"offset"`
	Len      int    `yaml:"len"`
}

func (l *Layout) normalize() {
	if l.Version == 0 {
		l.Version = 1
	}
	if l.EraseBlock == 0 {
		l.EraseBlock = DefaultEraseBlock
	}
}

// Load reads and parses a layout YAML document from path. If path does not
// exist, Load logs a debug line and returns an empty, normalized Layout
// rather than an error — a device with no layout file has no slots, which
// is a valid (if useless) configuration, mirroring how the teacher treats a
// missing optional config as "use defaults" rather than a hard failure.
func Load(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("layout file not found, using empty layout", "path", path)
			var l Layout
			l.normalize()
			return l, nil
		}
		return Layout{}, fmt.Errorf("read %s: %w", path, err)
	}

	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return Layout{}, fmt.Errorf("parse %s: %w", path, err)
	}
	l.normalize()
	return l, nil
}

// IndexEntries converts the layout's slots into storage.IndexEntry values
// suitable for storage.NewIndexedSliceSource.
func (l *Layout) IndexEntries() []storage.IndexEntry {
	entries := make([]storage.IndexEntry, 0, len(l.Slots))
	for _, s := range l.Slots {
		entries = append(entries, storage.IndexEntry{Id: s.ModuleId, Offset: s.Offset, Len: s.Len})
	}
	return entries
}

// Find returns the slot bound to id, if any.
func (l *Layout) Find(id uint32) (Slot, bool) {
	for _, s := range l.Slots {
		if s.ModuleId == id {
			return s, true
		}
	}
	return Slot{}, false
}

// Save writes the layout back to path as YAML, matching the teacher's
// WriteTemplate encoder settings (2-space indent).
func Save(path string, l Layout) error {
	l.normalize()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(&l); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return enc.Close()
}
