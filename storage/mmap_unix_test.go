//go:build unix

package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMmapPartitionSourceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partition.bin")
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	src, err := NewMmapPartitionSource(path, 9)
	if err != nil {
		t.Fatalf("NewMmapPartitionSource: %v", err)
	}
	defer src.Unmap()

	got, ok := src.Fetch(9)
	if !ok {
		t.Fatal("expected Fetch(9) to succeed")
	}
	for i, b := range want {
		if got[i] != b {
			t.Fatalf("byte %d = %#x, want %#x", i, got[i], b)
		}
	}

	if _, ok := src.Fetch(10); ok {
		t.Fatal("expected Fetch for unknown id to fail")
	}
}

func TestMmapPartitionSourceEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := NewMmapPartitionSource(path, 1); err == nil {
		t.Fatal("expected empty partition file to be rejected")
	}
}
