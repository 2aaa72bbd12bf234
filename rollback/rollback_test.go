package rollback

import (
	"testing"

	"github.com/tinyrange/slimmy/manifest"
)

func encodeWithSequence(t *testing.T, flags uint8, sequence uint32) manifest.Manifest {
	t.Helper()
	blob, err := manifest.Encode(1, "main", []byte{1, 2, 3}, flags, sequence, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	m, _, err := manifest.Parse(blob)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return m
}

func TestCheckPassesWhenNotProtected(t *testing.T) {
	store := NewStore()
	m := encodeWithSequence(t, 0, 5)
	if err := store.Check(&m); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestCheckPassesWhenSequenceZero(t *testing.T) {
	store := NewStore()
	m := encodeWithSequence(t, manifest.FlagRollbackProtected, 0)
	if err := store.Check(&m); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestCheckPassesWithNoPriorRecord(t *testing.T) {
	store := NewStore()
	m := encodeWithSequence(t, manifest.FlagRollbackProtected, 3)
	if err := store.Check(&m); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestCheckRejectsStaleSequence(t *testing.T) {
	store := NewStore()
	store.Record(1, 10)

	m := encodeWithSequence(t, manifest.FlagRollbackProtected, 10)
	if err := store.Check(&m); err == nil {
		t.Fatal("expected equal sequence to be rejected")
	}

	older := encodeWithSequence(t, manifest.FlagRollbackProtected, 5)
	if err := store.Check(&older); err == nil {
		t.Fatal("expected older sequence to be rejected")
	}
}

func TestCheckAcceptsNewerSequence(t *testing.T) {
	store := NewStore()
	store.Record(1, 10)

	newer := encodeWithSequence(t, manifest.FlagRollbackProtected, 11)
	if err := store.Check(&newer); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestRecordThenLastSequence(t *testing.T) {
	store := NewStore()
	if _, ok := store.LastSequence(42); ok {
		t.Fatal("expected no sequence recorded yet")
	}
	store.Record(42, 7)
	seq, ok := store.LastSequence(42)
	if !ok || seq != 7 {
		t.Fatalf("LastSequence = %d, %v, want 7, true", seq, ok)
	}
}
