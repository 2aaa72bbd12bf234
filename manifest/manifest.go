// Package manifest implements the SMNY envelope: a versioned, forward
// compatible binary format carrying a module's identity, its entry point,
// an optional rollback sequence, and an optional Ed25519 signature.
//
// Binary layout (little-endian throughout):
//
//	offset 0   magic      "SMNY" (4 bytes)
//	offset 4   version    u8 (1 or 2)
//	offset 5   module_id  u32
//	offset 9   module_len u32
//
//	v1 continuation:
//	offset 13  entry_len  u8
//	offset 14  entry      entry_len bytes, UTF-8
//	then       [signature 64B]? then module bytes
//
//	v2 continuation:
//	offset 13  flags      u8
//	offset 14  sequence   u32
//	offset 18  entry_len  u8
//	offset 19  entry      entry_len bytes, UTF-8
//	then       [signature 64B]? then module bytes
//
// The signed message (see SigningPreimage) is the manifest bytes up to but
// excluding the signature, concatenated with the module bytes.
package manifest

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/tinyrange/slimmy/internal/slimerr"
)

const (
	// Magic is the 4-byte marker at the start of every manifest.
	Magic = "SMNY"
	// Version is the manifest version emitted by Encode.
	Version uint8 = 2
	// VersionV1 is the legacy manifest version Parse still accepts.
	VersionV1 uint8 = 1
	// SignatureLen is the length of a full Ed25519 signature.
	SignatureLen = 64

	// FlagRequireSignature (v2 only) means Parse must reject a manifest
	// with no trailing signature bytes.
	FlagRequireSignature uint8 = 0b0000_0001
	// FlagRollbackProtected (v2 only) marks Sequence as an enforced
	// rollback floor for a policy layer (see package rollback).
	FlagRollbackProtected uint8 = 0b0000_0010

	headerFixedV1 = 4 + 1 + 4 + 4 + 1
	headerFixedV2 = 4 + 1 + 4 + 4 + 1 + 4 + 1
)

// Manifest is a non-owning view over a byte buffer produced by Parse. It
// lives only as long as the backing slice passed to Parse.
type Manifest struct {
	Version   uint8
	ModuleId  uint32
	ModuleLen uint32
	Entry     string
	Flags     uint8
	Sequence  uint32
	Signature []byte // nil if absent, else exactly SignatureLen bytes

	rawWithoutSig []byte
}

// RequireSignature reports whether FlagRequireSignature is set. Always
// false for a v1 manifest (v1 carries no flags).
func (m *Manifest) RequireSignature() bool {
	return m.Flags&FlagRequireSignature != 0
}

// RollbackProtected reports whether FlagRollbackProtected is set.
func (m *Manifest) RollbackProtected() bool {
	return m.Flags&FlagRollbackProtected != 0
}

// SigningPreimageLen returns the length of the signing preimage for the
// given module length, or (0, false) if this manifest carries no signature.
func (m *Manifest) SigningPreimageLen(moduleLen int) (int, bool) {
	if m.Signature == nil {
		return 0, false
	}
	return len(m.rawWithoutSig) + moduleLen, true
}

// Preimage returns the exact bytes that must have been signed for this
// manifest: the header region captured at Parse time (everything up to but
// excluding the signature, in whichever version's layout the manifest was
// actually parsed from) concatenated with module. This is distinct from the
// package-level SigningPreimage helper, which always builds a fresh v2
// header for Encode — a parsed v1 manifest's preimage uses the v1 layout it
// was actually signed with.
func (m *Manifest) Preimage(module []byte) []byte {
	preimage := make([]byte, 0, len(m.rawWithoutSig)+len(module))
	preimage = append(preimage, m.rawWithoutSig...)
	preimage = append(preimage, module...)
	return preimage
}

// Parse decodes bytes into a Manifest view plus the remaining module slice.
// It never panics on malformed input; every rejection returns an error.
//
// Signature presence follows the reference codec's rule verbatim (see §9 of
// the design notes): if the bytes trailing the entry name are at least
// SignatureLen long, the first SignatureLen of them are the signature;
// otherwise no signature is present. v2's FlagRequireSignature is the
// authoritative signal callers should rely on; this trailing-length rule is
// preserved only for bit-compatibility with existing encoders.
func Parse(bytes []byte) (Manifest, []byte, error) {
	if len(bytes) < headerFixedV1 {
		return Manifest{}, nil, slimerr.Engine("manifest too small")
	}
	if string(bytes[0:4]) != Magic {
		return Manifest{}, nil, slimerr.Engine("manifest magic mismatch")
	}

	switch bytes[4] {
	case VersionV1:
		return parseV1(bytes)
	case Version:
		return parseV2(bytes)
	default:
		return Manifest{}, nil, slimerr.Engine("manifest version unsupported")
	}
}

func parseV1(bytes []byte) (Manifest, []byte, error) {
	moduleId := binary.LittleEndian.Uint32(bytes[5:9])
	moduleLen := binary.LittleEndian.Uint32(bytes[9:13])
	entryLen := int(bytes[13])

	entryStart := headerFixedV1
	entryEnd := entryStart + entryLen
	if entryEnd < entryStart {
		return Manifest{}, nil, slimerr.Engine("manifest entry overflow")
	}
	if entryEnd > len(bytes) {
		return Manifest{}, nil, slimerr.Engine("manifest entry out of bounds")
	}
	entryBytes := bytes[entryStart:entryEnd]
	if !utf8.Valid(entryBytes) {
		return Manifest{}, nil, slimerr.Engine("manifest entry not utf-8")
	}

	signature, moduleBytes, err := splitSignature(bytes[entryEnd:])
	if err != nil {
		return Manifest{}, nil, err
	}

	return Manifest{
		Version:       VersionV1,
		ModuleId:      moduleId,
		ModuleLen:     moduleLen,
		Entry:         string(entryBytes),
		Flags:         0,
		Sequence:      0,
		Signature:     signature,
		rawWithoutSig: bytes[:entryEnd],
	}, moduleBytes, nil
}

func parseV2(bytes []byte) (Manifest, []byte, error) {
	if len(bytes) < headerFixedV2 {
		return Manifest{}, nil, slimerr.Engine("manifest too small")
	}

	moduleId := binary.LittleEndian.Uint32(bytes[5:9])
	moduleLen := binary.LittleEndian.Uint32(bytes[9:13])
	flags := bytes[13]
	sequence := binary.LittleEndian.Uint32(bytes[14:18])
	entryLen := int(bytes[18])

	entryStart := headerFixedV2
	entryEnd := entryStart + entryLen
	if entryEnd < entryStart {
		return Manifest{}, nil, slimerr.Engine("manifest entry overflow")
	}
	if entryEnd > len(bytes) {
		return Manifest{}, nil, slimerr.Engine("manifest entry out of bounds")
	}
	entryBytes := bytes[entryStart:entryEnd]
	if !utf8.Valid(entryBytes) {
		return Manifest{}, nil, slimerr.Engine("manifest entry not utf-8")
	}

	signature, moduleBytes, err := splitSignature(bytes[entryEnd:])
	if err != nil {
		return Manifest{}, nil, err
	}

	if flags&FlagRequireSignature != 0 && signature == nil {
		return Manifest{}, nil, slimerr.Engine("manifest requires signature")
	}

	return Manifest{
		Version:       Version,
		ModuleId:      moduleId,
		ModuleLen:     moduleLen,
		Entry:         string(entryBytes),
		Flags:         flags,
		Sequence:      sequence,
		Signature:     signature,
		rawWithoutSig: bytes[:entryEnd],
	}, moduleBytes, nil
}

func splitSignature(remaining []byte) (signature, moduleBytes []byte, err error) {
	if len(remaining) >= SignatureLen {
		return remaining[:SignatureLen], remaining[SignatureLen:], nil
	}
	return nil, remaining, nil
}

// Encode builds a manifest blob (header, optional signature, module bytes).
// Encode always emits Version 2.
func Encode(moduleId uint32, entry string, module []byte, flags uint8, sequence uint32, signature []byte) ([]byte, error) {
	header, err := buildHeader(moduleId, entry, len(module), flags, sequence)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(header)+len(signature)+len(module))
	out = append(out, header...)
	out = append(out, signature...)
	out = append(out, module...)
	return out, nil
}

// SigningPreimage builds the exact byte sequence an Ed25519 signature must
// cover: the v2 header (no signature) concatenated with the module bytes.
func SigningPreimage(moduleId uint32, entry string, module []byte, flags uint8, sequence uint32) ([]byte, error) {
	header, err := buildHeader(moduleId, entry, len(module), flags, sequence)
	if err != nil {
		return nil, err
	}
	return append(header, module...), nil
}

func buildHeader(moduleId uint32, entry string, moduleLen int, flags uint8, sequence uint32) ([]byte, error) {
	if uint64(moduleLen) > uint64(^uint32(0)) {
		return nil, slimerr.Engine("module too large")
	}
	entryBytes := []byte(entry)
	if len(entryBytes) > 255 {
		return nil, slimerr.Engine("entry name too long")
	}

	buf := make([]byte, 0, headerFixedV2+len(entryBytes))
	buf = append(buf, Magic...)
	buf = append(buf, Version)
	buf = binary.LittleEndian.AppendUint32(buf, moduleId)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(moduleLen))
	buf = append(buf, flags)
	buf = binary.LittleEndian.AppendUint32(buf, sequence)
	buf = append(buf, byte(len(entryBytes)))
	buf = append(buf, entryBytes...)
	return buf, nil
}
