// Package sign verifies the Ed25519 signature carried by a manifest.Manifest
// against the manifest's signing preimage. It is pure: no I/O, no shared
// state, and no dependency on any particular ModuleSource or Engine.
//
// We use the standard library's crypto/ed25519 rather than a third-party
// signer (see DESIGN.md): it already implements strict (malleability
// resistant) verification via VerifyWithOptions, matching the reference
// crate's ed25519_dalek::verify_strict, and no pack example pulls in an
// Ed25519 library of its own.
package sign

import (
	"crypto/ed25519"

	"github.com/tinyrange/slimmy/internal/slimerr"
	"github.com/tinyrange/slimmy/manifest"
)

// VerifyEd25519 checks manifest's signature over module using pubkey.
// pubkey must be exactly 32 bytes (an Ed25519 public key).
func VerifyEd25519(m *manifest.Manifest, module []byte, pubkey []byte) error {
	if m.Signature == nil {
		return slimerr.Engine("manifest missing signature")
	}
	if int(m.ModuleLen) != len(module) {
		return slimerr.Engine("manifest module_len mismatch")
	}
	if len(pubkey) != ed25519.PublicKeySize {
		return slimerr.Engine("bad pubkey")
	}
	if len(m.Signature) != ed25519.SignatureSize {
		return slimerr.Engine("bad signature bytes")
	}

	preimage := m.Preimage(module)

	opts := &ed25519.Options{Hash: 0} // default (pure) Ed25519, strict verification
	if err := ed25519.VerifyWithOptions(ed25519.PublicKey(pubkey), preimage, m.Signature, opts); err != nil {
		return slimerr.Engine("signature verify failed")
	}
	return nil
}

// SignEd25519 signs the manifest preimage with a private key. This is a
// packer/host-side convenience, not something a constrained device needs at
// runtime, but it keeps signing and verifying logic next to each other and
// gives cmd/slimmy-pack somewhere to call.
func SignEd25519(priv ed25519.PrivateKey, moduleId uint32, entry string, module []byte, flags uint8, sequence uint32) ([]byte, error) {
	preimage, err := manifest.SigningPreimage(moduleId, entry, module, flags, sequence)
	if err != nil {
		return nil, err
	}
	return ed25519.Sign(priv, preimage), nil
}
