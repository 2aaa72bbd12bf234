// Command slimmy-pack bundles a WASM module into a signed or unsigned
// manifest blob, mirroring the reference implementation's packer binary.
// When -sign-key-hex is omitted it prompts for a hex-encoded Ed25519 seed on
// the terminal with echo disabled (golang.org/x/term), rather than taking it
// as a flag, so a signing seed never lands in shell history or process
// listings. When -flash-out is given it also streams the blob into a
// FileFlash-backed image at the requested offset, reporting progress with a
// terminal progress bar.
package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/tinyrange/slimmy/manifest"
	"github.com/tinyrange/slimmy/sign"
	"github.com/tinyrange/slimmy/storage"
)

func main() {
	modulePath := flag.String("module", "", "path to the input .wasm module")
	moduleId := flag.Uint("module-id", 1, "module id to embed in the manifest")
	entry := flag.String("entry", "main", "entrypoint name")
	out := flag.String("out", "", "output file path (default derived from -module)")
	signKeyHex := flag.String("sign-key-hex", "", "hex-encoded 32-byte Ed25519 seed (omit to be prompted)")
	unsigned := flag.Bool("unsigned", false, "skip signing entirely, no prompt")
	requireSig := flag.Bool("require-signature", false, "set FLAG_REQUIRE_SIGNATURE")
	rollbackProtected := flag.Bool("rollback-protected", false, "set FLAG_ROLLBACK_PROTECTED")
	sequence := flag.Uint("sequence", 0, "rollback sequence number")
	flashOut := flag.String("flash-out", "", "also write the blob into a flash image file at -flash-offset")
	flashOffset := flag.Int("flash-offset", 0, "byte offset within -flash-out to write the blob")
	flashCapacity := flag.Int("flash-capacity", 0, "total capacity of -flash-out (required with -flash-out)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: slimmy-pack -module PATH [options]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if *modulePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := packConfig{
		modulePath:        *modulePath,
		moduleId:          uint32(*moduleId),
		entry:             *entry,
		out:               *out,
		signKeyHex:        *signKeyHex,
		unsigned:          *unsigned,
		requireSig:        *requireSig,
		rollbackProtected: *rollbackProtected,
		sequence:          uint32(*sequence),
		flashOut:          *flashOut,
		flashOffset:       *flashOffset,
		flashCapacity:     *flashCapacity,
	}

	if err := run(cfg); err != nil {
		slog.Error("slimmy-pack failed", "error", err)
		os.Exit(1)
	}
}

type packConfig struct {
	modulePath        string
	moduleId          uint32
	entry             string
	out               string
	signKeyHex        string
	unsigned          bool
	requireSig        bool
	rollbackProtected bool
	sequence          uint32
	flashOut          string
	flashOffset       int
	flashCapacity     int
}

func run(cfg packConfig) error {
	moduleBytes, err := os.ReadFile(cfg.modulePath)
	if err != nil {
		return fmt.Errorf("read module: %w", err)
	}

	var flags uint8
	if cfg.requireSig {
		flags |= manifest.FlagRequireSignature
	}
	if cfg.rollbackProtected {
		flags |= manifest.FlagRollbackProtected
	}

	var signature []byte
	if !cfg.unsigned {
		priv, err := resolveSigningKey(cfg.signKeyHex)
		if err != nil {
			return err
		}
		signature, err = sign.SignEd25519(priv, cfg.moduleId, cfg.entry, moduleBytes, flags, cfg.sequence)
		if err != nil {
			return fmt.Errorf("sign: %w", err)
		}
	} else if cfg.requireSig {
		return fmt.Errorf("-require-signature set with -unsigned")
	}

	blob, err := manifest.Encode(cfg.moduleId, cfg.entry, moduleBytes, flags, cfg.sequence, signature)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	outPath := cfg.out
	if outPath == "" {
		outPath = defaultOutPath(cfg.modulePath, signature != nil)
	}
	if err := os.WriteFile(outPath, blob, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	slog.Info("packed module",
		"module_id", cfg.moduleId, "entry", cfg.entry, "signed", signature != nil, "out", outPath)

	if cfg.flashOut != "" {
		if err := writeToFlashImage(cfg, blob); err != nil {
			return err
		}
	}

	return nil
}

func resolveSigningKey(hexSeed string) (ed25519.PrivateKey, error) {
	if hexSeed == "" {
		fmt.Fprint(os.Stderr, "Ed25519 signing seed (hex, 32 bytes): ")
		seedBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("read signing seed: %w", err)
		}
		hexSeed = string(seedBytes)
	}

	seed, err := hex.DecodeString(hexSeed)
	if err != nil {
		return nil, fmt.Errorf("sign-key-hex is not valid hex: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("sign-key-hex must decode to %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

func defaultOutPath(modulePath string, signed bool) string {
	ext := ".smny"
	if signed {
		ext = ".smny.sig"
	}
	return modulePath + ext
}

func writeToFlashImage(cfg packConfig, blob []byte) error {
	if cfg.flashCapacity <= 0 {
		return fmt.Errorf("-flash-capacity is required with -flash-out")
	}

	flash, err := storage.NewFileFlash(cfg.flashOut, cfg.flashCapacity)
	if err != nil {
		return fmt.Errorf("open flash image: %w", err)
	}

	bar := progressbar.DefaultBytes(int64(len(blob)), fmt.Sprintf("flashing %s", cfg.flashOut))
	defer bar.Close()

	if err := flash.EraseWrite(cfg.flashOffset, blob); err != nil {
		return fmt.Errorf("write flash image: %w", err)
	}
	// EraseWrite has no streaming hook to report incremental progress
	// against, so the bar is advanced to completion once the write succeeds.
	_ = bar.Set64(int64(len(blob)))

	slog.Info("wrote manifest into flash image",
		"path", cfg.flashOut, "offset", cfg.flashOffset, "len", len(blob))
	return nil
}
