// Package rtsupport ships the native runtime support library the obfuscated
// programs link against, plus pure-Go reference implementations of its
// routines.  The C translation unit is embedded in the binary so the driver
// can materialize and compile it next to any output it produces; the Go
// functions exist so the encryption contract can be validated without a C
// toolchain.
package rtsupport

import (
	_ "embed"
	"os"
	"path/filepath"
)

//go:embed decryptor.c
var source []byte

// SourceFileName is the file name the runtime translation unit is written
// under.
const SourceFileName = "decryptor.c"

// Source returns the embedded runtime support C source.
func Source() []byte {
	out := make([]byte, len(source))
	copy(out, source)
	return out
}

// WriteSource materializes the runtime translation unit into dir and
// returns its path.
func WriteSource(dir string) (string, error) {
	path := filepath.Join(dir, SourceFileName)
	if err := os.WriteFile(path, source, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Encrypt XORs every byte of plain with the low byte of key.  It mirrors
// what the string encryption pass does to a literal's bytes, terminator
// excluded; callers pass the bytes without the trailing null.
func Encrypt(plain []byte, key uint32) []byte {
	k := byte(key)
	out := make([]byte, len(plain))
	for i, c := range plain {
		out[i] = c ^ k
	}
	return out
}

// Decrypt is the reference implementation of __obf_decrypt: it returns a
// fresh null-terminated buffer holding the decrypted bytes, or nil for an
// empty input, matching the native routine's len <= 0 contract.
func Decrypt(enc []byte, key uint32) []byte {
	if len(enc) == 0 {
		return nil
	}
	k := byte(key)
	out := make([]byte, len(enc)+1)
	for i, c := range enc {
		out[i] = c ^ k
	}
	out[len(enc)] = 0
	return out
}

// Wipe is the reference implementation of the zeroing half of __obf_free.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Opaque is the reference implementation of __obf_opaque restricted to its
// deterministic arithmetic; the native routine additionally folds in stack
// address entropy.  The result is always in [0, 255].
func Opaque(x int32) int32 {
	s := x*1103515245 + 12345
	s = (s<<7 | int32(uint32(s)>>25)) ^ x
	return s & 0xFF
}
