package filefilter

import (
	"bytes"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const binarySampleSize = 8192

//nolint:gochecknoglobals // lookup table
var binaryExtensions = map[string]bool{
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".bin": true, ".o": true,
	".class": true, ".jar": true, ".zip": true, ".tar": true, ".gz": true, ".xz": true,
	".7z": true, ".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".pdf": true, ".wasm": true, ".db": true, ".sqlite": true, ".woff": true, ".woff2": true,
}

//nolint:gochecknoglobals // lookup table
var binarySignatures = [][]byte{
	{0x89, 'P', 'N', 'G'},
	{0xFF, 0xD8, 0xFF},
	[]byte("%PDF"),
	{'P', 'K', 0x03, 0x04},
	{0x7F, 'E', 'L', 'F'},
	{0x00, 'a', 's', 'm'},
	{0x1F, 0x8B},
}

// IsBinaryPath reports whether the extension of p names a binary format.
func IsBinaryPath(p string) bool {
	return binaryExtensions[strings.ToLower(filepath.Ext(p))]
}

// IsBinaryContent sniffs content for known signatures, NUL bytes or a high share of
// invalid UTF-8 in its first 8 KiB.
func IsBinaryContent(content []byte) bool {
	if len(content) == 0 {
		return false
	}
	for _, sig := range binarySignatures {
		if bytes.HasPrefix(content, sig) {
			return true
		}
	}

	sample := content[:min(len(content), binarySampleSize)]
	if bytes.IndexByte(sample, 0) >= 0 {
		return true
	}

	invalid := 0
	for i := 0; i < len(sample); {
		r, size := utf8.DecodeRune(sample[i:])
		if r == utf8.RuneError && size == 1 {
			// a rune cut at the sample edge is not evidence
			if i+utf8.UTFMax > len(sample) && len(sample) < len(content) {
				break
			}
			invalid++
		}
		i += size
	}
	return float64(invalid)/float64(len(sample)) > 0.05
}
