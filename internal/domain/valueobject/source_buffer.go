package valueobject

import (
	"errors"
	"fmt"
)

// SourceBuffer is an immutable byte sequence with an optional file identity. Every
// offset used by the engine is a byte index into Bytes().
type SourceBuffer struct {
	path    string
	hasPath bool
	bytes   []byte
}

// NewSourceBuffer creates a buffer without file identity. The bytes are copied.
func NewSourceBuffer(content []byte) SourceBuffer {
	return SourceBuffer{bytes: cloneBytes(content)}
}

// NewFileSourceBuffer creates a buffer bound to path. The bytes are copied.
func NewFileSourceBuffer(path string, content []byte) SourceBuffer {
	return SourceBuffer{path: path, hasPath: true, bytes: cloneBytes(content)}
}

// Path returns the file identity and whether one is set.
func (b SourceBuffer) Path() (string, bool) {
	return b.path, b.hasPath
}

// Bytes returns the buffer content. Callers must not modify the returned slice.
func (b SourceBuffer) Bytes() []byte {
	return b.bytes
}

// Len returns the buffer length in bytes.
func (b SourceBuffer) Len() int {
	return len(b.bytes)
}

// Slice returns the bytes in [start, end).
func (b SourceBuffer) Slice(start, end uint32) ([]byte, error) {
	if start > end || int(end) > len(b.bytes) {
		return nil, fmt.Errorf("range [%d,%d) outside buffer of %d bytes", start, end, len(b.bytes))
	}
	return b.bytes[start:end], nil
}

// Splice returns a new buffer version with [start, end) replaced by replacement.
// The receiver is left untouched.
func (b SourceBuffer) Splice(start, end uint32, replacement []byte) (SourceBuffer, error) {
	if start > end || int(end) > len(b.bytes) {
		return SourceBuffer{}, errors.New("splice range outside buffer")
	}
	out := make([]byte, 0, len(b.bytes)-int(end-start)+len(replacement))
	out = append(out, b.bytes[:start]...)
	out = append(out, replacement...)
	out = append(out, b.bytes[end:]...)
	return SourceBuffer{path: b.path, hasPath: b.hasPath, bytes: out}, nil
}

// WithBytes returns a buffer with the same identity and new content.
func (b SourceBuffer) WithBytes(content []byte) SourceBuffer {
	return SourceBuffer{path: b.path, hasPath: b.hasPath, bytes: cloneBytes(content)}
}

func cloneBytes(content []byte) []byte {
	out := make([]byte, len(content))
	copy(out, content)
	return out
}

// InputEdit describes a single byte-range replacement registered against a tree.
type InputEdit struct {
	StartByte   uint32
	OldEndByte  uint32
	NewEndByte  uint32
	StartPoint  Point
	OldEndPoint Point
	NewEndPoint Point
}

// NewReplacementEdit builds the edit for replacing capture c with newLen bytes.
// Points for multi-line replacements are approximate: the new end keeps the old end
// row and advances the start column by the replacement length.
func NewReplacementEdit(c Capture, newLen int) InputEdit {
	return InputEdit{
		StartByte:   c.StartByte,
		OldEndByte:  c.EndByte,
		NewEndByte:  c.StartByte + uint32(newLen),
		StartPoint:  c.Start,
		OldEndPoint: c.End,
		NewEndPoint: Point{Row: c.End.Row, Column: c.Start.Column + uint32(newLen)},
	}
}
