package filefilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBinaryContent(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    bool
	}{
		{name: "empty", content: nil, want: false},
		{name: "rust source", content: []byte("fn main() {\n    println!(\"hi\");\n}\n"), want: false},
		{name: "utf-8 text", content: []byte("// ünïcödé comment\nlet x = 1;"), want: false},
		{name: "png", content: []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A}, want: true},
		{name: "elf", content: []byte{0x7F, 'E', 'L', 'F', 2, 1}, want: true},
		{name: "nul byte", content: []byte("abc\x00def"), want: true},
		{name: "latin-1 noise", content: []byte{0xE9, 0xE8, 0xE0, 'a', 0xFC, 0xF6}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBinaryContent(tt.content))
		})
	}
}

func TestIsBinaryPath(t *testing.T) {
	assert.True(t, IsBinaryPath("assets/logo.PNG"))
	assert.True(t, IsBinaryPath("lib.so"))
	assert.False(t, IsBinaryPath("src/main.rs"))
	assert.False(t, IsBinaryPath("Makefile"))
}
