package valueobject

// Point is a zero-based row/column position. Columns count bytes.
type Point struct {
	Row    uint32
	Column uint32
}

// SyntaxNode is the subset of a tree-sitter node the engine consumes.
type SyntaxNode struct {
	Kind       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
}

// Capture is one named node-to-text binding produced by a query match.
type Capture struct {
	Index     uint32
	Name      string
	Kind      string
	Text      string
	StartByte uint32
	EndByte   uint32
	Start     Point
	End       Point
}

// Key returns the 1-based capture key used by substitution directives.
func (c Capture) Key() uint32 {
	return c.Index + 1
}

// Len returns the byte length of the captured range.
func (c Capture) Len() uint32 {
	return c.EndByte - c.StartByte
}

// Match is the ordered set of captures from one application of a pattern.
type Match struct {
	PatternIndex uint16
	Captures     []Capture
}

// CaptureNamed returns the last capture in the match carrying name.
func (m Match) CaptureNamed(name string) (Capture, bool) {
	for i := len(m.Captures) - 1; i >= 0; i-- {
		if m.Captures[i].Name == name {
			return m.Captures[i], true
		}
	}
	return Capture{}, false
}

// SubstitutionDirective binds a capture key to a template. Key is 1-based; 0 is unset.
type SubstitutionDirective struct {
	Key      uint32
	Template string
}

// IsSet reports whether the directive refers to a capture.
func (d SubstitutionDirective) IsSet() bool {
	return d.Key != 0
}

// CaptureIndex returns the zero-based capture index the directive targets.
func (d SubstitutionDirective) CaptureIndex() uint32 {
	return d.Key - 1
}
