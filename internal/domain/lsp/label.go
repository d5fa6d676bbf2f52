package lsp

// CompletionKind mirrors the LSP CompletionItemKind enumeration.
type CompletionKind int

const (
	CompletionText          CompletionKind = 1
	CompletionMethod        CompletionKind = 2
	CompletionFunction      CompletionKind = 3
	CompletionConstructor   CompletionKind = 4
	CompletionField         CompletionKind = 5
	CompletionVariable      CompletionKind = 6
	CompletionClass         CompletionKind = 7
	CompletionInterface     CompletionKind = 8
	CompletionModule        CompletionKind = 9
	CompletionProperty      CompletionKind = 10
	CompletionUnit          CompletionKind = 11
	CompletionValue         CompletionKind = 12
	CompletionEnum          CompletionKind = 13
	CompletionKeyword       CompletionKind = 14
	CompletionSnippet       CompletionKind = 15
	CompletionColor         CompletionKind = 16
	CompletionFile          CompletionKind = 17
	CompletionReference     CompletionKind = 18
	CompletionFolder        CompletionKind = 19
	CompletionEnumMember    CompletionKind = 20
	CompletionConstant      CompletionKind = 21
	CompletionStruct        CompletionKind = 22
	CompletionEvent         CompletionKind = 23
	CompletionOperator      CompletionKind = 24
	CompletionTypeParameter CompletionKind = 25
)

// SymbolKind mirrors the LSP SymbolKind enumeration.
type SymbolKind int

const (
	SymbolFile          SymbolKind = 1
	SymbolModule        SymbolKind = 2
	SymbolNamespace     SymbolKind = 3
	SymbolPackage       SymbolKind = 4
	SymbolClass         SymbolKind = 5
	SymbolMethod        SymbolKind = 6
	SymbolProperty      SymbolKind = 7
	SymbolField         SymbolKind = 8
	SymbolConstructor   SymbolKind = 9
	SymbolEnum          SymbolKind = 10
	SymbolInterface     SymbolKind = 11
	SymbolFunction      SymbolKind = 12
	SymbolVariable      SymbolKind = 13
	SymbolConstant      SymbolKind = 14
	SymbolString        SymbolKind = 15
	SymbolNumber        SymbolKind = 16
	SymbolBoolean       SymbolKind = 17
	SymbolArray         SymbolKind = 18
	SymbolObject        SymbolKind = 19
	SymbolKey           SymbolKind = 20
	SymbolNull          SymbolKind = 21
	SymbolEnumMember    SymbolKind = 22
	SymbolStruct        SymbolKind = 23
	SymbolEvent         SymbolKind = 24
	SymbolOperator      SymbolKind = 25
	SymbolTypeParameter SymbolKind = 26
)

// Completion is a completion item as returned by the server. Kind is optional
// on the wire.
type Completion struct {
	Label  string          `json:"label"`
	Kind   *CompletionKind `json:"kind,omitempty"`
	Detail string          `json:"detail,omitempty"`
}

// Symbol is a workspace or document symbol as returned by the server.
type Symbol struct {
	Name string     `json:"name"`
	Kind SymbolKind `json:"kind"`
}

// Range is a half-open byte range [Start, End).
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered.
func (r Range) Len() int { return r.End - r.Start }

// Span marks a range of CodeLabel.Code for highlighting.
type Span struct {
	Range Range `json:"range"`
}

// CodeLabel is a synthesized code fragment plus the spans an editor uses to
// highlight it and the range it fuzzy-matches against.
type CodeLabel struct {
	Code        string `json:"code"`
	Spans       []Span `json:"spans"`
	FilterRange Range  `json:"filter_range"`
}

// Text returns the part of Code covered by r.
func (l *CodeLabel) Text(r Range) string {
	return l.Code[r.Start:r.End]
}
