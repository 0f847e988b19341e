// Package docx merges tag placeholders inside a Word document template
// with caller-supplied data, producing a new document of the same
// container format.
package docx

import (
	"errors"
	"fmt"
)

// ListKind marks a rich run as part of a list structure.
type ListKind int

const (
	ListNone ListKind = iota
	ListBullet
	ListNumbered
)

// RichRun is one styled fragment of rendered rich text. A sequence of
// runs reconstructs a styled paragraph: concatenating the Text fields
// reproduces the plain content of the source markup.
type RichRun struct {
	Text        string
	Bold        bool
	Italic      bool
	List        ListKind
	BreakBefore bool
}

// Context maps template tag names to render-ready values. Supported
// value types are string (and other scalars via fmt), []RichRun for
// styled content and []Context for repeating sections.
type Context map[string]any

// ErrInvalidContainer reports template bytes that are not a valid
// zipped document container.
var ErrInvalidContainer = errors.New("docx: not a valid document container")

// SyntaxError reports a tag or section construct that cannot be
// resolved against the supplied context shape.
type SyntaxError struct {
	Tag    string
	Offset int
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("docx: tag %q at offset %d: %s", e.Tag, e.Offset, e.Reason)
}
