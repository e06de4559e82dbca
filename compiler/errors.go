package compiler

import "github.com/chazu/tessera/syntax"

// Error locates a compile failure: statement kind, block name and index.
type Error = syntax.Error

// Compile failures, for errors.Is.
var (
	ErrMalformed        = syntax.ErrMalformed
	ErrNotAHelper       = syntax.ErrNotAHelper
	ErrUnclosedElement  = syntax.ErrUnclosedElement
	ErrUnmatchedClose   = syntax.ErrUnmatchedClose
	ErrStrayAttribute   = syntax.ErrStrayAttribute
	ErrUnknownBlock     = syntax.ErrUnknownBlock
	ErrUnknownComponent = syntax.ErrUnknownComponent
)
