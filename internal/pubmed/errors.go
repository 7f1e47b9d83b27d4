package pubmed

import "errors"

var (
	// ErrMalformedDocument is returned when the input is not well-formed XML.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrMissingRoot is returned when a well-formed document has no
	// PubmedArticleSet element anywhere in it.
	ErrMissingRoot = errors.New("missing root element")
)
