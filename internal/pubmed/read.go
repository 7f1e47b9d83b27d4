package pubmed

import (
	"fmt"

	"github.com/rs/zerolog"
)

// RootTag is the element that bounds an EFetch result set.
const RootTag = tagArticleSet

// Option configures a Read call.
type Option func(*builder)

// WithLogger sets the logger used to trace skipped elements. The default
// discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(b *builder) { b.log = l }
}

// Read parses an EFetch PubMed XML document.
//
// The first unprefixed PubmedArticleSet element in document order is used as
// the root, wherever it sits in the document. Elements the builders do not model are
// skipped. Read fails only with an error wrapping ErrMalformedDocument or
// ErrMissingRoot.
func Read(data []byte, opts ...Option) (*ArticleSet, error) {
	b := &builder{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(b)
	}

	root, err := parseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}

	roots := findAll(root, RootTag)
	if len(roots) == 0 {
		return nil, fmt.Errorf("%w: no <%s> element in document with root <%s>",
			ErrMissingRoot, RootTag, root.FullTag())
	}
	if len(roots) > 1 {
		b.log.Debug().
			Int("count", len(roots)).
			Msgf("document has more than one <%s>; using the first", RootTag)
	}

	set := b.articleSet(roots[0])
	b.log.Debug().
		Int("articles", len(set.Articles)).
		Int("skipped_elements", b.skipped).
		Msg("parsed PubMed article set")
	return set, nil
}

// ReadString is Read for a document held in a string.
func ReadString(s string, opts ...Option) (*ArticleSet, error) {
	return Read([]byte(s), opts...)
}
