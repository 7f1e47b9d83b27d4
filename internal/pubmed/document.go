package pubmed

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// parseDocument reads data into an etree document and returns its single
// root element. etree matches end tags and reports unclosed elements itself;
// what it tolerates at the top level (no root, several roots, stray text) is
// rejected here.
func parseDocument(data []byte) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, err
	}

	var root *etree.Element
	for _, tok := range doc.Child {
		switch t := tok.(type) {
		case *etree.Element:
			if root != nil {
				return nil, fmt.Errorf("second root element <%s>", t.FullTag())
			}
			root = t
		case *etree.CharData:
			if strings.TrimSpace(t.Data) != "" {
				return nil, errors.New("text outside the root element")
			}
		}
	}
	if root == nil {
		return nil, errors.New("document has no root element")
	}
	return root, nil
}

// findAll returns every element written as tag, el included, in depth-first
// document order. etree's "//" path selector walks breadth-first, which would
// put a shallow match ahead of an earlier deep one.
func findAll(el *etree.Element, tag string) []*etree.Element {
	var found []*etree.Element
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		if e.FullTag() == tag {
			found = append(found, e)
		}
		for _, c := range e.ChildElements() {
			walk(c)
		}
	}
	walk(el)
	return found
}
