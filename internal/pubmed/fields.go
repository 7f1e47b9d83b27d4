package pubmed

import (
	"strings"

	"github.com/beevik/etree"
)

// attr returns the unprefixed attribute name of el, or nil when it is
// missing. Namespace declarations never match.
func attr(el *etree.Element, name string) *string {
	for _, a := range el.Attr {
		if a.Space == "" && a.Key == name && a.Key != "xmlns" {
			v := a.Value
			return &v
		}
	}
	return nil
}

// text returns the direct character data of el, or nil when it has none.
// Text inside child elements is not included.
func text(el *etree.Element) *string {
	var sb strings.Builder
	for _, tok := range el.Child {
		if cd, ok := tok.(*etree.CharData); ok {
			sb.WriteString(cd.Data)
		}
	}
	if sb.Len() == 0 {
		return nil
	}
	s := sb.String()
	return &s
}
