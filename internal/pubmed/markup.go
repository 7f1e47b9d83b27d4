package pubmed

import (
	"regexp"
	"strings"

	"github.com/beevik/etree"
)

// maxInlineDepth bounds how far inline markup is re-emitted as tags. Elements
// at the last level contribute a tag around their direct text only; anything
// nested deeper than that loses its tags.
const maxInlineDepth = 2

var inlineTagRe = regexp.MustCompile(`</?[A-Za-z][^<>]*>`)

// Plain returns Value without its inline tags and with whitespace collapsed,
// for outputs that cannot carry markup.
func (t AbstractText) Plain() string {
	s := inlineTagRe.ReplaceAllString(Deref(t.Value), "")
	return strings.Join(strings.Fields(s), " ")
}

// mixedContent re-serializes the content of el, keeping text as-is and
// rendering inline elements (<i>, <sub>, <mml:math>, ...) as literal tags.
// Attributes other than namespace declarations are not reproduced, nor are
// comments or processing instructions. It returns nil when el has neither
// text nor element children.
func mixedContent(el *etree.Element) *string {
	var (
		sb      strings.Builder
		content bool
	)
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			sb.WriteString(t.Data)
			content = true
		case *etree.Element:
			writeInline(&sb, t, 1)
			content = true
		}
	}
	if !content {
		return nil
	}
	s := sb.String()
	return &s
}

func writeInline(sb *strings.Builder, el *etree.Element, depth int) {
	writeOpenTag(sb, el)
	if depth >= maxInlineDepth {
		if t := text(el); t != nil {
			sb.WriteString(*t)
		}
	} else {
		for _, tok := range el.Child {
			switch t := tok.(type) {
			case *etree.CharData:
				sb.WriteString(t.Data)
			case *etree.Element:
				writeInline(sb, t, depth+1)
			}
		}
	}
	sb.WriteString("</")
	sb.WriteString(el.FullTag())
	sb.WriteByte('>')
}

// writeOpenTag emits the tag as it was written in the source. Namespace
// declarations are emitted only when they sit on this element; a prefix bound
// on an ancestor is kept without repeating its declaration.
func writeOpenTag(sb *strings.Builder, el *etree.Element) {
	sb.WriteByte('<')
	sb.WriteString(el.FullTag())
	for _, a := range el.Attr {
		switch {
		case a.Space == "" && a.Key == "xmlns":
			sb.WriteString(` xmlns="`)
		case a.Space == "xmlns":
			sb.WriteString(" xmlns:" + a.Key + `="`)
		default:
			continue
		}
		sb.WriteString(a.Value)
		sb.WriteByte('"')
	}
	sb.WriteByte('>')
}
