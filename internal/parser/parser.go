package parser

import (
	"fmt"
	"strings"
)

// Node is a navigable element of a parsed document. Extraction code only
// talks to Node, so the HTML library behind it can be swapped.
type Node interface {
	// FindAll returns every descendant matching sel, in document order.
	FindAll(sel Selector) []Node

	// Find returns the first descendant matching sel.
	Find(sel Selector) (Node, bool)

	// NextSibling returns the next element sibling.
	NextSibling() (Node, bool)

	// Text returns the concatenated text content.
	Text() string

	// Attr returns the named attribute.
	Attr(name string) (string, bool)
}

// DocumentParser turns raw markup into the root Node of a document.
type DocumentParser interface {
	Parse(body []byte) (Node, error)
	Name() string
}

// NewDocumentParser returns the backend registered under name.
func NewDocumentParser(name string) (DocumentParser, error) {
	switch name {
	case "", "css":
		return CSSParser{}, nil
	case "xpath":
		return XPathParser{}, nil
	default:
		return nil, fmt.Errorf("unknown parser backend %q", name)
	}
}

// Selector is a structural marker: an element tag and/or one class name.
type Selector struct {
	Tag   string
	Class string
}

// ParseSelector reads the "tag.class" shorthand used in configuration.
// Either part may be omitted ("a", ".score").
func ParseSelector(s string) (Selector, error) {
	s = strings.TrimSpace(s)
	tag, class, _ := strings.Cut(s, ".")
	if tag == "" && class == "" {
		return Selector{}, fmt.Errorf("empty selector %q", s)
	}
	if strings.ContainsAny(s, " >#[]:*,") || strings.Contains(class, ".") {
		return Selector{}, fmt.Errorf("selector %q must be of the form tag.class", s)
	}
	return Selector{Tag: tag, Class: class}, nil
}

// MustSelector is ParseSelector for literals known to be valid.
func MustSelector(s string) Selector {
	sel, err := ParseSelector(s)
	if err != nil {
		panic(err)
	}
	return sel
}

// CSS renders the selector for goquery.
func (s Selector) CSS() string {
	if s.Class == "" {
		return s.Tag
	}
	return s.Tag + "." + s.Class
}

// XPath renders the selector as a descendant query for htmlquery.
func (s Selector) XPath() string {
	tag := s.Tag
	if tag == "" {
		tag = "*"
	}
	if s.Class == "" {
		return ".//" + tag
	}
	return fmt.Sprintf(".//%s[contains(concat(' ', normalize-space(@class), ' '), ' %s ')]", tag, s.Class)
}

func (s Selector) String() string { return s.CSS() }
