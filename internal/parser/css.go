package parser

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
)

// CSSParser builds documents backed by goquery.
type CSSParser struct{}

// Name implements DocumentParser.
func (CSSParser) Name() string { return "css" }

// Parse implements DocumentParser.
func (CSSParser) Parse(body []byte) (Node, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return cssNode{sel: doc.Selection}, nil
}

type cssNode struct {
	sel *goquery.Selection
}

func (n cssNode) FindAll(sel Selector) []Node {
	found := n.sel.Find(sel.CSS())
	nodes := make([]Node, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, cssNode{sel: s})
	})
	return nodes
}

func (n cssNode) Find(sel Selector) (Node, bool) {
	found := n.sel.Find(sel.CSS()).First()
	if found.Length() == 0 {
		return nil, false
	}
	return cssNode{sel: found}, true
}

func (n cssNode) NextSibling() (Node, bool) {
	next := n.sel.Next()
	if next.Length() == 0 {
		return nil, false
	}
	return cssNode{sel: next}, true
}

func (n cssNode) Text() string {
	return n.sel.Text()
}

func (n cssNode) Attr(name string) (string, bool) {
	return n.sel.Attr(name)
}
