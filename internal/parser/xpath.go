package parser

import (
	"bytes"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// XPathParser builds documents backed by htmlquery.
type XPathParser struct{}

// Name implements DocumentParser.
func (XPathParser) Name() string { return "xpath" }

// Parse implements DocumentParser.
func (XPathParser) Parse(body []byte) (Node, error) {
	doc, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return xpathNode{node: doc}, nil
}

type xpathNode struct {
	node *html.Node
}

func (n xpathNode) FindAll(sel Selector) []Node {
	// Selector.XPath only produces well-formed expressions.
	found, err := htmlquery.QueryAll(n.node, sel.XPath())
	if err != nil {
		return nil
	}
	nodes := make([]Node, 0, len(found))
	for _, f := range found {
		nodes = append(nodes, xpathNode{node: f})
	}
	return nodes
}

func (n xpathNode) Find(sel Selector) (Node, bool) {
	found, err := htmlquery.Query(n.node, sel.XPath())
	if err != nil || found == nil {
		return nil, false
	}
	return xpathNode{node: found}, true
}

func (n xpathNode) NextSibling() (Node, bool) {
	for s := n.node.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return xpathNode{node: s}, true
		}
	}
	return nil, false
}

func (n xpathNode) Text() string {
	return htmlquery.InnerText(n.node)
}

func (n xpathNode) Attr(name string) (string, bool) {
	if !htmlquery.ExistsAttr(n.node, name) {
		return "", false
	}
	return htmlquery.SelectAttr(n.node, name), true
}
