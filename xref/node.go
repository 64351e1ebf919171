// Package xref implements the reference-target indexer: parses a
// Document's index CNXML, walking its element tree, and upserting one
// XrefTarget row per addressable, indexable element.
package xref

import "encoding/xml"

// Node is a generic XML element tree, built by decoding CNXML without a
// fixed schema; only local names, the "id"/"type" attributes and descendant
// text are meaningful to the indexer.
type Node struct {
	Name     string
	Attrs    map[string]string
	Children []*Node
	Text     string
}

// UnmarshalXML implements xml.Unmarshaler, recursively building the tree
// rooted at start.
func (n *Node) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	n.Name = start.Name.Local
	n.Attrs = make(map[string]string, len(start.Attr))
	for _, a := range start.Attr {
		n.Attrs[a.Name.Local] = a.Value
	}

	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child := &Node{}
			if err := child.UnmarshalXML(d, t); err != nil {
				return err
			}
			n.Children = append(n.Children, child)
		case xml.CharData:
			n.Text += string(t)
		case xml.EndElement:
			return nil
		}
	}
}

// ParseCNXML decodes an index.cnxml document into its Node tree.
func ParseCNXML(data []byte) (*Node, error) {
	var root Node
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	return &root, nil
}

// child returns the first direct child named name, or nil.
func (n *Node) child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// text concatenates n's own char data with every descendant's, in document
// order.
func (n *Node) text() string {
	s := n.Text
	for _, c := range n.Children {
		s += c.text()
	}
	return s
}
