package domain

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// MetadataFilename is the fixed name of a tile's metadata document.
const MetadataFilename = "metadata.xml"

// TileRootElement is the local name of the L2A tile metadata root element.
const TileRootElement = "Level-2A_Tile_ID"

// Node is one element of a parsed metadata document.
type Node struct {
	Name     xml.Name   // Resolved element name (Space holds the namespace URI)
	Attrs    []xml.Attr // Element attributes
	Text     string     // Concatenated character data
	Children []*Node    // Child elements in document order
}

// Attr returns the value of the attribute with the given local name.
func (n *Node) Attr(local string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attrs {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// Child returns the first direct child with the given namespace and local name.
func (n *Node) Child(space, local string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name.Space == space && c.Name.Local == local {
			return c
		}
	}
	return nil
}

// Value returns the trimmed character data of the node.
func (n *Node) Value() string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.Text)
}

// MetadataDocument is a parsed tile metadata file.
type MetadataDocument struct {
	Path string // Source file path
	Root *Node  // Document element
}

// IsTile returns true if the document element is an L2A tile root in the given dialect.
func (d *MetadataDocument) IsTile(dialect Dialect) bool {
	if d == nil || d.Root == nil || !dialect.Known() {
		return false
	}
	return d.Root.Name.Local == TileRootElement && d.Root.Name.Space == dialect.Namespace()
}

// DecodeDocument reads an XML document from r into a node tree.
func DecodeDocument(path string, r io.Reader) (*MetadataDocument, error) {
	dec := xml.NewDecoder(r)

	var root *Node
	var stack []*Node

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line, _ := dec.InputPos()
			return nil, &ParseError{Path: path, Line: line, Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Name: t.Name, Attrs: append([]xml.Attr(nil), t.Attr...)}
			if len(stack) == 0 {
				if root != nil {
					line, _ := dec.InputPos()
					return nil, &ParseError{Path: path, Line: line, Err: errors.New("multiple root elements")}
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}

	if root == nil {
		return nil, &ParseError{Path: path, Err: errors.New("no root element")}
	}
	if len(stack) != 0 {
		return nil, &ParseError{Path: path, Err: io.ErrUnexpectedEOF}
	}

	return &MetadataDocument{Path: path, Root: root}, nil
}
