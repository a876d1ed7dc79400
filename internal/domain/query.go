package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect identifies the schema version of a tile metadata document.
type Dialect int

// Known dialects.
const (
	DialectUnknown Dialect = iota
	DialectPSD12
	DialectPSD14
)

// Namespace URIs of the L2A tile metadata schemas.
const (
	NamespacePSD12 = "https://psd-12.sentinel2.eo.esa.int/PSD/S2_PDI_Level-2A_Tile_Metadata.xsd"
	NamespacePSD14 = "https://psd-14.sentinel2.eo.esa.int/PSD/S2_PDI_Level-2A_Tile_Metadata.xsd"
)

// Namespace returns the schema namespace URI of the dialect.
func (d Dialect) Namespace() string {
	switch d {
	case DialectPSD12:
		return NamespacePSD12
	case DialectPSD14:
		return NamespacePSD14
	default:
		return ""
	}
}

// Known returns true for a recognized dialect.
func (d Dialect) Known() bool {
	return d == DialectPSD12 || d == DialectPSD14
}

// String returns the dialect name.
func (d Dialect) String() string {
	switch d {
	case DialectPSD12:
		return "psd-12"
	case DialectPSD14:
		return "psd-14"
	default:
		return "unknown"
	}
}

// Query evaluates element paths against a document in one dialect.
//
// Paths are relative to the document element. The first step is qualified
// with the dialect namespace, deeper steps are unqualified. A step may carry
// a single attribute predicate: Geoposition[@resolution='20'].
type Query struct {
	doc     *MetadataDocument
	dialect Dialect
}

// NewQuery binds a document to a dialect.
func NewQuery(doc *MetadataDocument, dialect Dialect) Query {
	return Query{doc: doc, dialect: dialect}
}

// Dialect returns the bound dialect.
func (q Query) Dialect() Dialect {
	return q.dialect
}

// Document returns the bound document.
func (q Query) Document() *MetadataDocument {
	return q.doc
}

// Find returns the first node matching path, or nil if there is none.
func (q Query) Find(path string) (*Node, error) {
	if q.doc == nil || q.doc.Root == nil {
		return nil, ErrDocumentUnavailable
	}
	if !q.dialect.Known() {
		return nil, ErrSchemaUnrecognized
	}

	steps, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	current := q.doc.Root
	for i, s := range steps {
		space := ""
		if i == 0 {
			space = q.dialect.Namespace()
		}
		current = s.match(current, space)
		if current == nil {
			return nil, nil
		}
	}
	return current, nil
}

// Text returns the trimmed text of the node at path.
func (q Query) Text(path string) (string, bool, error) {
	n, err := q.Find(path)
	if err != nil || n == nil {
		return "", false, err
	}
	return n.Value(), true, nil
}

// Float returns the numeric value of the node at path, or nil when the node
// is absent or not a number.
func (q Query) Float(path string) (*float64, error) {
	s, ok, err := q.Text(path)
	if err != nil || !ok {
		return nil, err
	}
	v, perr := strconv.ParseFloat(s, 64)
	if perr != nil {
		return nil, nil
	}
	return &v, nil
}

type step struct {
	local     string
	attr      string
	attrValue string
}

func (s step) match(parent *Node, space string) *Node {
	for _, c := range parent.Children {
		if c.Name.Space != space || c.Name.Local != s.local {
			continue
		}
		if s.attr != "" {
			v, ok := c.Attr(s.attr)
			if !ok || v != s.attrValue {
				continue
			}
		}
		return c
	}
	return nil
}

func parsePath(path string) ([]step, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	steps := make([]step, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			return nil, invalidPath(path)
		}
		open := strings.IndexByte(p, '[')
		if open < 0 {
			steps = append(steps, step{local: p})
			continue
		}
		if !strings.HasSuffix(p, "]") || open == 0 {
			return nil, invalidPath(path)
		}
		pred := p[open+1 : len(p)-1]
		name, value, ok := strings.Cut(pred, "=")
		if !ok || !strings.HasPrefix(name, "@") || len(value) < 2 {
			return nil, invalidPath(path)
		}
		quote := value[0]
		if (quote != '\'' && quote != '"') || value[len(value)-1] != quote {
			return nil, invalidPath(path)
		}
		steps = append(steps, step{
			local:     p[:open],
			attr:      name[1:],
			attrValue: value[1 : len(value)-1],
		})
	}
	return steps, nil
}

func invalidPath(path string) error {
	return &ValidationError{
		Field:      "path",
		Value:      path,
		Constraint: "name[@attr='value']/...",
		Message:    fmt.Sprintf("malformed element path %q", path),
	}
}
