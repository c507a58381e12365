package ingest

import (
	"encoding/xml"
	"fmt"
	"strings"
	"unicode"

	"github.com/dokflow/dokflow/internal/core"
)

// collectionSynonyms are element names that typically hold the line items
// of a business document. A collection carrying one of these names wins
// the default pick even when a larger collection exists elsewhere.
var collectionSynonyms = map[string]bool{
	"item": true, "items": true,
	"product": true, "products": true,
	"pozycja": true, "pozycje": true,
	"towar": true, "towary": true,
	"wiersz": true, "wiersze": true,
	"row": true, "rows": true,
	"record": true, "records": true,
	"line": true, "lines": true,
	"position": true, "positions": true,
}

// xmlNode is a generic XML tree node. Children holds child elements in
// document order; Content accumulates the node's character data.
type xmlNode struct {
	XMLName  xml.Name
	Content  string    `xml:",chardata"`
	Children []xmlNode `xml:",any"`
}

// collection is a repeating group of structured sibling elements found
// during the tree walk.
type collection struct {
	name  string
	path  []string
	elems []*xmlNode
}

// readXML parses a hierarchical document into a generic tree, locates every
// repeating collection of structured elements, and flattens the selected
// collection into rows. The first row is a synthesized header derived from
// the element keys of the collection's first element.
func readXML(data []byte, sel *Selector) (*Result, error) {
	var root xmlNode
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedContainer, err)
	}

	collections := findCollections(&root, nil)
	if len(collections) == 0 {
		return nil, core.ErrNoRepeatingElements
	}

	subSections := make([]core.SubSection, 0, len(collections))
	for _, c := range collections {
		subSections = append(subSections, core.SubSection{
			Name:         c.name,
			Path:         c.path,
			ElementCount: len(c.elems),
		})
	}

	chosen, err := pickCollection(collections, sel)
	if err != nil {
		return nil, err
	}

	return &Result{
		Rows:           flattenCollection(chosen),
		HeaderRowIndex: 0,
		SubSections:    subSections,
		Format:         FormatXML,
	}, nil
}

// findCollections walks the tree in document order and returns every
// repeating collection of structured sibling elements, at any depth.
// path holds the element names leading from below the document root to
// node, so top-level collections carry an empty path.
//
// Two or more same-named structured siblings form a collection. A single
// structured child also counts when its name is a known line-item synonym
// and it holds only scalar fields, so one-line documents still import
// without mistaking a synonym-named wrapper element for the collection.
func findCollections(node *xmlNode, path []string) []collection {
	var found []collection

	// Group children by element name, preserving first-occurrence order.
	order := []string{}
	groups := map[string][]*xmlNode{}
	for i := range node.Children {
		child := &node.Children[i]
		name := child.XMLName.Local
		if _, seen := groups[name]; !seen {
			order = append(order, name)
		}
		groups[name] = append(groups[name], child)
	}

	for _, name := range order {
		elems := groups[name]
		if len(elems[0].Children) == 0 {
			continue // scalar children never form a collection
		}
		single := len(elems) == 1 && collectionSynonyms[strings.ToLower(name)] && scalarFieldsOnly(elems[0])
		if len(elems) >= 2 || single {
			found = append(found, collection{
				name:  name,
				path:  append([]string(nil), path...),
				elems: elems,
			})
		}
	}

	for i := range node.Children {
		child := &node.Children[i]
		childPath := append(append([]string(nil), path...), child.XMLName.Local)
		found = append(found, findCollections(child, childPath)...)
	}

	return found
}

// pickCollection resolves which collection to read. An explicit selector
// path wins; otherwise the priority is: first synonym-named collection,
// then the collection with the most elements, then the first discovered.
func pickCollection(collections []collection, sel *Selector) (collection, error) {
	if sel != nil && len(sel.Section) > 0 {
		for _, c := range collections {
			if keyPathEqual(append(append([]string(nil), c.path...), c.name), sel.Section) {
				return c, nil
			}
		}
		return collection{}, fmt.Errorf("%w: section %q not found",
			core.ErrNoRepeatingElements, strings.Join(sel.Section, "/"))
	}

	for _, c := range collections {
		if collectionSynonyms[strings.ToLower(c.name)] {
			return c, nil
		}
	}

	best := collections[0]
	for _, c := range collections[1:] {
		if len(c.elems) > len(best.elems) {
			best = c
		}
	}
	return best, nil
}

// scalarFieldsOnly reports whether every child of n is a scalar element.
func scalarFieldsOnly(n *xmlNode) bool {
	for i := range n.Children {
		if len(n.Children[i].Children) > 0 {
			return false
		}
	}
	return true
}

func keyPathEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// flattenCollection turns a collection into rows. Column keys are the
// distinct child element names of the first element, in document order;
// the header row carries display labels derived from those keys.
func flattenCollection(c collection) core.RowMatrix {
	var keys []string
	seen := map[string]bool{}
	for _, child := range c.elems[0].Children {
		name := child.XMLName.Local
		if !seen[name] {
			seen[name] = true
			keys = append(keys, name)
		}
	}

	header := make([]string, len(keys))
	for i, key := range keys {
		header[i] = splitCamelCase(key)
	}

	rows := make(core.RowMatrix, 0, len(c.elems)+1)
	rows = append(rows, header)
	for _, elem := range c.elems {
		row := make([]string, len(keys))
		for i, key := range keys {
			row[i] = extractCell(elem, key)
		}
		rows = append(rows, row)
	}
	return rows
}

// extractCell resolves the text for one column key of one element.
// A nested child prefers its inline text; failing that, its scalar
// sub-values are concatenated. Repeated children are joined as a list.
func extractCell(elem *xmlNode, key string) string {
	var matches []*xmlNode
	for i := range elem.Children {
		if elem.Children[i].XMLName.Local == key {
			matches = append(matches, &elem.Children[i])
		}
	}

	switch len(matches) {
	case 0:
		return ""
	case 1:
		return nodeText(matches[0])
	default:
		parts := make([]string, 0, len(matches))
		for _, m := range matches {
			if t := nodeText(m); t != "" {
				parts = append(parts, t)
			}
		}
		return strings.Join(parts, ", ")
	}
}

// nodeText returns the display text of a node: its own character data when
// present, otherwise the concatenated text of its scalar children.
func nodeText(n *xmlNode) string {
	if t := strings.TrimSpace(n.Content); t != "" {
		return t
	}
	var parts []string
	for i := range n.Children {
		child := &n.Children[i]
		if len(child.Children) == 0 {
			if t := strings.TrimSpace(child.Content); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, " ")
}

// splitCamelCase derives a header label from an element key by inserting
// spaces at internal capitalization boundaries: "unitPrice" -> "unit Price".
func splitCamelCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
