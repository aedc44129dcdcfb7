package transform

import (
	"errors"
	"strings"

	"github.com/rteval/parserd"

	"github.com/beevik/etree"
)

var errNoRoot = errors.New("report document has no root element")

// ExtractRows walks a rendered report document and flattens it into
// rows for the report tables.
//
// The stylesheet emits a two-level structure: the children of the root
// element are sections, and each section's child elements are entries.
// An entry's row value is its text content; an entry carrying a "name"
// attribute uses it instead of the tag as the row name, so repeated
// elements stay distinguishable.
func ExtractRows(document []byte) ([]parserd.ReportRow, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(document); err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil {
		return nil, errNoRoot
	}
	var rows []parserd.ReportRow
	for _, section := range root.ChildElements() {
		for _, entry := range section.ChildElements() {
			name := entry.Tag
			if attr := entry.SelectAttr("name"); attr != nil {
				name = attr.Value
			}
			rows = append(rows, parserd.ReportRow{
				Section: section.Tag,
				Name:    name,
				Value:   strings.TrimSpace(entry.Text()),
			})
		}
	}
	return rows, nil
}
