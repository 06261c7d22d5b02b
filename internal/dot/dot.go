// Package dot renders commit graphs in the Graphviz DOT language.
package dot

import (
	"fmt"
	"strings"

	"github.com/thiagokokada/git-filegraph/internal/graph"
)

const (
	DefaultFontName = "DejaVu Sans"
	DefaultCharset  = "UTF-8"

	// shortIDLen is the abbreviated id length shown in labels.
	shortIDLen = 7
)

// Options tweaks the global attributes of the rendered graph.
type Options struct {
	// FontName is used for both nodes and edges.
	// Default: "DejaVu Sans"
	FontName string
}

func (o Options) fontName() string {
	if strings.TrimSpace(o.FontName) == "" {
		return DefaultFontName
	}
	return o.FontName
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// EscapeString escapes s for use inside a double-quoted DOT string. Only
// backslash and double quote need escaping; newlines are legal as-is.
func EscapeString(s string) string {
	return labelEscaper.Replace(s)
}

// Label returns the unescaped node label for a commit.
func Label(n graph.Node) string {
	return ShortID(n.ID) + ": " + n.Message
}

func ShortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

// Render writes g as a directed graph. Each node declaration is followed by
// one edge per parent, pointing from the parent to the node. Parents that are
// not nodes of g are emitted anyway. Output order follows the graph's
// insertion order.
func Render(g *graph.Graph, opts Options) string {
	var b strings.Builder
	font := EscapeString(opts.fontName())

	b.WriteString("digraph G {\n")
	fmt.Fprintf(&b, "    graph [charset=%q];\n", DefaultCharset)
	fmt.Fprintf(&b, "    node [fontname=\"%s\"];\n", font)
	fmt.Fprintf(&b, "    edge [fontname=\"%s\"];\n", font)
	for n := range g.Nodes() {
		id := EscapeString(n.ID)
		fmt.Fprintf(&b, "    \"%s\" [label=\"%s\"];\n", id, EscapeString(Label(n)))
		for _, parent := range n.Parents {
			fmt.Fprintf(&b, "    \"%s\" -> \"%s\";\n", EscapeString(parent), id)
		}
	}
	b.WriteString("}\n")
	return b.String()
}
