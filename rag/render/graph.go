// Package render turns stored entities into a node/edge graph and exports it
// as an interactive HTML page, a Mermaid flowchart, a DOT digraph or an ASCII
// tree.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/smallnest/ragplayground/rag"
)

// Node is one vertex of the rendered graph.
type Node struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Title string `json:"title,omitempty"`
	Group string `json:"group,omitempty"`
	// Stored is false for relationship targets that have no entity document.
	Stored bool `json:"-"`
}

// Edge is one directed relationship.
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
	Title string `json:"title,omitempty"`
}

// Graph is the renderable form of a set of entities.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// BuildGraph creates a node per entity, in input order, and a directed edge
// per relationship. Targets that are not stored entities become bare nodes
// appended after the stored ones.
func BuildGraph(entities []rag.Entity) Graph {
	var g Graph
	known := make(map[string]bool, len(entities))
	for _, e := range entities {
		if known[e.ID] {
			continue
		}
		known[e.ID] = true
		g.Nodes = append(g.Nodes, Node{
			ID:     e.ID,
			Label:  e.ID,
			Title:  entityTitle(e),
			Group:  e.Type,
			Stored: true,
		})
	}

	for _, e := range entities {
		for _, edge := range e.Edges() {
			if edge.Target == "" {
				continue
			}
			if !known[edge.Target] {
				known[edge.Target] = true
				g.Nodes = append(g.Nodes, Node{ID: edge.Target, Label: edge.Target})
			}
			g.Edges = append(g.Edges, Edge{
				From:  edge.Source,
				To:    edge.Target,
				Label: edge.Type,
				Title: attributeLines(edge.Attributes),
			})
		}
	}
	return g
}

func entityTitle(e rag.Entity) string {
	title := "Type: " + e.Type
	if attrs := attributeLines(e.Attributes); attrs != "" {
		title += "\n" + attrs
	}
	return title
}

// attributeLines renders one "name: v1, v2" line per attribute, sorted by name.
func attributeLines(attrs rag.Attributes) string {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, len(names))
	for i, name := range names {
		lines[i] = fmt.Sprintf("%s: %s", name, strings.Join(attrs[name], ", "))
	}
	return strings.Join(lines, "\n")
}

// Exporter writes a Graph in several text formats.
type Exporter struct {
	graph Graph
	ids   map[string]string
}

// NewExporter creates an exporter for g.
func NewExporter(g Graph) *Exporter {
	ids := make(map[string]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[n.ID] = fmt.Sprintf("n%d", i)
	}
	return &Exporter{graph: g, ids: ids}
}

// MermaidOptions defines configuration for Mermaid diagram generation
type MermaidOptions struct {
	// Direction of the flowchart (e.g., "TD", "LR")
	Direction string
}

// DrawMermaid generates a left-to-right Mermaid flowchart.
func (ge *Exporter) DrawMermaid() string {
	return ge.DrawMermaidWithOptions(MermaidOptions{Direction: "LR"})
}

// DrawMermaidWithOptions generates a Mermaid diagram with custom options
func (ge *Exporter) DrawMermaidWithOptions(opts MermaidOptions) string {
	var sb strings.Builder

	direction := opts.Direction
	if direction == "" {
		direction = "LR"
	}
	sb.WriteString(fmt.Sprintf("flowchart %s\n", direction))

	for _, n := range ge.graph.Nodes {
		if n.Stored {
			sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", ge.ids[n.ID], mermaidText(n.Label)))
		} else {
			sb.WriteString(fmt.Sprintf("    %s([\"%s\"])\n", ge.ids[n.ID], mermaidText(n.Label)))
		}
	}

	for _, e := range ge.graph.Edges {
		if e.Label == "" {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", ge.ids[e.From], ge.ids[e.To]))
			continue
		}
		sb.WriteString(fmt.Sprintf("    %s -->|\"%s\"| %s\n", ge.ids[e.From], mermaidText(e.Label), ge.ids[e.To]))
	}

	for _, n := range ge.graph.Nodes {
		if !n.Stored {
			sb.WriteString(fmt.Sprintf("    style %s stroke-dasharray: 5 5\n", ge.ids[n.ID]))
		}
	}

	return sb.String()
}

var mermaidEscaper = strings.NewReplacer(`"`, "#quot;", "\n", " ")

func mermaidText(s string) string {
	return mermaidEscaper.Replace(s)
}

// DrawDOT generates a DOT (Graphviz) representation of the graph
func (ge *Exporter) DrawDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph G {\n")
	sb.WriteString("    rankdir=LR;\n")
	sb.WriteString("    node [shape=box];\n")

	for _, n := range ge.graph.Nodes {
		if n.Stored {
			sb.WriteString(fmt.Sprintf("    %s [tooltip=%s];\n", dotID(n.ID), dotID(n.Title)))
		} else {
			sb.WriteString(fmt.Sprintf("    %s [style=dashed];\n", dotID(n.ID)))
		}
	}

	for _, e := range ge.graph.Edges {
		if e.Label == "" {
			sb.WriteString(fmt.Sprintf("    %s -> %s;\n", dotID(e.From), dotID(e.To)))
			continue
		}
		sb.WriteString(fmt.Sprintf("    %s -> %s [label=%s];\n", dotID(e.From), dotID(e.To), dotID(e.Label)))
	}

	sb.WriteString("}\n")
	return sb.String()
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func dotID(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}

// DrawASCII prints every stored entity with its outgoing relationships.
func (ge *Exporter) DrawASCII() string {
	if len(ge.graph.Nodes) == 0 {
		return "Empty graph\n"
	}

	out := make(map[string][]Edge)
	for _, e := range ge.graph.Edges {
		out[e.From] = append(out[e.From], e)
	}

	var sb strings.Builder
	sb.WriteString("Knowledge Graph:\n")
	stored := 0
	for _, n := range ge.graph.Nodes {
		if n.Stored {
			stored++
		}
	}
	i := 0
	for _, n := range ge.graph.Nodes {
		if !n.Stored {
			continue
		}
		i++
		connector, prefix := "├──", "│   "
		if i == stored {
			connector, prefix = "└──", "    "
		}
		if n.Group != "" {
			sb.WriteString(fmt.Sprintf("%s %s (%s)\n", connector, n.Label, n.Group))
		} else {
			sb.WriteString(fmt.Sprintf("%s %s\n", connector, n.Label))
		}
		edges := out[n.ID]
		for j, e := range edges {
			child := "├──"
			if j == len(edges)-1 {
				child = "└──"
			}
			sb.WriteString(fmt.Sprintf("%s%s %s -> %s\n", prefix, child, e.Label, e.To))
		}
	}
	return sb.String()
}
