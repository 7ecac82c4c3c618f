package render

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"math"

	"github.com/microcosm-cc/bluemonday"
)

// HTMLOptions configures the interactive page.
type HTMLOptions struct {
	Title  string
	Height string
	// Physics runs the force-directed layout; otherwise nodes sit on a circle.
	Physics bool
}

// DefaultHTMLOptions returns the options used by the playground.
func DefaultHTMLOptions() HTMLOptions {
	return HTMLOptions{Title: "Knowledge Graph", Height: "600px", Physics: true}
}

// groupColors cycle over entity types in order of first appearance.
var groupColors = []string{
	"#97C2FC", "#FFFF00", "#FB7E81", "#7BE141", "#EB7DF4",
	"#AD85E4", "#FFA807", "#6E6EFD", "#FFC0CB", "#C2FABC",
}

const ungroupedColor = "#D3D3D3"

type placedNode struct {
	Node
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
}

type placedEdge struct {
	Edge
	// Line endpoints stop at the node circles.
	X1, Y1, X2, Y2 float64 `json:"-"`
	LX, LY         float64 `json:"-"`
	// Loop marks an edge from a node to itself, drawn around the node at X1, Y1.
	Loop bool `json:"-"`
}

var pageTemplate = template.Must(template.New("graph").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
  body { margin: 0; font-family: sans-serif; }
  #graph { display: block; width: 100%; height: {{.Height}}; border: 1px solid #ddd; cursor: grab; }
  .edge line, .edge circle { stroke: #848484; stroke-width: 1.5; fill: none; }
  .edge text { font-size: 11px; fill: #555; text-anchor: middle; }
  .node circle { stroke: #2B7CE9; stroke-width: 1.5; }
  .node text { font-size: 13px; text-anchor: middle; pointer-events: none; }
  .node { cursor: pointer; }
</style>
</head>
<body>
<svg id="graph" xmlns="http://www.w3.org/2000/svg" viewBox="0 0 {{.Width}} {{.CanvasHeight}}">
<defs>
  <marker id="arrow" viewBox="0 0 10 10" refX="10" refY="5" markerWidth="8" markerHeight="8" orient="auto">
    <path d="M0,0 L10,5 L0,10 z" fill="#848484"></path>
  </marker>
</defs>
<g id="viewport">
{{- range .Edges}}
{{- if .Loop}}
<g class="edge" transform="translate({{.X1}},{{.Y1}})"><circle cx="0" cy="-{{$.LoopOffset}}" r="10"></circle><text x="0" y="-{{$.LoopLabel}}">{{.Label}}</text><title>{{.Title}}</title></g>
{{- else}}
<g class="edge"><line x1="{{.X1}}" y1="{{.Y1}}" x2="{{.X2}}" y2="{{.Y2}}" marker-end="url(#arrow)"></line><text x="{{.LX}}" y="{{.LY}}">{{.Label}}</text><title>{{.Title}}</title></g>
{{- end}}
{{- end}}
{{- range .Nodes}}
<g class="node" data-id="{{.ID}}" transform="translate({{.X}},{{.Y}})"><circle r="{{$.Radius}}" fill="{{.Color}}"></circle><text y="{{$.LabelOffset}}">{{.Label}}</text><title>{{.Title}}</title></g>
{{- end}}
</g>
</svg>
<script>
(function () {
  const nodes = {{.Nodes}};
  const edges = {{.Edges}};
  const r = {{.Radius}};
  const svg = document.getElementById("graph");
  const nodeEls = svg.querySelectorAll("g.node");
  const edgeEls = svg.querySelectorAll("g.edge");
  const index = new Map(nodes.map(function (n, i) { return [n.id, i]; }));

  function toCanvas(ev) {
    const pt = svg.createSVGPoint();
    pt.x = ev.clientX;
    pt.y = ev.clientY;
    return pt.matrixTransform(svg.getScreenCTM().inverse());
  }

  function place(j) {
    const e = edges[j];
    const a = nodes[index.get(e.from)];
    const b = nodes[index.get(e.to)];
    const el = edgeEls[j];
    if (e.from === e.to) {
      el.setAttribute("transform", "translate(" + a.x + "," + a.y + ")");
      return;
    }
    const dx = b.x - a.x, dy = b.y - a.y, d = Math.hypot(dx, dy) || 1;
    const line = el.querySelector("line"), label = el.querySelector("text");
    line.setAttribute("x1", a.x + dx / d * r);
    line.setAttribute("y1", a.y + dy / d * r);
    line.setAttribute("x2", b.x - dx / d * (r + 2));
    line.setAttribute("y2", b.y - dy / d * (r + 2));
    label.setAttribute("x", (a.x + b.x) / 2);
    label.setAttribute("y", (a.y + b.y) / 2);
  }

  let dragging = -1;
  nodeEls.forEach(function (el, i) {
    el.addEventListener("pointerdown", function (ev) {
      dragging = i;
      el.setPointerCapture(ev.pointerId);
      ev.stopPropagation();
    });
  });
  svg.addEventListener("pointermove", function (ev) {
    if (dragging === -1) {
      return;
    }
    const p = toCanvas(ev), n = nodes[dragging];
    n.x = p.x;
    n.y = p.y;
    nodeEls[dragging].setAttribute("transform", "translate(" + p.x + "," + p.y + ")");
    edges.forEach(function (e, j) {
      if (e.from === n.id || e.to === n.id) {
        place(j);
      }
    });
  });
  svg.addEventListener("pointerup", function () { dragging = -1; });
  svg.addEventListener("wheel", function (ev) {
    ev.preventDefault();
    const vb = svg.viewBox.baseVal, p = toCanvas(ev), f = ev.deltaY > 0 ? 1.1 : 1 / 1.1;
    vb.x = p.x - (p.x - vb.x) * f;
    vb.y = p.y - (p.y - vb.y) * f;
    vb.width *= f;
    vb.height *= f;
  }, { passive: false });
})();
</script>
</body>
</html>
`))

// HTML renders a self-contained page that draws g as an SVG. Node positions
// are computed here, the inline script only adds dragging and zooming, so
// the page needs nothing from the network. Labels and titles are reduced to
// plain text before they are embedded.
func HTML(g Graph, opts HTMLOptions) (string, error) {
	defaults := DefaultHTMLOptions()
	if opts.Title == "" {
		opts.Title = defaults.Title
	}
	if opts.Height == "" {
		opts.Height = defaults.Height
	}

	nodes, edges := place(sanitize(g), opts.Physics)
	data := struct {
		HTMLOptions
		Width, CanvasHeight   float64
		Radius, LabelOffset   float64
		LoopOffset, LoopLabel float64
		Nodes                 []placedNode
		Edges                 []placedEdge
	}{
		HTMLOptions:  opts,
		Width:        canvasWidth,
		CanvasHeight: canvasHeight,
		Radius:       nodeRadius,
		LabelOffset:  nodeRadius + 14,
		LoopOffset:   nodeRadius + 8,
		LoopLabel:    nodeRadius + 22,
		Nodes:        nodes,
		Edges:        edges,
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render graph page: %w", err)
	}
	return buf.String(), nil
}

// place lays out g and colours its nodes by group. Edges whose endpoints are
// not nodes of g are dropped.
func place(g Graph, physics bool) ([]placedNode, []placedEdge) {
	var pos []point
	if physics {
		pos = forceLayout(g)
	} else {
		pos = circleLayout(len(g.Nodes))
	}

	colors := map[string]string{}
	index := make(map[string]int, len(g.Nodes))
	nodes := make([]placedNode, len(g.Nodes))
	for i, n := range g.Nodes {
		index[n.ID] = i
		color := ungroupedColor
		if n.Group != "" {
			c, ok := colors[n.Group]
			if !ok {
				c = groupColors[len(colors)%len(groupColors)]
				colors[n.Group] = c
			}
			color = c
		}
		nodes[i] = placedNode{Node: n, X: round1(pos[i].X), Y: round1(pos[i].Y), Color: color}
	}

	edges := make([]placedEdge, 0, len(g.Edges))
	for _, e := range g.Edges {
		ai, okA := index[e.From]
		bi, okB := index[e.To]
		if !okA || !okB {
			continue
		}
		a, b := nodes[ai], nodes[bi]
		pe := placedEdge{Edge: e, X1: a.X, Y1: a.Y}
		if ai == bi {
			pe.Loop = true
			edges = append(edges, pe)
			continue
		}
		dx, dy := b.X-a.X, b.Y-a.Y
		d := math.Hypot(dx, dy)
		if d == 0 {
			d = 1
		}
		pe.X1 = round1(a.X + dx/d*nodeRadius)
		pe.Y1 = round1(a.Y + dy/d*nodeRadius)
		pe.X2 = round1(b.X - dx/d*(nodeRadius+2))
		pe.Y2 = round1(b.Y - dy/d*(nodeRadius+2))
		pe.LX = round1((a.X + b.X) / 2)
		pe.LY = round1((a.Y + b.Y) / 2)
		edges = append(edges, pe)
	}
	return nodes, edges
}

func sanitize(g Graph) Graph {
	p := bluemonday.StrictPolicy()
	text := func(s string) string {
		return html.UnescapeString(p.Sanitize(s))
	}

	out := Graph{
		Nodes: make([]Node, len(g.Nodes)),
		Edges: make([]Edge, len(g.Edges)),
	}
	for i, n := range g.Nodes {
		n.Label = text(n.Label)
		n.Title = text(n.Title)
		n.Group = text(n.Group)
		out.Nodes[i] = n
	}
	for i, e := range g.Edges {
		e.Label = text(e.Label)
		e.Title = text(e.Title)
		out.Edges[i] = e
	}
	return out
}
