package render

import (
	"math"
)

const (
	canvasWidth  = 960.0
	canvasHeight = 600.0
	canvasMargin = 40.0
	nodeRadius   = 14.0
	layoutRounds = 300
)

// point is a position on the canvas.
type point struct {
	X, Y float64
}

// circleLayout places the nodes evenly on a circle, in node order.
func circleLayout(n int) []point {
	pos := make([]point, n)
	cx, cy := canvasWidth/2, canvasHeight/2
	if n == 1 {
		pos[0] = point{cx, cy}
		return pos
	}
	r := math.Min(canvasWidth, canvasHeight)/2 - canvasMargin
	for i := range pos {
		a := 2 * math.Pi * float64(i) / float64(n)
		pos[i] = point{cx + r*math.Cos(a), cy + r*math.Sin(a)}
	}
	return pos
}

// forceLayout runs a Fruchterman-Reingold layout starting from the circle
// layout. It is deterministic: the same graph always gets the same picture.
func forceLayout(g Graph) []point {
	n := len(g.Nodes)
	pos := circleLayout(n)
	if n < 2 {
		return pos
	}

	index := make(map[string]int, n)
	for i, node := range g.Nodes {
		index[node.ID] = i
	}
	type link struct{ a, b int }
	var links []link
	for _, e := range g.Edges {
		a, okA := index[e.From]
		b, okB := index[e.To]
		if okA && okB && a != b {
			links = append(links, link{a, b})
		}
	}

	k := math.Sqrt((canvasWidth - 2*canvasMargin) * (canvasHeight - 2*canvasMargin) / float64(n))
	temp := canvasWidth / 10
	cool := temp / layoutRounds
	disp := make([]point, n)

	for round := 0; round < layoutRounds; round++ {
		clear(disp)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				dx, dy := pos[i].X-pos[j].X, pos[i].Y-pos[j].Y
				d := math.Max(math.Hypot(dx, dy), 0.01)
				f := k * k / d
				disp[i].X += dx / d * f
				disp[i].Y += dy / d * f
				disp[j].X -= dx / d * f
				disp[j].Y -= dy / d * f
			}
		}
		for _, l := range links {
			dx, dy := pos[l.a].X-pos[l.b].X, pos[l.a].Y-pos[l.b].Y
			d := math.Max(math.Hypot(dx, dy), 0.01)
			f := d * d / k
			disp[l.a].X -= dx / d * f
			disp[l.a].Y -= dy / d * f
			disp[l.b].X += dx / d * f
			disp[l.b].Y += dy / d * f
		}
		for i := range pos {
			d := math.Max(math.Hypot(disp[i].X, disp[i].Y), 0.01)
			step := math.Min(d, temp)
			pos[i].X = clamp(pos[i].X+disp[i].X/d*step, canvasMargin, canvasWidth-canvasMargin)
			pos[i].Y = clamp(pos[i].Y+disp[i].Y/d*step, canvasMargin, canvasHeight-canvasMargin)
		}
		temp -= cool
	}
	return pos
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
