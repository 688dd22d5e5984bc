package ocr

import "math"

// Vertex is a point in page pixel coordinates, origin top-left.
type Vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Quad is a bounding quadrilateral given as four vertices, clockwise from
// top-left for axis-aligned boxes.
type Quad [4]Vertex

// RectQuad builds an axis-aligned quad.
func RectQuad(x, y, width, height float64) Quad {
	return Quad{
		{X: x, Y: y},
		{X: x + width, Y: y},
		{X: x + width, Y: y + height},
		{X: x, Y: y + height},
	}
}

// Center returns the mean of the four vertices.
func (q Quad) Center() Vertex {
	var c Vertex
	for _, v := range q {
		c.X += v.X
		c.Y += v.Y
	}
	c.X /= 4
	c.Y /= 4
	return c
}

// Bounds returns the axis-aligned extent of the quad.
func (q Quad) Bounds() (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, v := range q {
		minX = math.Min(minX, v.X)
		minY = math.Min(minY, v.Y)
		maxX = math.Max(maxX, v.X)
		maxY = math.Max(maxY, v.Y)
	}
	return minX, minY, maxX, maxY
}

// Union returns the axis-aligned quad enclosing all given quads.
// Union of nothing is the zero quad.
func Union(quads ...Quad) Quad {
	if len(quads) == 0 {
		return Quad{}
	}
	minX, minY, maxX, maxY := quads[0].Bounds()
	for _, q := range quads[1:] {
		x0, y0, x1, y1 := q.Bounds()
		minX = math.Min(minX, x0)
		minY = math.Min(minY, y0)
		maxX = math.Max(maxX, x1)
		maxY = math.Max(maxY, y1)
	}
	return RectQuad(minX, minY, maxX-minX, maxY-minY)
}

// Distance is the euclidean distance between two vertices.
func Distance(a, b Vertex) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
