package datachannel

// Point is a position on the unit square, independent of canvas size.
type Point struct {
	X float64
	Y float64
}

// Segment is one straight piece of a remote stroke.
type Segment struct {
	From  Point
	To    Point
	Color string
	Width float64
}

// Scale maps the segment onto a canvas of the given pixel size.
func (s Segment) Scale(width, height float64) (x0, y0, x1, y1 float64) {
	return s.From.X * width, s.From.Y * height, s.To.X * width, s.To.Y * height
}

// Normalize converts a pixel position on a width×height canvas to a Point.
func Normalize(x, y, width, height float64) Point {
	if width <= 0 || height <= 0 {
		return Point{}
	}
	return Point{X: clamp01(x / width), Y: clamp01(y / height)}
}

// pen rebuilds strokes from a peer's samples: each pen-down sample joins the
// previous pen-down sample, and a pen-up sample ends the stroke.
type pen struct {
	last *Point
}

func (p *pen) add(d Envelope) (Segment, bool) {
	pt := Point{X: clamp01(d.X), Y: clamp01(d.Y)}

	if !d.PenDown {
		p.last = nil
		return Segment{}, false
	}

	prev := p.last
	p.last = &pt
	if prev == nil {
		return Segment{}, false
	}

	return Segment{From: *prev, To: pt, Color: d.Color, Width: d.Width}, true
}

func (p *pen) reset() {
	p.last = nil
}

func clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
