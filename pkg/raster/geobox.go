package raster

import (
	"math"

	"github.com/paulmach/orb"
)

// Affine is an axis-aligned pixel-to-world transform. YRes is negative for
// north-up rasters.
type Affine struct {
	XOrigin float64
	YOrigin float64
	XRes    float64
	YRes    float64
}

// GeoBox ties a pixel grid to a projected coordinate system.
type GeoBox struct {
	SRID      int
	Transform Affine
	Width     int
	Height    int
}

func (g GeoBox) Pixels() int {
	return g.Width * g.Height
}

// World returns the projected coordinate of the center of pixel (col, row).
func (g GeoBox) World(col, row int) (float64, float64) {
	x := g.Transform.XOrigin + (float64(col)+0.5)*g.Transform.XRes
	y := g.Transform.YOrigin + (float64(row)+0.5)*g.Transform.YRes

	return x, y
}

// Bound is the projected extent of the grid.
func (g GeoBox) Bound() orb.Bound {
	x0 := g.Transform.XOrigin
	y0 := g.Transform.YOrigin
	x1 := x0 + float64(g.Width)*g.Transform.XRes
	y1 := y0 + float64(g.Height)*g.Transform.YRes

	return orb.Bound{
		Min: orb.Point{math.Min(x0, x1), math.Min(y0, y1)},
		Max: orb.Point{math.Max(x0, x1), math.Max(y0, y1)},
	}
}

// Polygon is the projected footprint as a closed ring.
func (g GeoBox) Polygon() orb.Polygon {
	b := g.Bound()

	return orb.Polygon{orb.Ring{
		{b.Min[0], b.Min[1]},
		{b.Max[0], b.Min[1]},
		{b.Max[0], b.Max[1]},
		{b.Min[0], b.Max[1]},
		{b.Min[0], b.Min[1]},
	}}
}

// ProjTransform is the six-element row-major transform used by the STAC
// projection extension.
func (g GeoBox) ProjTransform() [6]float64 {
	return [6]float64{
		g.Transform.XRes, 0, g.Transform.XOrigin,
		0, g.Transform.YRes, g.Transform.YOrigin,
	}
}
