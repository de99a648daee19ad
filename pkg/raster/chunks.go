package raster

// Chunks is the tile size used when walking a grid window by window. It is
// the only memory tuning knob the pipeline exposes.
type Chunks struct {
	X int
	Y int
}

// Window is one rectangular piece of a grid.
type Window struct {
	X0 int
	Y0 int
	W  int
	H  int
}

// Windows splits a geobox into chunk-sized windows, edge windows clipped.
func Windows(box GeoBox, c Chunks) []Window {
	if c.X < 1 {
		c.X = box.Width
	}
	if c.Y < 1 {
		c.Y = box.Height
	}

	var out []Window

	for y := 0; y < box.Height; y += c.Y {
		h := min(c.Y, box.Height-y)

		for x := 0; x < box.Width; x += c.X {
			out = append(out, Window{X0: x, Y0: y, W: min(c.X, box.Width-x), H: h})
		}
	}

	return out
}
