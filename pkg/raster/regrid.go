package raster

import "math"

// Regrid resamples src, laid out on srcBox, onto dst by nearest neighbour.
// proj maps a dst-CRS coordinate into the src CRS; nil means the two grids
// share a coordinate system. Target pixels outside the source extent are
// filled with nodata.
func Regrid[T Pixel](src []T, srcBox, dst GeoBox, nodata T, proj func(x, y float64) (float64, float64)) []T {
	out := make([]T, dst.Pixels())

	for row := 0; row < dst.Height; row++ {
		for col := 0; col < dst.Width; col++ {
			x, y := dst.World(col, row)
			if proj != nil {
				x, y = proj(x, y)
			}

			// the source pixel containing the target pixel center
			sc := int(math.Floor((x - srcBox.Transform.XOrigin) / srcBox.Transform.XRes))
			sr := int(math.Floor((y - srcBox.Transform.YOrigin) / srcBox.Transform.YRes))

			i := row*dst.Width + col
			if sc < 0 || sc >= srcBox.Width || sr < 0 || sr >= srcBox.Height {
				out[i] = nodata
				continue
			}

			out[i] = src[sr*srcBox.Width+sc]
		}
	}

	return out
}
