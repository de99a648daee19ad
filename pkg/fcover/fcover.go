// Package fcover unmixes Landsat surface reflectance into fractional cover:
// bare soil, photosynthetic and non-photosynthetic vegetation, plus the
// unmixing error.
package fcover

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/pacific-earth/fcover/pkg/raster"
)

// Collection-2 Level-2 reflectance scaling.
const (
	c2Scale  = 0.0000275
	c2Offset = -0.2

	srNodata uint16 = 0
)

// oldNodata is the signed sentinel the unmixing works in; outputs are
// remapped to Nodata on the way to uint8.
const oldNodata int8 = -1

// Input bands in matrix row order, after renaming to canonical names.
var srBands = []string{"green", "red", "nir", "swir1", "swir2"}

// renames maps the Landsat asset names to the canonical band names the
// unmixing uses.
var renames = map[string]string{
	"nir08":  "nir",
	"swir16": "swir1",
	"swir22": "swir2",
}

// endmembers holds the reference reflectance of pure bare soil,
// photosynthetic and non-photosynthetic vegetation for each input band,
// plus a final unity row that softly constrains the fractions to sum to one.
var endmembers = []float64{
	// bs, pv, npv
	0.161, 0.087, 0.119, // green
	0.223, 0.062, 0.163, // red
	0.297, 0.452, 0.277, // nir
	0.415, 0.221, 0.361, // swir1
	0.348, 0.112, 0.279, // swir2
	1.0, 1.0, 1.0, // sum-to-one
}

// Processor turns a surface-reflectance dataset into fractional cover.
type Processor struct {
	// C2Scaling applies the Collection-2 scale and offset before unmixing.
	C2Scaling bool

	Nodata  uint8
	Workers int
}

// Process unmixes every pixel. Output bands are bs, pv, npv and ue as
// unsigned 8-bit percentages with the 255 sentinel; non-sentinel values are
// untouched by the sentinel conversion.
func (p *Processor) Process(ctx context.Context, ds *raster.Dataset[uint16]) (*raster.Dataset[uint8], error) {
	for from, to := range renames {
		ds.Rename(from, to)
	}

	for _, name := range srBands {
		if !ds.HasBand(name) {
			return nil, fmt.Errorf("missing surface reflectance band %q", name)
		}
	}

	npix := ds.SliceLen()
	n := len(ds.Times) * npix

	// unmix into the signed working representation first
	signed := map[string][]int8{
		"bs":  make([]int8, n),
		"pv":  make([]int8, n),
		"npv": make([]int8, n),
		"ue":  make([]int8, n),
	}

	err := ds.EachSlice(ctx, p.Workers, func(ti int) error {
		a := mat.NewDense(len(srBands)+1, 3, endmembers)
		b := mat.NewVecDense(len(srBands)+1, nil)

		slices := make([][]uint16, len(srBands))
		for bi, name := range srBands {
			slices[bi] = ds.Slice(ds.Band(name), ti)
		}

		off := ti * npix

		for i := 0; i < npix; i++ {
			nodata := false
			for _, s := range slices {
				if s[i] == srNodata {
					nodata = true
					break
				}
			}

			if nodata {
				signed["bs"][off+i] = oldNodata
				signed["pv"][off+i] = oldNodata
				signed["npv"][off+i] = oldNodata
				signed["ue"][off+i] = oldNodata
				continue
			}

			for bi, s := range slices {
				b.SetVec(bi, reflectance(s[i], p.C2Scaling))
			}
			b.SetVec(len(srBands), 1)

			bs, pv, npv, ue := unmix(a, b)

			signed["bs"][off+i] = toPercent(bs)
			signed["pv"][off+i] = toPercent(pv)
			signed["npv"][off+i] = toPercent(npv)
			signed["ue"][off+i] = toPercent(ue)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	out := raster.New[uint8](ds.Box, ds.Times)

	for _, name := range []string{"bs", "pv", "npv", "ue"} {
		band := &raster.Band[uint8]{Data: make([]uint8, n), Nodata: p.Nodata}

		// sentinel conversion: -1 becomes 255, everything else passes
		// through unchanged
		for i, v := range signed[name] {
			if v == oldNodata {
				band.Data[i] = p.Nodata
			} else {
				band.Data[i] = uint8(v)
			}
		}

		if err := out.AddBand(name, band); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func reflectance(v uint16, scale bool) float64 {
	if !scale {
		return float64(v)
	}

	r := float64(v)*c2Scale + c2Offset
	return math.Min(1, math.Max(0, r))
}

// unmix solves one pixel against the endmember matrix and reports fractions
// plus the residual over the reflectance rows as the unmixing error.
func unmix(a *mat.Dense, b *mat.VecDense) (bs, pv, npv, ue float64) {
	x := nnls(a, b)

	var fit mat.VecDense
	fit.MulVec(a, mat.NewVecDense(len(x), x))

	ss := 0.0
	for i := 0; i < len(srBands); i++ {
		d := b.AtVec(i) - fit.AtVec(i)
		ss += d * d
	}

	return x[0], x[1], x[2], math.Sqrt(ss / float64(len(srBands)))
}

func toPercent(f float64) int8 {
	v := math.Round(f * 100)

	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}

	return int8(v)
}
