// Package mask implements the per-pixel classification that turns combined
// fractional-cover and water-observation data into valid/wet masks and
// NODATA-cleaned bands.
package mask

import (
	"context"
	"fmt"

	"github.com/pacific-earth/fcover/pkg/raster"
)

// Bit-flag semantics of the water band.
const (
	BitTerrainSlope uint8 = 1 << 4
	BitCloudShadow  uint8 = 1 << 5
	BitCloud        uint8 = 1 << 6

	// byte value of a clear wet pixel; clear dry is 0
	ClearWet uint8 = 128
)

// badBits maps the filterable labels to their water-band flags.
var badBits = map[string]uint8{
	"cloud":        BitCloud,
	"cloud_shadow": BitCloudShadow,
}

// Classifier derives valid and wet masks from the water bitmask and cleans
// the fractional-cover bands against them.
type Classifier struct {
	// CloudFilters gives the dilation radius in pixels per label ("cloud",
	// "cloud_shadow"). Absent labels are not filtered.
	CloudFilters map[string]int

	// UeThreshold, when set, additionally requires ue < threshold for a
	// pixel to be valid.
	UeThreshold *uint8

	// MaxSumLimit, when set, invalidates pixels whose bs+pv+npv exceed it.
	MaxSumLimit *int

	// ClipRange, when set, clips band values into [lo, hi]. NODATA pixels
	// are restored afterwards: the sentinel is a fixed point of the clip.
	ClipRange *[2]uint8

	Nodata uint8

	// Workers bounds slice-level parallelism.
	Workers int
}

// NativeTransform rewrites ds in place: the water band becomes valid/wet
// masks, ue is consumed against the threshold, and every remaining band is
// masked to NODATA wherever the pixel is not valid. Returns ds.
//
// A pixel is valid when, after discounting the high-terrain-slope flag, the
// water byte is zero (clear and dry); wet when it is 128 (clear and wet).
func (c *Classifier) NativeTransform(ctx context.Context, ds *raster.Dataset[uint8]) (*raster.Dataset[uint8], error) {
	water := ds.Band("water")
	if water == nil {
		return nil, fmt.Errorf("dataset has no water band")
	}

	if c.UeThreshold != nil && !ds.HasBand("ue") {
		return nil, fmt.Errorf("ue threshold set but dataset has no ue band")
	}

	n := len(ds.Times) * ds.SliceLen()
	valid := raster.Band[uint8]{Data: make([]uint8, n)}
	wet := raster.Band[uint8]{Data: make([]uint8, n)}

	fcBands := []string{}
	for _, name := range ds.BandNames() {
		if name != "water" && name != "ue" {
			fcBands = append(fcBands, name)
		}
	}

	err := ds.EachSlice(ctx, c.Workers, func(ti int) error {
		c.transformSlice(ds, ti, ds.Slice(water, ti), ds.Slice(&valid, ti), ds.Slice(&wet, ti), fcBands)
		return nil
	})
	if err != nil {
		return nil, err
	}

	ds.DropBands("water", "ue")

	if err := ds.AddBand("wet", &wet); err != nil {
		return nil, err
	}
	if err := ds.AddBand("valid", &valid); err != nil {
		return nil, err
	}

	return ds, nil
}

func (c *Classifier) transformSlice(ds *raster.Dataset[uint8], ti int, water, valid, wet []uint8, fcBands []string) {
	// discount the terrain slope flag, then pick out dry and wet pixels
	for i, w := range water {
		m := w &^ BitTerrainSlope

		if m == 0 {
			valid[i] = 1
		}
		if m == ClearWet {
			wet[i] = 1
		}
	}

	// dilate each configured bad-bit mask and subtract it from both masks
	for label, bit := range badBits {
		radius, ok := c.CloudFilters[label]
		if !ok || radius <= 0 {
			continue
		}

		raw := make([]bool, len(water))
		for i, w := range water {
			raw[i] = w&bit != 0
		}

		Dilate(raw, ds.Box.Width, ds.Box.Height, radius)

		for i, bad := range raw {
			if bad {
				valid[i] = 0
				wet[i] = 0
			}
		}
	}

	if c.UeThreshold != nil {
		ue := ds.Slice(ds.Band("ue"), ti)
		for i, u := range ue {
			if u >= *c.UeThreshold {
				valid[i] = 0
			}
		}
	}

	if c.MaxSumLimit != nil || c.ClipRange != nil {
		c.sumAndClip(ds, ti, valid, fcBands)
	}

	// keep-mask: everything not valid becomes NODATA
	for _, name := range fcBands {
		data := ds.Slice(ds.Band(name), ti)
		for i := range data {
			if valid[i] == 0 {
				data[i] = c.Nodata
			}
		}
	}
}

func (c *Classifier) sumAndClip(ds *raster.Dataset[uint8], ti int, valid []uint8, fcBands []string) {
	sums := make([]int, ds.SliceLen())

	for _, name := range fcBands {
		data := ds.Slice(ds.Band(name), ti)

		for i, v := range data {
			isNodata := v == c.Nodata

			// NODATA must not poison the sum
			if c.MaxSumLimit != nil && !isNodata {
				sums[i] += int(v)
			}

			if c.ClipRange != nil && !isNodata {
				lo, hi := c.ClipRange[0], c.ClipRange[1]
				if v < lo {
					data[i] = lo
				} else if v > hi {
					data[i] = hi
				}
			}
		}
	}

	if c.MaxSumLimit != nil {
		for i, s := range sums {
			if s >= *c.MaxSumLimit {
				valid[i] = 0
			}
		}
	}
}
