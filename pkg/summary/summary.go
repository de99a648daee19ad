// Package summary reduces masked scene-level fractional cover to annual
// cloud-free percentile statistics.
package summary

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/pacific-earth/fcover/pkg/grid"
	"github.com/pacific-earth/fcover/pkg/mask"
	"github.com/pacific-earth/fcover/pkg/raster"
)

// percentiles reported for each fractional-cover band
var quantiles = []struct {
	suffix string
	q      float64
}{
	{"pc_10", 0.10},
	{"pc_50", 0.50},
	{"pc_90", 0.90},
}

// FCPercentiles is the annual reducer: classify, fuse same-day observations,
// then reduce the time axis to per-pixel percentiles.
type FCPercentiles struct {
	Classifier mask.Classifier

	// CountValid adds a band with the number of valid observations.
	CountValid bool

	// Footprint, when non-nil, masks pixels outside it to NODATA as the
	// final step. Coordinates are in the dataset's projected CRS.
	Footprint orb.Polygon

	// PeriodStart stamps the output's single time coordinate.
	PeriodStart time.Time

	Chunks  raster.Chunks
	Workers int
}

// Process runs the full transform-fuse-reduce pipeline. It is idempotent:
// the same input and parameters produce byte-identical output.
func (p *FCPercentiles) Process(ctx context.Context, ds *raster.Dataset[uint8]) (*raster.Dataset[uint8], error) {
	transformed, err := p.Classifier.NativeTransform(ctx, ds)
	if err != nil {
		return nil, fmt.Errorf("native transform: %w", err)
	}

	fused, err := Fuse(transformed)
	if err != nil {
		return nil, fmt.Errorf("fuse solar days: %w", err)
	}

	out, err := p.reduce(ctx, fused)
	if err != nil {
		return nil, fmt.Errorf("reduce: %w", err)
	}

	if p.Footprint != nil {
		p.maskFootprint(out)
	}

	return out, nil
}

func (p *FCPercentiles) reduce(ctx context.Context, ds *raster.Dataset[uint8]) (*raster.Dataset[uint8], error) {
	nodata := p.Classifier.Nodata
	npix := ds.SliceLen()
	nt := len(ds.Times)

	fcBands := []string{}
	for _, name := range ds.BandNames() {
		if name != "valid" && name != "wet" {
			fcBands = append(fcBands, name)
		}
	}

	out := raster.New[uint8](ds.Box, []time.Time{p.PeriodStart.UTC()})

	outBands := make(map[string]*raster.Band[uint8])
	for _, name := range fcBands {
		for _, qt := range quantiles {
			outBands[name+"_"+qt.suffix] = &raster.Band[uint8]{
				Data:   make([]uint8, npix),
				Nodata: nodata,
			}
		}
	}

	var count *raster.Band[uint8]
	if p.CountValid {
		count = &raster.Band[uint8]{Data: make([]uint8, npix), Nodata: nodata}
	}

	valid := ds.Band("valid")

	g, _ := errgroup.WithContext(ctx)
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for _, w := range raster.Windows(ds.Box, p.Chunks) {
		g.Go(func() error {
			obs := make([]float64, 0, nt)

			for y := w.Y0; y < w.Y0+w.H; y++ {
				for x := w.X0; x < w.X0+w.W; x++ {
					i := y*ds.Box.Width + x

					nvalid := 0
					for t := 0; t < nt; t++ {
						if valid.Data[t*npix+i] != 0 {
							nvalid++
						}
					}

					if count != nil {
						count.Data[i] = uint8(min(nvalid, 254))
					}

					for _, name := range fcBands {
						band := ds.Band(name)
						obs = obs[:0]

						for t := 0; t < nt; t++ {
							v := band.Data[t*npix+i]
							if valid.Data[t*npix+i] != 0 && v != nodata {
								obs = append(obs, float64(v))
							}
						}

						for _, qt := range quantiles {
							dst := outBands[name+"_"+qt.suffix]

							if len(obs) == 0 {
								dst.Data[i] = nodata
								continue
							}

							sort.Float64s(obs)
							dst.Data[i] = uint8(stat.Quantile(qt.q, stat.Empirical, obs, nil))
						}
					}
				}
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, name := range fcBands {
		for _, qt := range quantiles {
			key := name + "_" + qt.suffix
			if err := out.AddBand(key, outBands[key]); err != nil {
				return nil, err
			}
		}
	}

	if count != nil {
		if err := out.AddBand("count", count); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func (p *FCPercentiles) maskFootprint(ds *raster.Dataset[uint8]) {
	nodata := p.Classifier.Nodata

	inside := make([]bool, ds.SliceLen())
	for y := 0; y < ds.Box.Height; y++ {
		for x := 0; x < ds.Box.Width; x++ {
			px, py := ds.Box.World(x, y)
			inside[y*ds.Box.Width+x] = planar.PolygonContains(p.Footprint, orb.Point{px, py})
		}
	}

	for _, name := range ds.BandNames() {
		data := ds.Band(name).Data
		for i, in := range inside {
			if !in {
				data[i] = nodata
			}
		}
	}
}

// SolarDay is the acquisition date at the longitude of the observed area:
// scenes either side of UTC midnight over the same ground belong together.
func SolarDay(t time.Time, lon float64) time.Time {
	shifted := t.UTC().Add(time.Duration(lon / 15 * float64(time.Hour)))
	return time.Date(shifted.Year(), shifted.Month(), shifted.Day(), 0, 0, 0, 0, time.UTC)
}

// Fuse merges observations captured on the same solar day into one slice.
// Data bands keep the first non-NODATA value; the valid and wet masks are
// OR-combined.
func Fuse(ds *raster.Dataset[uint8]) (*raster.Dataset[uint8], error) {
	cx, cy := ds.Box.World(ds.Box.Width/2, ds.Box.Height/2)
	lon, _ := grid.Inverse(cx, cy)

	npix := ds.SliceLen()

	var days []time.Time
	groups := make(map[time.Time][]int)

	for ti, t := range ds.Times {
		day := SolarDay(t, lon)
		if _, ok := groups[day]; !ok {
			days = append(days, day)
		}
		groups[day] = append(groups[day], ti)
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	out := raster.New[uint8](ds.Box, days)

	for _, name := range ds.BandNames() {
		src := ds.Band(name)
		dst := &raster.Band[uint8]{
			Data:   make([]uint8, len(days)*npix),
			Nodata: src.Nodata,
		}

		isMask := name == "valid" || name == "wet"

		for di, day := range days {
			merged := dst.Data[di*npix : (di+1)*npix]

			for gi, ti := range groups[day] {
				slice := src.Data[ti*npix : (ti+1)*npix]

				if gi == 0 {
					copy(merged, slice)
					continue
				}

				for i, v := range slice {
					if isMask {
						if v != 0 {
							merged[i] = 1
						}
					} else if merged[i] == src.Nodata {
						merged[i] = v
					}
				}
			}
		}

		if err := out.AddBand(name, dst); err != nil {
			return nil, err
		}
	}

	return out, nil
}
