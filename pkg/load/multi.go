package load

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pacific-earth/fcover/pkg/config"
	"github.com/pacific-earth/fcover/pkg/grid"
	"github.com/pacific-earth/fcover/pkg/raster"
	"github.com/pacific-earth/fcover/pkg/stac"
	"github.com/pacific-earth/fcover/pkg/summary"
)

// MultiCollection loads fractional-cover and water-observation items into a
// single dataset. The two collections cover the same grid and days but carry
// different variables; slices are aligned on the solar day and gaps filled
// with the fill value.
type MultiCollection struct {
	FC   *Loader[uint8]
	Wofl *Loader[uint8]
	Fill uint8
}

// Load splits items by collection and merges the two loads. Missing either
// collection means there is nothing to summarise.
func (m *MultiCollection) Load(ctx context.Context, items []*stac.Item, box raster.GeoBox) (*raster.Dataset[uint8], error) {
	byCollection := make(map[string][]*stac.Item)
	for _, it := range items {
		byCollection[it.Collection] = append(byCollection[it.Collection], it)
	}

	if len(byCollection[config.FCCollection]) == 0 {
		return nil, fmt.Errorf("no fractional cover items: %w", stac.ErrEmptyCollection)
	}
	if len(byCollection[config.WoflCollection]) == 0 {
		return nil, fmt.Errorf("no water observation items: %w", stac.ErrEmptyCollection)
	}

	fc, err := m.FC.Load(ctx, byCollection[config.FCCollection], box)
	if err != nil {
		return nil, err
	}

	wofl, err := m.Wofl.Load(ctx, byCollection[config.WoflCollection], box)
	if err != nil {
		return nil, err
	}

	return mergeSolarDays(m.Fill, fc, wofl)
}

// mergeSolarDays stacks the bands of several datasets onto the union of
// their solar days. Within one dataset the first slice of a day wins.
func mergeSolarDays(fill uint8, dss ...*raster.Dataset[uint8]) (*raster.Dataset[uint8], error) {
	box := dss[0].Box
	npix := box.Pixels()

	cx, cy := box.World(box.Width/2, box.Height/2)
	lon, _ := grid.Inverse(cx, cy)

	daySet := make(map[time.Time]bool)
	for _, ds := range dss {
		for _, t := range ds.Times {
			daySet[summary.SolarDay(t, lon)] = true
		}
	}

	days := make([]time.Time, 0, len(daySet))
	for d := range daySet {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	dayIndex := make(map[time.Time]int, len(days))
	for i, d := range days {
		dayIndex[d] = i
	}

	out := raster.New[uint8](box, days)

	for _, ds := range dss {
		for _, name := range ds.BandNames() {
			src := ds.Band(name)

			dst := &raster.Band[uint8]{
				Data:   make([]uint8, len(days)*npix),
				Nodata: src.Nodata,
			}
			for i := range dst.Data {
				dst.Data[i] = fill
			}

			seen := make(map[int]bool)
			for ti, t := range ds.Times {
				di := dayIndex[summary.SolarDay(t, lon)]
				if seen[di] {
					continue
				}
				seen[di] = true

				copy(dst.Data[di*npix:(di+1)*npix], src.Data[ti*npix:(ti+1)*npix])
			}

			if err := out.AddBand(name, dst); err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}
