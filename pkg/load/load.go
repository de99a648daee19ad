// Package load assembles raster datasets from STAC items.
package load

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pacific-earth/fcover/pkg/grid"
	"github.com/pacific-earth/fcover/pkg/raster"
	"github.com/pacific-earth/fcover/pkg/stac"
)

// Loader fetches the named asset bands of each item and stacks them on the
// target grid, one time slice per item.
type Loader[T raster.Pixel] struct {
	Bands   []string
	Fetcher Fetcher

	// Nodata initializes missing samples.
	Nodata T

	// FailOnError aborts the whole load on the first bad scene. When false
	// a scene that cannot be fetched or decoded is dropped and reported
	// through OnSceneError.
	FailOnError bool

	// OnSceneError observes dropped scenes. May be nil.
	OnSceneError func(itemID string, err error)

	Workers int
}

type scene[T raster.Pixel] struct {
	t     time.Time
	bands map[string][]T
}

// Load fetches every item in parallel and returns a dataset on box ordered
// by acquisition time. Items that fail to load are dropped unless
// FailOnError is set; an empty result is an error.
func (l *Loader[T]) Load(ctx context.Context, items []*stac.Item, box raster.GeoBox) (*raster.Dataset[T], error) {
	if len(items) == 0 {
		return nil, stac.ErrEmptyCollection
	}

	scenes := make([]*scene[T], len(items))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	workers := l.Workers
	if workers < 1 {
		workers = 4
	}
	g.SetLimit(workers)

	for i, it := range items {
		g.Go(func() error {
			s, err := l.loadScene(gctx, it, box)
			if err != nil {
				if l.FailOnError {
					return fmt.Errorf("load %s: %w", it.ID, err)
				}

				if l.OnSceneError != nil {
					mu.Lock()
					l.OnSceneError(it.ID, err)
					mu.Unlock()
				}

				return nil
			}

			scenes[i] = s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	loaded := scenes[:0]
	for _, s := range scenes {
		if s != nil {
			loaded = append(loaded, s)
		}
	}

	if len(loaded) == 0 {
		return nil, fmt.Errorf("every scene failed to load: %w", stac.ErrEmptyCollection)
	}

	sort.Slice(loaded, func(i, j int) bool { return loaded[i].t.Before(loaded[j].t) })

	times := make([]time.Time, len(loaded))
	for i, s := range loaded {
		times[i] = s.t
	}

	ds := raster.New[T](box, times)
	npix := box.Pixels()

	for _, name := range l.Bands {
		band := &raster.Band[T]{
			Data:   make([]T, len(loaded)*npix),
			Nodata: l.Nodata,
		}

		for ti, s := range loaded {
			copy(band.Data[ti*npix:(ti+1)*npix], s.bands[name])
		}

		if err := ds.AddBand(name, band); err != nil {
			return nil, err
		}
	}

	return ds, nil
}

func (l *Loader[T]) loadScene(ctx context.Context, it *stac.Item, box raster.GeoBox) (*scene[T], error) {
	t, err := it.Datetime()
	if err != nil {
		return nil, err
	}

	// Scenes carry their own grid in the projection extension; those are
	// decoded on it and placed onto the target grid by nearest neighbour.
	// Items without proj metadata must already match the target grid.
	srcBox, perr := it.ProjGeoBox()
	regrid := perr == nil && srcBox != box

	var proj func(x, y float64) (float64, float64)
	if regrid && srcBox.SRID != box.SRID {
		proj, err = grid.Projector(box.SRID, srcBox.SRID)
		if err != nil {
			return nil, err
		}
	}

	s := &scene[T]{t: t, bands: make(map[string][]T, len(l.Bands))}

	for _, name := range l.Bands {
		href, err := it.AssetHref(name)
		if err != nil {
			return nil, err
		}

		body, err := l.Fetcher.Fetch(ctx, href)
		if err != nil {
			return nil, err
		}

		if !regrid {
			data, err := raster.DecodeTIFF[T](body, box)
			if err != nil {
				return nil, fmt.Errorf("asset %s: %w", name, err)
			}

			s.bands[name] = data
			continue
		}

		src, err := raster.DecodeTIFF[T](body, srcBox)
		if err != nil {
			return nil, fmt.Errorf("asset %s: %w", name, err)
		}

		s.bands[name] = raster.Regrid(src, srcBox, box, l.Nodata, proj)
	}

	return s, nil
}
