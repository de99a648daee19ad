// Package task wires searcher, loader, processor, writer and stac creator
// into the fixed pipeline every binary runs per work item.
package task

import (
	"context"
	"fmt"
	"time"

	"github.com/pacific-earth/fcover/pkg/grid"
	"github.com/pacific-earth/fcover/pkg/raster"
	"github.com/pacific-earth/fcover/pkg/stac"
	"github.com/pacific-earth/fcover/pkg/store"
)

type Searcher interface {
	Search(ctx context.Context) ([]*stac.Item, error)
}

// SearchFunc adapts a closure to Searcher.
type SearchFunc func(ctx context.Context) ([]*stac.Item, error)

func (f SearchFunc) Search(ctx context.Context) ([]*stac.Item, error) {
	return f(ctx)
}

type Loader[T raster.Pixel] interface {
	Load(ctx context.Context, items []*stac.Item, box raster.GeoBox) (*raster.Dataset[T], error)
}

type Processor[T raster.Pixel] interface {
	Process(ctx context.Context, ds *raster.Dataset[T]) (*raster.Dataset[uint8], error)
}

type Writer interface {
	Write(ctx context.Context, ds *raster.Dataset[uint8], tile grid.TileID) ([]string, error)
}

// StacWriter publishes the item document for a written dataset.
type StacWriter interface {
	WriteItem(ctx context.Context, ds *raster.Dataset[uint8], tile grid.TileID, datetime time.Time) (string, error)
}

// CreatorWriter adapts stac.Creator to StacWriter.
type CreatorWriter struct {
	Creator *stac.Creator
	Store   store.Store
}

func (c *CreatorWriter) WriteItem(ctx context.Context, ds *raster.Dataset[uint8], tile grid.TileID, datetime time.Time) (string, error) {
	item, err := c.Creator.Create(ds, tile, datetime)
	if err != nil {
		return "", err
	}

	return c.Creator.Write(ctx, c.Store, item, tile)
}

// Task runs the four-step pipeline for one work item: search, load,
// process, write (rasters then STAC). Items may be preset for scene-level
// work that was searched upstream.
type Task[T raster.Pixel] struct {
	ID  grid.TileID
	Box raster.GeoBox

	Searcher  Searcher
	Items     []*stac.Item
	Loader    Loader[T]
	Processor Processor[T]
	Writer    Writer
	Stac      StacWriter

	// Datetime stamps the output item; the zero value means "use the
	// first input time".
	Datetime time.Time
}

// Run executes the pipeline and returns every key written. An empty search
// result surfaces as stac.ErrEmptyCollection for the caller's taxonomy.
func (t *Task[T]) Run(ctx context.Context) ([]string, error) {
	items := t.Items

	if items == nil {
		if t.Searcher == nil {
			return nil, fmt.Errorf("task has neither items nor a searcher")
		}

		var err error
		items, err = t.Searcher.Search(ctx)
		if err != nil {
			return nil, err
		}
	}

	if len(items) == 0 {
		return nil, stac.ErrEmptyCollection
	}

	ds, err := t.Loader.Load(ctx, items, t.Box)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	out, err := t.Processor.Process(ctx, ds)
	if err != nil {
		return nil, fmt.Errorf("process: %w", err)
	}

	paths, err := t.Writer.Write(ctx, out, t.ID)
	if err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	if t.Stac != nil {
		datetime := t.Datetime
		if datetime.IsZero() && len(out.Times) > 0 {
			datetime = out.Times[0]
		}

		stacPath, err := t.Stac.WriteItem(ctx, out, t.ID, datetime)
		if err != nil {
			return nil, fmt.Errorf("write stac: %w", err)
		}

		paths = append(paths, stacPath)
	}

	return paths, nil
}
