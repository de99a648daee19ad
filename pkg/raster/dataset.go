package raster

import (
	"context"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pixel is the set of sample types the pipeline works in: uint8 for products
// and masks, uint16 for surface reflectance.
type Pixel interface {
	~uint8 | ~uint16
}

// Band holds one variable as a flat time-major array: the slice for time t
// starts at t*width*height.
type Band[T Pixel] struct {
	Data   []T
	Nodata T
}

// Dataset is a labeled multi-band raster stack on a single grid, the working
// unit passed between loader, processor and writer.
type Dataset[T Pixel] struct {
	Box   GeoBox
	Times []time.Time

	names []string
	bands map[string]*Band[T]
}

func New[T Pixel](box GeoBox, times []time.Time) *Dataset[T] {
	return &Dataset[T]{
		Box:   box,
		Times: times,
		bands: make(map[string]*Band[T]),
	}
}

// SliceLen is the number of pixels in one time slice.
func (d *Dataset[T]) SliceLen() int {
	return d.Box.Pixels()
}

func (d *Dataset[T]) AddBand(name string, b *Band[T]) error {
	want := len(d.Times) * d.SliceLen()
	if len(b.Data) != want {
		return fmt.Errorf("band %s: have %d samples, want %d", name, len(b.Data), want)
	}

	if _, ok := d.bands[name]; !ok {
		d.names = append(d.names, name)
	}
	d.bands[name] = b

	return nil
}

func (d *Dataset[T]) Band(name string) *Band[T] {
	return d.bands[name]
}

func (d *Dataset[T]) HasBand(name string) bool {
	_, ok := d.bands[name]
	return ok
}

// BandNames returns names in insertion order.
func (d *Dataset[T]) BandNames() []string {
	return slices.Clone(d.names)
}

func (d *Dataset[T]) DropBands(names ...string) {
	for _, name := range names {
		delete(d.bands, name)
	}

	d.names = slices.DeleteFunc(d.names, func(n string) bool {
		_, ok := d.bands[n]
		return !ok
	})
}

// Slice returns the samples of one time slice as a subslice view.
func (d *Dataset[T]) Slice(b *Band[T], ti int) []T {
	n := d.SliceLen()
	return b.Data[ti*n : (ti+1)*n]
}

// EachSlice runs fn for every time index on a bounded worker pool. This is
// the process-level parallelism: slices are independent, so per-slice
// transforms need no locking.
func (d *Dataset[T]) EachSlice(ctx context.Context, workers int, fn func(ti int) error) error {
	if workers < 1 {
		workers = 1
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for ti := range d.Times {
		g.Go(func() error {
			return fn(ti)
		})
	}

	return g.Wait()
}

// Rename changes a band's label, keeping its position.
func (d *Dataset[T]) Rename(from, to string) {
	b, ok := d.bands[from]
	if !ok {
		return
	}

	delete(d.bands, from)
	d.bands[to] = b

	for i, n := range d.names {
		if n == from {
			d.names[i] = to
		}
	}
}
