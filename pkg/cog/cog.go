// Package cog writes dataset bands as Cloud-Optimized GeoTIFFs on object
// storage. Encoding is plain deflate TIFF; the COG layout (tiling, overview
// ordering, leader IFDs) is produced by rewriting through cogger.
package cog

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/airbusgeo/cogger"
	gtiff "github.com/google/tiff"
	"golang.org/x/image/tiff"
	"golang.org/x/sync/errgroup"

	"github.com/pacific-earth/fcover/pkg/grid"
	"github.com/pacific-earth/fcover/pkg/namers"
	"github.com/pacific-earth/fcover/pkg/raster"
	"github.com/pacific-earth/fcover/pkg/store"
)

const mediaType = "image/tiff"

// Encode renders one band slice as a cloud-optimized TIFF.
func Encode(data []uint8, box raster.GeoBox) ([]byte, error) {
	if len(data) != box.Pixels() {
		return nil, fmt.Errorf("band has %d samples, grid wants %d", len(data), box.Pixels())
	}

	img := &image.Gray{
		Pix:    data,
		Stride: box.Width,
		Rect:   image.Rect(0, 0, box.Width, box.Height),
	}

	var plain bytes.Buffer
	err := tiff.Encode(&plain, img, &tiff.Options{Compression: tiff.Deflate})
	if err != nil {
		return nil, fmt.Errorf("encode tiff: %w", err)
	}

	var cog bytes.Buffer
	if err := cogger.DefaultConfig().Rewrite(&cog, bytes.NewReader(plain.Bytes())); err != nil {
		return nil, fmt.Errorf("cogify: %w", err)
	}

	out := cog.Bytes()
	if err := Validate(out); err != nil {
		return nil, err
	}

	return out, nil
}

// Validate checks that the bytes parse as a TIFF with at least one image
// directory.
func Validate(b []byte) error {
	t, err := gtiff.Parse(bytes.NewReader(b), nil, nil)
	if err != nil {
		return fmt.Errorf("produced tiff does not parse: %w", err)
	}

	if len(t.IFDs()) == 0 {
		return fmt.Errorf("produced tiff has no image directory")
	}

	return nil
}

// Writer stores one COG per band at the namer-derived keys.
type Writer struct {
	Store store.Store
	Path  namers.ItemPath

	// Overwrite skips the exists check. Without it an already-written band
	// is left alone, which is what makes reruns cheap.
	Overwrite bool

	Workers int
}

// Write encodes and stores the first time slice of every band, returning
// the written (or already present) keys in band order.
func (w *Writer) Write(ctx context.Context, ds *raster.Dataset[uint8], tile grid.TileID) ([]string, error) {
	if len(ds.Times) == 0 {
		return nil, fmt.Errorf("dataset has no time slice to write")
	}

	names := ds.BandNames()
	paths := make([]string, len(names))

	g, gctx := errgroup.WithContext(ctx)

	workers := w.Workers
	if workers < 1 {
		workers = 4
	}
	g.SetLimit(workers)

	for i, name := range names {
		g.Go(func() error {
			key := w.Path.Path(tile, name)
			paths[i] = key

			if !w.Overwrite {
				ok, err := w.Store.Exists(gctx, key)
				if err != nil {
					return err
				}
				if ok {
					return nil
				}
			}

			body, err := Encode(ds.Slice(ds.Band(name), 0), ds.Box)
			if err != nil {
				return fmt.Errorf("band %s: %w", name, err)
			}

			return w.Store.Put(gctx, key, body, mediaType)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return paths, nil
}
