package stac

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/pacific-earth/fcover/pkg/grid"
	"github.com/pacific-earth/fcover/pkg/namers"
	"github.com/pacific-earth/fcover/pkg/raster"
	"github.com/pacific-earth/fcover/pkg/store"
)

const (
	cogMediaType = "image/tiff; application=geotiff; profile=cloud-optimized"

	projExtension   = "https://stac-extensions.github.io/projection/v1.1.0/schema.json"
	rasterExtension = "https://stac-extensions.github.io/raster/v1.1.0/schema.json"
	eoExtension     = "https://stac-extensions.github.io/eo/v1.1.0/schema.json"
)

// Creator assembles the STAC item describing one written output and stores
// it next to the rasters.
type Creator struct {
	Path           namers.ItemPath
	CollectionRoot string
	WithRaster     bool
	WithEO         bool

	// Footprint overrides the summary-grid tile outline, for outputs on a
	// scene's own grid. EPSG:4326, split at the antimeridian.
	Footprint orb.MultiPolygon

	// ExtraProperties are merged into the item properties, e.g. the
	// pipeline version tag.
	ExtraProperties map[string]any
}

// Create builds the item document for a dataset written at tile.
func (c *Creator) Create(ds *raster.Dataset[uint8], tile grid.TileID, datetime time.Time) (*Item, error) {
	footprint := c.Footprint
	if footprint == nil {
		footprint = grid.TileFootprint(tile)
	}
	bbox := footprintBbox(footprint)

	props := map[string]any{
		"datetime": datetime.UTC().Format(time.RFC3339),
		"created":  time.Now().UTC().Format(time.RFC3339),

		"proj:epsg":      ds.Box.SRID,
		"proj:shape":     []int{ds.Box.Height, ds.Box.Width},
		"proj:transform": ds.Box.ProjTransform(),
	}
	for k, v := range c.ExtraProperties {
		props[k] = v
	}

	assets := make(map[string]*Asset, len(ds.BandNames()))

	for _, band := range ds.BandNames() {
		key := c.Path.Path(tile, band)
		a := &Asset{
			Href:  fmt.Sprintf("https://%s.s3.amazonaws.com/%s", c.Path.Bucket, key),
			Type:  cogMediaType,
			Title: band,
			Roles: []string{"data"},
		}

		if c.WithRaster {
			a.RasterBands = []RasterBand{{
				Nodata:   float64(ds.Band(band).Nodata),
				DataType: "uint8",
			}}
		}
		if c.WithEO {
			a.EOBands = []EOBand{{Name: band}}
		}

		assets[band] = a
	}

	extensions := []string{projExtension}
	if c.WithRaster {
		extensions = append(extensions, rasterExtension)
	}
	if c.WithEO {
		extensions = append(extensions, eoExtension)
	}

	prefix := "dep_" + c.Path.Sensor + "_" + c.Path.DatasetID

	item := &Item{
		Type:        "Feature",
		StacVersion: "1.0.0",
		Extensions:  extensions,
		ID:          fmt.Sprintf("%s_%03d_%03d_%s", prefix, tile.Column, tile.Row, c.Path.Time),
		Collection:  prefix,
		Geometry:    geojson.NewGeometry(footprint),
		Bbox:        bbox,
		Properties:  props,
		Assets:      assets,
		Links: []Link{
			{Rel: "self", Href: fmt.Sprintf("https://%s.s3.amazonaws.com/%s", c.Path.Bucket, c.Path.StacPath(tile)), Type: "application/json"},
			{Rel: "collection", Href: fmt.Sprintf("%s/collections/%s", c.CollectionRoot, prefix), Type: "application/json"},
			{Rel: "root", Href: c.CollectionRoot, Type: "application/json"},
		},
	}

	return item, nil
}

// footprintBbox derives the item bbox. A footprint split at the
// antimeridian gets the GeoJSON convention for crossing boxes: west > east,
// rather than a bound spanning nearly the whole globe.
func footprintBbox(fp orb.MultiPolygon) []float64 {
	b := fp.Bound()

	if len(fp) == 2 {
		const eps = 1e-9

		b0, b1 := fp[0].Bound(), fp[1].Bound()
		if b0.Max[0] >= 180-eps && b1.Min[0] <= -180+eps {
			return []float64{b0.Min[0], b.Min[1], b1.Max[0], b.Max[1]}
		}
		if b1.Max[0] >= 180-eps && b0.Min[0] <= -180+eps {
			return []float64{b1.Min[0], b.Min[1], b0.Max[0], b.Max[1]}
		}
	}

	return []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
}

// Write stores the item JSON at its deterministic key and returns the key.
func (c *Creator) Write(ctx context.Context, st store.Store, item *Item, tile grid.TileID) (string, error) {
	body, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal stac item: %w", err)
	}

	key := c.Path.StacPath(tile)
	if err := st.Put(ctx, key, body, "application/json"); err != nil {
		return "", err
	}

	return key, nil
}
