// Package stac models the subset of STAC the pipeline consumes and
// produces, and talks to catalog search endpoints.
package stac

import (
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/pacific-earth/fcover/pkg/raster"
)

type Link struct {
	Rel    string         `json:"rel"`
	Href   string         `json:"href"`
	Type   string         `json:"type,omitempty"`
	Method string         `json:"method,omitempty"`
	Body   map[string]any `json:"body,omitempty"`
}

// RasterBand carries the raster extension fields written on output assets.
type RasterBand struct {
	Nodata   float64 `json:"nodata"`
	DataType string  `json:"data_type"`
}

// EOBand carries the eo extension band descriptor.
type EOBand struct {
	Name string `json:"name"`
}

type AlternateHref struct {
	Href string `json:"href"`
}

type Asset struct {
	Href        string                   `json:"href"`
	Type        string                   `json:"type,omitempty"`
	Title       string                   `json:"title,omitempty"`
	Roles       []string                 `json:"roles,omitempty"`
	Alternate   map[string]AlternateHref `json:"alternate,omitempty"`
	RasterBands []RasterBand             `json:"raster:bands,omitempty"`
	EOBands     []EOBand                 `json:"eo:bands,omitempty"`
}

type Item struct {
	Type        string            `json:"type"`
	StacVersion string            `json:"stac_version"`
	Extensions  []string          `json:"stac_extensions,omitempty"`
	ID          string            `json:"id"`
	Collection  string            `json:"collection,omitempty"`
	Geometry    *geojson.Geometry `json:"geometry"`
	Bbox        []float64         `json:"bbox,omitempty"`
	Properties  map[string]any    `json:"properties"`
	Assets      map[string]*Asset `json:"assets"`
	Links       []Link            `json:"links,omitempty"`
}

// Datetime reads the item's acquisition time.
func (it *Item) Datetime() (time.Time, error) {
	raw, ok := it.Properties["datetime"].(string)
	if !ok {
		return time.Time{}, fmt.Errorf("item %s has no datetime", it.ID)
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("item %s datetime: %w", it.ID, err)
	}

	return t, nil
}

// AssetHref resolves one asset's fetchable location.
func (it *Item) AssetHref(name string) (string, error) {
	a, ok := it.Assets[name]
	if !ok {
		return "", fmt.Errorf("item %s has no asset %q", it.ID, name)
	}

	return a.Href, nil
}

// ProjGeoBox reads the projection extension fields into the item's own
// pixel grid. Scene-level inputs carry their grid this way; outputs on the
// summary grid never need it.
func (it *Item) ProjGeoBox() (raster.GeoBox, error) {
	epsg, ok := asFloat(it.Properties["proj:epsg"])
	if !ok {
		return raster.GeoBox{}, fmt.Errorf("item %s has no proj:epsg", it.ID)
	}

	shape, ok := asFloats(it.Properties["proj:shape"])
	if !ok || len(shape) != 2 {
		return raster.GeoBox{}, fmt.Errorf("item %s has no proj:shape", it.ID)
	}

	tr, ok := asFloats(it.Properties["proj:transform"])
	if !ok || len(tr) < 6 {
		return raster.GeoBox{}, fmt.Errorf("item %s has no proj:transform", it.ID)
	}

	// row-major affine: xres, 0, xorigin, 0, yres, yorigin
	return raster.GeoBox{
		SRID: int(epsg),
		Transform: raster.Affine{
			XOrigin: tr[2],
			YOrigin: tr[5],
			XRes:    tr[0],
			YRes:    tr[4],
		},
		Width:  int(shape[1]),
		Height: int(shape[0]),
	}, nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}

	return 0, false
}

func asFloats(v any) ([]float64, bool) {
	raw, ok := v.([]any)
	if !ok {
		return nil, false
	}

	out := make([]float64, len(raw))
	for i, e := range raw {
		f, ok := asFloat(e)
		if !ok {
			return nil, false
		}
		out[i] = f
	}

	return out, true
}

// UseAlternateS3Href rewrites every asset href to its s3 alternate when one
// is present. The USGS catalog serves https hrefs by default but the data is
// fetched requester-pays from S3.
func UseAlternateS3Href(it *Item) {
	for _, a := range it.Assets {
		if alt, ok := a.Alternate["s3"]; ok && alt.Href != "" {
			a.Href = alt.Href
		}
	}
}
