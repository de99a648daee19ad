package stac

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const landsatItemJSON = `{
	"type": "Feature",
	"id": "LC09_L2SP_074072_20240512_02_T1",
	"collection": "landsat-c2l2-sr",
	"geometry": {
		"type": "Polygon",
		"coordinates": [[[178.1, -19.0], [180.0, -19.0], [180.0, -17.2], [178.1, -17.2], [178.1, -19.0]]]
	},
	"properties": {
		"datetime": "2024-05-12T22:10:13Z",
		"proj:epsg": 32660,
		"proj:shape": [7971, 7891],
		"proj:transform": [30, 0, 499785, 0, -30, -1882485]
	},
	"assets": {
		"green": {
			"href": "https://landsatlook.usgs.gov/data/green.tif",
			"alternate": {"s3": {"href": "s3://usgs-landsat/data/green.tif"}}
		},
		"thumbnail": {
			"href": "https://landsatlook.usgs.gov/thumb.jpg"
		}
	}
}`

func landsatItem(t *testing.T) *Item {
	t.Helper()

	var it Item
	require.NoError(t, json.Unmarshal([]byte(landsatItemJSON), &it))

	return &it
}

func TestItemDatetime(t *testing.T) {
	it := landsatItem(t)

	dt, err := it.Datetime()
	require.NoError(t, err)
	assert.Equal(t, "2024-05-12T22:10:13Z", dt.Format("2006-01-02T15:04:05Z"))

	it.Properties = map[string]any{}
	_, err = it.Datetime()
	assert.Error(t, err)
}

func TestItemAssetHref(t *testing.T) {
	it := landsatItem(t)

	href, err := it.AssetHref("green")
	require.NoError(t, err)
	assert.Equal(t, "https://landsatlook.usgs.gov/data/green.tif", href)

	_, err = it.AssetHref("red")
	assert.Error(t, err)
}

func TestUseAlternateS3Href(t *testing.T) {
	it := landsatItem(t)

	UseAlternateS3Href(it)

	href, err := it.AssetHref("green")
	require.NoError(t, err)
	assert.Equal(t, "s3://usgs-landsat/data/green.tif", href)

	// assets without an alternate are untouched
	href, err = it.AssetHref("thumbnail")
	require.NoError(t, err)
	assert.Equal(t, "https://landsatlook.usgs.gov/thumb.jpg", href)
}

func TestProjGeoBox(t *testing.T) {
	it := landsatItem(t)

	box, err := it.ProjGeoBox()
	require.NoError(t, err)

	assert.Equal(t, 32660, box.SRID)
	assert.Equal(t, 7891, box.Width)
	assert.Equal(t, 7971, box.Height)
	assert.Equal(t, 499785.0, box.Transform.XOrigin)
	assert.Equal(t, -1882485.0, box.Transform.YOrigin)
	assert.Equal(t, 30.0, box.Transform.XRes)
	assert.Equal(t, -30.0, box.Transform.YRes)
}

func TestProjGeoBoxMissingFields(t *testing.T) {
	it := landsatItem(t)
	delete(it.Properties, "proj:shape")

	_, err := it.ProjGeoBox()
	assert.ErrorContains(t, err, "proj:shape")
}
