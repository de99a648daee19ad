package stac

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacific-earth/fcover/pkg/config"
	"github.com/pacific-earth/fcover/pkg/grid"
)

func itemJSON(id string, lon float64) map[string]any {
	return map[string]any{
		"type":       "Feature",
		"id":         id,
		"collection": config.LandsatCollection,
		"geometry": map[string]any{
			"type":        "Point",
			"coordinates": []float64{lon, -18},
		},
		"properties": map[string]any{
			"datetime": "2024-05-12T22:10:00Z",
		},
		"assets": map[string]any{},
	}
}

func TestSearchFollowsNextLinks(t *testing.T) {
	var bodies []map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/search", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)

		page := len(bodies)

		resp := map[string]any{
			"type":     "FeatureCollection",
			"features": []any{itemJSON(fmt.Sprintf("scene-%d", page), 178)},
		}

		if page == 1 {
			resp["links"] = []any{map[string]any{
				"rel":  "next",
				"href": "http://" + r.Host + "/search",
				"body": map[string]any{"page": 2},
			}}
		}

		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	items, err := c.Search(context.Background(), SearchParams{
		Collections: []string{config.LandsatCollection},
		Datetime:    "2024",
	})
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "scene-1", items[0].ID)
	assert.Equal(t, "scene-2", items[1].ID)

	require.Len(t, bodies, 2)
	assert.Equal(t, "2024", bodies[0]["datetime"])
	assert.EqualValues(t, 100, bodies[0]["limit"])
	assert.EqualValues(t, 2, bodies[1]["page"], "next links carry their own body")
}

func TestSearchEmptyCollection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"type":"FeatureCollection","features":[]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	_, err := c.Search(context.Background(), SearchParams{Collections: []string{"dep_ls_fc"}})
	assert.ErrorIs(t, err, ErrEmptyCollection)
}

func TestSearchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	_, err := c.Search(context.Background(), SearchParams{Collections: []string{"dep_ls_fc"}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyCollection, "a broken catalog is not an empty one")
}

func TestSearchAppliesModifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"type": "FeatureCollection",
			"features": []any{map[string]any{
				"type":       "Feature",
				"id":         "scene-1",
				"properties": map[string]any{"datetime": "2024-05-12T22:10:00Z"},
				"assets": map[string]any{
					"green": map[string]any{
						"href": "https://landsatlook.usgs.gov/green.tif",
						"alternate": map[string]any{
							"s3": map[string]any{"href": "s3://usgs-landsat/green.tif"},
						},
					},
				},
			}},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithModifier(UseAlternateS3Href))

	items, err := c.Search(context.Background(), SearchParams{Collections: []string{config.LandsatCollection}})
	require.NoError(t, err)

	href, err := items[0].AssetHref("green")
	require.NoError(t, err)
	assert.Equal(t, "s3://usgs-landsat/green.tif", href)
}

func TestSearchCellSplitsAtAntimeridian(t *testing.T) {
	var boxes [][]float64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Bbox []float64 `json:"bbox"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		boxes = append(boxes, body.Bbox)

		// the same scene comes back from both halves
		resp := map[string]any{
			"type":     "FeatureCollection",
			"features": []any{itemJSON("scene-both-sides", 179.9)},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	cell := grid.LandsatCell{Path: 74, Row: 72, West: 179.2, South: -19.1, East: -178.9, North: -17.0}
	require.True(t, cell.CrossesAntimeridian())

	items, err := SearchCell(context.Background(), c, cell, SearchParams{
		Collections: []string{config.LandsatCollection},
	})
	require.NoError(t, err)

	require.Len(t, items, 1, "duplicates across the split are dropped")
	assert.Equal(t, "scene-both-sides", items[0].ID)

	require.Len(t, boxes, 2)
	assert.Equal(t, []float64{179.2, -19.1, 180, -17}, boxes[0])
	assert.Equal(t, []float64{-180, -19.1, -178.9, -17}, boxes[1])
}

func TestSearchCellBothHalvesEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"type":"FeatureCollection","features":[]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	cell := grid.LandsatCell{Path: 74, Row: 72, West: 179.2, South: -19.1, East: -178.9, North: -17.0}

	_, err := SearchCell(context.Background(), c, cell, SearchParams{Collections: []string{"x"}})
	assert.ErrorIs(t, err, ErrEmptyCollection)
}

func TestSearchCellPlainBbox(t *testing.T) {
	var boxes [][]float64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Bbox []float64 `json:"bbox"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		boxes = append(boxes, body.Bbox)

		resp := map[string]any{
			"type":     "FeatureCollection",
			"features": []any{itemJSON("scene-1", 178)},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	cell := grid.LandsatCell{Path: 75, Row: 71, West: 177.0, South: -19.0, East: 179.5, North: -17.0}

	items, err := SearchCell(context.Background(), c, cell, SearchParams{Collections: []string{"x"}})
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.Len(t, boxes, 1, "no split needed east of the dateline")
	assert.Equal(t, []float64{177, -19, 179.5, -17}, boxes[0])
}

func TestSearchBoxSplitsDatelineTile(t *testing.T) {
	var boxes [][]float64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Bbox []float64 `json:"bbox"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		boxes = append(boxes, body.Bbox)

		resp := map[string]any{
			"type":     "FeatureCollection",
			"features": []any{itemJSON("samoa-scene", 179.99)},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	// the samoa tile straddles 180; neither request may span the globe
	west, south, east, north := grid.TileLonLatBox(grid.TileID{Column: 66, Row: 48})
	require.Greater(t, west, east)

	items, err := SearchBox(context.Background(), c, west, south, east, north, SearchParams{
		Collections: []string{config.FCCollection},
	})
	require.NoError(t, err)

	require.Len(t, items, 1)

	require.Len(t, boxes, 2)
	for _, b := range boxes {
		require.Len(t, b, 4)
		assert.Less(t, b[2]-b[0], 1.0, "each half stays narrow")
	}
	assert.Equal(t, 180.0, boxes[0][2])
	assert.Equal(t, -180.0, boxes[1][0])
}
