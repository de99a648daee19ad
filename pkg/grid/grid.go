package grid

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/pacific-earth/fcover/pkg/raster"
)

//go:embed pacific_tiles.csv
var pacificTileData []byte

// Grid geometry: 96 km tiles at 30 m resolution, anchored at the grid
// origin, columns increasing east and rows increasing south.
const (
	tileSizeM  = 96_000.0
	Resolution = 30.0
	TilePixels = 3200

	originX = -3_000_000.0
	originY = 4_000_000.0
)

// TileID identifies a summary tile as (column, row).
type TileID struct {
	Column int
	Row    int
}

func (t TileID) String() string {
	return fmt.Sprintf("%d,%d", t.Column, t.Row)
}

// Key is the zero-padded form used in object keys.
func (t TileID) Key() string {
	return fmt.Sprintf("%03d/%03d", t.Column, t.Row)
}

// ParseTileID reads "col,row".
func ParseTileID(s string) (TileID, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return TileID{}, fmt.Errorf("tile id %q is not col,row", s)
	}

	col, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return TileID{}, fmt.Errorf("tile id %q: %w", s, err)
	}

	row, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return TileID{}, fmt.Errorf("tile id %q: %w", s, err)
	}

	return TileID{Column: col, Row: row}, nil
}

// Tile is one summary grid cell with the country it intersects.
type Tile struct {
	ID      TileID
	Country string
}

func readTileTable() []Tile {
	// col,row,country
	c := csv.NewReader(bytes.NewReader(pacificTileData))

	records, err := c.ReadAll()

	if err != nil {
		panic(err)
	}

	t := make([]Tile, 0, len(records)-1)

	for _, record := range records[1:] {
		col, err := strconv.Atoi(record[0])
		if err != nil {
			panic(err)
		}

		row, err := strconv.Atoi(record[1])
		if err != nil {
			panic(err)
		}

		t = append(t, Tile{
			ID:      TileID{Column: col, Row: row},
			Country: record[2],
		})
	}

	return t
}

var tiles = readTileTable()

// Tiles returns the grid cells intersecting the given country codes, or the
// whole grid when codes is empty.
func Tiles(codes []string) []Tile {
	if len(codes) == 0 {
		out := make([]Tile, len(tiles))
		copy(out, tiles)
		return out
	}

	want := make(map[string]bool, len(codes))
	for _, c := range codes {
		want[strings.ToUpper(strings.TrimSpace(c))] = true
	}

	var out []Tile
	for _, t := range tiles {
		if want[t.Country] {
			out = append(out, t)
		}
	}

	return out
}

// TileGeobox returns the pixel grid of a summary tile.
func TileGeobox(id TileID) raster.GeoBox {
	return raster.GeoBox{
		SRID: SRID,
		Transform: raster.Affine{
			XOrigin: originX + float64(id.Column)*tileSizeM,
			YOrigin: originY - float64(id.Row)*tileSizeM,
			XRes:    Resolution,
			YRes:    -Resolution,
		},
		Width:  TilePixels,
		Height: TilePixels,
	}
}

// TileLonLatBox is the tile outline in EPSG:4326 as west, south, east,
// north. Tile edges follow meridians and parallels under the Mercator
// projection, so the outline is an exact lon/lat rectangle. West > east
// when the tile straddles the antimeridian.
func TileLonLatBox(id TileID) (west, south, east, north float64) {
	b := TileGeobox(id).Bound()

	west, south = Inverse(b.Min[0], b.Min[1])
	east, north = Inverse(b.Max[0], b.Max[1])

	return west, south, east, north
}

// TileFootprint is the tile outline in EPSG:4326 for STAC geometry. Tiles
// straddling the antimeridian are split into two rectangles at 180 so the
// geometry never spans the globe.
func TileFootprint(id TileID) orb.MultiPolygon {
	west, south, east, north := TileLonLatBox(id)

	if west <= east {
		return orb.MultiPolygon{lonLatRect(west, south, east, north)}
	}

	return orb.MultiPolygon{
		lonLatRect(west, south, 180, north),
		lonLatRect(-180, south, east, north),
	}
}

func lonLatRect(west, south, east, north float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{west, south},
		{east, south},
		{east, north},
		{west, north},
		{west, south},
	}}
}
