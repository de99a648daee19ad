package stac

import (
	"context"
	"errors"

	"github.com/paulmach/orb"

	"github.com/pacific-earth/fcover/pkg/grid"
)

// SearchBox searches one lon/lat box given as west, south, east, north.
// West > east means the box crosses the antimeridian: catalogs reject
// bboxes in that form, so the request is split in two, each half searched
// on its own side, and the results deduplicated by item id.
func SearchBox(ctx context.Context, c *Client, west, south, east, north float64, p SearchParams) ([]*Item, error) {
	if west <= east {
		b := orb.Bound{
			Min: orb.Point{west, south},
			Max: orb.Point{east, north},
		}
		p.Bbox = &b

		return c.Search(ctx, p)
	}

	wp := p
	wb := orb.Bound{
		Min: orb.Point{west, south},
		Max: orb.Point{180, north},
	}
	wp.Bbox = &wb

	ep := p
	eb := orb.Bound{
		Min: orb.Point{-180, south},
		Max: orb.Point{east, north},
	}
	ep.Bbox = &eb

	var items []*Item
	seen := make(map[string]bool)
	misses := 0

	for _, half := range []SearchParams{wp, ep} {
		found, err := c.Search(ctx, half)
		if err != nil {
			if errors.Is(err, ErrEmptyCollection) {
				misses++
				continue
			}

			return nil, err
		}

		for _, it := range found {
			if seen[it.ID] {
				continue
			}

			seen[it.ID] = true
			items = append(items, it)
		}
	}

	if misses == 2 || len(items) == 0 {
		return nil, ErrEmptyCollection
	}

	return items, nil
}

// SearchCell searches one Landsat acquisition cell.
func SearchCell(ctx context.Context, c *Client, cell grid.LandsatCell, p SearchParams) ([]*Item, error) {
	return SearchBox(ctx, c, cell.West, cell.South, cell.East, cell.North, p)
}
