// Package lister diffs the target grid against the run log to produce the
// set of still-pending tasks.
package lister

import (
	"github.com/pacific-earth/fcover/pkg/cloudlog"
	"github.com/pacific-earth/fcover/pkg/grid"
)

// Task is one pending work item, in the shape the workflow runner consumes.
type Task struct {
	TileID  string `json:"tile-id"`
	Year    string `json:"year"`
	Version string `json:"version"`
}

type Options struct {
	// RetryErrors re-includes tiles whose latest log row is an error.
	RetryErrors bool

	// Overwrite ignores the log entirely.
	Overwrite bool
}

// Pending returns the tiles with no completed log row, in grid order. The
// latest row per tile wins, so an error followed by a completion counts as
// complete.
func Pending(tiles []grid.Tile, year, version string, rows []cloudlog.Row, opts Options) []Task {
	latest := make(map[string]string, len(rows))
	for _, r := range rows {
		latest[r.Index] = r.Status
	}

	var out []Task

	for _, t := range tiles {
		status, logged := latest[t.ID.String()]

		skip := false
		if !opts.Overwrite && logged {
			switch {
			case status == cloudlog.StatusComplete:
				skip = true
			case !opts.RetryErrors:
				skip = true
			}
		}

		if skip {
			continue
		}

		out = append(out, Task{
			TileID:  t.ID.String(),
			Year:    year,
			Version: version,
		})
	}

	return out
}
