// Package namers derives the deterministic, versioned object-key layout for
// every artifact a run produces: band COGs, the STAC item document and the
// run log.
package namers

import (
	"fmt"
	"strings"
	"time"

	"github.com/pacific-earth/fcover/pkg/grid"
)

// ItemPath names outputs for one dataset version and time label. The time
// label is a year ("2024") for summaries or a date range for rolling runs.
type ItemPath struct {
	Bucket    string
	Sensor    string
	DatasetID string
	Version   string
	Time      string
	Prefix    string
}

func (p ItemPath) prefix() string {
	prefix := p.Prefix
	if prefix == "" {
		prefix = "dep"
	}

	return fmt.Sprintf("%s_%s_%s", prefix, p.Sensor, p.DatasetID)
}

// folder versions use dashes, matching the catalog convention
func (p ItemPath) version() string {
	return strings.ReplaceAll(p.Version, ".", "-")
}

func (p ItemPath) dir(t grid.TileID) string {
	return fmt.Sprintf("%s/%s/%s/%s", p.prefix(), p.version(), t.Key(), p.Time)
}

func (p ItemPath) basename(t grid.TileID) string {
	return fmt.Sprintf("%s_%03d_%03d_%s", p.prefix(), t.Column, t.Row, p.Time)
}

// Path is the key of one band COG.
func (p ItemPath) Path(t grid.TileID, band string) string {
	return fmt.Sprintf("%s/%s_%s.tif", p.dir(t), p.basename(t), band)
}

// StacPath is the key of the item's STAC JSON document.
func (p ItemPath) StacPath(t grid.TileID) string {
	return fmt.Sprintf("%s/%s.stac-item.json", p.dir(t), p.basename(t))
}

// LogPath is the key of the run log shared by every tile of this
// dataset/version/time.
func (p ItemPath) LogPath() string {
	return fmt.Sprintf("%s/%s/%s/log.csv", p.prefix(), p.version(), p.Time)
}

// ErrorLogPath is the sibling key scene-level failures are dumped to.
func (p ItemPath) ErrorLogPath(t grid.TileID) string {
	return fmt.Sprintf("%s/%s.error.txt", p.dir(t), p.basename(t))
}

// Daily returns an ItemPath keyed to a single scene datetime rather than a
// period label.
func Daily(p ItemPath, t time.Time) ItemPath {
	p.Time = t.UTC().Format("2006-01-02")
	return p
}
