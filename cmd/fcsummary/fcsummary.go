// fcsummary reduces one tile-year of fractional cover and water
// observations to annual cloud-free percentile rasters, writes them as COGs
// with a STAC item, and records the outcome in the shared run log.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pacific-earth/fcover/pkg/cloudlog"
	"github.com/pacific-earth/fcover/pkg/cog"
	"github.com/pacific-earth/fcover/pkg/config"
	"github.com/pacific-earth/fcover/pkg/grid"
	"github.com/pacific-earth/fcover/pkg/lister"
	"github.com/pacific-earth/fcover/pkg/load"
	"github.com/pacific-earth/fcover/pkg/mask"
	"github.com/pacific-earth/fcover/pkg/namers"
	"github.com/pacific-earth/fcover/pkg/raster"
	"github.com/pacific-earth/fcover/pkg/stac"
	"github.com/pacific-earth/fcover/pkg/store"
	"github.com/pacific-earth/fcover/pkg/summary"
	"github.com/pacific-earth/fcover/pkg/task"
)

// mask parameters shared by every summary run
const (
	dilationRadius = 6
	ueThreshold    = uint8(30)
	maxSumLimit    = 120
)

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var (
		column          int
		row             int
		datetime        string
		version         string
		datasetID       string
		raiseEmptyValue string
		overwrite       bool
		workers         int
		chunk           int
	)

	cmd := &cobra.Command{
		Use:          "fcsummary",
		Short:        "build the annual fractional cover summary for one tile",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := cmd.Context()
			tile := grid.TileID{Column: column, Row: row}

			year, err := strconv.Atoi(datetime)
			if err != nil {
				return fmt.Errorf("--datetime %q is not a year", datetime)
			}

			raiseEmpty, err := lister.ParseBool(raiseEmptyValue)
			if err != nil {
				return fmt.Errorf("--raise-empty-collection-error: %w", err)
			}

			log = log.With(
				zap.String("run_id", uuid.NewString()),
				zap.String("tile", tile.String()),
				zap.String("datetime", datetime),
				zap.String("version", version))

			cfg := config.FromEnv()

			st, err := store.NewS3(ctx, cfg.Bucket)
			if err != nil {
				return err
			}

			path := namers.ItemPath{
				Bucket:    cfg.Bucket,
				Sensor:    config.Sensor,
				DatasetID: datasetID,
				Version:   version,
				Time:      datetime,
			}

			logger := cloudlog.New(st, path.LogPath())

			if !overwrite {
				exists, err := st.Exists(ctx, path.StacPath(tile))
				if err != nil {
					return err
				}
				if exists {
					log.Info("item already written")
					return logger.Info(ctx, tile.String(), cloudlog.StatusComplete,
						[]string{path.StacPath(tile)})
				}
			}

			client := stac.NewClient(config.PacificCatalog)

			searcher := task.SearchFunc(func(ctx context.Context) ([]*stac.Item, error) {
				west, south, east, north := grid.TileLonLatBox(tile)

				return stac.SearchBox(ctx, client, west, south, east, north, stac.SearchParams{
					Collections: []string{config.FCCollection, config.WoflCollection},
					Datetime:    datetime,
				})
			})

			s3f, err := load.NewS3Fetcher(ctx)
			if err != nil {
				return err
			}
			fetcher := &load.Auto{HTTP: load.NewHTTPFetcher(), S3: s3f}

			ue := ueThreshold
			sumLimit := maxSumLimit
			clip := [2]uint8{0, 100}

			period := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)

			tk := &task.Task[uint8]{
				ID:  tile,
				Box: grid.TileGeobox(tile),

				Searcher: searcher,
				Loader: &load.MultiCollection{
					FC: &load.Loader[uint8]{
						Bands:   []string{"bs", "pv", "npv", "ue"},
						Fetcher: fetcher,
						Nodata:  config.Nodata,
						Workers: workers,
						OnSceneError: func(id string, err error) {
							log.Warn("dropping scene", zap.String("item", id), zap.Error(err))
						},
					},
					Wofl: &load.Loader[uint8]{
						Bands:   []string{"water"},
						Fetcher: fetcher,
						Nodata:  config.Nodata,
						Workers: workers,
						OnSceneError: func(id string, err error) {
							log.Warn("dropping scene", zap.String("item", id), zap.Error(err))
						},
					},
					Fill: config.Nodata,
				},
				Processor: &summary.FCPercentiles{
					Classifier: mask.Classifier{
						CloudFilters: map[string]int{
							"cloud":        dilationRadius,
							"cloud_shadow": dilationRadius,
						},
						UeThreshold: &ue,
						MaxSumLimit: &sumLimit,
						ClipRange:   &clip,
						Nodata:      config.Nodata,
						Workers:     workers,
					},
					CountValid:  true,
					PeriodStart: period,
					Chunks:      raster.Chunks{X: chunk, Y: chunk},
					Workers:     workers,
				},
				Writer: &cog.Writer{
					Store:     st,
					Path:      path,
					Overwrite: overwrite,
					Workers:   workers,
				},
				Stac: &task.CreatorWriter{
					Creator: &stac.Creator{
						Path:           path,
						CollectionRoot: cfg.CollectionRoot,
						WithRaster:     true,
						WithEO:         true,
						ExtraProperties: map[string]any{
							"start_datetime": period.Format(time.RFC3339),
							"end_datetime":   period.AddDate(1, 0, 0).Add(-time.Second).Format(time.RFC3339),
						},
					},
					Store: st,
				},
				Datetime: period,
			}

			paths, err := tk.Run(ctx)

			switch {
			case err == nil:
				log.Info("summary complete", zap.Int("outputs", len(paths)))
				return logger.Info(ctx, tile.String(), cloudlog.StatusComplete, paths)

			case errors.Is(err, stac.ErrEmptyCollection):
				log.Warn("nothing to summarise", zap.Error(err))

				if logErr := logger.Error(ctx, tile.String(), cloudlog.StatusEmptyCollection, err); logErr != nil {
					return logErr
				}

				if raiseEmpty {
					return err
				}

				return nil

			default:
				log.Error("summary failed", zap.Error(err))

				if logErr := logger.Error(ctx, tile.String(), cloudlog.StatusError, err); logErr != nil {
					return logErr
				}

				return err
			}
		},
	}

	cmd.Flags().IntVar(&column, "column", 0, "tile column")
	cmd.Flags().IntVar(&row, "row", 0, "tile row")
	cmd.Flags().StringVar(&datetime, "datetime", "", "summary year, e.g. 2024")
	cmd.Flags().StringVar(&version, "version", config.Version, "dataset version to write")
	cmd.Flags().StringVar(&datasetID, "dataset-id", "fc_summary_annual", "output dataset id")
	cmd.Flags().StringVar(&raiseEmptyValue, "raise-empty-collection-error", "False", "exit nonzero when the search finds nothing, True or False")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "rewrite outputs that already exist")
	cmd.Flags().IntVar(&workers, "workers", 4, "parallelism for loading and reducing")
	cmd.Flags().IntVar(&chunk, "chunk-size", 1600, "reduction window size in pixels")
	_ = cmd.MarkFlagRequired("column")
	_ = cmd.MarkFlagRequired("row")
	_ = cmd.MarkFlagRequired("datetime")

	return cmd
}
