// fcscene unmixes Landsat Collection-2 surface reflectance scenes into
// fractional cover rasters, one output item per acquisition. It can list
// the Pacific acquisition cells for fan-out, process the recent scenes of
// one cell, or backfill a whole year.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pacific-earth/fcover/pkg/cloudlog"
	"github.com/pacific-earth/fcover/pkg/cog"
	"github.com/pacific-earth/fcover/pkg/config"
	"github.com/pacific-earth/fcover/pkg/fcover"
	"github.com/pacific-earth/fcover/pkg/grid"
	"github.com/pacific-earth/fcover/pkg/load"
	"github.com/pacific-earth/fcover/pkg/namers"
	"github.com/pacific-earth/fcover/pkg/stac"
	"github.com/pacific-earth/fcover/pkg/store"
	"github.com/pacific-earth/fcover/pkg/task"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "fcscene",
		Short:        "process landsat scenes into fractional cover",
		SilenceUsage: true,
	}

	root.AddCommand(newListCommand(), newProcessTileCommand(), newProcessYearCommand())

	return root
}

// newListCommand prints every Pacific acquisition cell as JSON, in the shape
// the workflow runner fans out over.
func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list the pacific landsat path/row cells",
		RunE: func(cmd *cobra.Command, args []string) error {
			type cell struct {
				Path int `json:"path"`
				Row  int `json:"row"`
			}

			cells := []cell{}
			for _, c := range grid.LandsatCells() {
				cells = append(cells, cell{Path: c.Path, Row: c.Row})
			}

			return json.NewEncoder(os.Stdout).Encode(cells)
		},
	}
}

func newProcessTileCommand() *cobra.Command {
	var (
		path, row int
		days      int
		version   string
		overwrite bool
		workers   int
	)

	cmd := &cobra.Command{
		Use:   "process-tile",
		Short: "process the recent scenes of one path/row",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC()
			datetime := fmt.Sprintf("%s/%s",
				now.AddDate(0, 0, -days).Format("2006-01-02"),
				now.Format("2006-01-02"))

			return runScenes(cmd.Context(), sceneRun{
				Path:      path,
				Row:       row,
				Datetime:  datetime,
				LogTime:   now.Format("2006-01-02"),
				Version:   version,
				Overwrite: overwrite,
				Workers:   workers,
			})
		},
	}

	cmd.Flags().IntVar(&path, "path", 0, "wrs path")
	cmd.Flags().IntVar(&row, "row", 0, "wrs row")
	cmd.Flags().IntVar(&days, "number-of-days", 7, "how far back to search")
	cmd.Flags().StringVar(&version, "version", config.Version, "dataset version to write")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "rewrite scenes that already exist")
	cmd.Flags().IntVar(&workers, "workers", 4, "parallelism for fetching and unmixing")
	_ = cmd.MarkFlagRequired("path")
	_ = cmd.MarkFlagRequired("row")

	return cmd
}

func newProcessYearCommand() *cobra.Command {
	var (
		path, row int
		year      string
		version   string
		overwrite bool
		workers   int
	)

	cmd := &cobra.Command{
		Use:   "process-year",
		Short: "backfill every scene of one path/row for a year",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenes(cmd.Context(), sceneRun{
				Path:      path,
				Row:       row,
				Datetime:  year,
				LogTime:   year,
				Version:   version,
				Overwrite: overwrite,
				Workers:   workers,
			})
		},
	}

	cmd.Flags().IntVar(&path, "path", 0, "wrs path")
	cmd.Flags().IntVar(&row, "row", 0, "wrs row")
	cmd.Flags().StringVar(&year, "year", "", "year to backfill, e.g. 2024")
	cmd.Flags().StringVar(&version, "version", config.Version, "dataset version to write")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "rewrite scenes that already exist")
	cmd.Flags().IntVar(&workers, "workers", 4, "parallelism for fetching and unmixing")
	_ = cmd.MarkFlagRequired("path")
	_ = cmd.MarkFlagRequired("row")
	_ = cmd.MarkFlagRequired("year")

	return cmd
}

type sceneRun struct {
	Path, Row int
	Datetime  string
	LogTime   string
	Version   string
	Overwrite bool
	Workers   int
}

func runScenes(ctx context.Context, run sceneRun) error {
	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer log.Sync()

	log = log.With(
		zap.String("run_id", uuid.NewString()),
		zap.Int("path", run.Path),
		zap.Int("row", run.Row),
		zap.String("datetime", run.Datetime))

	cell, err := grid.FindLandsatCell(run.Path, run.Row)
	if err != nil {
		return err
	}

	cfg := config.FromEnv()

	st, err := store.NewS3(ctx, cfg.Bucket)
	if err != nil {
		return err
	}

	base := namers.ItemPath{
		Bucket:    cfg.Bucket,
		Sensor:    config.Sensor,
		DatasetID: config.DatasetID,
		Version:   run.Version,
		Time:      run.LogTime,
	}

	logger := cloudlog.New(st, base.LogPath())
	index := fmt.Sprintf("%d,%d", run.Path, run.Row)

	client := stac.NewClient(config.USGSCatalog, stac.WithModifier(stac.UseAlternateS3Href))

	items, err := stac.SearchCell(ctx, client, cell, stac.SearchParams{
		Collections: []string{config.LandsatCollection},
		Datetime:    run.Datetime,
		Query: map[string]map[string]any{
			"landsat:wrs_path": {"eq": fmt.Sprintf("%03d", run.Path)},
			"landsat:wrs_row":  {"eq": fmt.Sprintf("%03d", run.Row)},
			"platform":         {"in": []string{"LANDSAT_8", "LANDSAT_9"}},
		},
	})
	if err != nil {
		if errors.Is(err, stac.ErrEmptyCollection) {
			log.Warn("no scenes found")
			return logger.Error(ctx, index, cloudlog.StatusEmptyCollection, err)
		}

		return err
	}

	log.Info("found scenes", zap.Int("count", len(items)))

	s3f, err := load.NewS3Fetcher(ctx)
	if err != nil {
		return err
	}
	fetcher := &load.Auto{HTTP: load.NewHTTPFetcher(), S3: s3f}

	id := grid.TileID{Column: run.Path, Row: run.Row}

	bar := progressbar.Default(int64(len(items)), "scenes")
	failed := 0

	var written []string

	for _, it := range items {
		paths, err := processScene(ctx, it, cell, base, st, fetcher, cfg, run)
		if err != nil {
			failed++

			log.Error("scene failed", zap.String("item", it.ID), zap.Error(err))
			dumpSceneError(ctx, st, base, id, it, err)

			_ = bar.Add(1)
			continue
		}

		written = append(written, paths...)
		_ = bar.Add(1)
	}

	if failed == len(items) {
		err := fmt.Errorf("all %d scenes failed", failed)
		if logErr := logger.Error(ctx, index, cloudlog.StatusError, err); logErr != nil {
			return logErr
		}

		return err
	}

	log.Info("run complete",
		zap.Int("processed", len(items)-failed),
		zap.Int("failed", failed))

	return logger.Info(ctx, index, cloudlog.StatusComplete, written)
}

func processScene(ctx context.Context, it *stac.Item, cell grid.LandsatCell, base namers.ItemPath, st *store.S3, fetcher load.Fetcher, cfg config.Config, run sceneRun) ([]string, error) {
	t, err := it.Datetime()
	if err != nil {
		return nil, err
	}

	id := grid.TileID{Column: cell.Path, Row: cell.Row}

	path := namers.Daily(base, t)

	if !run.Overwrite {
		exists, err := st.Exists(ctx, path.StacPath(id))
		if err != nil {
			return nil, err
		}
		if exists {
			return []string{path.StacPath(id)}, nil
		}
	}

	box, err := it.ProjGeoBox()
	if err != nil {
		return nil, err
	}

	tk := &task.Task[uint16]{
		ID:  id,
		Box: box,

		Items: []*stac.Item{it},
		Loader: &load.Loader[uint16]{
			Bands:       []string{"green", "red", "nir08", "swir16", "swir22"},
			Fetcher:     fetcher,
			Nodata:      0,
			FailOnError: true,
			Workers:     run.Workers,
		},
		Processor: &fcover.Processor{
			C2Scaling: true,
			Nodata:    config.Nodata,
			Workers:   run.Workers,
		},
		Writer: &cog.Writer{
			Store:     st,
			Path:      path,
			Overwrite: run.Overwrite,
			Workers:   run.Workers,
		},
		Stac: &task.CreatorWriter{
			Creator: &stac.Creator{
				Path:           path,
				CollectionRoot: cfg.CollectionRoot,
				WithRaster:     true,
				Footprint:      sceneFootprint(it, cell),
				ExtraProperties: map[string]any{
					"landsat:scene_id": it.ID,
				},
			},
			Store: st,
		},
		Datetime: t,
	}

	return tk.Run(ctx)
}

// sceneFootprint takes the source item's outline; scene outputs are not on
// the summary grid, so the tile-derived default does not apply.
func sceneFootprint(it *stac.Item, cell grid.LandsatCell) orb.MultiPolygon {
	if it.Geometry != nil {
		switch g := it.Geometry.Geometry().(type) {
		case orb.Polygon:
			return orb.MultiPolygon{g}
		case orb.MultiPolygon:
			if len(g) > 0 {
				return g
			}
		}
	}

	rect := func(west, east float64) orb.Polygon {
		return orb.Polygon{orb.Ring{
			{west, cell.South},
			{east, cell.South},
			{east, cell.North},
			{west, cell.North},
			{west, cell.South},
		}}
	}

	if cell.CrossesAntimeridian() {
		return orb.MultiPolygon{rect(cell.West, 180), rect(-180, cell.East)}
	}

	return orb.MultiPolygon{rect(cell.West, cell.East)}
}

// dumpSceneError leaves the failure next to where the outputs would have
// gone, so a stuck scene can be diagnosed without the run logs.
func dumpSceneError(ctx context.Context, st *store.S3, base namers.ItemPath, id grid.TileID, it *stac.Item, cause error) {
	t, err := it.Datetime()
	if err != nil {
		return
	}

	body := fmt.Sprintf("%s\n%s\n%s\n", time.Now().UTC().Format(time.RFC3339), it.ID, cause)
	_ = st.Put(ctx, namers.Daily(base, t).ErrorLogPath(id), []byte(body), "text/plain")
}
