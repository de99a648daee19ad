// fclist prints the pending summary tasks for a run as JSON, for the
// workflow runner to fan out over fcsummary invocations. Tiles whose latest
// log row is "complete" are skipped; errored tiles are retried only when
// asked.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pacific-earth/fcover/pkg/cloudlog"
	"github.com/pacific-earth/fcover/pkg/config"
	"github.com/pacific-earth/fcover/pkg/grid"
	"github.com/pacific-earth/fcover/pkg/lister"
	"github.com/pacific-earth/fcover/pkg/namers"
	"github.com/pacific-earth/fcover/pkg/store"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var (
		years       string
		regions     []string
		version     string
		datasetID   string
		retryErrors string
		limit       int
		overwrite   bool
	)

	cmd := &cobra.Command{
		Use:           "fclist",
		Short:         "list pending annual summary tasks",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := cmd.Context()

			retry, err := lister.ParseBool(retryErrors)
			if err != nil {
				return fmt.Errorf("--retry-errors: %w", err)
			}

			yearList, err := lister.ParseYears(years)
			if err != nil {
				return err
			}

			tiles := grid.Tiles(regions)
			if len(tiles) == 0 {
				return fmt.Errorf("no grid tiles match regions %s", strings.Join(regions, ","))
			}

			cfg := config.FromEnv()

			st, err := store.NewS3(ctx, cfg.Bucket)
			if err != nil {
				return err
			}

			tasks := []lister.Task{}

			for _, year := range yearList {
				path := namers.ItemPath{
					Bucket:    cfg.Bucket,
					Sensor:    config.Sensor,
					DatasetID: datasetID,
					Version:   version,
					Time:      year,
				}

				rows, err := cloudlog.New(st, path.LogPath()).Rows(ctx)
				if err != nil {
					return err
				}

				pending := lister.Pending(tiles, year, version, rows, lister.Options{
					RetryErrors: retry,
					Overwrite:   overwrite,
				})

				log.Info("listed year",
					zap.String("year", year),
					zap.Int("tiles", len(tiles)),
					zap.Int("logged", len(rows)),
					zap.Int("pending", len(pending)))

				tasks = append(tasks, pending...)
			}

			if limit > 0 && len(tasks) > limit {
				tasks = tasks[:limit]
			}

			return json.NewEncoder(os.Stdout).Encode(tasks)
		},
	}

	cmd.Flags().StringVar(&years, "years", "", "year or inclusive range, e.g. 2024 or 2019-2024")
	cmd.Flags().StringSliceVar(&regions, "regions", nil, "country codes to restrict the grid to, e.g. FJI,TON")
	cmd.Flags().StringVar(&version, "version", config.Version, "dataset version to list for")
	cmd.Flags().StringVar(&datasetID, "dataset-id", "fc_summary_annual", "dataset the log belongs to")
	cmd.Flags().StringVar(&retryErrors, "retry-errors", "False", "re-include tiles whose last run errored")
	cmd.Flags().IntVar(&limit, "limit", 0, "cap the number of tasks printed, 0 for all")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "ignore the log and list every tile")
	_ = cmd.MarkFlagRequired("years")

	return cmd
}
