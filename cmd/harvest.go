package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Shamim-Fav/lvmh/internal/export"
	"github.com/Shamim-Fav/lvmh/internal/harvest"
	"github.com/Shamim-Fav/lvmh/internal/normalize"
)

func newHarvestCmd() *cobra.Command {
	var (
		keyword string
		regions []string
		outDir  string
	)

	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Run one harvest and write the exports to disk",
		Long: `Fetches every matching job listing page by page, then writes the raw
CSV, the normalized CSV, and a ZIP archive bundling both into the output
directory.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query, err := buildQuery(keyword, regions)
			if err != nil {
				return err
			}

			a, err := buildApp(cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			id := uuid.New()
			table, harvestErr := a.harvester.Harvest(cmd.Context(), id, query)
			if harvestErr != nil {
				if len(table) == 0 {
					return fmt.Errorf("harvest: %w", harvestErr)
				}
				a.logger.Warn("harvest incomplete, exporting partial table",
					zap.Int("records", len(table)),
					zap.Error(harvestErr),
				)
			}

			normalized := a.normalizer.Normalize(table)
			if err := writeExports(outDir, table, normalized); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "harvest %s: %d records written to %s\n",
				id, len(table), outDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&keyword, "keyword", "", "free-text search keyword")
	cmd.Flags().StringSliceVar(&regions, "region", nil,
		`region filter, repeatable (America, Asia Pacific, Europe, Middle East / Africa); empty means all`)
	cmd.Flags().StringVar(&outDir, "out", ".", "output directory")
	return cmd
}

func buildQuery(keyword string, regions []string) (harvest.Query, error) {
	q := harvest.Query{Keyword: keyword}
	for _, raw := range regions {
		region, ok := harvest.ParseRegion(raw)
		if !ok {
			return harvest.Query{}, fmt.Errorf("unknown region %q", raw)
		}
		q.Regions = append(q.Regions, region)
	}
	return q, nil
}

func writeExports(dir string, raw harvest.RawTable, normalized normalize.Table) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if err := writeFile(filepath.Join(dir, export.RawCSVName), func(f *os.File) error {
		return export.WriteRawCSV(f, raw)
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, export.NormalizedCSVName), func(f *os.File) error {
		return export.WriteNormalizedCSV(f, normalized)
	}); err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, "lvmh_jobs.zip"), func(f *os.File) error {
		return export.WriteArchive(f, raw, normalized)
	})
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
