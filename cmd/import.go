package main

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/highcountry-realty/market-cli/internal/aggregate"
	"github.com/highcountry-realty/market-cli/internal/ingest"
	"github.com/highcountry-realty/market-cli/internal/model"
	"github.com/highcountry-realty/market-cli/internal/store"
)

var (
	importPath     string
	importLocation string
	importMonth    int
	importYear     int
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import listings from an MLS CSV or XLSX export",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		loc := model.ParseLocation(importLocation)
		if !loc.Valid() {
			return eris.Errorf("unknown location: %s", importLocation)
		}
		if !model.ValidPeriod(importMonth, importYear) {
			return eris.Errorf("invalid period: %d/%d", importMonth, importYear)
		}

		var listings []model.Listing
		var err error
		switch strings.ToLower(filepath.Ext(importPath)) {
		case ".csv":
			listings, err = ingest.FromCSV(ctx, importPath, loc, importMonth, importYear)
		case ".xlsx":
			listings, err = ingest.FromXLSX(ctx, importPath, loc, importMonth, importYear)
		default:
			return eris.Errorf("unsupported import format: %s", importPath)
		}
		if err != nil {
			return eris.Wrap(err, "parse import file")
		}
		if len(listings) == 0 {
			return eris.Errorf("no usable listings in %s", importPath)
		}

		st, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer st.Close()

		run, err := st.CreateImportRun(ctx, importPath, loc, importMonth, importYear)
		if err != nil {
			return eris.Wrap(err, "create import run")
		}

		n, err := st.BulkImportListings(ctx, listings)
		if err != nil {
			_ = st.FinishImportRun(ctx, run.ID, store.ImportRunFailed, &model.ImportResult{
				Failed: len(listings),
				Errors: []string{err.Error()},
			})
			return eris.Wrap(err, "bulk import")
		}

		priceStats, domStats := aggregate.Compute(listings, loc, importMonth, importYear)
		if err := st.UpsertPriceStats(ctx, priceStats); err != nil {
			return eris.Wrap(err, "upsert price stats")
		}
		if err := st.UpsertDomStats(ctx, domStats); err != nil {
			return eris.Wrap(err, "upsert dom stats")
		}

		if err := st.FinishImportRun(ctx, run.ID, store.ImportRunComplete, &model.ImportResult{
			Succeeded: int(n),
		}); err != nil {
			return eris.Wrap(err, "finish import run")
		}

		zap.L().Info("import complete",
			zap.String("file", importPath),
			zap.String("location", string(loc)),
			zap.Int64("rows_upserted", n),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importPath, "file", "", "path to CSV or XLSX export (required)")
	importCmd.Flags().StringVar(&importLocation, "location", "", "community name (anza, aguanga, idyllwild, mountain_center)")
	importCmd.Flags().IntVar(&importMonth, "month", 0, "report month (1-12)")
	importCmd.Flags().IntVar(&importYear, "year", 0, "report year")
	_ = importCmd.MarkFlagRequired("file")
	_ = importCmd.MarkFlagRequired("location")
	_ = importCmd.MarkFlagRequired("month")
	_ = importCmd.MarkFlagRequired("year")
	rootCmd.AddCommand(importCmd)
}
