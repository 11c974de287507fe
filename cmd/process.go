package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/highcountry-realty/market-cli/internal/aggregate"
	"github.com/highcountry-realty/market-cli/internal/docconv"
	"github.com/highcountry-realty/market-cli/internal/model"
	"github.com/highcountry-realty/market-cli/internal/report"
	"github.com/highcountry-realty/market-cli/internal/resilience"
	"github.com/highcountry-realty/market-cli/internal/store"
	"github.com/highcountry-realty/market-cli/pkg/anthropic"
)

var (
	processLocation string
	processMonth    int
	processYear     int
	processDryRun   bool
)

// dlqRetryDelay spaces out retries of files that failed transiently.
const dlqRetryDelay = 15 * time.Minute

var processCmd = &cobra.Command{
	Use:   "process [files...]",
	Short: "Extract listings from market report files and store monthly stats",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		loc := model.ParseLocation(processLocation)
		if !loc.Valid() {
			return eris.Errorf("unknown location: %s", processLocation)
		}
		if !model.ValidPeriod(processMonth, processYear) {
			return eris.Errorf("invalid period: %d/%d", processMonth, processYear)
		}

		files := make([]report.SourceFile, 0, len(args))
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return eris.Wrapf(err, "read %s", path)
			}
			name := filepath.Base(path)
			if err := docconv.Validate(name, len(data)); err != nil {
				return err
			}
			files = append(files, report.SourceFile{Name: name, Data: data})
		}

		conv, err := docconv.New(docconv.Config{
			Provider:      cfg.DocConv.Provider,
			APIKey:        cfg.DocConv.MistralKey,
			Model:         cfg.DocConv.MistralModel,
			PdfToTextPath: cfg.DocConv.PdfToTextPath,
			RatePerSecond: cfg.DocConv.RatePerSecond,
		})
		if err != nil {
			return err
		}

		proc := report.NewProcessor(conv, anthropic.NewClient(cfg.Anthropic.Key), report.Config{
			Model:        cfg.Anthropic.Model,
			MaxTokens:    cfg.Report.MaxTokens,
			HighFidelity: cfg.Report.HighFidelity,
		})

		result, err := proc.ProcessFiles(ctx, files, loc, processMonth, processYear)
		if err != nil {
			return eris.Wrap(err, "process files")
		}

		fmt.Println(result.Summary)

		if processDryRun {
			zap.L().Info("dry run, skipping persistence",
				zap.Int("listings", len(result.Listings)),
				zap.Bool("sample_data", result.SampleData),
			)
			return nil
		}

		st, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer st.Close()

		upserted, err := persistProcessResult(ctx, st, result, loc, processMonth, processYear)
		if err != nil {
			return err
		}

		zap.L().Info("process complete",
			zap.String("location", string(loc)),
			zap.Int("month", processMonth),
			zap.Int("year", processYear),
			zap.Int("files_processed", result.FilesProcessed),
			zap.Int("files_skipped", result.FilesSkipped),
			zap.Int("listings_upserted", upserted.Succeeded),
			zap.Int("listings_failed", upserted.Failed),
			zap.Bool("sample_data", result.SampleData),
		)
		return nil
	},
}

// errSampleData marks a batch where nothing real could be extracted.
var errSampleData = eris.New("extraction produced only sample data; nothing persisted")

// persistProcessResult writes one batch outcome to the store: the listings,
// recomputed monthly aggregates, an import-run audit row, and DLQ entries
// for skipped files. A sample-data result is display output, not market
// data; persisting it would overwrite a real month's rows and stats, so it
// is refused before any write happens.
func persistProcessResult(ctx context.Context, st store.Store, result *model.ReportResult, loc model.Location, month, year int) (*model.ImportResult, error) {
	if result.SampleData {
		return nil, errSampleData
	}

	run, err := st.CreateImportRun(ctx, "process", loc, month, year)
	if err != nil {
		return nil, eris.Wrap(err, "create import run")
	}

	upserted, err := st.UpsertListings(ctx, result.Listings)
	if err != nil {
		_ = st.FinishImportRun(ctx, run.ID, store.ImportRunFailed, upserted)
		return nil, eris.Wrap(err, "upsert listings")
	}
	upserted.Skipped = result.FilesSkipped

	priceStats, domStats := aggregate.Compute(result.Listings, loc, month, year)
	if err := st.UpsertPriceStats(ctx, priceStats); err != nil {
		return nil, eris.Wrap(err, "upsert price stats")
	}
	if err := st.UpsertDomStats(ctx, domStats); err != nil {
		return nil, eris.Wrap(err, "upsert dom stats")
	}

	// Queue skipped files so `market-cli dlq list` shows what needs a
	// re-run without re-uploading the batch.
	now := time.Now().UTC()
	for _, f := range result.Failures {
		entry := resilience.DLQEntry{
			FileName:     f.Name,
			Location:     string(loc),
			Month:        month,
			Year:         year,
			Error:        f.Err,
			ErrorType:    "permanent",
			FailedPhase:  "extract",
			MaxRetries:   3,
			NextRetryAt:  now.Add(dlqRetryDelay),
			CreatedAt:    now,
			LastFailedAt: now,
		}
		if f.Transient {
			entry.ErrorType = "transient"
		}
		if err := st.EnqueueDLQ(ctx, entry); err != nil {
			zap.L().Warn("enqueue dlq failed", zap.String("file", f.Name), zap.Error(err))
		}
	}

	if err := st.FinishImportRun(ctx, run.ID, store.ImportRunComplete, upserted); err != nil {
		return nil, eris.Wrap(err, "finish import run")
	}

	return upserted, nil
}

func init() {
	processCmd.Flags().StringVar(&processLocation, "location", "", "community name (anza, aguanga, idyllwild, mountain_center)")
	processCmd.Flags().IntVar(&processMonth, "month", 0, "report month (1-12)")
	processCmd.Flags().IntVar(&processYear, "year", 0, "report year")
	processCmd.Flags().BoolVar(&processDryRun, "dry-run", false, "extract without writing to the store")
	_ = processCmd.MarkFlagRequired("location")
	_ = processCmd.MarkFlagRequired("month")
	_ = processCmd.MarkFlagRequired("year")
	rootCmd.AddCommand(processCmd)
}
