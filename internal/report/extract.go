package report

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/highcountry-realty/market-cli/internal/docconv"
	"github.com/highcountry-realty/market-cli/internal/model"
	"github.com/highcountry-realty/market-cli/internal/normalize"
	"github.com/highcountry-realty/market-cli/internal/resilience"
	"github.com/highcountry-realty/market-cli/pkg/anthropic"
)

// minContentLen is the minimum converted-markdown length worth extracting
// from; shorter output means the OCR pass failed on that file.
const minContentLen = 100

// externalCallTimeout bounds each external round-trip (conversion or
// extraction). A timeout is a skip-this-file failure, not a batch abort.
const externalCallTimeout = 60 * time.Second

const extractionSystemText = "You are a real estate data analyst extracting structured market data from MLS report text. Return only valid JSON matching the requested schema. Use null for fields not present in the report."

// extractionPrompt demands exhaustive listing extraction; without the
// explicit instruction the model samples a handful of rows from long
// tables.
const extractionPrompt = `Extract ALL property listing data from this MLS market report. Extract EVERY listing that appears, not a sample.

Return a JSON object with exactly this shape:
{
  "statusCounts": {"active": 0, "pending": 0, "closed": 0, "other": 0},
  "totalListings": 0,
  "medianPrice": 0,
  "averageDaysOnMarket": 0,
  "unitSales": 0,
  "inventory": 0,
  "listings": [
    {"mls": "", "status": "", "price": 0, "address": "", "beds": 0, "baths": 0, "sqft": 0, "yearBuilt": 0, "daysOnMarket": 0}
  ],
  "priceRanges": [{"label": "", "count": 0}],
  "marketTimeRanges": [{"label": "", "count": 0}]
}

Report text:
%s`

// SourceFile is one uploaded report document.
type SourceFile struct {
	Name string
	Data []byte
}

// Config tunes the extraction pipeline.
type Config struct {
	Model        string `yaml:"model" mapstructure:"model"`
	MaxTokens    int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	HighFidelity bool   `yaml:"high_fidelity" mapstructure:"high_fidelity"`
}

// Processor drives the hybrid conversion-plus-extraction pipeline over a
// batch of report files. Per-service circuit breakers guard the conversion
// and extraction calls so a hard provider outage degrades a long batch to
// the page parser instead of burning a timeout per file.
type Processor struct {
	conv     docconv.Converter
	ai       anthropic.Client
	cfg      Config
	breakers *resilience.ServiceBreakers
}

// NewProcessor creates a Processor.
func NewProcessor(conv docconv.Converter, ai anthropic.Client, cfg Config) *Processor {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	return &Processor{
		conv:     conv,
		ai:       ai,
		cfg:      cfg,
		breakers: resilience.NewServiceBreakers(resilience.DefaultCircuitBreakerConfig()),
	}
}

// ProcessFiles runs the pipeline over files for one (location, month, year)
// and returns the merged, normalized result. Files are processed
// sequentially to bound external-API concurrency; a failure on one file is
// logged and skipped, never aborting the batch. The result always carries
// well-formed data: when nothing could be extracted from any file, the
// fixed sample dataset is returned with the SampleData marker set.
func (p *Processor) ProcessFiles(ctx context.Context, files []SourceFile, loc model.Location, month, year int) (*model.ReportResult, error) {
	if !loc.Valid() {
		return nil, eris.Errorf("report: invalid location %q", loc)
	}
	if !model.ValidPeriod(month, year) {
		return nil, eris.Errorf("report: invalid period %d/%d", month, year)
	}

	log := zap.L().With(
		zap.String("location", string(loc)),
		zap.Int("month", month),
		zap.Int("year", year),
	)

	var acc model.RawExtraction
	var usage anthropic.TokenUsage
	result := &model.ReportResult{}

	for _, f := range files {
		extraction, callUsage, err := p.processFile(ctx, f, loc)
		usage.Add(callUsage)
		if err != nil {
			result.FilesSkipped++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", f.Name, err))
			result.Failures = append(result.Failures, model.FileFailure{
				Name:      f.Name,
				Err:       err.Error(),
				Transient: resilience.IsTransient(err),
			})
			log.Warn("report: file skipped", zap.String("file", f.Name), zap.Error(err))
			continue
		}
		acc = mergeExtraction(acc, extraction)
		result.FilesProcessed++
		log.Info("report: file processed",
			zap.String("file", f.Name),
			zap.Int("listings", len(extraction.Listings)),
		)
	}

	if len(acc.Listings) == 0 && acc.StatusCounts.Total() == 0 {
		sample := sampleData(loc)
		acc = pageToExtraction(sample)
		result.SampleData = true
	}

	result.Listings = normalize.BuildListings(acc.Listings, loc, month, year)
	result.StatusCounts = acc.StatusCounts
	result.PriceRanges = acc.PriceRanges
	result.MarketTimeRanges = acc.MarketTimeRanges
	result.MedianPrice = acc.MedianPrice
	result.AverageDaysOnMkt = acc.AverageDaysOnMkt
	result.UnitSales = acc.UnitSales
	result.Inventory = acc.Inventory
	result.Summary = quickAnalysis(loc, acc, len(result.Listings))

	usage.LogCost(p.cfg.Model, "extract")

	return result, nil
}

// processFile runs one document through conversion and extraction. When the
// structured-extraction call fails but conversion produced usable text, the
// legacy page parser is tried before giving up on the file.
func (p *Processor) processFile(ctx context.Context, f SourceFile, loc model.Location) (model.RawExtraction, anthropic.TokenUsage, error) {
	var usage anthropic.TokenUsage

	markdown, err := resilience.ExecuteVal(ctx, p.breakers.Get("convert"),
		func(ctx context.Context) (string, error) {
			convCtx, cancel := context.WithTimeout(ctx, externalCallTimeout)
			defer cancel()
			return p.conv.ToMarkdown(convCtx, f.Name, f.Data, docconv.Options{HighFidelity: p.cfg.HighFidelity})
		})
	if err != nil {
		return model.RawExtraction{}, usage, eris.Wrap(err, "convert document")
	}
	if len(markdown) < minContentLen {
		return model.RawExtraction{}, usage, eris.Errorf("insufficient extraction: %d chars of markdown", len(markdown))
	}

	res, err := resilience.ExecuteVal(ctx, p.breakers.Get("extract"),
		func(ctx context.Context) (extractResult, error) {
			return p.extractStructured(ctx, markdown)
		})
	usage.Add(res.usage)
	if err == nil {
		return res.extraction, usage, nil
	}

	zap.L().Warn("report: structured extraction failed, trying page parser",
		zap.String("file", f.Name),
		zap.Error(err),
	)

	page := ParsePage(markdown, loc)
	if page.SampleData {
		// The parser found nothing real either; the sample fallback is
		// applied batch-wide, not per file.
		return model.RawExtraction{}, usage, eris.Wrap(err, "no data extracted")
	}
	return pageToExtraction(page), usage, nil
}

// extractResult pairs one call's extraction with its token usage so usage
// survives the circuit-breaker wrapper even when the call fails.
type extractResult struct {
	extraction model.RawExtraction
	usage      anthropic.TokenUsage
}

// extractStructured makes the structured-extraction call and parses its
// response through cleaning, truncation repair, and schema validation.
func (p *Processor) extractStructured(ctx context.Context, markdown string) (extractResult, error) {
	var res extractResult

	callCtx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	defer cancel()

	resp, err := p.ai.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:     p.cfg.Model,
		MaxTokens: p.cfg.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(extractionSystemText),
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(extractionPrompt, markdown)},
		},
	})
	if err != nil {
		return res, eris.Wrap(err, "extraction call")
	}
	res.usage.Add(resp.Usage)

	if resp.Refused() {
		return res, eris.New("extraction call refused")
	}

	cleaned := cleanJSON(resp.Text())
	if err := validateExtraction(cleaned); err != nil {
		return res, err
	}

	decoded, err := decodeExtraction(cleaned)
	if err != nil {
		return res, err
	}

	res.extraction = decoded.toRawExtraction()
	return res, nil
}
