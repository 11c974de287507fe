package report

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/highcountry-realty/market-cli/internal/docconv"
	"github.com/highcountry-realty/market-cli/internal/model"
	"github.com/highcountry-realty/market-cli/pkg/anthropic"
)

// stubConverter returns canned markdown (or an error) per file name.
type stubConverter struct {
	out map[string]string
	err map[string]error
}

func (c *stubConverter) ToMarkdown(_ context.Context, name string, _ []byte, _ docconv.Options) (string, error) {
	if err := c.err[name]; err != nil {
		return "", err
	}
	return c.out[name], nil
}

// stubClient returns one canned response for every CreateMessage call.
type stubClient struct {
	text  string
	stop  string
	err   error
	calls int
}

func (c *stubClient) CreateMessage(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &anthropic.MessageResponse{
		Content:    []anthropic.ContentBlock{{Type: "text", Text: c.text}},
		StopReason: c.stop,
		Usage:      anthropic.TokenUsage{InputTokens: 1000, OutputTokens: 200},
	}, nil
}

// reportMarkdown is long enough to clear the minimum-content check and
// carries no parseable rows of its own.
var reportMarkdown = "Anza Monthly Market Detail " + strings.Repeat("narrative filler text ", 10)

const extractionJSON = `{
	"statusCounts": {"active": 2, "pending": 0, "closed": 0, "other": 0},
	"totalListings": 2,
	"medianPrice": 472000,
	"averageDaysOnMarket": 38,
	"listings": [
		{"mls": "SW20123456", "status": "active", "price": 425000, "address": "41200 Sage Road", "beds": 3, "baths": 2, "sqft": 1650, "yearBuilt": 1998, "daysOnMarket": 42},
		{"mls": "SW20123457", "status": "active", "price": 519000, "address": "58790 Burnt Valley Road", "beds": 4, "baths": 2.5, "sqft": 2100, "yearBuilt": 2004, "daysOnMarket": 35}
	]
}`

func TestProcessFiles_Success(t *testing.T) {
	conv := &stubConverter{out: map[string]string{"june.pdf": reportMarkdown}}
	ai := &stubClient{text: extractionJSON}
	p := NewProcessor(conv, ai, Config{Model: "claude-haiku-4-5-20251001"})

	result, err := p.ProcessFiles(context.Background(), []SourceFile{
		{Name: "june.pdf", Data: []byte("%PDF")},
	}, model.LocationAnza, 6, 2025)
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesProcessed)
	assert.Equal(t, 0, result.FilesSkipped)
	assert.False(t, result.SampleData)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 1, ai.calls)

	require.Len(t, result.Listings, 2)
	assert.Equal(t, "SW20123456", result.Listings[0].MLSNumber)
	assert.Equal(t, model.LocationAnza, result.Listings[0].Location)
	assert.Equal(t, 6, result.Listings[0].Month)
	assert.Equal(t, 2025, result.Listings[0].Year)

	assert.Equal(t, 2, result.StatusCounts.Active)
	assert.Equal(t, 472000, result.MedianPrice)
	assert.Equal(t, 38, result.AverageDaysOnMkt)
	assert.Contains(t, result.Summary, "Anza market")
}

func TestProcessFiles_FileFailureIsolated(t *testing.T) {
	conv := &stubConverter{
		out: map[string]string{"good.pdf": reportMarkdown},
		err: map[string]error{"bad.pdf": eris.New("scanner jammed")},
	}
	ai := &stubClient{text: extractionJSON}
	p := NewProcessor(conv, ai, Config{})

	result, err := p.ProcessFiles(context.Background(), []SourceFile{
		{Name: "bad.pdf"},
		{Name: "good.pdf"},
	}, model.LocationAnza, 6, 2025)
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesProcessed)
	assert.Equal(t, 1, result.FilesSkipped)
	assert.False(t, result.SampleData)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "bad.pdf")

	require.Len(t, result.Failures, 1)
	assert.Equal(t, "bad.pdf", result.Failures[0].Name)
	assert.False(t, result.Failures[0].Transient)

	require.Len(t, result.Listings, 2)
}

func TestProcessFiles_PageParserFallback(t *testing.T) {
	// Extraction call fails, but the converted text parses as loose rows.
	looseText := reportMarkdown + "\n1  SW20123456  Active  $425,000  41200 Sage Road  3  2.5  1650  1998  42\n"
	conv := &stubConverter{out: map[string]string{"june.pdf": looseText}}
	ai := &stubClient{err: eris.New("api down")}
	p := NewProcessor(conv, ai, Config{})

	result, err := p.ProcessFiles(context.Background(), []SourceFile{
		{Name: "june.pdf"},
	}, model.LocationAnza, 6, 2025)
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesProcessed)
	assert.False(t, result.SampleData)
	require.Len(t, result.Listings, 1)
	assert.Equal(t, "SW20123456", result.Listings[0].MLSNumber)
}

func TestProcessFiles_SampleFallback(t *testing.T) {
	// Conversion yields too little text for every file; the batch degrades
	// to the fixed sample dataset.
	conv := &stubConverter{out: map[string]string{"june.pdf": "short"}}
	ai := &stubClient{text: extractionJSON}
	p := NewProcessor(conv, ai, Config{})

	result, err := p.ProcessFiles(context.Background(), []SourceFile{
		{Name: "june.pdf"},
	}, model.LocationAguanga, 6, 2025)
	require.NoError(t, err)

	assert.True(t, result.SampleData)
	assert.Equal(t, 0, result.FilesProcessed)
	assert.Equal(t, 1, result.FilesSkipped)
	assert.Equal(t, 0, ai.calls)
	require.Len(t, result.Listings, 5)
	for _, l := range result.Listings {
		assert.Contains(t, l.Address, "Aguanga")
	}
}

func TestProcessFiles_RefusalFallsThrough(t *testing.T) {
	conv := &stubConverter{out: map[string]string{"june.pdf": reportMarkdown}}
	ai := &stubClient{text: "cannot help", stop: "refusal"}
	p := NewProcessor(conv, ai, Config{})

	result, err := p.ProcessFiles(context.Background(), []SourceFile{
		{Name: "june.pdf"},
	}, model.LocationAnza, 6, 2025)
	require.NoError(t, err)

	// The filler text has no parseable rows either, so the file is skipped
	// and the batch lands on sample data.
	assert.Equal(t, 1, result.FilesSkipped)
	assert.True(t, result.SampleData)
}

func TestProcessFiles_NoFiles(t *testing.T) {
	p := NewProcessor(&stubConverter{}, &stubClient{}, Config{})

	result, err := p.ProcessFiles(context.Background(), nil, model.LocationAnza, 6, 2025)
	require.NoError(t, err)
	assert.True(t, result.SampleData)
	assert.Equal(t, 0, result.FilesProcessed)
	require.Len(t, result.Listings, 5)
}

func TestProcessFiles_InvalidInputs(t *testing.T) {
	p := NewProcessor(&stubConverter{}, &stubClient{}, Config{})

	_, err := p.ProcessFiles(context.Background(), nil, model.LocationInvalid, 6, 2025)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid location")

	_, err = p.ProcessFiles(context.Background(), nil, model.LocationAnza, 13, 2025)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid period")
}

func TestNewProcessor_Defaults(t *testing.T) {
	p := NewProcessor(&stubConverter{}, &stubClient{}, Config{})
	assert.Equal(t, int64(8192), p.cfg.MaxTokens)
}
