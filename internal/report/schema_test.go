package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateExtraction(t *testing.T) {
	t.Parallel()

	t.Run("minimal valid", func(t *testing.T) {
		assert.NoError(t, validateExtraction(`{"listings": []}`))
	})

	t.Run("full shape", func(t *testing.T) {
		doc := `{
			"statusCounts": {"active": 111, "pending": 12, "closed": 34, "other": 2},
			"totalListings": 159,
			"medianPrice": 425000,
			"averageDaysOnMarket": 48.5,
			"listings": [
				{"mls": "SW20123456", "status": "active", "price": 425000, "address": "41200 Sage Road", "beds": 3, "baths": "2.5", "sqft": null, "yearBuilt": 1998, "daysOnMarket": 42}
			],
			"marketTimeRanges": [{"label": "0-30", "count": 14}]
		}`
		assert.NoError(t, validateExtraction(doc))
	})

	t.Run("missing listings", func(t *testing.T) {
		err := validateExtraction(`{"statusCounts": {"active": 1}}`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "schema validation")
	})

	t.Run("listings wrong type", func(t *testing.T) {
		assert.Error(t, validateExtraction(`{"listings": "none"}`))
	})

	t.Run("negative count", func(t *testing.T) {
		assert.Error(t, validateExtraction(`{"listings": [], "totalListings": -1}`))
	})

	t.Run("not json", func(t *testing.T) {
		err := validateExtraction(`{"listings": [`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse extraction JSON")
	})
}

func TestDecodeExtraction(t *testing.T) {
	t.Parallel()

	out, err := decodeExtraction(`{"listings": [{"mls": 20123456, "price": "425000"}], "medianPrice": 425000}`)
	require.NoError(t, err)
	require.Len(t, out.Listings, 1)
	assert.Equal(t, float64(20123456), out.Listings[0].MLS)
	assert.Equal(t, "425000", out.Listings[0].Price)
	assert.Equal(t, float64(425000), out.MedianPrice)
}
