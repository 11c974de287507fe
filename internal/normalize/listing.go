package normalize

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/highcountry-realty/market-cli/internal/model"
)

// Drop reasons returned by BuildListing. Dropped listings are logged with
// identifying context and excluded from aggregation and persistence.
var (
	ErrShortMLSNumber  = eris.New("normalize: mls number shorter than 3 characters")
	ErrShortAddress    = eris.New("normalize: address shorter than 5 characters")
	ErrPriceOutOfRange = eris.New("normalize: price outside accepted range")
)

// BuildListing converts a RawListing into a validated Listing for the given
// period and location. Returns a drop reason when a hard invariant fails;
// soft fields (beds, baths, sqft, year built, days on market) degrade to
// zero or nil instead of dropping the row.
func BuildListing(raw model.RawListing, loc model.Location, month, year int) (model.Listing, error) {
	mls := truncate(strings.TrimSpace(raw.MLSNumber), model.MaxMLSNumberLen)
	if len(mls) < 3 {
		return model.Listing{}, eris.Wrapf(ErrShortMLSNumber, "mls %q", raw.MLSNumber)
	}

	address := truncate(CleanAddress(raw.Address), model.MaxAddressLen)
	if len(address) < 5 {
		return model.Listing{}, eris.Wrapf(ErrShortAddress, "mls %s address %q", mls, raw.Address)
	}

	price := ParsePrice(Stringify(raw.Price))
	if price < model.MinPrice || price > model.MaxPrice {
		return model.Listing{}, eris.Wrapf(ErrPriceOutOfRange, "mls %s address %q price %d", mls, address, price)
	}

	beds := ParseIntSafe(Stringify(raw.Beds))
	sqft := ParseIntSafe(Stringify(raw.Sqft))

	l := model.Listing{
		MLSNumber:    mls,
		Status:       CleanStatus(raw.Status),
		Price:        price,
		Address:      address,
		Beds:         beds,
		Baths:        ParseBathrooms(Stringify(raw.Baths)),
		Sqft:         sqft,
		YearBuilt:    YearBuilt(Stringify(raw.YearBuilt)),
		DaysOnMarket: DaysOnMarket(Stringify(raw.DaysOnMarket)),
		PricePerSqft: model.DerivePricePerSqft(price, sqft),
		Location:     loc,
		Month:        month,
		Year:         year,
	}
	return l, nil
}

// BuildListings normalizes a batch, dropping invalid rows with a logged
// reason and returning the survivors.
func BuildListings(raws []model.RawListing, loc model.Location, month, year int) []model.Listing {
	listings := make([]model.Listing, 0, len(raws))
	var dropped int
	for _, raw := range raws {
		l, err := BuildListing(raw, loc, month, year)
		if err != nil {
			dropped++
			zap.L().Warn("normalize: listing dropped",
				zap.String("mls", raw.MLSNumber),
				zap.String("address", raw.Address),
				zap.Any("price", raw.Price),
				zap.Error(err),
			)
			continue
		}
		listings = append(listings, l)
	}
	if dropped > 0 {
		zap.L().Info("normalize: batch complete",
			zap.Int("kept", len(listings)),
			zap.Int("dropped", dropped),
		)
	}
	return listings
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
