package main

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/highcountry-realty/market-cli/internal/model"
	"github.com/highcountry-realty/market-cli/internal/store"
)

var (
	listingsLocation string
	listingsMonth    int
	listingsYear     int
	listingsStatus   string
	listingsLimit    int
)

var listingsCmd = &cobra.Command{
	Use:   "listings",
	Short: "Show stored listings for a community",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		loc := model.ParseLocation(listingsLocation)
		if !loc.Valid() {
			return eris.Errorf("unknown location: %s", listingsLocation)
		}

		st, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer st.Close()

		got, err := st.ListListings(ctx, store.ListingFilter{
			Location: loc,
			Month:    listingsMonth,
			Year:     listingsYear,
			Status:   model.Status(strings.ToLower(listingsStatus)),
			Limit:    listingsLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list listings")
		}

		printListings(os.Stdout, got)
		return nil
	},
}

// printListings renders one line per listing, highest price first (the
// store's sort order).
func printListings(w io.Writer, listings []model.Listing) {
	p := message.NewPrinter(language.AmericanEnglish)
	for _, l := range listings {
		dom := "-"
		if l.DaysOnMarket != nil {
			dom = strconv.Itoa(*l.DaysOnMarket)
		}
		p.Fprintf(w, "%-12s %-10s $%d  %s  %db/%.1fba %d sqft  dom %s\n",
			l.MLSNumber, l.Status, l.Price, l.Address, l.Beds, l.Baths, l.Sqft, dom)
	}
	p.Fprintf(w, "%d listings\n", len(listings))
}

func init() {
	listingsCmd.Flags().StringVar(&listingsLocation, "location", "", "community name (anza, aguanga, idyllwild, mountain_center)")
	listingsCmd.Flags().IntVar(&listingsMonth, "month", 0, "filter by report month")
	listingsCmd.Flags().IntVar(&listingsYear, "year", 0, "filter by report year")
	listingsCmd.Flags().StringVar(&listingsStatus, "status", "", "filter by listing status")
	listingsCmd.Flags().IntVar(&listingsLimit, "limit", 0, "maximum rows to show")
	_ = listingsCmd.MarkFlagRequired("location")
	rootCmd.AddCommand(listingsCmd)
}
