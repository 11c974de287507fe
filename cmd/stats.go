package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/highcountry-realty/market-cli/internal/model"
)

var (
	statsLocation string
	statsMonth    int
	statsYear     int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show stored monthly stats for a community",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		loc := model.ParseLocation(statsLocation)
		if !loc.Valid() {
			return eris.Errorf("unknown location: %s", statsLocation)
		}
		if !model.ValidPeriod(statsMonth, statsYear) {
			return eris.Errorf("invalid period: %d/%d", statsMonth, statsYear)
		}

		st, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer st.Close()

		price, err := st.GetPriceStats(ctx, loc, statsMonth, statsYear)
		if err != nil {
			return eris.Wrap(err, "get price stats")
		}
		dom, err := st.GetDomStats(ctx, loc, statsMonth, statsYear)
		if err != nil {
			return eris.Wrap(err, "get dom stats")
		}

		p := message.NewPrinter(language.AmericanEnglish)
		fmt.Printf("%s %d/%d\n", loc.DisplayName(), statsMonth, statsYear)
		if price == nil {
			fmt.Println("  no price stats stored")
		} else {
			p.Printf("  median price    $%d\n", price.MedianPrice)
			p.Printf("  average price   $%d\n", price.AveragePrice)
			p.Printf("  price per sqft  $%d\n", price.PricePerSqft)
			p.Printf("  total sales     %d\n", price.TotalSales)
		}
		if dom == nil {
			fmt.Println("  no days-on-market stats stored")
		} else {
			p.Printf("  avg days on market     %d\n", dom.AverageDaysOnMkt)
			p.Printf("  median days on market  %d\n", dom.MedianDaysOnMkt)
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsLocation, "location", "", "community name (anza, aguanga, idyllwild, mountain_center)")
	statsCmd.Flags().IntVar(&statsMonth, "month", 0, "report month (1-12)")
	statsCmd.Flags().IntVar(&statsYear, "year", 0, "report year")
	_ = statsCmd.MarkFlagRequired("location")
	_ = statsCmd.MarkFlagRequired("month")
	_ = statsCmd.MarkFlagRequired("year")
	rootCmd.AddCommand(statsCmd)
}
