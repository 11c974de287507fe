package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/highcountry-realty/market-cli/internal/resilience"
)

var dlqErrorType string

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect the queue of report files that failed processing",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List retryable failed files",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer st.Close()

		entries, err := st.DequeueDLQ(ctx, resilience.DLQFilter{ErrorType: dlqErrorType})
		if err != nil {
			return eris.Wrap(err, "list dlq")
		}

		total, err := st.CountDLQ(ctx)
		if err != nil {
			return eris.Wrap(err, "count dlq")
		}

		fmt.Printf("%d retryable of %d total\n", len(entries), total)
		for _, e := range entries {
			fmt.Printf("%s  %s  %s %d/%d  retry %d/%d  %s\n",
				e.ID, e.FileName, e.Location, e.Month, e.Year,
				e.RetryCount, e.MaxRetries, e.Error)
		}
		return nil
	},
}

var dlqRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove an entry from the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer st.Close()

		return st.RemoveDLQ(ctx, args[0])
	},
}

func init() {
	dlqListCmd.Flags().StringVar(&dlqErrorType, "error-type", "", "filter by error type (transient, permanent)")
	dlqCmd.AddCommand(dlqListCmd)
	dlqCmd.AddCommand(dlqRemoveCmd)
	rootCmd.AddCommand(dlqCmd)
}
