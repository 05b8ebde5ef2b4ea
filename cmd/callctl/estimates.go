package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var estimatesRequest string

func init() {
	estimatesCmd.Flags().StringVarP(&estimatesRequest, "request", "r", "", "request id (default: active request)")

	rootCmd.AddCommand(estimatesCmd)
}

var estimatesCmd = &cobra.Command{
	Use:   "estimates",
	Short: "list estimates submitted for a request",
	RunE:  doEstimates,
}

func doEstimates(cmd *cobra.Command, args []string) error {
	api, rec, closeStore, err := session()
	if err != nil {
		return err
	}
	defer closeStore()

	requestId, err := activeRequestId(rec, estimatesRequest)
	if err != nil {
		return err
	}

	estimates, err := api.ListEstimates(cmd.Context(), requestId)
	if err != nil {
		return fmt.Errorf("list estimates: %w", err)
	}

	fmt.Printf("Worker\tPrice\tStatus\tSubmitted\tNote\n")
	for _, est := range estimates {
		fmt.Printf("%s\t%.2f\t%s\t%s\t%s\n", est.WorkerID, est.Price, est.Status, est.SubmittedAt.Format("15:04:05"), est.Note)
	}
	return nil
}
