package main

import (
	"fmt"
	"strconv"

	"github.com/senyabanana/instant-call-service/internal/models"

	"github.com/spf13/cobra"
)

const inboxPageSize = 100

var submitNote string

func init() {
	submitCmd.Flags().StringVarP(&submitNote, "note", "n", "", "note for the requester")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(inboxCmd)
}

var submitCmd = &cobra.Command{
	Use:   "submit <requestId> <price>",
	Short: "submit or replace an estimate as a worker",
	Args:  cobra.ExactArgs(2),
	RunE:  doSubmit,
}

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "print notifications after the saved cursor",
	RunE:  doInbox,
}

func doSubmit(cmd *cobra.Command, args []string) error {
	api, err := newClient()
	if err != nil {
		return err
	}

	price, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid price %q: %w", args[1], err)
	}

	est, err := api.SubmitEstimate(cmd.Context(), args[0], models.EstimateInput{Price: price, Note: submitNote})
	if err != nil {
		return fmt.Errorf("submit estimate: %w", err)
	}
	fmt.Printf("estimate %s submitted: %.2f (%s)\n", est.ID, est.Price, est.Status)
	return nil
}

func doInbox(cmd *cobra.Command, args []string) error {
	api, rec, closeStore, err := session()
	if err != nil {
		return err
	}
	defer closeStore()

	for {
		page, err := api.PullNotifications(cmd.Context(), rec.Cursor(), inboxPageSize)
		if err != nil {
			return fmt.Errorf("pull notifications: %w", err)
		}
		for _, n := range page {
			printNotification(n)
			discard, err := rec.Apply(n)
			if err != nil {
				return err
			}
			printDiscard(discard)
		}
		if len(page) < inboxPageSize {
			return nil
		}
	}
}
