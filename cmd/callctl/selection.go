package main

import (
	"errors"
	"fmt"

	"github.com/senyabanana/instant-call-service/internal/models"
	"github.com/senyabanana/instant-call-service/internal/reconciler"

	"github.com/spf13/cobra"
)

var (
	selectRequest string
	cancelRequest string
)

func init() {
	selectCmd.Flags().StringVarP(&selectRequest, "request", "r", "", "request id (default: active request)")
	cancelCmd.Flags().StringVarP(&cancelRequest, "request", "r", "", "request id (default: active request)")

	rootCmd.AddCommand(selectCmd)
	rootCmd.AddCommand(cancelCmd)
}

var selectCmd = &cobra.Command{
	Use:   "select <workerId>",
	Short: "pick the winning worker",
	Args:  cobra.ExactArgs(1),
	RunE:  doSelect,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "cancel an open request",
	RunE:  doCancel,
}

func doSelect(cmd *cobra.Command, args []string) error {
	api, rec, closeStore, err := session()
	if err != nil {
		return err
	}
	defer closeStore()

	requestId, err := activeRequestId(rec, selectRequest)
	if err != nil {
		return err
	}

	selection, err := api.SelectWinner(cmd.Context(), requestId, args[0])
	if err != nil {
		return refreshAfterConflict(cmd, rec, err)
	}

	discard, err := rec.Settle(selection.Request)
	if err != nil {
		return err
	}
	fmt.Printf("worker %s selected for %.2f\n", selection.Estimate.WorkerID, selection.Estimate.Price)
	printDiscard(discard)
	return nil
}

func doCancel(cmd *cobra.Command, args []string) error {
	api, rec, closeStore, err := session()
	if err != nil {
		return err
	}
	defer closeStore()

	requestId, err := activeRequestId(rec, cancelRequest)
	if err != nil {
		return err
	}

	req, err := api.CancelRequest(cmd.Context(), requestId)
	if err != nil {
		return refreshAfterConflict(cmd, rec, err)
	}

	discard, err := rec.Settle(*req)
	if err != nil {
		return err
	}
	printDiscard(discard)
	return nil
}

// refreshAfterConflict сверяет локальное состояние, если заявка уже закрыта кем-то другим.
func refreshAfterConflict(cmd *cobra.Command, rec *reconciler.Reconciler, cause error) error {
	if !errors.Is(cause, models.ErrRequestNotOpen) && !errors.Is(cause, models.ErrRequestAlreadyAssigned) {
		return cause
	}
	_, discard, err := rec.Resume(cmd.Context())
	if err != nil {
		return errors.Join(cause, err)
	}
	printDiscard(discard)
	return cause
}
