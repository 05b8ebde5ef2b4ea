package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/senyabanana/instant-call-service/internal/models"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(watchCmd)
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "verify the saved request against the server and catch up on missed events",
	RunE:  doResume,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "follow live events until the active request is closed",
	RunE:  doWatch,
}

func doResume(cmd *cobra.Command, args []string) error {
	_, rec, closeStore, err := session()
	if err != nil {
		return err
	}
	defer closeStore()

	state, discard, err := rec.Resume(cmd.Context())
	if err != nil {
		return err
	}
	if discard != nil {
		printDiscard(discard)
		return nil
	}
	if state == nil {
		fmt.Println("no active request")
		return nil
	}

	discard, err = rec.Sync(cmd.Context())
	if err != nil {
		return err
	}
	if discard != nil {
		printDiscard(discard)
		return nil
	}
	printState(rec.State())
	return nil
}

func doWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api, rec, closeStore, err := session()
	if err != nil {
		return err
	}
	defer closeStore()

	state, discard, err := rec.Resume(ctx)
	if err != nil {
		return err
	}
	printDiscard(discard)
	if state != nil {
		printState(state)
	}

	discard, err = rec.Watch(ctx, api, printNotification)
	if discard != nil {
		printDiscard(discard)
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func printNotification(n models.Notification) {
	p := n.Payload
	switch n.Kind {
	case models.RequestCreatedKind:
		fmt.Printf("[%d] new request %s (#%d) in %s: %s, %s\n", n.Seq, p.RequestID, p.RequestSeq, p.CategoryID, p.Description, p.Address)
	case models.EstimateSubmittedKind:
		fmt.Printf("[%d] estimate from %s: %.2f %s\n", n.Seq, p.WorkerID, p.Price, p.Note)
	case models.RequestSelectedKind:
		fmt.Printf("[%d] you were selected for request %s\n", n.Seq, p.RequestID)
	case models.RequestClosedKind:
		fmt.Printf("[%d] request %s is no longer available (%s)\n", n.Seq, p.RequestID, p.Outcome)
	default:
		fmt.Printf("[%d] %s for request %s\n", n.Seq, n.Kind, p.RequestID)
	}
}
