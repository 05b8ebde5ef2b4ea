package main

import (
	"fmt"

	"github.com/senyabanana/instant-call-service/internal/models"

	"github.com/spf13/cobra"
)

var (
	createCategory    string
	createDescription string
	createLat         float64
	createLng         float64
	createAddress     string
	createMedia       []string
	createSettlement  string
)

func init() {
	createCmd.Flags().StringVarP(&createCategory, "category", "c", "", "category id")
	createCmd.Flags().StringVarP(&createDescription, "description", "d", "", "what needs to be done")
	createCmd.Flags().Float64VarP(&createLat, "lat", "", 0, "latitude")
	createCmd.Flags().Float64VarP(&createLng, "lng", "", 0, "longitude")
	createCmd.Flags().StringVarP(&createAddress, "address", "", "", "address")
	createCmd.Flags().StringSliceVarP(&createMedia, "media", "m", nil, "media references")
	createCmd.Flags().StringVarP(&createSettlement, "settlement", "", string(models.Cash), "cash, card or mobile_wallet")
	_ = createCmd.MarkFlagRequired("category")
	_ = createCmd.MarkFlagRequired("description")

	rootCmd.AddCommand(createCmd)
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "broadcast a new instant-call request",
	RunE:  doCreate,
}

func doCreate(cmd *cobra.Command, args []string) error {
	api, rec, closeStore, err := session()
	if err != nil {
		return err
	}
	defer closeStore()

	if state, discard, err := rec.Resume(cmd.Context()); err != nil {
		return err
	} else if state != nil {
		return fmt.Errorf("request %s is still open, cancel it or select a worker first", state.RequestID)
	} else {
		printDiscard(discard)
	}

	created, err := api.CreateRequest(cmd.Context(), models.RequestInput{
		CategoryID:  createCategory,
		Description: createDescription,
		Location:    models.Location{Lat: createLat, Lng: createLng, Address: createAddress},
		Media:       createMedia,
		Settlement:  models.SettlementMethod(createSettlement),
	})
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	state, err := rec.Begin(*created)
	if err != nil {
		return err
	}
	printState(state)
	return nil
}
