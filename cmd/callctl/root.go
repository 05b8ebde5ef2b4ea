package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/senyabanana/instant-call-service/internal/client"
	"github.com/senyabanana/instant-call-service/internal/reconciler"

	"github.com/spf13/cobra"
)

var (
	verbose   bool
	serverURL string
	token     string
	stateDir  string
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", envOr("CALLCTL_SERVER", "http://localhost:8080"), "service base url")
	rootCmd.PersistentFlags().StringVarP(&token, "token", "t", os.Getenv("CALLCTL_TOKEN"), "bearer token of the caller")
	rootCmd.PersistentFlags().StringVarP(&stateDir, "state", "", "", "local state directory (default ~/.callctl)")
}

var rootCmd = &cobra.Command{
	Use:           "callctl",
	Short:         "instant-call client CLI",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newClient() (*client.Client, error) {
	if token == "" {
		return nil, fmt.Errorf("token is required: use --token or CALLCTL_TOKEN")
	}
	return client.New(serverURL, token), nil
}

func newLogger() *log.Logger {
	if verbose {
		return log.New(os.Stderr, "callctl: ", log.LstdFlags)
	}
	return nil
}

// session открывает клиент и локальное состояние. close нужно вызвать после работы.
func session() (*client.Client, *reconciler.Reconciler, func(), error) {
	api, err := newClient()
	if err != nil {
		return nil, nil, nil, err
	}

	dir := stateDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".callctl")
	}

	store, err := reconciler.OpenPebbleStore(dir, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	rec := reconciler.New(api, store, newLogger())
	if err := rec.Load(); err != nil {
		store.Close()
		return nil, nil, nil, err
	}
	return api, rec, func() { store.Close() }, nil
}

func printDiscard(d *reconciler.Discard) {
	if d == nil {
		return
	}
	switch d.Reason {
	case reconciler.ReasonStale:
		fmt.Printf("request %s is older than 24h, local state discarded\n", d.RequestID)
	case reconciler.ReasonMissing:
		fmt.Printf("request %s no longer exists, local state discarded\n", d.RequestID)
	default:
		fmt.Printf("request %s is %s (%s), local state cleared\n", d.RequestID, d.Status, d.Reason)
	}
}

func printState(state *reconciler.CallState) {
	if state == nil {
		fmt.Println("no active request")
		return
	}
	fmt.Printf("request %s (#%d) %s, %d workers notified\n", state.RequestID, state.RequestSeq, state.Status, state.NotifiedCount)
	estimates := state.SortedEstimates()
	if len(estimates) == 0 {
		fmt.Println("no estimates yet")
		return
	}
	fmt.Printf("Worker\tPrice\tNote\n")
	for _, est := range estimates {
		fmt.Printf("%s\t%.2f\t%s\n", est.WorkerID, est.Price, est.Note)
	}
}

// activeRequestId возвращает заявку из аргументов или из локального состояния.
func activeRequestId(rec *reconciler.Reconciler, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if state := rec.State(); state != nil {
		return state.RequestID, nil
	}
	return "", fmt.Errorf("no active request, pass --request")
}
