package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mitool/mi/internal/thoughtdb"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the logs and keep cached views fresh until interrupted",
	Long: `Watch holds the process open, invalidating cached views whenever
another process appends to the logs. Useful when embedding mi in a
long-running agent session that reads views repeatedly.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Warm both views so the watcher has caches to maintain.
		for _, scope := range []thoughtdb.Scope{thoughtdb.ScopeProject, thoughtdb.ScopeGlobal} {
			if _, err := store.LoadView(scope); err != nil {
				fmt.Fprintf(os.Stderr, "Error loading %s view: %v\n", scope, err)
				os.Exit(1)
			}
		}

		fmt.Println("Watching logs (Ctrl-C to stop)...")
		err := store.WatchInvalidate(ctx, thoughtdb.ScopeProject, thoughtdb.ScopeGlobal)
		if err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
