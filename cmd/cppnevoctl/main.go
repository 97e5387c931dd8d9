package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cppnevo/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// storeFlags selects the persistence backend shared by every subcommand.
type storeFlags struct {
	kind   string
	dbPath string
}

func (f *storeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.kind, "store", "sqlite", "store backend: memory|sqlite")
	cmd.Flags().StringVar(&f.dbPath, "db-path", "cppnevo.db", "sqlite database path")
}

func (f *storeFlags) open(ctx context.Context) (storage.Store, func(), error) {
	store, err := storage.NewStore(f.kind, f.dbPath)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Init(ctx); err != nil {
		_ = storage.CloseIfSupported(store)
		return nil, nil, err
	}
	return store, func() { _ = storage.CloseIfSupported(store) }, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cppnevoctl",
		Short: "Evolve CPPN images with NEAT and MAP-Elites",
		Long: `cppnevoctl runs CPPN evolution and inspects stored runs.

Runs persist their best genome, archive, diagnostics and lineage to the
selected store so the inspection commands can read them back later.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newRunCmd(),
		newConfigCmd(),
		newRunsCmd(),
		newDiagnosticsCmd(),
		newLineageCmd(),
		newArchiveCmd(),
		newGenomeCmd(),
	)
	return root
}
