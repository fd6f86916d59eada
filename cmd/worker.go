package cmd

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bepdata/recipe-crawler/internal/worker"
)

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Claim and process detail jobs until interrupted",
		Long: `Claims queued recipe jobs one at a time, fetches and parses each
recipe page, writes the result into the staging tables, and reports a
terminal state back to the queue. Runs until SIGINT/SIGTERM.`,

		RunE: runWorkerCommand,
	}
}

func runWorkerCommand(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	stopOps := startOpsServer(a)
	defer stopOps()

	cfg := a.Config()
	workerID := cfg.Worker.ID
	if workerID == "" {
		workerID = uuid.NewString()
	}

	w := worker.New(worker.Config{
		WorkerID:    workerID,
		Cutoff:      cfg.CutoffDate(),
		IdleWait:    cfg.IdleWait(),
		FailureWait: cfg.FailureWait(),
	}, a.Fetcher(), a.Store(), a.Store(), a.Store(), a.Logger().Named("worker"))

	a.Logger().Info("worker starting", zap.String("worker_id", workerID))
	if err := w.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.Logger().Info("worker stopped", zap.String("worker_id", workerID))
	return nil
}
