package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// promoteBatchLimit caps how many staged recipes one run promotes.
const promoteBatchLimit = 2000

func newPromoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote",
		Short: "Promote fresh staged recipes and prune stale production rows",
		Long: `Runs the backend's batch promotion over recently staged recipes, then
prunes production rows older than the freshness cutoff. Pruning is
best-effort; a prune failure does not fail the command.`,

		RunE: runPromoteCommand,
	}
}

func runPromoteCommand(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	cutoff := a.Config().CutoffDate()
	logger := a.Logger().Named("promote")
	logger.Info("promoting staged recipes",
		zap.Time("cutoff", cutoff),
		zap.Int("limit", promoteBatchLimit),
	)

	if err := a.Store().PromoteRecentRecipes(cmd.Context(), cutoff, promoteBatchLimit); err != nil {
		return fmt.Errorf("promote recent recipes: %w", err)
	}
	if err := a.Store().PruneProductOlderThan(cmd.Context(), cutoff); err != nil {
		logger.Warn("prune failed", zap.Error(err))
	}
	logger.Info("promotion finished")
	return nil
}
