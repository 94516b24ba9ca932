package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Shikha-SShikha/peerlens/internal/printer"
	"github.com/Shikha-SShikha/peerlens/internal/review"
	"github.com/Shikha-SShikha/peerlens/pkg/briefboard"
)

var boardStatusFilter string

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Inspect the shared brief board",
	Long: `Inspect briefs published to the Redis brief board.

Requires a configured Redis connection (--redis-addr and --instance, or
the redis section of peerlens.yml).`,
}

var boardListCmd = &cobra.Command{
	Use:   "list",
	Short: "List manuscripts with a published brief",
	Long: `List the IDs of all manuscripts with a published brief, optionally
filtered by validation status.

Examples:
  peerlens board list --redis-addr localhost:6379 --instance prod
  peerlens board list --status needs_manual_review`,
	RunE: runBoardList,
}

var boardGetCmd = &cobra.Command{
	Use:   "get <manuscript-id>",
	Short: "Fetch a manuscript's published brief",
	Args:  cobra.ExactArgs(1),
	RunE:  runBoardGet,
}

var boardWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream brief publications in real time",
	Long: `Subscribe to brief publication events and print each brief as it is
published. Runs until interrupted with Ctrl+C.`,
	RunE: runBoardWatch,
}

func init() {
	boardListCmd.Flags().StringVar(&boardStatusFilter, "status", "", "Filter by validation status (validated or needs_manual_review)")
	boardCmd.AddCommand(boardListCmd)
	boardCmd.AddCommand(boardGetCmd)
	boardCmd.AddCommand(boardWatchCmd)
	rootCmd.AddCommand(boardCmd)
}

// openBoard builds a connected brief board client from the configuration.
func openBoard(cmd *cobra.Command) (*briefboard.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	board, err := buildBoard(cfg)
	if err != nil {
		return nil, err
	}
	if board == nil {
		return nil, printer.Error(
			"no Redis connection configured",
			"Board commands need a Redis address and instance name.",
			[]string{"Pass --redis-addr and --instance, or add a redis section to peerlens.yml"},
		)
	}
	if err := board.Ping(context.Background()); err != nil {
		board.Close()
		return nil, printer.Error("cannot reach Redis", err.Error(), nil)
	}
	return board, nil
}

func runBoardList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	board, err := openBoard(cmd)
	if err != nil {
		return err
	}
	defer board.Close()

	var ids []string
	if boardStatusFilter != "" {
		status := review.Status(boardStatusFilter)
		if err := status.Validate(); err != nil {
			return err
		}
		ids, err = board.ListManuscriptsByStatus(ctx, status)
	} else {
		ids, err = board.ListManuscripts(ctx)
	}
	if err != nil {
		return err
	}

	if len(ids) == 0 {
		printer.Info("no published briefs\n")
		return nil
	}
	for _, id := range ids {
		printer.Println(id)
	}
	return nil
}

func runBoardGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	board, err := openBoard(cmd)
	if err != nil {
		return err
	}
	defer board.Close()

	brief, err := board.GetBrief(ctx, args[0])
	if briefboard.IsNotFound(err) {
		return printer.Error(
			"brief not found",
			"No published brief for manuscript "+args[0],
			[]string{"List published manuscripts with:\n  peerlens board list"},
		)
	}
	if err != nil {
		return err
	}

	return writeJSON("", brief)
}

func runBoardWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	board, err := openBoard(cmd)
	if err != nil {
		return err
	}
	defer board.Close()

	sub, err := board.SubscribeBriefEvents(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	printer.Step("watching for brief publications (Ctrl+C to stop)\n")
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			printer.Warning("%v\n", err)
		case brief, ok := <-sub.Events():
			if !ok {
				return nil
			}
			printer.Success("%s: %d major, %d minor, tier %s\n",
				brief.ManuscriptID, len(brief.MajorIssues), len(brief.MinorIssues), brief.Consensus.ConfidenceTier)
		}
	}
}
