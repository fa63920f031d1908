package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

const defaultSolveTimeout = 30 * time.Second

// SolveOutput is the file written by "solve" and read back by "export".
type SolveOutput struct {
	ClearExisting bool `json:"clearExisting"`
	timetable.Result
}

type solveFlags struct {
	input        string
	output       string
	seed         int64
	maxSteps     int
	keepExisting bool
	greedyFill   bool
	timeout      time.Duration
}

func newSolveCmd(app *App) *cobra.Command {
	var f solveFlags
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Place every curriculum requirement of a snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			snapshot, err := readSnapshot(f.input)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			if f.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, f.timeout)
				defer cancel()
			}

			solver := timetable.NewSolver(app.Logger, timetable.Options{})
			result, err := solver.Solve(ctx, *snapshot, timetable.Options{
				ClearExisting: !f.keepExisting,
				Seed:          f.seed,
				MaxSteps:      f.maxSteps,
				GreedyFill:    f.greedyFill,
			})
			if errors.Is(err, appErrors.ErrNothingToAssign) {
				return fmt.Errorf("snapshot has no curriculum requirements")
			}
			if err != nil && result == nil {
				return err
			}

			data, jsonErr := json.MarshalIndent(SolveOutput{ClearExisting: !f.keepExisting, Result: *result}, "", "  ")
			if jsonErr != nil {
				return jsonErr
			}
			if writeErr := writeOutput(cmd.OutOrStdout(), f.output, append(data, '\n')); writeErr != nil {
				return writeErr
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d assigned, %d unassigned, %d steps\n",
				result.Status, len(result.Assigned), len(result.Unassigned), result.Stats.Steps)
			return err
		},
	}
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "snapshot JSON file")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "result file (stdout when empty)")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "random seed, 0 picks one")
	cmd.Flags().IntVar(&f.maxSteps, "max-steps", timetable.DefaultMaxSteps, "cap on candidate attempts")
	cmd.Flags().BoolVar(&f.keepExisting, "keep-existing", false, "treat the snapshot's assignments as fixed")
	cmd.Flags().BoolVar(&f.greedyFill, "greedy-fill", false, "greedily place what the search left over")
	cmd.Flags().DurationVar(&f.timeout, "timeout", defaultSolveTimeout, "stop searching after this long and keep the best result, 0 disables")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
