package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
)

// ErrCheckFailed is returned when the snapshot has hard problems.
var ErrCheckFailed = errors.New("snapshot check failed")

func newCheckCmd(app *App) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a snapshot and its placed assignments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			snapshot, err := readSnapshot(input)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			problems := service.ValidateSnapshot(snapshot)
			for _, p := range problems {
				fmt.Fprintf(out, "error: %s\n", p)
			}

			warned := make(map[string]bool)
			for _, a := range snapshot.Assignments {
				key := a.ClassID + "/" + a.LessonName
				if warned[key] {
					continue
				}
				rule := timetable.CheckConsecutiveLessonsRule(a, snapshot.Assignments, snapshot.WeeklyHours(a.ClassID, a.LessonName))
				if !rule.Valid {
					warned[key] = true
					fmt.Fprintf(out, "warning: class %s: %s\n", snapshot.ClassName(a.ClassID), rule.Warning)
				}
			}

			app.Logger.Debug("snapshot checked")
			if len(problems) > 0 {
				return fmt.Errorf("%w: %d problems", ErrCheckFailed, len(problems))
			}
			fmt.Fprintf(out, "ok: %d assignments, %d warnings\n", len(snapshot.Assignments), len(warned))
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "snapshot JSON file")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
