package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
)

func newExportCmd(app *App) *cobra.Command {
	var (
		input, result, output string
		query                 dto.ExportQuery
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render a class or teacher timetable as CSV or PDF",
		RunE: func(cmd *cobra.Command, _ []string) error {
			snapshot, err := readSnapshot(input)
			if err != nil {
				return err
			}
			if result != "" {
				var solved SolveOutput
				if err := readJSON(result, &solved); err != nil {
					return fmt.Errorf("read result: %w", err)
				}
				var placed []models.Assignment
				if !solved.ClearExisting {
					placed = append(placed, snapshot.Assignments...)
				}
				snapshot.Assignments = append(placed, solved.Assigned...)
			}

			svc := service.NewExportService(nil, nil, app.Logger, nil, nil)
			file, err := svc.Render(snapshot, query)
			if err != nil {
				return err
			}
			if output == "" {
				output = file.Filename
			}
			if err := writeOutput(cmd.OutOrStdout(), output, file.Data); err != nil {
				return err
			}
			if output != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "snapshot JSON file")
	cmd.Flags().StringVarP(&result, "result", "r", "", "solve output to render instead of the snapshot's assignments")
	cmd.Flags().StringVarP(&output, "output", "o", "", "target file, '-' for stdout (defaults to a generated name)")
	cmd.Flags().StringVar(&query.ClassID, "class", "", "class id")
	cmd.Flags().StringVar(&query.TeacherID, "teacher", "", "teacher id")
	cmd.Flags().StringVarP(&query.Format, "format", "f", service.ExportFormatCSV, "csv or pdf")
	_ = cmd.MarkFlagRequired("input")
	cmd.MarkFlagsMutuallyExclusive("class", "teacher")
	cmd.MarkFlagsOneRequired("class", "teacher")
	return cmd
}
