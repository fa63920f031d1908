// Package cli runs the assignment engine offline against JSON snapshot files.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
)

// App carries the state shared by subcommands.
type App struct {
	Out      io.Writer
	Err      io.Writer
	LogLevel string
	Logger   *zap.Logger
}

// NewRootCmd creates the "timetable" command with every subcommand registered.
func NewRootCmd(app *App) *cobra.Command {
	if app.Out == nil {
		app.Out = os.Stdout
	}
	if app.Err == nil {
		app.Err = os.Stderr
	}

	root := &cobra.Command{
		Use:           "timetable",
		Short:         "Offline school timetable solver",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if app.Logger != nil {
				return nil
			}
			l, err := newLogger(app.LogLevel)
			if err != nil {
				return err
			}
			app.Logger = l
			return nil
		},
	}
	root.SetOut(app.Out)
	root.SetErr(app.Err)
	root.PersistentFlags().StringVar(&app.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newSolveCmd(app),
		newCheckCmd(app),
		newExportCmd(app),
	)
	return root
}

// newLogger writes console logs to an interactive terminal and JSON otherwise.
func newLogger(level string) (*zap.Logger, error) {
	format := "json"
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		format = "console"
	}
	return logger.New(&config.Config{Env: config.EnvProduction, Log: config.LogConfig{Level: level, Format: format}})
}

func readSnapshot(path string) (*models.Snapshot, error) {
	var snapshot models.Snapshot
	if err := readJSON(path, &snapshot); err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return &snapshot, nil
}

func readJSON(path string, dest interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// writeOutput writes to path, or to out when path is empty or "-".
func writeOutput(out io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := out.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
