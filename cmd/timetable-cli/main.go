package main

import (
	"fmt"
	"os"

	"github.com/noah-isme/sma-timetable-api/internal/cli"
)

func main() {
	app := &cli.App{}
	err := cli.NewRootCmd(app).Execute()
	if app.Logger != nil {
		_ = app.Logger.Sync()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
