package main

import (
	"context"
	"log/slog"
	"os"
)

var App *FarmApp

func main() {
	App = initApp()
	err := App.cliCmd.Run(context.Background(), os.Args)
	if err != nil {
		slog.Error("Error in execution:", "error", err)
		os.Exit(1)
	}
}
