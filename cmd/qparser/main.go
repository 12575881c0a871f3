package main

import (
	"log/slog"
	"os"

	"github.com/FranksOps/qparser/internal/cli"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}
	os.Exit(cli.Execute())
}
