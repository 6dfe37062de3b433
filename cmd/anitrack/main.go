package main

import (
	"github.com/joho/godotenv"

	"github.com/mydehq/anitrack/internal/cli"
)

func main() {
	// ANITRACK_* overrides may live in a local .env; a missing file is fine
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	cli.Execute()
}
