package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/hackgods/frontdesk-scheduling/internal/db"
	"github.com/hackgods/frontdesk-scheduling/pkg/logging"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: migrate [up | force <version>]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	_ = godotenv.Load()
	logger := logging.New(os.Getenv("LOG_LEVEL")).With("service", "migrate")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Error("POSTGRES_DSN is required")
		os.Exit(1)
	}

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	switch cmd {
	case "up":
		if err := db.Migrate(dsn); err != nil {
			logger.Error("migration failed", "error", err)
			os.Exit(1)
		}
		logger.Info("migrations applied")
	case "force":
		version, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			logger.Error("force needs a numeric version", "arg", flag.Arg(1))
			os.Exit(2)
		}
		if err := db.Force(dsn, version); err != nil {
			logger.Error("force failed", "error", err)
			os.Exit(1)
		}
		logger.Info("schema version forced", "version", version)
	default:
		flag.Usage()
		os.Exit(2)
	}
}
