package main

import (
	"fmt"
	"os"

	"github.com/adeeb897/soup-kitchen-scheduler/migrate"
)

func main() {
	if err := migrate.RunFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
}
