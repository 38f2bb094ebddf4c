// Command shipyardd runs the export worker daemon with the default
// configuration lookup. Use "shipyard daemon run --config" for other files.
package main

import (
	"context"
	"log"
	"os"

	"shipyard/internal/config"
	"shipyard/internal/daemonrun"
)

func main() {
	cfg, _, _, err := config.Load(os.Getenv("SHIPYARD_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err != nil {
		log.Fatalf("shipyardd: %v", err)
	}
}
