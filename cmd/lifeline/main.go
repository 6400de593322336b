// Command lifeline runs heartbeat-supervised WebSocket endpoints.
package main

import (
	"os"

	"github.com/vinayprograms/lifeline/cmd/lifeline/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
