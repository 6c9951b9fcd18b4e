// Aether runs component tree workers: as a websocket server, over standard
// input and output, or in process for benchmarking. It also inspects running
// sessions and stored snapshots.
package main

import (
	"os"

	_ "github.com/synnaxlabs/synnax-sub025/pkg/vis"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
