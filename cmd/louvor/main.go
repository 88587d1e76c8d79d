// louvor keeps a church worship team's shared schedule in sync.
//
// It mirrors one JSON document (ministers, songs, rehearsal notice and
// schedule images) between a local SQLite file and a hosted JSON bin,
// debouncing local edits into coalesced writes and polling the bin for
// changes made by other coordinators.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
