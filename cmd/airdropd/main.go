// Command airdropd runs the AirDrop-interop core as a standalone daemon:
// discovery, the mutual-TLS peer-link plane, and the /Discover-/Ask-/Upload
// HTTP/2 server, fronted by a small cobra CLI with one file per subcommand.
package main

import (
	"fmt"
	"os"

	"airdrop/internal/errkind"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errkind.Of(err).Policy() == errkind.FatalRestartRequired {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
