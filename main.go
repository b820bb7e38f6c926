// vaultgraph - Derive a property graph from a Markdown vault.
//
// vaultgraph walks a folder of notes and writes its directories, notes and
// hierarchical tags into a graph store, keeping re-runs idempotent.
package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/Benny93/vaultgraph/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
