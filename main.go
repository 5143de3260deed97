// Package main provides the entry point for Blocksim.
// Blocksim simulates clock and FIFO building blocks on a discrete-event
// kernel built on Akita.
//
// For the full CLI, use: go run ./cmd/blocksim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("Blocksim - Clock and FIFO Building Blocks")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: blocksim [--cpuprofile dir] [-v] <command> [options]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  clocks     Divide a root clock and measure the divided phases")
	fmt.Println("  fifo       Stream the standard test plan through one FIFO")
	fmt.Println("  regress    Run the full clock and FIFO regression")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/blocksim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/blocksim' instead.")
	}
}
