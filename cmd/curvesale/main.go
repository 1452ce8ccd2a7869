package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "quote":
		if err := quote(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "simulate":
		if err := simulate(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "serve":
		if err := serve(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Println("curvesale version 1.0.0")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`curvesale - bonding-curve primary issuance sale engine

Usage:
  curvesale <command> [options]

Commands:
  quote      Price a prospective purchase on the curve
  simulate   Run a randomized sale against in-memory ledgers
  serve      Run the HTTP sale server
  help       Show this help message
  version    Show version information

Examples:
  # Price 100 units at the reference parameters
  curvesale quote --base 30000000 --supply 2000000 --smoothing 200000 --quantity 100

  # Simulate a full sellout and write the record log
  curvesale simulate --base 100 --supply 50 --smoothing 10 --output records.jsonl

  # Serve the sale over HTTP with sqlite persistence
  curvesale serve --addr :8080 --db sale.db

For command-specific help, run:
  curvesale <command> --help`)
}
