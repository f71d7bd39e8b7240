package main

import (
	"fmt"
	"io"
	"os"
)

// Exit codes
const (
	ExitSuccess         = 0
	ExitGeneralError    = 1
	ExitInvalidArgs     = 2
	ExitNetworkError    = 3
	ExitHTTPStatus      = 4
	ExitFilesystemError = 5
	ExitMirrorError     = 6
	ExitCanceled        = 130
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Output streams, replaced in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return ExitInvalidArgs
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "get":
		return runGet(cmdArgs)
	case "history":
		return runHistory(cmdArgs)
	case "version":
		fmt.Fprintf(stdout, "gulp %s\n", version)
		return ExitSuccess
	case "help", "-h", "--help":
		printUsage()
		return ExitSuccess
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		printUsage()
		return ExitInvalidArgs
	}
}

func printUsage() {
	fmt.Fprintln(stderr, `Usage: gulp <command> [options]

Commands:
  get       Download a URL to a local file with live progress
  history   List completed downloads
  version   Print the gulp version

Run 'gulp <command> -h' for command-specific help.`)
}
