// Command mailgoat is the MailGoat command-line mail client.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/mailgoat/mailgoat/internal/cli"
	"github.com/mailgoat/mailgoat/internal/client"
	"github.com/mailgoat/mailgoat/pkg/version"
)

func main() {
	os.Exit(run())
}

// run executes the root command and maps failures to process exit codes.
// Classified API errors get distinct codes so scripts can tell an auth
// failure from a throttled or unreachable upstream.
func run() int {
	root := cli.NewRootCmd(version.GetVersion())
	err := root.Execute()
	if err == nil {
		return 0
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return exitCodeFor(err)
}

// exitCodeFor extracts the exit code carried by classified errors,
// defaulting to 1 for everything else.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}

	var abortErr *cli.BatchAbortError
	if errors.As(err, &abortErr) {
		return abortErr.ExitCode()
	}

	if apiErr, ok := client.AsError(err); ok {
		return apiErr.ExitCode()
	}

	return 1
}
