// Package cli wires the linkguard packages into the cobra command tree and
// owns the process exit code.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

// Exit codes.
const (
	ExitOK         = 0
	ExitBroken     = 1 // broken links, or a fatal error
	ExitViolations = 2 // rule violations in prod mode
)

// ExitError ends the command with Code without printing anything further.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewRootCommand creates the linkguard root command.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linkguard",
		Short: "Detect broken links and development URLs in project files",
		Long: `linkguard scans a directory for documentation and config files, extracts
every http(s) URL, and checks each one over the network with bounded
concurrency.

In prod mode, URLs that point at localhost or private development hosts are
reported as rule violations.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewScanCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// NewVersionCommand prints the build version.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the linkguard version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "linkguard %s\n", Version)
		},
	}
}

// Execute runs the command line in os.Args and returns the exit code.
func Execute(ctx context.Context) int {
	return run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	return ExitBroken
}
