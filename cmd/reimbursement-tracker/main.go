package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// rootConfig holds the flags shared by every command
type rootConfig struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	flags     *ff.FlagSet
	serverURL string
	logLevel  string
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if err := loadDotEnv(".env"); err != nil {
		return err
	}

	root := &rootConfig{stdin: stdin, stdout: stdout, stderr: stderr}
	root.flags = ff.NewFlagSet("reimbursement-tracker")
	root.flags.StringVar(&root.serverURL, 0, "server", "http://localhost:8080", "record service base URL")
	root.flags.StringVar(&root.logLevel, 0, "log-level", "info", "log level: debug, info, warn or error")
	_ = root.flags.StringLong("config", "", "YAML config file (optional)")

	cmd := &ff.Command{
		Name:      "reimbursement-tracker",
		Usage:     "reimbursement-tracker [FLAGS] <SUBCOMMAND>",
		ShortHelp: "capture, review and manage expense reimbursements",
		Flags:     root.flags,
		Subcommands: []*ff.Command{
			newServeCommand(root),
			newCaptureCommand(root),
			newListCommand(root),
			newEditCommand(root),
			newDeleteCommand(root),
			newViewCommand(root),
			newDashboardCommand(root),
			newExportCommand(root),
		},
	}

	err := cmd.Parse(args,
		ff.WithEnvVarPrefix(envPrefix),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(parseYAMLConfig),
		ff.WithConfigAllowMissingFile(),
		ff.WithConfigIgnoreUndefinedFlags(),
	)
	if errors.Is(err, ff.ErrHelp) {
		fmt.Fprintf(stderr, "%s\n", ffhelp.Command(cmd.GetSelected()))
		return nil
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", ffhelp.Command(cmd.GetSelected()))
		return err
	}

	if err := configureLogging(stderr, root.logLevel); err != nil {
		return err
	}

	if err := cmd.Run(ctx); err != nil {
		if errors.Is(err, ff.ErrNoExec) {
			fmt.Fprintf(stderr, "%s\n", ffhelp.Command(cmd))
			return nil
		}
		return err
	}
	return nil
}
