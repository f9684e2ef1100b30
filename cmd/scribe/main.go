package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/m4xw311/scribe/agent/terminal"
	"github.com/m4xw311/scribe/app"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("scribe", flag.ContinueOnError)
	flags.SetOutput(stderr)
	modeFlag := flags.String("m", "", "Execution mode: 'auto' or 'prompt' (default 'auto')")
	toolsetFlag := flags.String("t", "", "Toolset to use (defaults to 'default')")
	toolVerbosityFlag := flags.String("tool-verbosity", "", "Tool verbosity level: 'none', 'info', or 'all' (default 'info')")
	traceFlag := flags.Bool("trace", false, "Write execution traces to "+app.DefaultTraceFile)
	configFlag := flags.String("config", "", "Load configuration from this file instead of ~/.scribe and ./.scribe")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.Setup(ctx, app.Options{
		ConfigPath:    *configFlag,
		Toolset:       *toolsetFlag,
		Mode:          *modeFlag,
		ToolVerbosity: *toolVerbosityFlag,
		Trace:         *traceFlag,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error initializing scribe: %v\n", err)
		return 1
	}
	defer application.Close()

	scribeAgent, err := application.NewAgent()
	if err != nil {
		fmt.Fprintf(stderr, "Error initializing agent: %v\n", err)
		return 1
	}

	// Remaining arguments form the initial prompt.
	initialPrompt := strings.Join(flags.Args(), " ")

	fmt.Fprintln(stdout, "scribe is ready. Type your prompt.")
	term := terminal.New(scribeAgent, stdin, stdout)
	if err := term.Run(ctx, initialPrompt); err != nil {
		fmt.Fprintf(stderr, "Agent stopped with an error: %v\n", err)
		return 1
	}
	return 0
}
