// Package terminal implements the command-line interface (CLI) mode for the scribe agent.
//
// The terminal reads one user message per line and prints the conversation
// with coloured labels. Reads happen on a background goroutine, so an
// interrupt wakes a blocked prompt and closes the conversation.
//
// # Usage
//
//	a, err := agent.New(cfg, registry, toolset, mode, llmClient, verbosity, logger)
//	if err != nil {
//	    // handle error
//	}
//
//	term := terminal.New(a, os.Stdin, os.Stdout)
//	err = term.Run(ctx, initialPrompt)
//
// # Features
//
//   - Support for an initial prompt from command-line arguments
//   - Tool execution confirmation in prompt mode, answered on the same input
//   - Exit commands (/quit, /exit); blank lines are ignored
//
// # Verbosity Levels
//
//   - None: No tool execution information is displayed
//   - Info: A "tool: name(args)" line is displayed before each call runs
//   - All: Tool results are displayed as well
package terminal
