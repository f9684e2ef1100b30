// Package agent provides the conversation loop shared by every scribe front end.
//
// The loop alternates between the user and the language model. Each user
// message gets at most one round of tool calls:
//
//	AwaitingUserInput -> AwaitingInference -> Presenting
//	AwaitingUserInput -> AwaitingInference -> AwaitingToolExecution
//	    -> AwaitingFinalInference -> Presenting
//
// and the agent moves to Closed when input ends, the user types /quit or
// /exit, the context is cancelled, or the gateway fails. Tool calls returned by
// the second inference are kept in the history and answered with an error
// result instead of being run.
//
// # Usage
//
//	a, err := agent.New(cfg, registry, "default", agent.ModeAuto, client, agent.ToolVerbosityInfo, logger)
//	if err != nil {
//	    // handle error
//	}
//
//	callbacks := agent.ProcessCallbacks{
//	    OnAssistantMessage: func(message string) {
//	        // Show the answer
//	    },
//	    OnToolCall: func(toolCall session.ToolCall) {
//	        // Observe a tool right before it runs
//	    },
//	    ShouldExecuteTool: func(toolCall session.ToolCall) bool {
//	        // Ask the user (prompt mode only)
//	        return true
//	    },
//	}
//
//	err = a.Run(ctx, input, initialPrompt, callbacks)
//
// # Modes
//
//   - ModeAuto: Tools are executed without confirmation
//   - ModePrompt: ShouldExecuteTool is consulted before each call; a refusal
//     is recorded as the tool result
//
// # Subpackages
//
// agent/terminal reads lines from a terminal and renders the conversation
// with labelled, coloured output. cmd/ws_bridge drives the same loop over a
// websocket.
package agent
