// Copyright (c) Microsoft. All rights reserved.

// Package agentloop runs a tool-augmented conversation: a model either answers
// or asks for tools, the requested tools run, their results are fed back, and
// the cycle repeats until the model produces a final answer.
//
// # Quick Start
//
// Build a [Registry] of tools once at startup, then create an [Agent] around a
// [ChatClient] (e.g., from the openai or anthropic packages):
//
//	reg, err := agentloop.NewRegistry(priceTool, rateTool)
//	if err != nil {
//	    return err
//	}
//
//	agent := agentloop.NewAgent(client, reg,
//	    agentloop.WithInstructions("You are a market assistant."),
//	    agentloop.WithMaxRounds(8),
//	)
//
//	text, err := agent.Execute(ctx, history, "price of AAPL?")
//
// # Loop
//
// Each run moves through three states:
//
//   - [StateAwaitingDecision]: the backend is called once with the full history.
//     A reply without tool calls ends the run; a reply with tool calls is
//     appended and the run moves on.
//   - [StateAwaitingToolResults]: every requested call is resolved against the
//     registry and invoked, possibly in parallel. Exactly one tool result per
//     call is appended before the next decision.
//   - [StateDone]: the final text is returned.
//
// Tool failures never abort a run. An unknown tool, malformed arguments, a
// timeout, an error or a panic is turned into an error result that the model
// sees on the next round. Only backend failures and cancellation are returned
// as errors. A run that hits its round limit stops with
// [StopReasonMaxRounds] and a fixed bounded-failure text, which is reported
// on the result but not added to the history.
//
// # Tools
//
// Use [NewTypedTool] for tools with generated JSON Schema:
//
//	type QuoteArgs struct {
//	    Ticker string `json:"ticker" jsonschema:"required" jsonschema_description:"Ticker symbol"`
//	}
//
//	tool := agentloop.NewTypedTool("get_stock_price", "Current price of a stock",
//	    func(ctx context.Context, args QuoteArgs) (any, error) {
//	        return quote(args.Ticker)
//	    },
//	)
//
// # Sessions
//
// Conversation history belongs to the caller. A [Session] pairs a
// [MessageStore] with a guard against concurrent runs:
//
//	session := agentloop.NewSession()
//	reply1, _ := agent.RunSession(ctx, session, "hello")
//	reply2, _ := agent.RunSession(ctx, session, "and MSFT?")
package agentloop
