// Copyright (c) Microsoft. All rights reserved.

// Package anthropic provides an [agentloop.ChatClient] backed by the
// Anthropic Messages API.
//
//	client := anthropic.New(os.Getenv("ANTHROPIC_API_KEY"),
//	    anthropic.WithModel("claude-3-7-sonnet-latest"),
//	)
//	agent := agentloop.NewAgent(client, registry)
//
// Tool results are sent back as tool_result blocks; consecutive tool
// messages of one batch are grouped into a single user turn as the API
// requires.
package anthropic
