// Copyright (c) Microsoft. All rights reserved.

// Package openai provides an [agentloop.ChatClient] for the OpenAI Chat
// Completions API and Azure OpenAI deployments.
//
// Create a client and pass it to [agentloop.NewAgent]:
//
//	client := openai.New(os.Getenv("OPENAI_API_KEY"),
//	    openai.WithModel("gpt-4o"),
//	)
//
//	agent := agentloop.NewAgent(client, registry)
//
// For Azure OpenAI, address the deployment and authenticate with either an
// API key or a Microsoft Entra ID credential:
//
//	cred, _ := azidentity.NewDefaultAzureCredential(nil)
//	client := openai.New("",
//	    openai.WithAzureDeployment(endpoint, "gpt-4.1", ""),
//	    openai.WithAzureCredential(cred),
//	)
//
// Requests go through an azcore pipeline, so retries (see [WithRetry]),
// token refresh and request logging follow the Azure SDK conventions. The
// loop itself never retries.
//
// # Testing
//
// Provide a mock http.Client via [WithHTTPClient] with a custom RoundTripper.
package openai
