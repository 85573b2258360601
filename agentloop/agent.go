// Copyright (c) Microsoft. All rights reserved.

package agentloop

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Agent runs the decision/dispatch loop for a [ChatClient] and a fixed
// [Registry]. An Agent holds no per-conversation state and is safe for
// concurrent use.
//
// Create one with [NewAgent] and functional options:
//
//	agent := agentloop.NewAgent(client, registry,
//	    agentloop.WithName("market"),
//	    agentloop.WithInstructions("You are a market assistant."),
//	)
type Agent struct {
	id                 string
	name               string
	description        string
	client             ChatClient
	registry           *Registry
	instructions       string
	defaultOptions     *ChatOptions
	agentMiddleware    []AgentMiddleware
	chatMiddleware     []ChatMiddleware
	functionMiddleware []FunctionMiddleware
	invocationConfig   InvocationConfig
	observer           StateObserver
}

// AgentOption configures an [Agent] via [NewAgent].
type AgentOption func(*Agent)

// WithName sets the agent's display name.
func WithName(name string) AgentOption {
	return func(a *Agent) { a.name = name }
}

// WithDescription sets the agent's description.
func WithDescription(desc string) AgentOption {
	return func(a *Agent) { a.description = desc }
}

// WithInstructions sets the system prompt sent with every decision.
func WithInstructions(instructions string) AgentOption {
	return func(a *Agent) { a.instructions = instructions }
}

// WithDefaultOptions sets default [ChatOptions] for all requests.
func WithDefaultOptions(opts *ChatOptions) AgentOption {
	return func(a *Agent) { a.defaultOptions = opts }
}

// WithAgentMiddleware adds [AgentMiddleware] around every run.
func WithAgentMiddleware(mws ...AgentMiddleware) AgentOption {
	return func(a *Agent) { a.agentMiddleware = append(a.agentMiddleware, mws...) }
}

// WithChatMiddleware adds [ChatMiddleware] around every backend call.
func WithChatMiddleware(mws ...ChatMiddleware) AgentOption {
	return func(a *Agent) { a.chatMiddleware = append(a.chatMiddleware, mws...) }
}

// WithFunctionMiddleware adds [FunctionMiddleware] around every tool invocation.
func WithFunctionMiddleware(mws ...FunctionMiddleware) AgentOption {
	return func(a *Agent) { a.functionMiddleware = append(a.functionMiddleware, mws...) }
}

// WithInvocationConfig overrides the default [InvocationConfig].
func WithInvocationConfig(cfg InvocationConfig) AgentOption {
	return func(a *Agent) { a.invocationConfig = cfg }
}

// WithMaxRounds sets the maximum number of decision steps per run.
func WithMaxRounds(n int) AgentOption {
	return func(a *Agent) { a.invocationConfig.MaxRounds = n }
}

// WithMaxConcurrency bounds parallel tool calls within one batch.
func WithMaxConcurrency(n int) AgentOption {
	return func(a *Agent) { a.invocationConfig.MaxConcurrency = n }
}

// WithToolTimeout bounds each tool invocation.
func WithToolTimeout(d time.Duration) AgentOption {
	return func(a *Agent) { a.invocationConfig.ToolTimeout = d }
}

// WithDecisionTimeout bounds each backend call.
func WithDecisionTimeout(d time.Duration) AgentOption {
	return func(a *Agent) { a.invocationConfig.DecisionTimeout = d }
}

// WithStateObserver registers a hook that sees every state transition.
func WithStateObserver(obs StateObserver) AgentOption {
	return func(a *Agent) { a.observer = obs }
}

// NewAgent creates an Agent for client and registry. A nil registry means no
// tools; the model is then never offered tool calling.
func NewAgent(client ChatClient, registry *Registry, opts ...AgentOption) *Agent {
	a := &Agent{
		id:               newID(),
		client:           client,
		registry:         registry,
		invocationConfig: DefaultInvocationConfig(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ID returns the agent's unique identifier.
func (a *Agent) ID() string { return a.id }

// Name returns the agent's display name.
func (a *Agent) Name() string { return a.name }

// Description returns the agent's description.
func (a *Agent) Description() string { return a.description }

// Registry returns the agent's tool registry.
func (a *Agent) Registry() *Registry { return a.registry }

// RunOption configures a single [Agent.Run] call.
type RunOption func(*runConfig)

type runConfig struct {
	options *ChatOptions
}

// WithRunOptions provides per-call [ChatOptions] overrides.
func WithRunOptions(opts *ChatOptions) RunOption {
	return func(c *runConfig) { c.options = opts }
}

// Execute runs the loop for userText on top of prior and returns the final
// text. prior is not modified.
func (a *Agent) Execute(ctx context.Context, prior []Message, userText string, opts ...RunOption) (string, error) {
	res, err := a.Run(ctx, prior, userText, opts...)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Run is like [Agent.Execute] but returns the whole [RunResult].
//
// The returned error is non-nil only for backend failures, cancellation and
// invalid input; tool failures are reported to the model instead.
func (a *Agent) Run(ctx context.Context, prior []Message, userText string, opts ...RunOption) (*RunResult, error) {
	cfg := &runConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := chainAgentMiddleware(a.loop, a.agentMiddleware...)
	return handler(ctx, &AgentRequest{
		History: prior,
		Input:   userText,
		Options: cfg.options,
	})
}

// loop is the state machine: AwaitingDecision -> (Done | AwaitingToolResults),
// AwaitingToolResults -> AwaitingDecision.
func (a *Agent) loop(ctx context.Context, req *AgentRequest) (*RunResult, error) {
	cfg := a.invocationConfig.withDefaults()
	chat := ChainChatMiddleware(a.client.Complete, a.chatMiddleware...)
	opts := MergeChatOptions(a.defaultOptions, req.Options)

	conv := newConversation(req.History)
	if err := conv.appendUser(req.Input); err != nil {
		return nil, err
	}

	res := &RunResult{AgentID: a.id}
	var pending []*FunctionCallContent

	state := StateAwaitingDecision
	for state != StateDone {
		next := state
		switch state {
		case StateAwaitingDecision:
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrExecution, err)
			}
			if res.Rounds >= cfg.MaxRounds {
				res.Text = maxRoundsText(cfg.MaxRounds)
				res.StopReason = StopReasonMaxRounds
				res.Err = fmt.Errorf("%w (%d rounds)", ErrMaxRounds, cfg.MaxRounds)
				// The notice is not the model's reply and stays out of the history.
				slog.WarnContext(ctx, "agent run stopped at round limit",
					"agent_id", a.id,
					"max_rounds", cfg.MaxRounds,
				)
				next = StateDone
				break
			}

			res.Rounds++
			slog.DebugContext(ctx, "agent decision",
				"agent_id", a.id,
				"round", res.Rounds,
				"message_count", conv.Len(),
				"tool_count", a.registry.Len(),
			)
			d, err := decide(ctx, chat, decisionInput{
				instructions: a.instructions,
				history:      conv.Messages(),
				registry:     a.registry,
				options:      opts,
				timeout:      cfg.DecisionTimeout,
			})
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrExecution, err)
			}
			res.Usage.Add(d.Response().Usage)
			if err := conv.appendAssistant(d.Reply()); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrExecution, err)
			}

			switch d := d.(type) {
			case *FinalAnswer:
				res.Text = d.Text
				res.StopReason = StopReasonCompleted
				next = StateDone
			case *ToolRequest:
				pending = d.Calls
				next = StateAwaitingToolResults
			}

		case StateAwaitingToolResults:
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrExecution, err)
			}
			results := Dispatch(ctx, a.registry, pending, cfg, a.functionMiddleware...)
			msgs := make([]Message, len(results))
			for i, r := range results {
				msgs[i] = r.Message(cfg.IncludeDetailedErrors)
			}
			if err := conv.appendToolResults(msgs); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrExecution, err)
			}
			res.ToolCalls += len(results)
			pending = nil
			next = StateAwaitingDecision
		}

		if a.observer != nil {
			a.observer(ctx, Transition{From: state, To: next, Round: res.Rounds, HistoryLen: conv.Len()})
		}
		state = next
	}

	res.History = conv.Messages()
	res.Messages = cloneMessages(res.History[len(req.History):])
	return res, nil
}

func maxRoundsText(n int) string {
	return fmt.Sprintf("max iterations exceeded: stopped after %d rounds without a final answer", n)
}
