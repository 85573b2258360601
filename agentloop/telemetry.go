// Copyright (c) Microsoft. All rights reserved.

package agentloop

import (
	"context"
	"log/slog"
	"time"
)

// LoggingMiddleware returns an [AgentMiddleware] that logs agent runs using slog.
func LoggingMiddleware(logger *slog.Logger) AgentMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next AgentHandler) AgentHandler {
		return func(ctx context.Context, req *AgentRequest) (*RunResult, error) {
			start := time.Now()
			logger.InfoContext(ctx, "agent run started",
				"history_length", len(req.History),
			)

			res, err := next(ctx, req)

			duration := time.Since(start)
			if err != nil {
				logger.ErrorContext(ctx, "agent run failed",
					"duration", duration,
					"error", err,
				)
				return nil, err
			}

			level := slog.LevelInfo
			if res.StopReason != StopReasonCompleted {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "agent run completed",
				"duration", duration,
				"rounds", res.Rounds,
				"tool_calls", res.ToolCalls,
				"stop_reason", string(res.StopReason),
				"input_tokens", res.Usage.InputTokens,
				"output_tokens", res.Usage.OutputTokens,
			)
			return res, nil
		}
	}
}
