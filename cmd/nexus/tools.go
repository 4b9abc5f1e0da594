package main

import (
	"context"
	"log/slog"

	"github.com/mweinbach/agent-coworker-sub008/internal/agent"
	"github.com/mweinbach/agent-coworker-sub008/internal/humanchannel"
	"github.com/mweinbach/agent-coworker-sub008/internal/mcp"
	"github.com/mweinbach/agent-coworker-sub008/internal/session"
)

// newToolBuilder returns the server.ToolBuilder hook: a fresh ToolDispatcher
// per session, scoped to the session's working directory, with MCP-hosted
// tools registered when the session opts in (session.Config.EnableMCP).
// mcpManager is shared process-wide; each session acquires the servers it
// needs and the returned cleanup releases them on dispose, so a server with
// no more sessions referencing it is torn down rather than kept connected
// for the rest of the process's life (internal/mcp's ref-counted lifecycle).
func newToolBuilder(mcpManager *mcp.Manager, logger *slog.Logger) func(cfg session.Config, hc *humanchannel.Channel) (*agent.ToolDispatcher, func(), error) {
	return func(cfg session.Config, hc *humanchannel.Channel) (*agent.ToolDispatcher, func(), error) {
		dispatcher := agent.NewToolDispatcher(hc, cfg.WorkingDir)
		dispatcher.SetGuard(agent.ToolResultGuard{
			Enabled:         true,
			MaxChars:        agent.DefaultMaxToolResultSize,
			SanitizeSecrets: true,
		})

		if !cfg.EnableMCP || mcpManager == nil {
			return dispatcher, nil, nil
		}

		ctx := context.Background()
		acquired := make([]string, 0, len(mcpManager.Servers()))
		for _, serverCfg := range mcpManager.Servers() {
			if err := mcpManager.Acquire(ctx, serverCfg.ID); err != nil {
				logger.Warn("mcp server unavailable for session", "server", serverCfg.ID, "error", err)
				continue
			}
			acquired = append(acquired, serverCfg.ID)
		}

		if _, err := mcp.RegisterTools(dispatcher, mcpManager); err != nil {
			logger.Warn("mcp tool registration failed", "error", err)
		}

		cleanup := func() {
			for _, id := range acquired {
				if err := mcpManager.Release(id); err != nil {
					logger.Warn("mcp server release failed", "server", id, "error", err)
				}
			}
		}
		return dispatcher, cleanup, nil
	}
}
