// Package protocol defines the contracts between the orchestrator and the
// external agent units.
package protocol

import (
	"context"
	"log/slog"

	"github.com/custodia-hq/custodia/pkg/models"
)

// Agent is the uniform contract every processing unit implements. The
// orchestrator never inspects agent internals, only the returned result. An
// agent may block on its own I/O; cancellation flows through ctx and a caller
// timeout is treated as agent failure.
type Agent interface {
	Type() models.AgentType
	Execute(ctx context.Context, agentCtx models.AgentContext) (*models.AgentResult, error)
}

// AgentFactory creates a configured agent instance.
type AgentFactory interface {
	Create(config map[string]any, logger *slog.Logger) (Agent, error)
	Type() models.AgentType
}
