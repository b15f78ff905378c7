// Package registry maintains the set of registered agent units keyed by agent
// type, together with the JSON schemas their artifacts are validated against.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/custodia-hq/custodia/pkg/models"
	"github.com/custodia-hq/custodia/pkg/protocol"
)

type Registry struct {
	logger          *slog.Logger
	agentFactories  map[models.AgentType]protocol.AgentFactory
	artifactSchemas map[models.AgentType]map[string]any
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:          logger,
		agentFactories:  make(map[models.AgentType]protocol.AgentFactory),
		artifactSchemas: make(map[models.AgentType]map[string]any),
	}
}

func (r *Registry) RegisterAgent(factory protocol.AgentFactory) {
	r.agentFactories[factory.Type()] = factory
}

// RegisterArtifactSchema attaches a JSON schema that successful results of
// the given agent type must satisfy. Schemas are optional per agent.
func (r *Registry) RegisterArtifactSchema(agentType models.AgentType, schema map[string]any) {
	r.artifactSchemas[agentType] = schema
}

func (r *Registry) CreateAgent(agentType models.AgentType, config map[string]any) (protocol.Agent, error) {
	factory, ok := r.agentFactories[agentType]
	if !ok {
		return nil, fmt.Errorf("agent type '%s' not registered", agentType)
	}

	return factory.Create(config, r.logger)
}

// RegisteredAgents returns the agent types currently registered.
func (r *Registry) RegisteredAgents() []models.AgentType {
	types := make([]models.AgentType, 0, len(r.agentFactories))
	for agentType := range r.agentFactories {
		types = append(types, agentType)
	}

	return types
}
