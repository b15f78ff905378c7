package registry

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-hq/custodia/pkg/models"
	"github.com/custodia-hq/custodia/pkg/protocol"
)

type noopAgent struct {
	agentType models.AgentType
}

func (a *noopAgent) Type() models.AgentType { return a.agentType }

func (a *noopAgent) Execute(_ context.Context, _ models.AgentContext) (*models.AgentResult, error) {
	return &models.AgentResult{Success: true, AgentType: a.agentType}, nil
}

type noopFactory struct {
	agentType models.AgentType
}

func (f *noopFactory) Type() models.AgentType { return f.agentType }

func (f *noopFactory) Create(_ map[string]any, _ *slog.Logger) (protocol.Agent, error) {
	return &noopAgent{agentType: f.agentType}, nil
}

func newTestRegistry() *Registry {
	return NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreateAgent(t *testing.T) {
	reg := newTestRegistry()
	reg.RegisterAgent(&noopFactory{agentType: models.AgentDocumentation})

	agent, err := reg.CreateAgent(models.AgentDocumentation, nil)
	require.NoError(t, err)
	assert.Equal(t, models.AgentDocumentation, agent.Type())

	_, err = reg.CreateAgent(models.AgentLineageMapping, nil)
	assert.Error(t, err)
}

func TestRegisteredAgents(t *testing.T) {
	reg := newTestRegistry()
	reg.RegisterAgent(&noopFactory{agentType: models.AgentDocumentation})
	reg.RegisterAgent(&noopFactory{agentType: models.AgentLineageMapping})

	assert.ElementsMatch(t,
		[]models.AgentType{models.AgentDocumentation, models.AgentLineageMapping},
		reg.RegisteredAgents())
}

func TestValidateArtifacts(t *testing.T) {
	reg := newTestRegistry()
	reg.RegisterArtifactSchema(models.AgentCDEIdentification, map[string]any{
		"type":     "object",
		"required": []any{"cde_count"},
		"properties": map[string]any{
			"cde_count": map[string]any{"type": "number"},
		},
	})

	err := reg.ValidateArtifacts(models.AgentCDEIdentification, map[string]any{"cde_count": 12})
	assert.NoError(t, err)

	err = reg.ValidateArtifacts(models.AgentCDEIdentification, map[string]any{"summary": "no count"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cde_count")

	// Agents without a registered schema always pass.
	assert.NoError(t, reg.ValidateArtifacts(models.AgentDocumentation, map[string]any{"anything": true}))
}
