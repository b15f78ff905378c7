package registry

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/custodia-hq/custodia/pkg/models"
)

// ValidateArtifacts checks an agent's produced artifacts against the schema
// registered for its type. Agents without a registered schema pass.
func (r *Registry) ValidateArtifacts(agentType models.AgentType, artifacts map[string]any) error {
	schema, ok := r.artifactSchemas[agentType]
	if !ok {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(artifacts)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("artifact schema validation failed for %s: %w", agentType, err)
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return fmt.Errorf("invalid artifacts for %s: %s", agentType, strings.Join(descriptions, "; "))
	}

	return nil
}
